package score

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidRoll is returned for pin counts outside [0, MaxPins] and for
// input that is not a pin count at all.
var ErrInvalidRoll = errors.New("invalid roll")

// Validate checks that every roll is between 0 and MaxPins.
func Validate(rolls []int) error {
	for i, r := range rolls {
		if r < 0 || r > MaxPins {
			return fmt.Errorf("%w: roll %d is %d, must be between 0 and %d", ErrInvalidRoll, i+1, r, MaxPins)
		}
	}
	return nil
}

// ParseRolls converts bowling notation into pin counts. Rolls are separated
// by commas or whitespace. Besides plain numbers it accepts X for a strike,
// / for a spare (the pins left after the previous roll) and - for a miss.
func ParseRolls(s string) ([]int, error) {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	rolls := make([]int, 0, len(tokens))
	for i, tok := range tokens {
		r, err := parseRoll(tok, rolls)
		if err != nil {
			return nil, fmt.Errorf("%w: roll %d %q: %s", ErrInvalidRoll, i+1, tok, err)
		}
		rolls = append(rolls, r)
	}

	if err := Validate(rolls); err != nil {
		return nil, err
	}

	return rolls, nil
}

func parseRoll(tok string, prev []int) (int, error) {
	switch strings.ToUpper(tok) {
	case "X":
		return MaxPins, nil
	case "-":
		return 0, nil
	case "/":
		if len(prev) == 0 {
			return 0, errors.New("spare without a previous roll")
		}
		last := prev[len(prev)-1]
		if last >= MaxPins || last < 0 {
			return 0, errors.New("spare must follow a roll that left pins standing")
		}
		return MaxPins - last, nil
	}

	v, err := strconv.Atoi(tok)
	if err != nil {
		return 0, errors.New("not a pin count")
	}
	return v, nil
}
