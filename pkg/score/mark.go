package score

import "fmt"

// Mark is the outcome of a single frame.
type Mark int

const (
	// Incomplete frames still wait on rolls and carry no score.
	Incomplete Mark = iota
	Open
	Spare
	Strike
)

var markNames = map[Mark]string{
	Incomplete: "Incomplete",
	Open:       "Open",
	Spare:      "Spare",
	Strike:     "Strike",
}

func (m Mark) String() string {
	if s, ok := markNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mark(%d)", int(m))
}

// Resolved reports whether a frame with this mark has a final score.
func (m Mark) Resolved() bool {
	switch m {
	case Open, Spare, Strike:
		return true
	case Incomplete:
		return false
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mark) MarshalText() ([]byte, error) {
	s, ok := markNames[m]
	if !ok {
		return nil, fmt.Errorf("unknown mark: %d", int(m))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mark) UnmarshalText(b []byte) error {
	for k, v := range markNames {
		if v == string(b) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("unknown mark: %q", string(b))
}
