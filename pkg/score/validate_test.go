package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate([]int{0, 10, 5, 5}))

	err := Validate([]int{3, 11})
	require.ErrorIs(t, err, ErrInvalidRoll)
	assert.Contains(t, err.Error(), "roll 2")

	assert.ErrorIs(t, Validate([]int{-1}), ErrInvalidRoll)
}

func TestParseRolls(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"", []int{}},
		{"3 4 2 5", []int{3, 4, 2, 5}},
		{"3,4,2,5", []int{3, 4, 2, 5}},
		{"X X X", []int{10, 10, 10}},
		{"x 7 /", []int{10, 7, 3}},
		{"9 - 0 /", []int{9, 0, 0, 10}},
		{" 10,\t6 / 5 ", []int{10, 6, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRolls(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRolls_Invalid(t *testing.T) {
	for _, in := range []string{"/", "X /", "3 a", "11", "-2", "3.5"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseRolls(in)
			assert.ErrorIs(t, err, ErrInvalidRoll)
		})
	}
}
