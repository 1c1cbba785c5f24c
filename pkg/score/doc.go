// Package score implements ten-pin bowling scoring over a roll history.
// It exposes [Score], the [Mark] enumeration, [Validate], and [ParseRolls]
// for bowling notation. Everything here is pure: the same rolls always
// produce the same [GameState].
package score
