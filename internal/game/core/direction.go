package core

import (
	"fmt"
	"strings"
)

// Direction is a move direction. The value is also the number of
// counter-clockwise quarter turns that make it a left move.
type Direction int

const (
	Left Direction = iota
	Up
	Right
	Down
)

// NumDirections is the size of the action space.
const NumDirections = 4

// Directions lists every direction in canonical order.
var Directions = [NumDirections]Direction{Left, Up, Right, Down}

var directionNames = [NumDirections]string{"left", "up", "right", "down"}

func (d Direction) Valid() bool { return d >= Left && d <= Down }

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// ParseDirection accepts a direction name (any case).
func ParseDirection(s string) (Direction, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range directionNames {
		if n == name {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}
