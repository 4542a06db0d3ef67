package core

import "errors"

var (
	ErrInvalidDirection  = errors.New("invalid direction")
	ErrActionUnavailable = errors.New("action not available")
	ErrNoEmptyCell       = errors.New("no empty cell to spawn a tile")
	ErrGameOver          = errors.New("game is over")
	ErrInvalidGrid       = errors.New("invalid grid")
	ErrExponentOverflow  = errors.New("exponent does not fit in packed grid")
)
