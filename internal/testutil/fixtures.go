package testutil

import "github.com/mitchelldurbincs/Game2048RL/internal/game/core"

// TerminalGrid is full and has no equal neighbours in any direction.
func TerminalGrid() core.Grid {
	return core.Grid{
		{1, 2, 1},
		{2, 1, 2},
		{1, 2, 1},
	}
}

// WinningRowGrid merges to the winning exponent with a left move.
func WinningRowGrid() core.Grid {
	return core.Grid{
		{5, 5, 0},
		{0, 0, 0},
		{0, 0, 0},
	}
}

// SingleGapGrid has exactly one empty cell, at (1,1), and no legal merge.
func SingleGapGrid() core.Grid {
	return core.Grid{
		{3, 4, 3},
		{4, 0, 4},
		{3, 4, 3},
	}
}

// CountTiles returns the number of occupied cells in g.
func CountTiles(g core.Grid) int {
	n := 0
	for r := 0; r < core.Size; r++ {
		for c := 0; c < core.Size; c++ {
			if g[r][c] != core.Empty {
				n++
			}
		}
	}
	return n
}
