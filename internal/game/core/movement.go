package core

// Per-action rewards.
const (
	RewardMove     = -1
	RewardWin      = 100
	RewardTerminal = -100
)

// Rotate returns g turned counter-clockwise by quarterTurns * 90 degrees.
// Negative values rotate clockwise.
func Rotate(g Grid, quarterTurns int) Grid {
	k := ((quarterTurns % 4) + 4) % 4
	for ; k > 0; k-- {
		var out Grid
		for i := 0; i < Size; i++ {
			for j := 0; j < Size; j++ {
				out[i][j] = g[j][Size-1-i]
			}
		}
		g = out
	}
	return g
}

// IsLeftAvailable reports whether a left move would change g: some row has a
// tile to the right of an empty cell, or two adjacent equal tiles.
func IsLeftAvailable(g Grid) bool {
	for row := 0; row < Size; row++ {
		hasEmpty := false
		for col := 0; col < Size; col++ {
			cell := g[row][col]
			if cell == Empty {
				hasEmpty = true
				continue
			}
			if hasEmpty {
				return true
			}
			if col > 0 && cell == g[row][col-1] {
				return true
			}
		}
	}
	return false
}

// IsActionAvailable checks d against g without modifying it.
func IsActionAvailable(g Grid, d Direction) bool {
	if !d.Valid() {
		return false
	}
	return IsLeftAvailable(Rotate(g, int(d)))
}

// MoveLeft shifts and merges every row of g toward column 0 in place.
// It returns true when some merge produced WinExponent.
func MoveLeft(g *Grid) bool {
	won := false
	for row := 0; row < Size; row++ {
		if mergeRowLeft(&g[row]) {
			won = true
		}
	}
	return won
}

// mergeRowLeft compacts one row. candidate is the column of the last placed
// tile; each column merges at most once. Scanning stops at the first merge that
// reaches WinExponent, leaving the remaining cells where they are.
func mergeRowLeft(row *[Size]uint8) bool {
	candidate := -1
	var merged [Size]bool

	for col := 0; col < Size; col++ {
		if row[col] == Empty {
			continue
		}

		if candidate != -1 && !merged[candidate] && row[candidate] == row[col] {
			row[col] = Empty
			merged[candidate] = true
			row[candidate]++
			if row[candidate] == WinExponent {
				return true
			}
			continue
		}

		candidate++
		if col != candidate {
			row[candidate] = row[col]
			row[col] = Empty
		}
	}
	return false
}

// ApplyMove runs d on a copy of g via rotate, MoveLeft and the inverse rotation.
// The returned reward is RewardWin if any row reached WinExponent, RewardMove otherwise.
// No tile is spawned.
func ApplyMove(g Grid, d Direction) (Grid, int) {
	turned := Rotate(g, int(d))
	reward := RewardMove
	if MoveLeft(&turned) {
		reward = RewardWin
	}
	return Rotate(turned, -int(d)), reward
}
