package core

import "fmt"

// Size is the edge length of the square grid.
const Size = 3

const (
	Empty       uint8 = 0
	WinExponent uint8 = 6 // tile value 64
	cellBits          = 4
	cellMask          = 1<<cellBits - 1
)

// Grid holds one tile exponent per cell, row-major.
// 0 means empty; an occupied cell always holds e >= 1 (displayed value 2^e).
type Grid [Size][Size]uint8

// Board wraps a Grid with the helpers the engine and the trainer share.
type Board struct {
	G Grid
}

func NewBoard() *Board { return &Board{} }

// NewBoardFromGrid copies g into a fresh board.
func NewBoardFromGrid(g Grid) *Board {
	return &Board{G: g}
}

func (b *Board) At(row, col int) uint8       { return b.G[row][col] }
func (b *Board) Set(row, col int, exp uint8) { b.G[row][col] = exp }

// EmptyCells returns the (row, col) pairs of every empty cell in row-major order.
func (b *Board) EmptyCells() [][2]int {
	cells := make([][2]int, 0, Size*Size)
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b.G[r][c] == Empty {
				cells = append(cells, [2]int{r, c})
			}
		}
	}
	return cells
}

// HasEmpty reports whether at least one cell is free.
func (b *Board) HasEmpty() bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b.G[r][c] == Empty {
				return true
			}
		}
	}
	return false
}

// MaxExponent returns the largest exponent on the board, 0 for an empty board.
func (g Grid) MaxExponent() uint8 {
	var top uint8
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if g[r][c] > top {
				top = g[r][c]
			}
		}
	}
	return top
}

// Pack encodes the grid into 36 bits, four per cell, row-major with cell (0,0)
// in the most significant nibble. Exponents above 15 do not fit and are rejected.
func (g Grid) Pack() (uint64, error) {
	var key uint64
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			e := g[r][c]
			if e > cellMask {
				return 0, fmt.Errorf("%w: exponent %d at (%d,%d)", ErrExponentOverflow, e, r, c)
			}
			key = key<<cellBits | uint64(e)
		}
	}
	return key, nil
}

// MustPack is Pack for grids produced by the engine, which never exceed 15 on a 3x3 board.
func (g Grid) MustPack() uint64 {
	key, err := g.Pack()
	if err != nil {
		panic(err)
	}
	return key
}

// Unpack is the inverse of Pack.
func Unpack(key uint64) Grid {
	var g Grid
	for i := Size*Size - 1; i >= 0; i-- {
		g[i/Size][i%Size] = uint8(key & cellMask)
		key >>= cellBits
	}
	return g
}

// GridFromRows validates caller-supplied rows and converts them to a Grid.
func GridFromRows(rows [][]int) (Grid, error) {
	var g Grid
	if len(rows) != Size {
		return g, fmt.Errorf("%w: want %d rows, got %d", ErrInvalidGrid, Size, len(rows))
	}
	for r, row := range rows {
		if len(row) != Size {
			return g, fmt.Errorf("%w: row %d has %d cells", ErrInvalidGrid, r, len(row))
		}
		for c, v := range row {
			if v < 0 || v > cellMask {
				return g, fmt.Errorf("%w: exponent %d at (%d,%d)", ErrInvalidGrid, v, r, c)
			}
			g[r][c] = uint8(v)
		}
	}
	return g, nil
}

// Rows returns the grid as nested int slices (0 = empty).
func (g Grid) Rows() [][]int {
	rows := make([][]int, Size)
	for r := 0; r < Size; r++ {
		rows[r] = make([]int, Size)
		for c := 0; c < Size; c++ {
			rows[r][c] = int(g[r][c])
		}
	}
	return rows
}
