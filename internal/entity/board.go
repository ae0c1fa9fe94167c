package entity

import (
	"fmt"

	"github.com/playgrid/tictactoe-server/internal/apperror"
)

const (
	PlayerX = "X"
	PlayerO = "O"

	EmptyCell = ""

	BoardSize = 3
)

// WinCombos lists every winning line as flat cell indexes:
// three rows, three columns, two diagonals.
var WinCombos = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board holds one 3x3 grid. A cell that left EmptyCell never changes again;
// the only writer is Place.
type Board struct {
	cells [BoardSize * BoardSize]string
}

func NewBoard() *Board {
	return &Board{}
}

// Place puts a mark on the given cell. The cell stays untouched on error.
func (that *Board) Place(row, col int, mark string) error {
	if row < 0 || row >= BoardSize || col < 0 || col >= BoardSize {
		return fmt.Errorf("%w: (%d,%d)", apperror.ErrInvalidCell, row, col)
	}

	idx := row*BoardSize + col
	if that.cells[idx] != EmptyCell {
		return fmt.Errorf("%w: (%d,%d)", apperror.ErrCellOccupied, row, col)
	}

	that.cells[idx] = mark

	return nil
}

// Winner scans the eight winning lines by direct cell comparison and returns
// the mark that occupies one completely, or EmptyCell when no line is done.
// Sequential turn-taking guarantees at most one mark can hold a full line.
func (that *Board) Winner() string {
	for _, combo := range WinCombos {
		a, b, c := that.cells[combo[0]], that.cells[combo[1]], that.cells[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	return EmptyCell
}

func (that *Board) IsFull() bool {
	for _, cell := range that.cells {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

func (that *Board) At(row, col int) string {
	return that.cells[row*BoardSize+col]
}

// Cells returns the grid as a row-major copy, safe to hand out.
func (that *Board) Cells() [BoardSize][BoardSize]string {
	var grid [BoardSize][BoardSize]string
	for i, cell := range that.cells {
		grid[i/BoardSize][i%BoardSize] = cell
	}

	return grid
}
