package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/playgrid/tictactoe-server/internal/entity"
)

// Terminal is the thin presentation shell for the play command: it renders
// state snapshots and turns keyboard input into (row, col) intents.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// RenderBoard prints the grid with coordinate axes.
func (that *Terminal) RenderBoard(board [entity.BoardSize][entity.BoardSize]string) {
	fmt.Fprintln(that.out, "\n    0   1   2")
	fmt.Fprintln(that.out, "  +---+---+---+")

	for row := range board {
		fmt.Fprintf(that.out, "%d |", row)
		for col := range board[row] {
			cell := board[row][col]
			if cell == entity.EmptyCell {
				cell = " "
			}
			fmt.Fprintf(that.out, " %s |", cell)
		}
		fmt.Fprintln(that.out)
		fmt.Fprintln(that.out, "  +---+---+---+")
	}
}

// PromptMove asks for a "row,col" pair until it gets a parseable one.
// Range checks stay with the server.
func (that *Terminal) PromptMove() (int, int, bool) {
	for {
		fmt.Fprint(that.out, "your move (row,col): ")

		line, err := that.in.ReadString('\n')
		if err != nil {
			return 0, 0, false
		}

		parts := strings.Split(strings.TrimSpace(line), ",")
		if len(parts) != 2 {
			fmt.Fprintln(that.out, "enter two numbers separated by a comma")
			continue
		}

		row, rowErr := strconv.Atoi(strings.TrimSpace(parts[0]))
		col, colErr := strconv.Atoi(strings.TrimSpace(parts[1]))
		if rowErr != nil || colErr != nil {
			fmt.Fprintln(that.out, "coordinates must be numbers")
			continue
		}

		return row, col, true
	}
}

func (that *Terminal) ShowInfo(message string) {
	fmt.Fprintln(that.out, message)
}

func (that *Terminal) ShowError(message string) {
	fmt.Fprintf(that.out, "error: %s\n", message)
}

// ShowOutcome prints the closing banner for a finished game.
func (that *Terminal) ShowOutcome(winner, yourSymbol string) {
	switch winner {
	case entity.WinnerTie:
		fmt.Fprintln(that.out, "it's a tie!")
	case entity.WinnerAbandoned:
		fmt.Fprintln(that.out, "your opponent left the game")
	case yourSymbol:
		fmt.Fprintln(that.out, "you win!")
	default:
		fmt.Fprintf(that.out, "%s wins!\n", winner)
	}
}
