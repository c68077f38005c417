package tictactoe

import (
	"strings"
)

const size = 3

type Mark byte

const (
	Empty Mark = '.'
	X     Mark = 'X'
	O     Mark = 'O'
)

// Board is a tic-tac-toe board. X moves first.
type Board struct {
	cells [size][size]Mark
	turn  Mark
	moves int
}

func NewBoard() *Board {
	b := &Board{turn: X}

	for r := range b.cells {
		for c := range b.cells[r] {
			b.cells[r][c] = Empty
		}
	}

	return b
}

// Turn returns whose move it is
func (b *Board) Turn() Mark {
	return b.turn
}

// CanMove returns true if the 0-based cell is on the board and empty
func (b *Board) CanMove(row, col int) bool {
	return row >= 0 && row < size && col >= 0 && col < size && b.cells[row][col] == Empty
}

// Move marks the 0-based cell for the current player and passes the turn
func (b *Board) Move(row, col int) bool {
	if !b.CanMove(row, col) || b.Winner() != Empty {
		return false
	}

	b.cells[row][col] = b.turn
	b.moves++

	if b.turn == X {
		b.turn = O
	} else {
		b.turn = X
	}

	return true
}

// Winner returns the mark with three in a row, or Empty
func (b *Board) Winner() Mark {
	lines := [][3][2]int{
		{{0, 0}, {0, 1}, {0, 2}},
		{{1, 0}, {1, 1}, {1, 2}},
		{{2, 0}, {2, 1}, {2, 2}},
		{{0, 0}, {1, 0}, {2, 0}},
		{{0, 1}, {1, 1}, {2, 1}},
		{{0, 2}, {1, 2}, {2, 2}},
		{{0, 0}, {1, 1}, {2, 2}},
		{{0, 2}, {1, 1}, {2, 0}},
	}

	for _, line := range lines {
		first := b.cells[line[0][0]][line[0][1]]
		if first == Empty {
			continue
		}

		if b.cells[line[1][0]][line[1][1]] == first && b.cells[line[2][0]][line[2][1]] == first {
			return first
		}
	}

	return Empty
}

func (b *Board) IsFull() bool {
	return b.moves == size*size
}

// String renders the board on one line, rows separated by '|'
func (b *Board) String() string {
	rows := make([]string, size)
	for r := range b.cells {
		var sb strings.Builder
		for _, cell := range b.cells[r] {
			sb.WriteByte(byte(cell))
		}
		rows[r] = sb.String()
	}

	return strings.Join(rows, "|")
}
