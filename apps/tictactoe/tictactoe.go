// Package tictactoe lets a client play both sides of a game of tic-tac-toe.
package tictactoe

import (
	"fmt"
	"strconv"

	"github.com/luma/sprt/protocol"
	"github.com/luma/sprt/session"
)

const Name = "TicTacToe"

const moveStepName = "MoveState"

// New returns the initial step of a game with a fresh board
func New() session.Step {
	board := NewBoard()

	var move *session.BasicStep
	move = session.NewStep(moveStepName, "",
		session.WithPromptFunc(func() string {
			return fmt.Sprintf("%s %c's turn (row col)> ", board, board.Turn())
		}),
		session.WithHandler(2, func(req *protocol.Request, params []string) (session.StepResult, error) {
			return play(move, board, params[0], params[1])
		}),
	)

	return session.NewStep(Name, "", session.WithHandler(0,
		func(req *protocol.Request, _ []string) (session.StepResult, error) {
			return session.Transition(move, nil)
		}))
}

func Register(r *session.Registry) error {
	return r.Register(Name, New)
}

func play(move session.Step, board *Board, sRow, sCol string) (session.StepResult, error) {
	row, rowErr := strconv.Atoi(sRow)
	col, colErr := strconv.Atoi(sCol)

	if rowErr != nil || colErr != nil {
		return session.Retry(move, "position must be 2 integers. "+move.Prompt())
	}

	if row < 1 || col < 1 || row > size || col > size {
		return session.Retry(move, "position must be between 1 and 3. "+move.Prompt())
	}

	// positions are 1-based on the wire
	if !board.Move(row-1, col-1) {
		return session.Retry(move, "Can't move there. "+move.Prompt())
	}

	if winner := board.Winner(); winner != Empty {
		return session.End(protocol.StatusOK, fmt.Sprintf("%s Winner: %c", board, winner), nil)
	}

	if board.IsFull() {
		return session.End(protocol.StatusOK, board.String()+" It's a draw.", nil)
	}

	return session.Transition(move, nil)
}
