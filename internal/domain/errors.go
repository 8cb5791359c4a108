package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRound       = errors.New("round is not live")
	ErrBelowMinimum       = errors.New("stake below minimum bet")
	ErrDuplicatePosition  = errors.New("position already exists for epoch")
	ErrSettlementConflict = errors.New("conflicting outcome for settled position")
	ErrRoundNotClosed     = errors.New("round has no close price")
	ErrClaimInProgress    = errors.New("claim already in progress")
	ErrNotFound           = errors.New("not found")
	ErrExternal           = errors.New("external collaborator failure")
	ErrGamePaused         = errors.New("game is paused")
	ErrBetInProgress      = errors.New("bet already in flight for epoch")
	ErrInvalidDirection   = errors.New("invalid direction, want bull or bear")
)

// ExternalError wraps a failure reported by the feed or a settlement/stake
// collaborator. errors.Is(err, ErrExternal) holds for every ExternalError.
type ExternalError struct {
	Op  string
	Err error
}

// NewExternalError wraps err as a collaborator failure for op.
func NewExternalError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalError{Op: op, Err: err}
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// Is makes every ExternalError match ErrExternal.
func (e *ExternalError) Is(target error) bool {
	return target == ErrExternal
}
