/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package impostor

import "errors"

var (
	ErrDuplicateName = errors.New("name already taken")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrMissingFields = errors.New("missing required fields")
	ErrSelfVote      = errors.New("cannot vote for yourself")
	ErrAlreadyVoted  = errors.New("already voted this round")
	ErrNotFound      = errors.New("player not found")
	ErrInvalidState  = errors.New("operation not allowed in current stage")
	ErrInternal      = errors.New("internal session error")
)

// ErrorCode returns the wire name of a store error, or "Internal" for
// anything the store did not produce.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateName):
		return "DuplicateName"
	case errors.Is(err, ErrUnknownPlayer):
		return "UnknownPlayer"
	case errors.Is(err, ErrMissingFields):
		return "MissingFields"
	case errors.Is(err, ErrSelfVote):
		return "SelfVote"
	case errors.Is(err, ErrAlreadyVoted):
		return "AlreadyVoted"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	default:
		return "Internal"
	}
}
