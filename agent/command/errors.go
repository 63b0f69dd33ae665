package command

import "errors"

var (
	ErrEmptyCommand      = errors.New("empty command")
	ErrBlocked           = errors.New("command blocked")
	ErrSpawn             = errors.New("failed to start process")
	ErrStreaming         = errors.New("output stream failed")
	ErrCancelled         = errors.New("command cancelled")
	ErrTimedOut          = errors.New("command timed out")
	ErrUnknownSession    = errors.New("unknown session")
	ErrInvalidTransition = errors.New("invalid session state transition")
)
