package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("persistence failure")
	ErrSourceUnavailable = errors.New("price source unavailable")
	ErrUnknownSource     = errors.New("unknown price source")
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	ErrWizardNotStarted  = errors.New("no wizard in progress")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrAlreadyRunning    = errors.New("already running")
)

type ValidationError struct {
	Step   Step
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input at %s: %s", e.Step, e.Reason)
}
