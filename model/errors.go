package model

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCancelled marks an outcome caused by the caller cancelling the send.
	// Callers use it to suppress error reporting.
	ErrCancelled = errors.New("cancelled by caller")

	// ErrNoMessages is returned when there is nothing to send to a provider.
	ErrNoMessages = errors.New("no messages to send")

	// ErrToolNotFound is used when a model asks for a tool that is not in the
	// active snapshot.
	ErrToolNotFound = errors.New("tool not found")
)

// IsCancelled reports whether err stems from caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// Cancelled wraps cause so that it matches both ErrCancelled and cause.
func Cancelled(cause error) error {
	if cause == nil {
		return ErrCancelled
	}
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

// TransportError is a non-2xx response or network failure from a provider.
type TransportError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
