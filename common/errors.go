package common

import (
	"context"
	"errors"
)

// Error taxonomy shared by the queue, the processors and the workers.
var (
	// ErrNotFound means a referenced entity or job no longer exists. Never retried.
	ErrNotFound = errors.New("not found")

	// ErrTransientDelivery wraps network or provider failures while delivering a notification.
	ErrTransientDelivery = errors.New("transient delivery failure")

	// ErrPermanentDelivery marks a rejection by the provider that another
	// attempt cannot fix (bad address, rejected payload).
	ErrPermanentDelivery = errors.New("permanent delivery failure")

	// ErrStorage wraps failures of the queue or entity store backing database.
	ErrStorage = errors.New("storage unavailable")

	// ErrLeaseLost is returned by Ack/Fail when the lease expired and the job
	// was handed to another worker.
	ErrLeaseLost = errors.New("lease lost")

	// ErrInvalidPayload marks a job whose payload cannot be decoded or validated.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidState is returned for operator actions on jobs in the wrong state.
	ErrInvalidState = errors.New("invalid job state")
)

// Retryable reports whether a processor error should be handed back to the
// queue for another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermanentDelivery),
		errors.Is(err, ErrInvalidPayload),
		errors.Is(err, ErrInvalidState):
		return false
	}
	return true
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
