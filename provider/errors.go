package provider

import (
	"context"
	"errors"

	"ollmui/chat"
)

// ProviderError marks a backend failure: unreachable server, rejected
// request, unknown model. Cancellation is never a ProviderError; it
// normalizes to chat.ErrAborted instead.
type ProviderError struct {
	Backend string
	Op      string
	Err     error
}

func (e *ProviderError) Error() string {
	return e.Backend + ": " + e.Op + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// backendErr wraps a non-streaming backend failure, keeping aborts
// recognizable through the shared sentinel.
func backendErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, chat.ErrAborted) {
		return chat.ErrAborted
	}
	return &ProviderError{Backend: backend, Op: op, Err: err}
}
