package chat

import (
	"context"
	"errors"
)

// ErrAborted marks a user- or system-initiated cancellation. Every
// provider normalizes its backend's cancellation failure to this sentinel
// so the engine can suppress user-visible error reporting uniformly.
var ErrAborted = errors.New("generation aborted")

// errStopStream is returned by the engine's chunk callback to end a
// stream early once a structured tool-call batch arrived. It is a control
// signal, never an error condition.
var errStopStream = errors.New("stop stream")

// IsAborted reports whether err is a cancellation of any flavor.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}
