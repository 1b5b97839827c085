package checkout

import "github.com/go-faster/errors"

// DisplayMessenger is implemented by gateway errors that carry a
// server-provided display message (the upstream error envelope's "message"
// string or its joined field errors).
type DisplayMessenger interface {
	DisplayMessage() string
}

// OperationError is a failed session operation. Its message is the single
// display string stored in the session's error state; the underlying gateway
// error remains reachable through Unwrap for callers that map statuses.
type OperationError struct {
	Message string
	Cause   error
}

// Error implements error.
func (e *OperationError) Error() string { return e.Message }

// Unwrap exposes the gateway error behind the display message.
func (e *OperationError) Unwrap() error { return e.Cause }

// FormatError reduces an operation error to a single human-readable display
// string: the upstream envelope message when one is present, otherwise the
// error's own message, otherwise the fallback.
func FormatError(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var dm DisplayMessenger
	if errors.As(err, &dm) {
		if msg := dm.DisplayMessage(); msg != "" {
			return msg
		}
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
