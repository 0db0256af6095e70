package notify

import (
	"errors"
	"fmt"
	"time"
)

// Transport error taxonomy. Rate limits and over-length messages are
// handled inside the Sender; unreachable recipients and permanent API
// failures surface to the caller.
var (
	// ErrTooLong is returned by a transport when the message text exceeds
	// the platform's size limit. The Sender reacts by chunking.
	ErrTooLong = errors.New("message is too long")

	// ErrUnreachable is returned when the recipient cannot be delivered to
	// at all (e.g. they never opened a conversation with the bot). Never
	// retried.
	ErrUnreachable = errors.New("recipient is unreachable")

	// ErrRetriesExhausted wraps the last error after the bounded retry
	// budget is spent.
	ErrRetriesExhausted = errors.New("send retries exhausted")
)

// RateLimitedError is returned by a transport when the platform asks us to
// back off. RetryAfter carries the platform's hint; zero means no hint was
// provided.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// NetworkError wraps a transport-level failure (timeout, connection reset)
// that is worth a brief retry.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is a rate-limit response.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsUnreachable reports whether err means the recipient cannot be
// delivered to at all.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
