package notify

import (
	"context"
	"encoding/json"
)

// Transport is the chat-platform message capability the core consumes.
// Implementations translate platform responses into the error taxonomy in
// this package: *RateLimitedError, ErrTooLong, ErrUnreachable,
// *NetworkError, or any other error for permanent failures.
// Version: 1.0
type Transport interface {
	// SendMessage delivers text to the recipient handle. The optional
	// payload is a structured action block (e.g. inline reply actions)
	// passed through to the platform untouched.
	SendMessage(ctx context.Context, recipient, text string, payload json.RawMessage) error

	// SendDocument delivers a file attachment with an optional caption.
	SendDocument(ctx context.Context, recipient, filename string, content []byte, caption string) error
}
