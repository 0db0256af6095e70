package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskherd/taskherd/internal/platform/logger"
)

// SenderConfig holds the retry, chunking and pacing knobs of the Sender.
type SenderConfig struct {
	// MaxAttempts bounds retries for rate-limit and network failures.
	MaxAttempts int

	// NetworkRetryDelay is the fixed pause before retrying after a
	// transport-level failure.
	NetworkRetryDelay time.Duration

	// RateLimitPad is added on top of the platform's retry-after hint.
	RateLimitPad time.Duration

	// DefaultRateLimitWait is used when a rate-limit response carries no hint.
	DefaultRateLimitWait time.Duration

	// ChunkLimit is the per-part character budget when splitting long texts.
	ChunkLimit int

	// PartDelay is the pause between consecutive parts of a chunked message.
	PartDelay time.Duration

	// BulkRecipientDelay is the pause before each recipient in a fan-out.
	BulkRecipientDelay time.Duration

	// BulkBatchSize is how many fan-out sends go between batch pauses.
	BulkBatchSize int

	// BulkBatchPause is the longer pause after each full fan-out batch.
	BulkBatchPause time.Duration
}

// DefaultSenderConfig returns a SenderConfig with the pacing the transport's
// rate limits are known to tolerate.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		MaxAttempts:          3,
		NetworkRetryDelay:    500 * time.Millisecond,
		RateLimitPad:         500 * time.Millisecond,
		DefaultRateLimitWait: time.Second,
		ChunkLimit:           DefaultChunkLimit,
		PartDelay:            300 * time.Millisecond,
		BulkRecipientDelay:   200 * time.Millisecond,
		BulkBatchSize:        25,
		BulkBatchPause:       time.Second,
	}
}

// Sender wraps a Transport with bounded retry on rate limits and network
// failures, chunking of over-length texts, and fan-out pacing. Permanent
// failures are returned to the caller untouched and never retried.
type Sender struct {
	transport Transport
	config    SenderConfig
	logger    *slog.Logger

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSender creates a Sender over the given transport.
func NewSender(transport Transport, config SenderConfig, log *slog.Logger) *Sender {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.ChunkLimit <= 0 {
		config.ChunkLimit = DefaultChunkLimit
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		transport: transport,
		config:    config,
		logger:    log,
		sleep:     sleepCtx,
	}
}

// Send delivers text to the recipient, retrying rate limits with the
// platform's hint and network failures with a short fixed delay, both
// within the bounded attempt budget. An over-length text is split into
// ordered "(part i/N)"-prefixed chunks. Unreachable recipients and other
// permanent failures are returned immediately.
func (s *Sender) Send(ctx context.Context, recipient, text string, payload json.RawMessage) error {
	return s.send(ctx, recipient, text, payload, true)
}

func (s *Sender) send(ctx context.Context, recipient, text string, payload json.RawMessage, allowChunk bool) error {
	log := logger.FromContext(ctx).With("recipient", recipient)

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		err := s.transport.SendMessage(ctx, recipient, text, payload)
		if err == nil {
			log.Debug("message sent", "attempt", attempt)
			return nil
		}

		var rl *RateLimitedError
		switch {
		case errors.As(err, &rl):
			wait := rl.RetryAfter
			if wait <= 0 {
				wait = s.config.DefaultRateLimitWait
			}
			wait += s.config.RateLimitPad
			log.Warn("rate limited, backing off",
				"attempt", attempt,
				"wait", wait)
			lastErr = err
			if sleepErr := s.sleep(ctx, wait); sleepErr != nil {
				return sleepErr
			}

		case errors.Is(err, ErrTooLong) && allowChunk:
			log.Info("message too long, chunking",
				"length", len(text))
			return s.sendLong(ctx, recipient, text)

		case IsNetworkError(err):
			log.Warn("network error, retrying",
				"attempt", attempt,
				"error", err)
			lastErr = err
			if sleepErr := s.sleep(ctx, s.config.NetworkRetryDelay); sleepErr != nil {
				return sleepErr
			}

		default:
			// Unreachable recipients and other permanent failures.
			log.Error("send failed", "error", err)
			return err
		}
	}

	log.Error("send retries exhausted", "error", lastErr)
	return fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

// sendLong splits text and sends the parts sequentially. Parts after the
// first carry a "(part i/N)" header; parts are never re-chunked.
func (s *Sender) sendLong(ctx context.Context, recipient, text string) error {
	parts := SplitMessage(text, s.config.ChunkLimit)
	total := len(parts)

	for i, part := range parts {
		if total > 1 && i > 0 {
			part = fmt.Sprintf("(part %d/%d)\n\n%s", i+1, total, part)
		}
		if err := s.send(ctx, recipient, part, nil, false); err != nil {
			return fmt.Errorf("part %d/%d: %w", i+1, total, err)
		}
		if i < total-1 {
			if err := s.sleep(ctx, s.config.PartDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// SendDocument delivers a file attachment with the same rate-limit and
// network retry discipline as Send. Documents are never chunked.
func (s *Sender) SendDocument(ctx context.Context, recipient, filename string, content []byte, caption string) error {
	log := logger.FromContext(ctx).With("recipient", recipient, "filename", filename)

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		err := s.transport.SendDocument(ctx, recipient, filename, content, caption)
		if err == nil {
			log.Debug("document sent", "attempt", attempt)
			return nil
		}

		var rl *RateLimitedError
		switch {
		case errors.As(err, &rl):
			wait := rl.RetryAfter
			if wait <= 0 {
				wait = s.config.DefaultRateLimitWait
			}
			wait += s.config.RateLimitPad
			lastErr = err
			if sleepErr := s.sleep(ctx, wait); sleepErr != nil {
				return sleepErr
			}

		case IsNetworkError(err):
			lastErr = err
			if sleepErr := s.sleep(ctx, s.config.NetworkRetryDelay); sleepErr != nil {
				return sleepErr
			}

		default:
			log.Error("document send failed", "error", err)
			return err
		}
	}

	log.Error("document send retries exhausted", "error", lastErr)
	return fmt.Errorf("%w: %v", ErrRetriesExhausted, lastErr)
}

// Pace inserts the fan-out pacing pause before the sentCount-th bulk send:
// a small fixed per-recipient delay, plus the longer batch pause after each
// full batch. sentCount is 1-based and counts sends already made.
func (s *Sender) Pace(ctx context.Context, sentCount int) error {
	if s.config.BulkRecipientDelay > 0 {
		if err := s.sleep(ctx, s.config.BulkRecipientDelay); err != nil {
			return err
		}
	}
	if s.config.BulkBatchSize > 0 && sentCount > 0 && sentCount%s.config.BulkBatchSize == 0 {
		if err := s.sleep(ctx, s.config.BulkBatchPause); err != nil {
			return err
		}
	}
	return nil
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
