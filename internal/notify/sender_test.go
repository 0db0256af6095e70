package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	Recipient string
	Text      string
	Payload   json.RawMessage
	Filename  string
}

// fakeTransport records sends and fails according to a scripted error
// sequence; once the script is exhausted every send succeeds. A non-zero
// maxLen simulates the platform's message length cap.
type fakeTransport struct {
	sent   []sentMessage
	script []error
	maxLen int
}

func (f *fakeTransport) nextErr() error {
	if len(f.script) == 0 {
		return nil
	}
	err := f.script[0]
	f.script = f.script[1:]
	return err
}

func (f *fakeTransport) SendMessage(ctx context.Context, recipient, text string, payload json.RawMessage) error {
	if f.maxLen > 0 && utf8.RuneCountInString(text) > f.maxLen {
		return ErrTooLong
	}
	if err := f.nextErr(); err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{Recipient: recipient, Text: text, Payload: payload})
	return nil
}

func (f *fakeTransport) SendDocument(ctx context.Context, recipient, filename string, content []byte, caption string) error {
	if err := f.nextErr(); err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{Recipient: recipient, Filename: filename, Text: caption})
	return nil
}

// newTestSender builds a Sender over transport that records sleep durations
// instead of sleeping.
func newTestSender(transport *fakeTransport, cfg SenderConfig) (*Sender, *[]time.Duration) {
	s := NewSender(transport, cfg, nil)
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return s, &sleeps
}

func TestSendRetriesRateLimitWithHint(t *testing.T) {
	transport := &fakeTransport{script: []error{
		&RateLimitedError{RetryAfter: 2 * time.Second},
		&RateLimitedError{RetryAfter: time.Second},
	}}
	s, sleeps := newTestSender(transport, DefaultSenderConfig())

	err := s.Send(context.Background(), "chat-1", "hello", nil)
	require.NoError(t, err)

	require.Len(t, transport.sent, 1)
	// Each wait is the platform hint plus the safety pad
	require.Equal(t, []time.Duration{
		2*time.Second + 500*time.Millisecond,
		time.Second + 500*time.Millisecond,
	}, *sleeps)
}

func TestSendRateLimitWithoutHintUsesDefaultWait(t *testing.T) {
	transport := &fakeTransport{script: []error{&RateLimitedError{}}}
	s, sleeps := newTestSender(transport, DefaultSenderConfig())

	err := s.Send(context.Background(), "chat-1", "hello", nil)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{time.Second + 500*time.Millisecond}, *sleeps)
}

func TestSendRetriesNetworkErrors(t *testing.T) {
	transport := &fakeTransport{script: []error{
		&NetworkError{Err: errors.New("connection reset")},
	}}
	s, sleeps := newTestSender(transport, DefaultSenderConfig())

	err := s.Send(context.Background(), "chat-1", "hello", nil)
	require.NoError(t, err)
	require.Len(t, transport.sent, 1)
	require.Equal(t, []time.Duration{500 * time.Millisecond}, *sleeps)
}

func TestSendExhaustsRetryBudget(t *testing.T) {
	transport := &fakeTransport{script: []error{
		&RateLimitedError{},
		&RateLimitedError{},
		&RateLimitedError{},
	}}
	s, _ := newTestSender(transport, DefaultSenderConfig())

	err := s.Send(context.Background(), "chat-1", "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Empty(t, transport.sent)
}

func TestSendUnreachableIsNeverRetried(t *testing.T) {
	transport := &fakeTransport{script: []error{ErrUnreachable, nil, nil}}
	s, sleeps := newTestSender(transport, DefaultSenderConfig())

	err := s.Send(context.Background(), "chat-1", "hello", nil)
	require.ErrorIs(t, err, ErrUnreachable)
	assert.Empty(t, *sleeps)
	assert.Empty(t, transport.sent)
	// The scripted nils were never consumed: exactly one attempt was made
	assert.Len(t, transport.script, 2)
}

func TestSendChunksOverLengthText(t *testing.T) {
	cfg := DefaultSenderConfig()
	cfg.ChunkLimit = 80
	transport := &fakeTransport{maxLen: 100}
	s, sleeps := newTestSender(transport, cfg)

	para := strings.Repeat("a", 60)
	text := para + "\n\n" + para + "\n\n" + para

	err := s.Send(context.Background(), "chat-1", text, json.RawMessage(`{"k":1}`))
	require.NoError(t, err)
	require.Len(t, transport.sent, 3)

	// First part carries no header, later parts are numbered
	assert.Equal(t, para, transport.sent[0].Text)
	assert.True(t, strings.HasPrefix(transport.sent[1].Text, "(part 2/3)\n\n"))
	assert.True(t, strings.HasPrefix(transport.sent[2].Text, "(part 3/3)\n\n"))

	// Chunked parts drop the payload
	for _, m := range transport.sent {
		assert.Nil(t, m.Payload)
	}

	// A pause between consecutive parts
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond}, *sleeps)
}

func TestSendDocumentRetries(t *testing.T) {
	transport := &fakeTransport{script: []error{
		&NetworkError{Err: errors.New("timeout")},
	}}
	s, sleeps := newTestSender(transport, DefaultSenderConfig())

	err := s.SendDocument(context.Background(), "chat-1", "report.csv", []byte("id\n1\n"), "export")
	require.NoError(t, err)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, "report.csv", transport.sent[0].Filename)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, *sleeps)
}

func TestPace(t *testing.T) {
	transport := &fakeTransport{}
	s, sleeps := newTestSender(transport, DefaultSenderConfig())

	// Mid-batch: only the per-recipient delay
	require.NoError(t, s.Pace(context.Background(), 7))
	require.Equal(t, []time.Duration{200 * time.Millisecond}, *sleeps)

	// Batch boundary: the longer pause follows
	*sleeps = nil
	require.NoError(t, s.Pace(context.Background(), 25))
	require.Equal(t, []time.Duration{200 * time.Millisecond, time.Second}, *sleeps)
}

func TestSleepCtxHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepCtx(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}
