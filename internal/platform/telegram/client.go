// Package telegram implements the notify.Transport interface against the
// Telegram Bot API. It translates the platform's responses into the
// transport error taxonomy the Sender retries on.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/taskherd/taskherd/internal/notify"
)

// DefaultBaseURL is the production Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// requestTimeout bounds a single API call; retries are the Sender's job.
const requestTimeout = 15 * time.Second

// Client is a thin Bot API client. It performs no retries of its own.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// NewClient creates a Client for the given bot token. An empty baseURL
// falls back to the production endpoint.
func NewClient(token, baseURL string, log *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     log,
	}
}

// apiResponse is the envelope every Bot API call returns.
type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// APIError is a permanent Bot API failure (wrong token, malformed markup).
// The Sender never retries it.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// SendMessage posts a sendMessage call. HTML parse mode and disabled link
// previews match what the rest of the system formats for.
func (c *Client) SendMessage(ctx context.Context, recipient, text string, payload json.RawMessage) error {
	body := map[string]any{
		"chat_id":                  recipient,
		"text":                     text,
		"disable_web_page_preview": true,
		"parse_mode":               "HTML",
	}
	if len(payload) > 0 {
		body["reply_markup"] = payload
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode sendMessage body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.methodURL("sendMessage"), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to build sendMessage request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, recipient)
}

// SendDocument posts a sendDocument call as a multipart upload.
func (c *Client) SendDocument(ctx context.Context, recipient, filename string, content []byte, caption string) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", recipient); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("failed to create document part: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return fmt.Errorf("failed to write document content: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.methodURL("sendDocument"), &buf)
	if err != nil {
		return fmt.Errorf("failed to build sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req, recipient)
}

// do executes the request and maps the response onto the transport error
// taxonomy.
func (c *Client) do(req *http.Request, recipient string) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &notify.NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return &notify.NetworkError{Err: err}
	}

	var api apiResponse
	// A body that does not decode still carries the status code; decode
	// errors are ignored and the zero envelope used.
	_ = json.Unmarshal(raw, &api)

	switch {
	case resp.StatusCode == http.StatusOK && api.OK:
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Duration(api.Parameters.RetryAfter) * time.Second
		c.logger.Warn("telegram rate limit",
			"recipient", recipient,
			"retry_after", retryAfter)
		return &notify.RateLimitedError{RetryAfter: retryAfter}

	case resp.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(api.Description), "message is too long"):
		return notify.ErrTooLong

	case resp.StatusCode == http.StatusForbidden:
		// The recipient blocked the bot or never started a conversation.
		return notify.ErrUnreachable

	default:
		c.logger.Error("telegram api failure",
			"recipient", recipient,
			"status", resp.StatusCode,
			"description", api.Description)
		return &APIError{Code: resp.StatusCode, Description: api.Description}
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}
