// Package api is the transport client for the portal messaging endpoints.
//
// The client issues authenticated requests and classifies failures; it
// performs no retries. Retry and backoff policy belongs to the sync
// loop, which knows whether a refresh is foreground or background.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Keta432/medichat/internal/logging"
	"github.com/Keta432/medichat/internal/models"
)

const defaultTimeout = 15 * time.Second

// ClientConfig contains transport client settings.
type ClientConfig struct {
	// BaseURL is the portal API root, e.g. https://portal.example.org/api.
	BaseURL string

	// Token is the bearer credential attached to every request.
	Token string

	// Timeout is the per-request timeout. Default: 15s.
	Timeout time.Duration

	// HTTPClient overrides the underlying HTTP client (used by tests).
	HTTPClient *http.Client
}

// Client issues authenticated requests to the messaging endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a transport client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    base,
		token:      strings.TrimSpace(cfg.Token),
		httpClient: httpClient,
		logger:     logging.Component("api-client"),
	}, nil
}

// ListConversations fetches the caller's conversation summaries.
func (c *Client) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var conversations []models.ConversationSummary
	if err := c.get(ctx, "/conversations", &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// ListMessages fetches the ordered message log with one counterpart.
// The server marks messages addressed to the caller as read as a side
// effect; the client observes the updated flags on the next refresh.
func (c *Client) ListMessages(ctx context.Context, counterpartID string) ([]models.Message, error) {
	counterpartID = strings.TrimSpace(counterpartID)
	if counterpartID == "" {
		return nil, ValidationError("counterpart id required")
	}

	var messages []models.Message
	if err := c.get(ctx, "/messages/"+url.PathEscape(counterpartID), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a new message and returns the server's authoritative copy.
func (c *Client) SendMessage(ctx context.Context, receiverID, content string) (models.Message, error) {
	receiverID = strings.TrimSpace(receiverID)
	if receiverID == "" {
		return models.Message{}, ValidationError("receiver id required")
	}
	if strings.TrimSpace(content) == "" {
		return models.Message{}, ValidationError("content required")
	}

	body := struct {
		Receiver string `json:"receiver"`
		Content  string `json:"content"`
	}{Receiver: receiverID, Content: content}

	var created models.Message
	if err := c.post(ctx, "/messages", body, &created); err != nil {
		return models.Message{}, err
	}
	return created, nil
}

// ListEligibleContacts fetches the raw candidate list of users the
// caller may message. Affiliation-based filtering is applied on top of
// this list by the session.
func (c *Client) ListEligibleContacts(ctx context.Context) ([]models.Participant, error) {
	var contacts []models.Participant
	if err := c.get(ctx, "/messages/users", &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NetworkError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return AuthError(resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet := readErrorSnippet(resp.Body)
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", logging.Redact(snippet)).
			Msg("request rejected")
		return ServerError(resp.StatusCode, serverMessage(resp.StatusCode, snippet))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response payload", Err: err}
	}
	return nil
}

// readErrorSnippet drains a bounded prefix of an error body for logging
// and message extraction.
func readErrorSnippet(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 2048))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// serverMessage prefers the API's own error message when the body is a
// {"message": ...} document.
func serverMessage(status int, snippet string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(snippet), &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("server returned status %d", status)
}
