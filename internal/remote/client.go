package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotFound means the remote service holds no conversation under the
// requested identifier.
var ErrNotFound = errors.New("remote: conversation not found")

// FetchError wraps network and parse failures from the conversation API.
// The reconciler absorbs it; it never reaches the UI.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("remote: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client talks to the recipe platform's conversation API.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a conversation API client. timeout bounds each request;
// zero falls back to 30 seconds.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchConversation retrieves a conversation by identifier. A 404 answer
// returns ErrNotFound; everything else unexpected returns a *FetchError.
func (c *Client) FetchConversation(ctx context.Context, id string) (*Conversation, error) {
	url := fmt.Sprintf("%s/api/v1/chat/sessions/%s", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Op: "fetch conversation", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "fetch conversation", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Op: "fetch conversation", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var conv Conversation
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return nil, &FetchError{Op: "decode conversation", Err: err}
	}
	return &conv, nil
}

// SendMessage posts a new user message for a conversation and returns the
// assistant's reply.
func (c *Client) SendMessage(ctx context.Context, id, message string) (*Reply, error) {
	payload := map[string]string{
		"session_id": id,
		"message":    message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &FetchError{Op: "encode message", Err: err}
	}

	url := fmt.Sprintf("%s/api/v1/chat/message", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Op: "send message", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "send message", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{Op: "send message", Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(data))}
	}

	var reply Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, &FetchError{Op: "decode reply", Err: err}
	}
	return &reply, nil
}
