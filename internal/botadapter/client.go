// Package botadapter is a thin wrapper over the external meeting-bot
// provider's HTTP API (component D): joining a meeting, polling status,
// downloading audio, and leaving.
package botadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/scribevault/internal/apperrors"
)

// clientTimeout bounds every outbound call to the provider, applied
// symmetrically to the 3-second ReadHeaderTimeout the teacher sets on its
// inbound HTTP servers.
const clientTimeout = 15 * time.Second

// Client talks to the external bot provider.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New constructs a Client against baseURL, authenticating with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: clientTimeout},
	}
}

type joinRequest struct {
	MeetingURL string `json:"meeting_url"`
	BotName    string `json:"bot_name"`
}

type joinResponse struct {
	BotID string `json:"bot_id"`
}

// Join starts a bot for meetingURL under botName and returns the
// provider-assigned bot id.
func (c *Client) Join(ctx context.Context, meetingURL, botName string) (string, error) {
	body, err := json.Marshal(joinRequest{MeetingURL: meetingURL, BotName: botName})
	if err != nil {
		return "", fmt.Errorf("failed to marshal join request: %w", err)
	}

	var resp joinResponse
	if err := c.doJSON(ctx, http.MethodPost, "/bots", body, &resp); err != nil {
		return "", err
	}
	if resp.BotID == "" {
		return "", fmt.Errorf("%w: provider returned empty bot id", apperrors.ErrProvider)
	}
	return resp.BotID, nil
}

// Leave asks the provider to remove the bot from its meeting.
func (c *Client) Leave(ctx context.Context, botID string) error {
	return c.doJSON(ctx, http.MethodPost, "/bots/"+url.PathEscape(botID)+"/leave", nil, nil)
}

// DownloadAudio streams the raw bytes at downloadURL. The caller must
// Close the returned reader.
func (c *Client) DownloadAudio(ctx context.Context, downloadURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: audio download failed: %v", apperrors.ErrProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: audio download returned status %d", apperrors.ErrProvider, resp.StatusCode)
	}
	return resp.Body, nil
}

// doJSON issues an authenticated JSON request and, if out is non-nil,
// decodes the response body into it.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: provider returned status %d: %s", apperrors.ErrProvider, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode provider response: %v", apperrors.ErrProvider, err)
	}
	return nil
}
