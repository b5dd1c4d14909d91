// Package relay forwards scraped batches to an external workflow webhook.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"redscribe/scraper/internal/models"
)

// requestTimeout covers the whole webhook round trip. Downstream
// workflows can take minutes when they re-process every title.
const requestTimeout = 180 * time.Second

// BatchMetadata describes how a batch was produced.
type BatchMetadata struct {
	SortType   string `json:"sort_type"`
	TimeFilter string `json:"time_filter"`
	Count      int    `json:"count"`
	Timestamp  string `json:"timestamp"`
}

// Batch is the payload relayed to the workflow webhook. AIPrompt is
// only set when AIProcessing is true.
type Batch struct {
	TelegramID   int64         `json:"telegram_id"`
	ChatID       int64         `json:"chat_id"`
	Subreddit    string        `json:"subreddit"`
	Posts        []models.Post `json:"posts"`
	Metadata     BatchMetadata `json:"metadata"`
	AIProcessing bool          `json:"ai_processing"`
	AIPrompt     string        `json:"ai_prompt,omitempty"`
}

// Client posts batches to a single configured webhook URL.
type Client struct {
	webhookURL string
	httpClient *http.Client
}

// NewClient creates a webhook client. An empty URL yields a client
// whose Enabled reports false.
func NewClient(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c.webhookURL != ""
}

// Send posts the batch as JSON and returns the message field of the
// webhook's response, if any. No retries; callers surface the error to
// the user.
func (c *Client) Send(ctx context.Context, batch *Batch) (string, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read webhook response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Message string `json:"message"`
	}
	// Some workflows respond with plain text or an empty body; that is
	// still a successful relay.
	if err := json.Unmarshal(respBody, &decoded); err != nil || decoded.Message == "" {
		return "Processing complete!", nil
	}
	return decoded.Message, nil
}
