package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"redscribe/scraper/internal/models"
)

const scrapeRequestTimeout = 60 * time.Second

// ScraperClient calls the scraper service's simple fetch endpoint on
// behalf of chat users.
type ScraperClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewScraperClient creates a client for the scraper API at baseURL.
// apiKey may be empty when the service runs without auth.
func NewScraperClient(baseURL, apiKey string) *ScraperClient {
	return &ScraperClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: scrapeRequestTimeout},
	}
}

type scrapeEnvelope struct {
	TaskID  string        `json:"task_id"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Results []models.Post `json:"results"`
}

// Scrape fetches posts via POST /api/scrape-simple. A failed-status
// envelope is returned as an error carrying the service's message.
func (c *ScraperClient) Scrape(ctx context.Context, subreddit string, limit int, sort, timeFilter string) ([]models.Post, error) {
	body, err := json.Marshal(map[string]any{
		"subreddit":   subreddit,
		"limit":       limit,
		"sort":        sort,
		"time_filter": timeFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/scrape-simple", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read scrape response: %w", err)
	}

	var envelope scrapeEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode scrape response (status %d): %w", resp.StatusCode, err)
	}

	if envelope.Status != "completed" {
		return nil, fmt.Errorf("scrape failed: %s", envelope.Message)
	}
	return envelope.Results, nil
}
