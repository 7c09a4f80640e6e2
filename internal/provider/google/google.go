// Package google implements scout.SearchProvider using the Custom Search JSON API.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/webscout/webscout/internal/scout"
)

const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// Config controls the API client.
type Config struct {
	APIKey   string
	EngineID string
	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
	Timeout time.Duration
}

// Provider calls the Custom Search JSON API.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New builds a Provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in candidate records and metrics.
func (p *Provider) Name() string { return "google" }

type searchResponse struct {
	Items []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search issues one API request and maps items to candidates in API order.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]scout.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{}
	params.Set("key", p.cfg.APIKey)
	params.Set("cx", p.cfg.EngineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		if scout.IsTimeout(err) {
			return nil, fmt.Errorf("google search: %w", err)
		}
		return nil, fmt.Errorf("google search: %w: %v", scout.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("google search: %w", scout.ErrRateLimitExceeded)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("google search: %w: status %d", scout.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("google search: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]scout.Candidate, 0, len(body.Items))
	for i, item := range body.Items {
		if item.Link == "" {
			continue
		}
		title := item.Title
		if title == "" {
			title = item.Link
		}
		candidates = append(candidates, scout.Candidate{
			URL:     item.Link,
			Title:   title,
			Snippet: item.Snippet,
			Source:  p.Name(),
			Rank:    i,
		})
	}
	return candidates, nil
}
