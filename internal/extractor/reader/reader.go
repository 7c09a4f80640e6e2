// Package reader implements scout.ContentExtractor over a Reader-style
// extraction API that returns cleaned article text as JSON.
package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/webscout/webscout/internal/scout"
)

const defaultBaseURL = "https://r.jina.ai"

// Config controls the API client.
type Config struct {
	APIKey string
	// BaseURL overrides the endpoint, used by tests.
	BaseURL string
	Timeout time.Duration
}

// Extractor calls the Reader API with the target URL path-encoded.
type Extractor struct {
	cfg    Config
	client *http.Client
}

// New builds an Extractor.
func New(cfg Config) *Extractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Name identifies the extractor in audit records.
func (e *Extractor) Name() string { return "reader" }

type apiResponse struct {
	Code   int     `json:"code"`
	Status string  `json:"status"`
	Data   apiData `json:"data"`
}

type apiData struct {
	Content       string `json:"content"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Language      string `json:"language"`
	Author        string `json:"author"`
	PublishedDate string `json:"published_date"`
}

// Extract fetches cleaned content for target. The API expects the target URL
// fully percent-encoded as the request path.
func (e *Extractor) Extract(ctx context.Context, target string) (scout.Document, error) {
	endpoint := e.cfg.BaseURL + "/" + url.QueryEscape(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return scout.Document{}, fmt.Errorf("build reader request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if scout.IsTimeout(err) {
			return scout.Document{}, fmt.Errorf("reader extract %s: %w", target, err)
		}
		return scout.Document{}, fmt.Errorf("reader extract %s: %w: %v", target, scout.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return scout.Document{}, fmt.Errorf("reader extract %s: %w", target, scout.ErrRateLimitExceeded)
	case resp.StatusCode >= 500:
		return scout.Document{}, fmt.Errorf("reader extract %s: %w: status %d", target, scout.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return scout.Document{}, fmt.Errorf("reader extract %s: unexpected status %d", target, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return scout.Document{}, fmt.Errorf("read reader response: %w", err)
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return scout.Document{}, fmt.Errorf("decode reader response: %w", err)
	}
	if parsed.Code != http.StatusOK {
		return scout.Document{}, fmt.Errorf("reader extract %s: api error %q", target, parsed.Status)
	}

	content := parsed.Data.Content
	language := parsed.Data.Language
	if language == "" {
		language = "en"
	}
	return scout.Document{
		URL:     target,
		Content: content,
		Metadata: scout.DocumentMetadata{
			Title:         parsed.Data.Title,
			Description:   parsed.Data.Description,
			Author:        parsed.Data.Author,
			PublishedDate: parsed.Data.PublishedDate,
			Language:      language,
			WordCount:     len(strings.Fields(content)),
			Extra:         map[string]string{"extraction_method": "reader"},
		},
	}, nil
}
