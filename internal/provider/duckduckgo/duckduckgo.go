// Package duckduckgo implements scout.SearchProvider over the DuckDuckGo HTML endpoint.
package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/webscout/webscout/internal/scout"
)

const defaultBaseURL = "https://html.duckduckgo.com/html/"

// Config controls the HTML client.
type Config struct {
	// BaseURL overrides the endpoint, used by tests.
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Provider scrapes the DuckDuckGo HTML results page.
type Provider struct {
	cfg    Config
	client *http.Client
}

// New builds a Provider.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "webscout/1.0"
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
func (p *Provider) Name() string { return "duckduckgo" }

// Search fetches and parses one results page. Commas confuse the endpoint and
// are replaced with spaces before submission.
func (p *Provider) Search(ctx context.Context, query string, limit int) ([]scout.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	sanitized := strings.Join(strings.Fields(strings.ReplaceAll(query, ",", " ")), " ")

	params := url.Values{}
	params.Set("q", sanitized)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		if scout.IsTimeout(err) {
			return nil, fmt.Errorf("duckduckgo search: %w", err)
		}
		return nil, fmt.Errorf("duckduckgo search: %w: %v", scout.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("duckduckgo search: %w", scout.ErrRateLimitExceeded)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("duckduckgo search: %w: status %d", scout.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("duckduckgo search: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results page: %w", err)
	}

	var candidates []scout.Candidate
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find(".result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		target := resolveRedirect(href)
		if target == "" {
			return true
		}
		title := strings.TrimSpace(anchor.Text())
		if title == "" {
			title = target
		}
		candidates = append(candidates, scout.Candidate{
			URL:     target,
			Title:   title,
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").First().Text()),
			Source:  p.Name(),
			Rank:    len(candidates),
		})
		return len(candidates) < limit
	})
	return candidates, nil
}

// resolveRedirect unwraps the uddg redirect DuckDuckGo puts around result
// links; direct links pass through unchanged.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "http" || u.Scheme == "https" {
		return href
	}
	return ""
}
