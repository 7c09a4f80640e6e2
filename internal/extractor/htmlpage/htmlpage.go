// Package htmlpage implements scout.ContentExtractor with a plain HTTP fetch
// via gocolly and goquery-based text extraction.
package htmlpage

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/webscout/webscout/internal/scout"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Extractor fetches pages with a Colly collector and strips boilerplate.
type Extractor struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds an Extractor.
func New(cfg Config) *Extractor {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Extractor{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Name identifies the extractor in audit records.
func (e *Extractor) Name() string { return "html" }

// Extract performs a single GET and returns the page's visible text.
func (e *Extractor) Extract(ctx context.Context, url string) (scout.Document, error) {
	var (
		body       []byte
		statusCode int
		fetchErr   error
	)

	collector := e.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if e.cfg.UserAgent != "" {
		collector.UserAgent = e.cfg.UserAgent
	}
	timeout := e.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := runCollector(ctx, collector, url, &statusCode); err != nil {
		return scout.Document{}, err
	}
	if fetchErr != nil || statusCode != http.StatusOK {
		return scout.Document{}, classifyStatus(url, statusCode, fetchErr)
	}

	return Parse(url, body)
}

// runCollector drives a blocking Visit under ctx. Colly reports non-2xx
// statuses as visit errors; when a status was captured the error is left for
// classifyStatus instead.
func runCollector(ctx context.Context, collector *colly.Collector, url string, statusCode *int) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("html fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil && *statusCode == 0 {
			return classifyStatus(url, 0, err)
		}
		return nil
	}
}

func classifyStatus(url string, status int, cause error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("html fetch %s: %w", url, scout.ErrRateLimitExceeded)
	case status >= 500:
		return fmt.Errorf("html fetch %s: %w: status %d", url, scout.ErrProviderUnavailable, status)
	case status != 0:
		return fmt.Errorf("html fetch %s: unexpected status %d", url, status)
	case cause != nil && scout.IsTimeout(cause):
		return fmt.Errorf("html fetch %s: %w", url, cause)
	case cause != nil:
		return fmt.Errorf("html fetch %s: %w: %v", url, scout.ErrProviderUnavailable, cause)
	default:
		return fmt.Errorf("html fetch %s: no response", url)
	}
}

// Parse extracts visible text and metadata from raw HTML. It is shared with
// the headless extractor, which produces the rendered DOM through a browser.
func Parse(url string, body []byte) (scout.Document, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scout.Document{}, fmt.Errorf("parse page %s: %w", url, err)
	}

	title := strings.TrimSpace(page.Find("title").First().Text())
	description, _ := page.Find(`meta[name="description"]`).First().Attr("content")
	author, _ := page.Find(`meta[name="author"]`).First().Attr("content")
	language, _ := page.Find("html").First().Attr("lang")
	if language == "" {
		language = "en"
	}

	page.Find("script, style, noscript, nav, footer, iframe").Remove()
	content := collapseWhitespace(page.Find("body").Text())

	extra := map[string]string{"extraction_method": "html"}
	if hasAppShellMarker(body) {
		extra["app_shell"] = "true"
	}

	return scout.Document{
		URL:     url,
		Content: content,
		Metadata: scout.DocumentMetadata{
			Title:       title,
			Description: strings.TrimSpace(description),
			Author:      strings.TrimSpace(author),
			Language:    language,
			WordCount:   len(strings.Fields(content)),
			Extra:       extra,
		},
	}, nil
}

var appShellMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
}

// hasAppShellMarker spots client-rendered app shells whose visible text only
// appears after script execution.
func hasAppShellMarker(body []byte) bool {
	for _, marker := range appShellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
