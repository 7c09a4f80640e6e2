// Package extractor composes content extractors with render promotion.
package extractor

import (
	"context"

	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/scout"
)

// Named is a content extractor with a stable name for audit records.
type Named interface {
	scout.ContentExtractor
	Name() string
}

// Detector decides whether a plain-fetch result warrants a rendered retry.
type Detector interface {
	ShouldPromote(doc scout.Document) bool
}

// Promoting tries the primary extractor first and falls back to the renderer
// when the result looks like an app shell or a block page. Renderer failures
// never discard a usable primary result.
type Promoting struct {
	primary  Named
	renderer Named
	detector Detector
	logger   *zap.Logger
}

// NewPromoting builds a Promoting extractor. renderer and detector may be nil,
// which disables promotion.
func NewPromoting(primary, renderer Named, detector Detector, logger *zap.Logger) *Promoting {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Promoting{
		primary:  primary,
		renderer: renderer,
		detector: detector,
		logger:   logger,
	}
}

// Name identifies the composite in audit records.
func (p *Promoting) Name() string { return p.primary.Name() }

// Extract fetches url, promoting to the renderer when needed.
func (p *Promoting) Extract(ctx context.Context, url string) (scout.Document, error) {
	doc, err := p.primary.Extract(ctx, url)
	if p.renderer == nil || p.detector == nil {
		return doc, err
	}

	if err != nil {
		p.logger.Debug("primary extract failed, promoting to renderer",
			zap.String("url", url),
			zap.Error(err))
		return p.renderer.Extract(ctx, url)
	}
	if !p.detector.ShouldPromote(doc) {
		return doc, nil
	}

	p.logger.Debug("promoting extraction to renderer",
		zap.String("url", url),
		zap.Int("word_count", doc.Metadata.WordCount))
	rendered, rerr := p.renderer.Extract(ctx, url)
	if rerr != nil {
		p.logger.Warn("renderer extract failed, keeping plain result",
			zap.String("url", url),
			zap.Error(rerr))
		return doc, nil
	}
	return rendered, nil
}
