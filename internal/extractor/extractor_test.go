package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/scout"
)

type fakeExtractor struct {
	name  string
	doc   scout.Document
	err   error
	calls int
}

func (f *fakeExtractor) Name() string { return f.name }

func (f *fakeExtractor) Extract(_ context.Context, _ string) (scout.Document, error) {
	f.calls++
	return f.doc, f.err
}

type fixedDetector struct{ promote bool }

func (d fixedDetector) ShouldPromote(scout.Document) bool { return d.promote }

func TestPromoting_PrimarySufficient(t *testing.T) {
	t.Parallel()

	primary := &fakeExtractor{name: "html", doc: scout.Document{Content: "plenty of real text"}}
	renderer := &fakeExtractor{name: "headless"}
	p := NewPromoting(primary, renderer, fixedDetector{promote: false}, zap.NewNop())

	doc, err := p.Extract(context.Background(), "https://example.org")
	require.NoError(t, err)
	require.Equal(t, "plenty of real text", doc.Content)
	require.Zero(t, renderer.calls)
}

func TestPromoting_PromotesThinResult(t *testing.T) {
	t.Parallel()

	primary := &fakeExtractor{name: "html", doc: scout.Document{Content: "Loading"}}
	renderer := &fakeExtractor{name: "headless", doc: scout.Document{Content: "rendered body"}}
	p := NewPromoting(primary, renderer, fixedDetector{promote: true}, zap.NewNop())

	doc, err := p.Extract(context.Background(), "https://example.org")
	require.NoError(t, err)
	require.Equal(t, "rendered body", doc.Content)
	require.Equal(t, 1, primary.calls)
	require.Equal(t, 1, renderer.calls)
}

func TestPromoting_RendererFailureKeepsPlainResult(t *testing.T) {
	t.Parallel()

	primary := &fakeExtractor{name: "html", doc: scout.Document{Content: "Loading"}}
	renderer := &fakeExtractor{name: "headless", err: errors.New("browser crashed")}
	p := NewPromoting(primary, renderer, fixedDetector{promote: true}, zap.NewNop())

	doc, err := p.Extract(context.Background(), "https://example.org")
	require.NoError(t, err)
	require.Equal(t, "Loading", doc.Content)
}

func TestPromoting_PrimaryFailureFallsBack(t *testing.T) {
	t.Parallel()

	primary := &fakeExtractor{name: "html", err: scout.ErrProviderUnavailable}
	renderer := &fakeExtractor{name: "headless", doc: scout.Document{Content: "rendered body"}}
	p := NewPromoting(primary, renderer, fixedDetector{promote: false}, zap.NewNop())

	doc, err := p.Extract(context.Background(), "https://example.org")
	require.NoError(t, err)
	require.Equal(t, "rendered body", doc.Content)
}

func TestPromoting_NoRendererPassesThrough(t *testing.T) {
	t.Parallel()

	primary := &fakeExtractor{name: "html", err: scout.ErrProviderUnavailable}
	p := NewPromoting(primary, nil, nil, nil)

	_, err := p.Extract(context.Background(), "https://example.org")
	require.True(t, errors.Is(err, scout.ErrProviderUnavailable))
}
