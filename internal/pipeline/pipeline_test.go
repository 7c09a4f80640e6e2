package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/cache"
	"github.com/webscout/webscout/internal/hash/sha256"
	"github.com/webscout/webscout/internal/ratelimit"
	"github.com/webscout/webscout/internal/scout"
)

type fakeProvider struct {
	mu         sync.Mutex
	candidates []scout.Candidate
	err        error
	calls      int
}

func (f *fakeProvider) Search(_ context.Context, _ string, limit int) ([]scout.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && len(f.candidates) > limit {
		return f.candidates[:limit], nil
	}
	return f.candidates, nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	docs  map[string]scout.Document
	fails map[string]error
	calls map[string]int
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		docs:  map[string]scout.Document{},
		fails: map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (scout.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.fails[url]; ok {
		return scout.Document{}, err
	}
	doc, ok := f.docs[url]
	if !ok {
		return scout.Document{}, scout.ErrInvalidURL
	}
	return doc, nil
}

type openLimiter struct{}

func (openLimiter) Acquire(context.Context, ratelimit.Capability) error { return nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func defaultSettings() scout.Settings {
	return scout.Settings{
		MaxResultsPerQuery: 10,
		SearchResultsLimit: 20,
		ScrapeLimit:        10,
		MinScoreThreshold:  0.5,
	}
}

func newPipeline(provider scout.SearchProvider, extractor scout.ContentExtractor, docs *cache.DocumentCache) *Pipeline {
	return New(
		provider,
		extractor,
		openLimiter{},
		docs,
		sha256.New(),
		fixedClock{now: time.Unix(1700000000, 0)},
		Config{FetchConcurrency: 2},
		zap.NewNop(),
	)
}

func queryDoc(content string) scout.Document {
	return scout.Document{
		Content:  content,
		Metadata: scout.DocumentMetadata{WordCount: len(content)},
	}
}

func TestRun_RankedSortedAndCapped(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{candidates: []scout.Candidate{
		{URL: "https://riverside.org/a", Rank: 0},
		{URL: "https://riverside.org/b", Rank: 1},
		{URL: "https://riverside.org/c", Rank: 2},
	}}
	extractor := newFakeExtractor()
	// Domain word "riverside" matches plus .org bonus, location in URL raises further.
	extractor.docs["https://riverside.org/a"] = scout.Document{URL: "https://riverside.org/a", Content: "text", Metadata: scout.DocumentMetadata{Title: "other"}}
	extractor.docs["https://riverside.org/b"] = scout.Document{URL: "https://riverside.org/b", Content: "text", Metadata: scout.DocumentMetadata{Title: "portland office"}}
	extractor.docs["https://riverside.org/c"] = scout.Document{URL: "https://riverside.org/c", Content: "text", Metadata: scout.DocumentMetadata{Title: "zz"}}

	p := newPipeline(provider, extractor, nil)
	settings := defaultSettings()
	settings.MaxResultsPerQuery = 2

	out, err := p.Run(context.Background(), scout.Query{Text: "riverside - portland"}, settings)
	require.NoError(t, err)
	require.Len(t, out.Ranked, 2)
	require.True(t, sort.SliceIsSorted(out.Ranked, func(i, j int) bool {
		return out.Ranked[i].Score > out.Ranked[j].Score
	}))
	// The location match on /b outranks the others.
	require.Equal(t, "https://riverside.org/b", out.Ranked[0].Document.URL)
	require.Len(t, out.Audit, 3)
}

func TestRun_SearchFailureIsFatal(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: scout.ErrProviderUnavailable}
	p := newPipeline(provider, newFakeExtractor(), nil)

	_, err := p.Run(context.Background(), scout.Query{Text: "q"}, defaultSettings())
	require.Error(t, err)
	require.True(t, scout.IsPipelineFatal(err))
}

func TestRun_NoCandidatesIsEmptyOutcome(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{}
	p := newPipeline(provider, newFakeExtractor(), nil)

	out, err := p.Run(context.Background(), scout.Query{Text: "q"}, defaultSettings())
	require.NoError(t, err)
	require.Empty(t, out.Ranked)
	require.Empty(t, out.Audit)
}

func TestRun_NoResultsErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	// A backend reporting the no-results sentinel is the same empty outcome
	// as an empty candidate slice, not a failed job.
	provider := &fakeProvider{err: fmt.Errorf("duckduckgo: %w", scout.ErrNoResults)}
	p := newPipeline(provider, newFakeExtractor(), nil)

	out, err := p.Run(context.Background(), scout.Query{Text: "q"}, defaultSettings())
	require.NoError(t, err)
	require.Empty(t, out.Ranked)
	require.Empty(t, out.Audit)
}

func TestRun_AllFetchesFailStillCompletes(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{candidates: []scout.Candidate{
		{URL: "https://a.org/x", Rank: 0},
		{URL: "https://b.org/y", Rank: 1},
	}}
	extractor := newFakeExtractor()
	extractor.fails["https://a.org/x"] = scout.ErrProviderUnavailable
	extractor.fails["https://b.org/y"] = errors.New("connection reset")

	p := newPipeline(provider, extractor, nil)
	out, err := p.Run(context.Background(), scout.Query{Text: "q"}, defaultSettings())
	require.NoError(t, err)
	require.Empty(t, out.Ranked)
	require.Len(t, out.Audit, 2)
	for _, r := range out.Audit {
		require.NotEmpty(t, r.Error)
		require.Zero(t, r.Score)
	}
}

func TestRun_ThresholdExcludesButAuditRetains(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{candidates: []scout.Candidate{
		{URL: "https://riverside.org/a", Rank: 0},
		{URL: "https://unrelated.com/b", Rank: 1},
	}}
	extractor := newFakeExtractor()
	extractor.docs["https://riverside.org/a"] = queryDoc("text")
	extractor.docs["https://unrelated.com/b"] = queryDoc("text")

	p := newPipeline(provider, extractor, nil)
	out, err := p.Run(context.Background(), scout.Query{Text: "riverside"}, defaultSettings())
	require.NoError(t, err)
	require.Len(t, out.Ranked, 1)
	require.Len(t, out.Audit, 2)
}

func TestRun_EmptyContentScoresZeroAndPassesZeroThreshold(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{candidates: []scout.Candidate{
		{URL: "https://a.org/x", Rank: 0},
	}}
	extractor := newFakeExtractor()
	extractor.docs["https://a.org/x"] = scout.Document{URL: "https://a.org/x"}

	p := newPipeline(provider, extractor, nil)

	settings := defaultSettings()
	out, err := p.Run(context.Background(), scout.Query{Text: "q"}, settings)
	require.NoError(t, err)
	require.Empty(t, out.Ranked)

	settings.MinScoreThreshold = 0
	out, err = p.Run(context.Background(), scout.Query{Text: "q"}, settings)
	require.NoError(t, err)
	require.Len(t, out.Ranked, 1)
	require.Zero(t, out.Ranked[0].Score)
}

func TestRun_ScrapeLimitBoundsFetches(t *testing.T) {
	t.Parallel()

	var candidates []scout.Candidate
	extractor := newFakeExtractor()
	for i := 0; i < 8; i++ {
		url := fmt.Sprintf("https://site%d.org/p", i)
		candidates = append(candidates, scout.Candidate{URL: url, Rank: i})
		extractor.docs[url] = queryDoc("text")
	}
	provider := &fakeProvider{candidates: candidates}

	p := newPipeline(provider, extractor, nil)
	settings := defaultSettings()
	settings.ScrapeLimit = 3

	out, err := p.Run(context.Background(), scout.Query{Text: "q"}, settings)
	require.NoError(t, err)
	require.Len(t, out.Audit, 3)

	total := 0
	for _, n := range extractor.calls {
		total += n
	}
	require.Equal(t, 3, total)
	// Top-N by source rank.
	require.Equal(t, "https://site0.org/p", out.Audit[0].Document.URL)
}

func TestRun_FilterDropsRecorded(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{candidates: []scout.Candidate{
		{URL: "https://example.com/a", Rank: 0},
		{URL: "https://other.com/b", Rank: 1},
	}}
	extractor := newFakeExtractor()
	extractor.docs["https://example.com/a"] = queryDoc("text")

	p := newPipeline(provider, extractor, nil)
	out, err := p.Run(context.Background(), scout.Query{
		Text:      "q",
		Whitelist: []string{"example.com"},
	}, defaultSettings())
	require.NoError(t, err)
	require.Len(t, out.Audit, 1)
	require.Len(t, out.Dropped, 1)
	require.Equal(t, "https://other.com/b", out.Dropped[0].Candidate.URL)
}

func TestRun_CacheCollapsesRepeatFetches(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{candidates: []scout.Candidate{
		{URL: "https://a.org/x", Rank: 0},
	}}
	extractor := newFakeExtractor()
	extractor.docs["https://a.org/x"] = queryDoc("text")

	docs := cache.New(time.Hour, fixedClock{now: time.Unix(1700000000, 0)})
	p := newPipeline(provider, extractor, docs)

	settings := defaultSettings()
	settings.MinScoreThreshold = 0

	_, err := p.Run(context.Background(), scout.Query{Text: "q"}, settings)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), scout.Query{Text: "q"}, settings)
	require.NoError(t, err)
	require.Equal(t, 1, extractor.calls["https://a.org/x"])
}

func TestRun_StampsHashAndFetchTime(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{candidates: []scout.Candidate{
		{URL: "https://a.org/x", Rank: 0},
	}}
	extractor := newFakeExtractor()
	extractor.docs["https://a.org/x"] = queryDoc("stable text")

	p := newPipeline(provider, extractor, nil)
	settings := defaultSettings()
	settings.MinScoreThreshold = 0

	out, err := p.Run(context.Background(), scout.Query{Text: "q"}, settings)
	require.NoError(t, err)
	require.Len(t, out.Ranked, 1)
	require.NotEmpty(t, out.Ranked[0].Document.ContentHash)
	require.Equal(t, time.Unix(1700000000, 0), out.Ranked[0].Document.FetchedAt)
}

func TestRun_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{candidates: []scout.Candidate{{URL: "https://a.org/x", Rank: 0}}}
	extractor := newFakeExtractor()
	extractor.docs["https://a.org/x"] = queryDoc("text")

	p := newPipeline(provider, extractor, nil)
	_, err := p.Run(ctx, scout.Query{Text: "q"}, defaultSettings())
	require.Error(t, err)
}

func TestRun_DirectFetchSkipsSearch(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: scout.ErrProviderUnavailable}
	extractor := newFakeExtractor()
	extractor.docs["https://riverside.org/about"] = scout.Document{
		URL:     "https://riverside.org/about",
		Content: "about page",
	}

	p := newPipeline(provider, extractor, nil)

	// No scoring context: the document is kept regardless of threshold.
	out, err := p.Run(context.Background(), scout.Query{URL: "https://riverside.org/about"}, defaultSettings())
	require.NoError(t, err)
	require.Zero(t, provider.calls)
	require.Len(t, out.Ranked, 1)
	require.Equal(t, "https://riverside.org/about", out.Ranked[0].Document.URL)
}

func TestRun_DirectFetchWithContextScores(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{}
	extractor := newFakeExtractor()
	extractor.docs["https://unrelated.com/page"] = scout.Document{
		URL:     "https://unrelated.com/page",
		Content: "text",
	}

	p := newPipeline(provider, extractor, nil)

	// A context query scores the page; an unrelated domain falls below the
	// threshold but stays in the audit trail.
	out, err := p.Run(context.Background(), scout.Query{
		URL:  "https://unrelated.com/page",
		Text: "riverside - portland",
	}, defaultSettings())
	require.NoError(t, err)
	require.Empty(t, out.Ranked)
	require.Len(t, out.Audit, 1)
}
