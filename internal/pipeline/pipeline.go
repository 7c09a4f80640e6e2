// Package pipeline executes the per-query search, filter, fetch and score
// sequence.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webscout/webscout/internal/cache"
	"github.com/webscout/webscout/internal/metrics"
	"github.com/webscout/webscout/internal/ratelimit"
	"github.com/webscout/webscout/internal/scout"
)

// RateLimiter gates outbound calls per capability.
type RateLimiter interface {
	Acquire(ctx context.Context, capability ratelimit.Capability) error
}

// Config controls per-run timeouts and fetch parallelism. Result caps and
// thresholds come from the Settings snapshot supplied with each run.
type Config struct {
	FetchConcurrency int
	SearchTimeout    time.Duration
	FetchTimeout     time.Duration
}

// Pipeline turns one query into a ranked result set. A single Pipeline is
// shared by all workers; per-run state lives on the stack.
type Pipeline struct {
	provider  scout.SearchProvider
	extractor scout.ContentExtractor
	limiter   RateLimiter
	docs      *cache.DocumentCache
	hasher    scout.Hasher
	clock     scout.Clock
	cfg       Config
	logger    *zap.Logger
}

// Outcome is everything one run produced. Ranked is the client-facing list;
// Audit retains every attempted candidate including failures and
// below-threshold scores; Dropped records filter decisions.
type Outcome struct {
	Ranked  []scout.ScoredResult
	Audit   []scout.ScoredResult
	Dropped []scout.DroppedCandidate
}

// New constructs a Pipeline.
func New(
	provider scout.SearchProvider,
	extractor scout.ContentExtractor,
	limiter RateLimiter,
	docs *cache.DocumentCache,
	hasher scout.Hasher,
	clock scout.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = 4
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 30 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		provider:  provider,
		extractor: extractor,
		limiter:   limiter,
		docs:      docs,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes the pipeline for one query under the given settings snapshot.
// Only a search-step failure is fatal; fetch failures degrade to audit
// entries. An empty candidate set is a legitimate empty outcome.
func (p *Pipeline) Run(ctx context.Context, query scout.Query, settings scout.Settings) (Outcome, error) {
	var candidates []scout.Candidate
	if query.URL != "" {
		// Direct-fetch mode skips the search step. Without scoring context
		// the document is kept regardless of threshold.
		candidates = []scout.Candidate{{URL: query.URL, Rank: 1}}
		if query.Text == "" {
			settings.MinScoreThreshold = 0
		}
	} else {
		var err error
		candidates, err = p.search(ctx, query, settings)
		if scout.IsPipelineFatal(err) {
			return Outcome{}, err
		}
	}
	if len(candidates) == 0 {
		return Outcome{}, nil
	}

	kept, dropped := scout.FilterCandidates(candidates, query.Whitelist, query.Blacklist)
	kept = truncateByRank(kept, settings.ScrapeLimit)

	audit, err := p.fetchAndScore(ctx, query, kept, settings)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Ranked:  rank(audit, settings),
		Audit:   audit,
		Dropped: dropped,
	}, nil
}

func (p *Pipeline) search(ctx context.Context, query scout.Query, settings scout.Settings) ([]scout.Candidate, error) {
	if err := p.limiter.Acquire(ctx, ratelimit.CapabilitySearch); err != nil {
		return nil, fmt.Errorf("search budget: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
	defer cancel()

	candidates, err := p.provider.Search(searchCtx, query.Text, settings.SearchResultsLimit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query.Text, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("search %q: %w", query.Text, scout.ErrNoResults)
	}
	return candidates, nil
}

// fetchAndScore runs bounded-concurrency fetches. Each goroutine writes its
// own slot, so ordering is deterministic without locking.
func (p *Pipeline) fetchAndScore(
	ctx context.Context,
	query scout.Query,
	candidates []scout.Candidate,
	settings scout.Settings,
) ([]scout.ScoredResult, error) {
	results := make([]scout.ScoredResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FetchConcurrency)
	for i, candidate := range candidates {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = p.fetchOne(gctx, query, candidate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch pool: %w", err)
	}
	return results, nil
}

func (p *Pipeline) fetchOne(ctx context.Context, query scout.Query, candidate scout.Candidate) scout.ScoredResult {
	result := scout.ScoredResult{
		Query: query.Text,
		Rank:  candidate.Rank,
	}

	doc, err := p.fetchDocument(ctx, candidate.URL)
	if err != nil {
		metrics.ObserveFetch(candidate.URL, "error")
		p.logger.Warn("fetch failed",
			zap.String("query", query.Text),
			zap.String("url", candidate.URL),
			zap.Error(err))
		result.Error = err.Error()
		result.Document = scout.Document{URL: candidate.URL}
		return result
	}

	metrics.ObserveFetch(candidate.URL, "ok")
	result.Document = doc
	result.Score = scout.ScoreDocument(query.Text, doc)
	return result
}

func (p *Pipeline) fetchDocument(ctx context.Context, url string) (scout.Document, error) {
	if p.docs != nil {
		if doc, ok := p.docs.Get(url); ok {
			return doc, nil
		}
	}

	if err := p.limiter.Acquire(ctx, ratelimit.CapabilityFetch); err != nil {
		return scout.Document{}, fmt.Errorf("fetch budget: %w", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	doc, err := p.extractor.Extract(fetchCtx, url)
	if err != nil {
		return scout.Document{}, err
	}

	if doc.ContentHash == "" && p.hasher != nil {
		if hash, herr := p.hasher.Hash([]byte(doc.Content)); herr == nil {
			doc.ContentHash = hash
		}
	}
	if doc.FetchedAt.IsZero() && p.clock != nil {
		doc.FetchedAt = p.clock.Now()
	}

	if p.docs != nil {
		p.docs.Put(url, doc)
	}
	return doc, nil
}

// rank orders successful fetches by descending score, stable on ties by
// original search rank, then applies the threshold and the per-query cap.
func rank(audit []scout.ScoredResult, settings scout.Settings) []scout.ScoredResult {
	ranked := make([]scout.ScoredResult, 0, len(audit))
	for _, r := range audit {
		if r.Error != "" {
			continue
		}
		if r.Score < settings.MinScoreThreshold {
			continue
		}
		ranked = append(ranked, r)
	}

	// Audit order is search-rank order, so a stable sort preserves rank ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if settings.MaxResultsPerQuery > 0 && len(ranked) > settings.MaxResultsPerQuery {
		ranked = ranked[:settings.MaxResultsPerQuery]
	}
	return ranked
}

func truncateByRank(candidates []scout.Candidate, limit int) []scout.Candidate {
	sorted := make([]scout.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank < sorted[j].Rank
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
