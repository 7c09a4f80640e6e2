// Package provider combines search backends into a single scout.SearchProvider.
package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/metrics"
	"github.com/webscout/webscout/internal/scout"
)

// Named is a search backend with a stable label for logs and metrics.
type Named interface {
	scout.SearchProvider
	Name() string
}

// Multi fans a query out to every backend concurrently, then merges the
// results in backend order, deduplicating by URL. One backend failing is
// tolerated as long as another succeeds; the call fails only when every
// backend does.
type Multi struct {
	backends []Named
	logger   *zap.Logger
}

// NewMulti builds a Multi over the given backends.
func NewMulti(logger *zap.Logger, backends ...Named) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{backends: backends, logger: logger}
}

// Search implements scout.SearchProvider.
func (m *Multi) Search(ctx context.Context, query string, limit int) ([]scout.Candidate, error) {
	if len(m.backends) == 0 {
		return nil, fmt.Errorf("multi search: %w: no backends configured", scout.ErrProviderUnavailable)
	}

	results := make([][]scout.Candidate, len(m.backends))
	errs := make([]error, len(m.backends))

	var wg sync.WaitGroup
	for i, backend := range m.backends {
		wg.Add(1)
		go func(idx int, b Named) {
			defer wg.Done()
			candidates, err := b.Search(ctx, query, limit)
			results[idx] = candidates
			errs[idx] = err
			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			metrics.ObserveSearch(b.Name(), outcome)
		}(i, backend)
	}
	wg.Wait()

	var (
		merged   []scout.Candidate
		seen     = map[string]struct{}{}
		lastErr  error
		anyOK    bool
	)
	for i, candidates := range results {
		if errs[i] != nil {
			lastErr = errs[i]
			m.logger.Warn("search backend failed",
				zap.String("backend", m.backends[i].Name()),
				zap.Error(errs[i]),
			)
			continue
		}
		anyOK = true
		for _, c := range candidates {
			if _, dup := seen[c.URL]; dup {
				continue
			}
			seen[c.URL] = struct{}{}
			c.Rank = len(merged)
			merged = append(merged, c)
			if len(merged) >= limit {
				break
			}
		}
		if len(merged) >= limit {
			break
		}
	}

	if !anyOK {
		return nil, fmt.Errorf("multi search: all backends failed: %w", lastErr)
	}
	return merged, nil
}
