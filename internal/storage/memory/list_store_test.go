package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webscout/webscout/internal/scout"
)

func TestListStore_RoundTrip(t *testing.T) {
	t.Parallel()

	s := NewListStore()
	ctx := context.Background()

	wl, err := s.GetWhitelist(ctx)
	require.NoError(t, err)
	require.Empty(t, wl)

	require.NoError(t, s.PutWhitelist(ctx, []string{"example.com", "riverside.org"}))
	require.NoError(t, s.PutBlacklist(ctx, []string{"linkedin.com"}))

	wl, err = s.GetWhitelist(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"example.com", "riverside.org"}, wl)

	bl, err := s.GetBlacklist(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"linkedin.com"}, bl)

	// Replacement, not append.
	require.NoError(t, s.PutWhitelist(ctx, []string{"other.net"}))
	wl, err = s.GetWhitelist(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"other.net"}, wl)
}

func TestListStore_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewListStore()
	ctx := context.Background()

	require.NoError(t, s.PutBlacklist(ctx, []string{"a.com"}))
	bl, err := s.GetBlacklist(ctx)
	require.NoError(t, err)
	bl[0] = "mutated.com"

	again, err := s.GetBlacklist(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.com"}, again)
}

func TestSettingsStore_SnapshotSemantics(t *testing.T) {
	t.Parallel()

	defaults := scout.Settings{
		MaxResultsPerQuery: 5,
		ScrapeLimit:        10,
		MinScoreThreshold:  0.5,
	}
	s := NewSettingsStore(defaults)
	ctx := context.Background()

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, defaults, got)

	updated := defaults
	updated.MinScoreThreshold = 0.7
	updated.UpdatedAt = time.Unix(500, 0)
	require.NoError(t, s.Put(ctx, updated))

	// The earlier snapshot is unaffected by the update.
	require.InDelta(t, 0.5, got.MinScoreThreshold, 1e-9)

	got, err = s.Get(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0.7, got.MinScoreThreshold, 1e-9)
}
