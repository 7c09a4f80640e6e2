package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/scout"
)

type fakeBackend struct {
	name       string
	candidates []scout.Candidate
	err        error
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Search(_ context.Context, _ string, _ int) ([]scout.Candidate, error) {
	return f.candidates, f.err
}

func TestMulti_MergesAndDedupes(t *testing.T) {
	t.Parallel()

	a := &fakeBackend{name: "a", candidates: []scout.Candidate{
		{URL: "https://one.com", Rank: 0},
		{URL: "https://two.com", Rank: 1},
	}}
	b := &fakeBackend{name: "b", candidates: []scout.Candidate{
		{URL: "https://two.com", Rank: 0},
		{URL: "https://three.com", Rank: 1},
	}}

	m := NewMulti(zap.NewNop(), a, b)
	got, err := m.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Ranks are reassigned across the merged set.
	for i, c := range got {
		require.Equal(t, i, c.Rank)
	}
}

func TestMulti_ToleratesSingleBackendFailure(t *testing.T) {
	t.Parallel()

	broken := &fakeBackend{name: "broken", err: scout.ErrProviderUnavailable}
	ok := &fakeBackend{name: "ok", candidates: []scout.Candidate{{URL: "https://one.com"}}}

	m := NewMulti(zap.NewNop(), broken, ok)
	got, err := m.Search(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestMulti_AllBackendsFailing(t *testing.T) {
	t.Parallel()

	m := NewMulti(zap.NewNop(),
		&fakeBackend{name: "a", err: scout.ErrProviderUnavailable},
		&fakeBackend{name: "b", err: scout.ErrProviderUnavailable},
	)
	_, err := m.Search(context.Background(), "q", 10)
	require.Error(t, err)
	require.True(t, errors.Is(err, scout.ErrProviderUnavailable))
}

func TestMulti_RespectsLimit(t *testing.T) {
	t.Parallel()

	a := &fakeBackend{name: "a", candidates: []scout.Candidate{
		{URL: "https://one.com"},
		{URL: "https://two.com"},
		{URL: "https://three.com"},
	}}
	m := NewMulti(zap.NewNop(), a)
	got, err := m.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestMulti_NoBackends(t *testing.T) {
	t.Parallel()

	m := NewMulti(zap.NewNop())
	_, err := m.Search(context.Background(), "q", 10)
	require.True(t, errors.Is(err, scout.ErrProviderUnavailable))
}
