package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webscout/webscout/internal/scout"
)

func storedJob(id, parent string, created int64) scout.Job {
	return scout.Job{
		ID:       id,
		Kind:     scout.KindBulkChild,
		ParentID: parent,
		Status:   scout.JobStatusStarted,
		Created:  time.Unix(created, 0),
		Updated:  time.Unix(created, 0),
	}
}

func TestLogStore_AppendGet(t *testing.T) {
	t.Parallel()

	s := NewLogStore()
	ctx := context.Background()

	job := storedJob("j1", "", 100)
	require.NoError(t, s.Append(ctx, job))
	require.Error(t, s.Append(ctx, job))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, "j1", got.ID)

	_, err = s.Get(ctx, "missing")
	require.True(t, errors.Is(err, scout.ErrJobNotFound))
}

func TestLogStore_Update(t *testing.T) {
	t.Parallel()

	s := NewLogStore()
	ctx := context.Background()

	require.True(t, errors.Is(s.Update(ctx, storedJob("j1", "", 100)), scout.ErrJobNotFound))

	require.NoError(t, s.Append(ctx, storedJob("j1", "", 100)))
	updated := storedJob("j1", "", 100)
	updated.Status = scout.JobStatusCompleted
	updated.Results = []scout.ScoredResult{{Query: "q", Score: 0.9}}
	require.NoError(t, s.Update(ctx, updated))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, scout.JobStatusCompleted, got.Status)
	require.Len(t, got.Results, 1)
}

func TestLogStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewLogStore()
	ctx := context.Background()

	job := storedJob("j1", "", 100)
	job.Results = []scout.ScoredResult{{Query: "q", Score: 0.5}}
	require.NoError(t, s.Append(ctx, job))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	got.Results[0].Score = 0.1

	again, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	require.InDelta(t, 0.5, again.Results[0].Score, 1e-9)
}

func TestLogStore_ListChildrenOrdered(t *testing.T) {
	t.Parallel()

	s := NewLogStore()
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, storedJob("c2", "p1", 200)))
	require.NoError(t, s.Append(ctx, storedJob("c1", "p1", 100)))
	require.NoError(t, s.Append(ctx, storedJob("x1", "p2", 150)))

	children, err := s.ListChildren(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	require.Equal(t, "c1", children[0].ID)
	require.Equal(t, "c2", children[1].ID)
}

func TestLogStore_ListNewestFirstWithPaging(t *testing.T) {
	t.Parallel()

	s := NewLogStore()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Append(ctx, storedJob(id, "", int64(100+i))))
	}

	page, total, err := s.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Len(t, page, 2)
	require.Equal(t, "d", page[0].ID)
	require.Equal(t, "c", page[1].ID)

	page, total, err = s.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Equal(t, 4, total)
	require.Equal(t, "b", page[0].ID)

	page, _, err = s.List(ctx, 2, 10)
	require.NoError(t, err)
	require.Empty(t, page)
}
