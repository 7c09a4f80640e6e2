// Package memory provides in-memory store implementations for development,
// testing and single-node deployments.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/webscout/webscout/internal/scout"
)

// LogStore keeps the job log in process memory. It is the externally-pollable
// record; the orchestrator never reads its own writes back for control
// decisions.
type LogStore struct {
	mu   sync.RWMutex
	jobs map[string]scout.Job
}

// NewLogStore constructs a LogStore.
func NewLogStore() *LogStore {
	return &LogStore{
		jobs: make(map[string]scout.Job),
	}
}

// Append stores a new job record.
func (s *LogStore) Append(_ context.Context, job scout.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Update replaces an existing job record wholesale, keyed by id.
func (s *LogStore) Update(_ context.Context, job scout.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return scout.ErrJobNotFound
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get returns a single job by id.
func (s *LogStore) Get(_ context.Context, jobID string) (scout.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scout.Job{}, scout.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// ListChildren returns all children of a parent in submission order.
func (s *LogStore) ListChildren(_ context.Context, parentID string) ([]scout.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var children []scout.Job
	for _, job := range s.jobs {
		if job.ParentID == parentID {
			children = append(children, cloneJob(job))
		}
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].Created.Equal(children[j].Created) {
			return children[i].ID < children[j].ID
		}
		return children[i].Created.Before(children[j].Created)
	})
	return children, nil
}

// List returns a page of jobs, newest first, plus the total count.
func (s *LogStore) List(_ context.Context, limit, offset int) ([]scout.Job, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]scout.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		all = append(all, cloneJob(job))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Created.Equal(all[j].Created) {
			return all[i].ID > all[j].ID
		}
		return all[i].Created.After(all[j].Created)
	})

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, total, nil
}

// cloneJob copies the slices so callers cannot mutate stored state.
func cloneJob(job scout.Job) scout.Job {
	out := job
	if job.Results != nil {
		out.Results = append([]scout.ScoredResult(nil), job.Results...)
	}
	if job.Audit != nil {
		out.Audit = append([]scout.ScoredResult(nil), job.Audit...)
	}
	if job.Progress != nil {
		p := *job.Progress
		out.Progress = &p
	}
	return out
}
