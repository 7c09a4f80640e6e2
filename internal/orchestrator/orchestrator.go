// Package orchestrator fans batches of queries out to pipeline workers and
// tracks job state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/webscout/webscout/internal/metrics"
	"github.com/webscout/webscout/internal/pipeline"
	"github.com/webscout/webscout/internal/progress"
	"github.com/webscout/webscout/internal/scout"
)

// Runner executes one query end to end. Satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, query scout.Query, settings scout.Settings) (pipeline.Outcome, error)
}

// Config controls the worker pool and completion publishing.
type Config struct {
	Workers int
	Topic   string
}

// Orchestrator owns the authoritative in-flight job state. The log store is
// written on every transition but never read back for control decisions.
type Orchestrator struct {
	runner    Runner
	queue     scout.Queue
	logs      scout.LogStore
	settings  scout.SettingsStore
	lists     scout.ListStore
	publisher scout.Publisher
	emitter   progress.Emitter
	ids       scout.IDGenerator
	clock     scout.Clock
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	jobs     map[string]*scout.Job
	children map[string][]string
	started  map[string]time.Time

	wg sync.WaitGroup
}

// New constructs an Orchestrator. publisher and emitter may be nil.
func New(
	runner Runner,
	queue scout.Queue,
	logs scout.LogStore,
	settings scout.SettingsStore,
	lists scout.ListStore,
	publisher scout.Publisher,
	emitter progress.Emitter,
	ids scout.IDGenerator,
	clock scout.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		runner:    runner,
		queue:     queue,
		logs:      logs,
		settings:  settings,
		lists:     lists,
		publisher: publisher,
		emitter:   emitter,
		ids:       ids,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		jobs:      make(map[string]*scout.Job),
		children:  make(map[string][]string),
		started:   make(map[string]time.Time),
	}
}

// Start launches the worker pool. Workers exit when ctx is canceled.
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.workerLoop(ctx)
		}()
	}
}

// Wait blocks until all workers have exited.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// SubmitSingle validates and admits one query, returning its job id
// immediately.
func (o *Orchestrator) SubmitSingle(ctx context.Context, query scout.Query) (string, error) {
	if err := validateQuery(query); err != nil {
		return "", err
	}

	settings, err := o.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	query = o.resolveLists(ctx, query, true, nil, nil)

	id, err := o.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}

	// Admission and persistence outlive the submitting request.
	ctx = context.WithoutCancel(ctx)

	now := o.clock.Now()
	job := scout.Job{
		ID:      id,
		Kind:    scout.KindSingle,
		Query:   query,
		Status:  scout.JobStatusStarted,
		Created: now,
		Updated: now,
	}
	o.register(ctx, job)

	if err := o.queue.Enqueue(ctx, scout.QueueItem{
		JobID:     id,
		Query:     query,
		Whitelist: query.Whitelist,
		Blacklist: query.Blacklist,
		Settings:  settings,
		Submitted: now.UnixNano(),
	}); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return id, nil
}

// SubmitBulk validates the batch, creates one parent plus a child per query
// and returns the parent id immediately. Failures after validation are only
// ever visible through job status, never as a submission error.
func (o *Orchestrator) SubmitBulk(ctx context.Context, req scout.BulkRequest) (string, error) {
	if len(req.Queries) == 0 {
		return "", errors.New("batch must contain at least one query")
	}
	for i, q := range req.Queries {
		if err := validateQuery(q); err != nil {
			return "", fmt.Errorf("query %d: %w", i, err)
		}
	}

	settings, err := o.settings.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	parentID, err := o.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate parent id: %w", err)
	}

	// Once validated, the batch no longer depends on the caller. Admission
	// and persistence must outlive the submitting HTTP request.
	ctx = context.WithoutCancel(ctx)

	now := o.clock.Now()
	parent := scout.Job{
		ID:      parentID,
		Kind:    scout.KindBulkParent,
		Status:  scout.JobStatusProcessing,
		Created: now,
		Updated: now,
		Progress: &scout.Progress{
			Total: len(req.Queries),
		},
	}
	o.register(ctx, parent)

	for _, q := range req.Queries {
		childID, err := o.ids.NewID()
		if err != nil {
			return "", fmt.Errorf("generate child id: %w", err)
		}
		query := o.resolveLists(ctx, q, req.GlobalListsEnabled, req.GlobalWhitelist, req.GlobalBlacklist)

		child := scout.Job{
			ID:       childID,
			Kind:     scout.KindBulkChild,
			ParentID: parentID,
			Query:    query,
			Status:   scout.JobStatusStarted,
			Created:  now,
			Updated:  now,
		}
		o.register(ctx, child)

		if err := o.queue.Enqueue(ctx, scout.QueueItem{
			JobID:     childID,
			ParentID:  parentID,
			Query:     query,
			Whitelist: query.Whitelist,
			Blacklist: query.Blacklist,
			Settings:  settings,
			Submitted: now.UnixNano(),
		}); err != nil {
			// Admission never blocks, so this only happens when the queue was
			// closed for shutdown. Mark the child failed so the parent can
			// still finish.
			o.finishJob(ctx, childID, scout.JobStatusFailed, pipeline.Outcome{}, fmt.Errorf("enqueue: %w", err))
		}
	}
	return parentID, nil
}

// RunSync validates and runs one query inline, bypassing the queue. The job
// goes through the same lifecycle transitions and persistence as queued work
// and the terminal record is returned directly.
func (o *Orchestrator) RunSync(ctx context.Context, query scout.Query) (scout.Job, error) {
	if err := validateQuery(query); err != nil {
		return scout.Job{}, err
	}

	settings, err := o.settings.Get(ctx)
	if err != nil {
		return scout.Job{}, fmt.Errorf("load settings: %w", err)
	}
	query = o.resolveLists(ctx, query, true, nil, nil)

	id, err := o.ids.NewID()
	if err != nil {
		return scout.Job{}, fmt.Errorf("generate job id: %w", err)
	}

	now := o.clock.Now()
	o.register(ctx, scout.Job{
		ID:      id,
		Kind:    scout.KindSingle,
		Query:   query,
		Status:  scout.JobStatusStarted,
		Created: now,
		Updated: now,
	})

	o.processItem(ctx, scout.QueueItem{
		JobID:     id,
		Query:     query,
		Whitelist: query.Whitelist,
		Blacklist: query.Blacklist,
		Settings:  settings,
		Submitted: now.UnixNano(),
	})

	job, _ := o.Job(id)
	return job, nil
}

func validateQuery(query scout.Query) error {
	if strings.TrimSpace(query.Text) == "" && strings.TrimSpace(query.URL) == "" {
		return errors.New("query text or url must not be empty")
	}
	return nil
}

// Cancel stops admitting un-started children of parentID. Already-running
// pipelines run to completion; canceled children count as failed in the
// parent's progress.
func (o *Orchestrator) Cancel(ctx context.Context, parentID string) error {
	o.mu.Lock()
	parent, ok := o.jobs[parentID]
	if !ok || parent.Kind != scout.KindBulkParent {
		o.mu.Unlock()
		return scout.ErrJobNotFound
	}

	now := o.clock.Now()
	var updates []scout.Job
	for _, childID := range o.children[parentID] {
		child := o.jobs[childID]
		if child.Status != scout.JobStatusStarted {
			continue
		}
		child.Status = scout.JobStatusCanceled
		child.Updated = now
		updates = append(updates, *child)
	}
	o.recomputeParentLocked(parentID)
	parentSnapshot := *parent
	o.mu.Unlock()

	for _, job := range updates {
		metrics.ObserveJob(string(job.Kind), string(job.Status))
		o.persistUpdate(ctx, job)
		o.emitTerminal(job, 0)
	}
	o.persistUpdate(ctx, parentSnapshot)
	o.maybePublishParent(ctx, parentSnapshot)
	return nil
}

// Job returns the authoritative in-memory record, with parent progress
// recomputed at read time.
func (o *Orchestrator) Job(id string) (scout.Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[id]
	if !ok {
		return scout.Job{}, false
	}
	if job.Kind == scout.KindBulkParent {
		o.recomputeParentLocked(id)
	}
	return *job, true
}

func (o *Orchestrator) workerLoop(ctx context.Context) {
	for {
		item, err := o.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		o.processItem(ctx, item)
	}
}

func (o *Orchestrator) processItem(ctx context.Context, item scout.QueueItem) {
	if !o.markProcessing(ctx, item.JobID) {
		return
	}

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	o.logger.Debug("running query",
		zap.String("job_id", item.JobID),
		zap.String("query", item.Query.Text))

	outcome, err := o.runner.Run(ctx, item.Query, item.Settings)
	status := scout.JobStatusCompleted
	if err != nil {
		status = scout.JobStatusFailed
		o.logger.Warn("pipeline failed",
			zap.String("job_id", item.JobID),
			zap.String("query", item.Query.Text),
			zap.Error(err))
	}
	o.finishJob(ctx, item.JobID, status, outcome, err)
}

// markProcessing transitions the child out of started. Canceled or otherwise
// terminal jobs are skipped.
func (o *Orchestrator) markProcessing(ctx context.Context, jobID string) bool {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	if !ok || job.Status != scout.JobStatusStarted {
		o.mu.Unlock()
		return false
	}
	job.Status = scout.JobStatusProcessing
	job.Updated = o.clock.Now()
	o.started[jobID] = job.Updated
	snapshot := *job
	o.mu.Unlock()

	o.persistUpdate(ctx, snapshot)
	o.emit(progress.Event{
		JobID:    snapshot.ID,
		ParentID: snapshot.ParentID,
		TS:       snapshot.Updated,
		Stage:    progress.StageJobStart,
		Query:    snapshot.Query.Text,
	})
	return true
}

// finishJob applies the terminal transition atomically and recomputes the
// parent's progress from the live child set.
func (o *Orchestrator) finishJob(
	ctx context.Context,
	jobID string,
	status scout.JobStatus,
	outcome pipeline.Outcome,
	runErr error,
) {
	o.mu.Lock()
	job, ok := o.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		o.mu.Unlock()
		return
	}
	job.Status = status
	job.Updated = o.clock.Now()
	job.Results = outcome.Ranked
	job.Audit = outcome.Audit
	if runErr != nil {
		job.Error = runErr.Error()
	}
	snapshot := *job
	var runtime time.Duration
	if startedAt, ok := o.started[jobID]; ok {
		runtime = snapshot.Updated.Sub(startedAt)
		delete(o.started, jobID)
	}

	var parentSnapshot *scout.Job
	if job.ParentID != "" {
		o.recomputeParentLocked(job.ParentID)
		if parent, ok := o.jobs[job.ParentID]; ok {
			p := *parent
			parentSnapshot = &p
		}
	}
	o.mu.Unlock()

	metrics.ObserveJob(string(snapshot.Kind), string(snapshot.Status))
	o.persistUpdate(ctx, snapshot)
	o.publish(ctx, snapshot)
	o.emitTerminal(snapshot, runtime)
	if parentSnapshot != nil {
		o.persistUpdate(ctx, *parentSnapshot)
		o.maybePublishParent(ctx, *parentSnapshot)
	}
}

func (o *Orchestrator) emitTerminal(job scout.Job, runtime time.Duration) {
	evt := progress.Event{
		JobID:    job.ID,
		ParentID: job.ParentID,
		TS:       job.Updated,
		Query:    job.Query.Text,
		Results:  len(job.Results),
		Dur:      runtime,
	}
	switch job.Status {
	case scout.JobStatusCompleted:
		evt.Stage = progress.StageJobDone
	case scout.JobStatusCanceled:
		evt.Stage = progress.StageJobCanceled
	default:
		evt.Stage = progress.StageJobError
		evt.Note = job.Error
		if evt.Note == "" {
			evt.Note = "unknown failure"
		}
	}
	o.emit(evt)
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter == nil {
		return
	}
	o.emitter.Emit(evt)
}

// recomputeParentLocked derives the parent's progress and status from its
// children. Counters are never incremented independently, so a retried child
// cannot cause drift. Callers hold o.mu.
func (o *Orchestrator) recomputeParentLocked(parentID string) {
	parent, ok := o.jobs[parentID]
	if !ok {
		return
	}
	progress := scout.Progress{Total: len(o.children[parentID])}
	for _, childID := range o.children[parentID] {
		child, ok := o.jobs[childID]
		if !ok {
			continue
		}
		switch child.Status {
		case scout.JobStatusCompleted:
			progress.Completed++
		case scout.JobStatusFailed, scout.JobStatusCanceled:
			progress.Failed++
		}
	}
	parent.Progress = &progress
	if progress.Done() {
		if parent.Status != scout.JobStatusCompleted {
			parent.Status = scout.JobStatusCompleted
			parent.Updated = o.clock.Now()
			metrics.ObserveJob(string(parent.Kind), string(parent.Status))
		}
	} else {
		parent.Status = scout.JobStatusProcessing
	}
}

func (o *Orchestrator) register(ctx context.Context, job scout.Job) {
	o.mu.Lock()
	stored := job
	o.jobs[job.ID] = &stored
	if job.ParentID != "" {
		o.children[job.ParentID] = append(o.children[job.ParentID], job.ID)
	}
	o.mu.Unlock()

	if err := o.logs.Append(ctx, job); err != nil {
		o.logger.Error("append job record failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}

func (o *Orchestrator) persistUpdate(ctx context.Context, job scout.Job) {
	if err := o.logs.Update(ctx, job); err != nil {
		o.logger.Error("update job record failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}

// resolveLists applies the list-layering policy: a per-query list always
// wins; otherwise the request-level lists apply when globally enabled,
// falling back to the stored global lists.
func (o *Orchestrator) resolveLists(
	ctx context.Context,
	query scout.Query,
	globalEnabled bool,
	globalWhitelist, globalBlacklist []string,
) scout.Query {
	if !globalEnabled {
		return query
	}
	if query.Whitelist == nil {
		query.Whitelist = globalWhitelist
		if query.Whitelist == nil && o.lists != nil {
			if wl, err := o.lists.GetWhitelist(ctx); err == nil {
				query.Whitelist = wl
			}
		}
	}
	if query.Blacklist == nil {
		query.Blacklist = globalBlacklist
		if query.Blacklist == nil && o.lists != nil {
			if bl, err := o.lists.GetBlacklist(ctx); err == nil {
				query.Blacklist = bl
			}
		}
	}
	return query
}

func (o *Orchestrator) publish(ctx context.Context, job scout.Job) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"job_id":    job.ID,
		"parent_id": job.ParentID,
		"kind":      string(job.Kind),
		"status":    string(job.Status),
		"query":     job.Query.Text,
		"results":   len(job.Results),
		"timestamp": job.Updated.Format(time.RFC3339),
	}
	if job.Error != "" {
		payload["error"] = job.Error
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("publish job event failed",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}

func (o *Orchestrator) maybePublishParent(ctx context.Context, parent scout.Job) {
	if parent.Status != scout.JobStatusCompleted {
		return
	}
	o.publish(ctx, parent)
	o.emit(progress.Event{
		JobID: parent.ID,
		TS:    parent.Updated,
		Stage: progress.StageBatchDone,
	})
}
