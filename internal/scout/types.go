// Package scout defines core types shared across subsystems.
package scout

import (
	"time"
)

// JobKind distinguishes single submissions from bulk parents and their children.
type JobKind string

// Job kinds persisted in the log store.
const (
	KindSingle     JobKind = "single"
	KindBulkParent JobKind = "bulk-parent"
	KindBulkChild  JobKind = "bulk-child"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

// Job status values persisted in the log store.
const (
	JobStatusStarted    JobStatus = "started"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// Query is an immutable search input. Per-query lists, when non-empty,
// override the batch-global lists. A non-empty URL selects direct-fetch mode:
// the search step is skipped and the URL is fetched as the only candidate,
// with Text as optional scoring context.
type Query struct {
	Text      string   `json:"text"`
	URL       string   `json:"url,omitempty"`
	Whitelist []string `json:"whitelist,omitempty"`
	Blacklist []string `json:"blacklist,omitempty"`
}

// Candidate is a raw search-result reference prior to fetching.
type Candidate struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`
	Rank    int    `json:"rank"`
}

// DocumentMetadata carries structured fields the extractor reports.
type DocumentMetadata struct {
	Title         string            `json:"title,omitempty"`
	Description   string            `json:"description,omitempty"`
	Author        string            `json:"author,omitempty"`
	PublishedDate string            `json:"published_date,omitempty"`
	Language      string            `json:"language,omitempty"`
	WordCount     int               `json:"word_count"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Document is a fetched page. It is owned by the pipeline invocation that
// fetched it and never mutated after creation.
type Document struct {
	URL         string           `json:"url"`
	Content     string           `json:"content,omitempty"`
	Metadata    DocumentMetadata `json:"metadata"`
	ContentHash string           `json:"content_hash,omitempty"`
	FetchedAt   time.Time        `json:"fetched_at"`
}

// ScoredResult is a Document annotated with a relevance score for a query.
// Error is set instead of Document content when the fetch failed; such
// results score 0 and appear only in the audit trail.
type ScoredResult struct {
	Query    string   `json:"query"`
	Rank     int      `json:"rank"`
	Score    float64  `json:"score"`
	Document Document `json:"document"`
	Error    string   `json:"error,omitempty"`
}

// Progress summarizes bulk-parent completion. Completed+Failed never exceeds
// Total; failed counts include canceled children.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Done reports whether every child reached a terminal state.
func (p Progress) Done() bool {
	return p.Completed+p.Failed >= p.Total
}

// Job is the unit of orchestration work recorded in the log store. Results
// holds the ranked output in completion order; Audit additionally retains
// below-threshold and fetch-failed entries for export.
type Job struct {
	ID       string         `json:"id"`
	Kind     JobKind        `json:"kind"`
	ParentID string         `json:"parent_id,omitempty"`
	Query    Query          `json:"query"`
	Status   JobStatus      `json:"status"`
	Created  time.Time      `json:"created_at"`
	Updated  time.Time      `json:"updated_at"`
	Results  []ScoredResult `json:"results,omitempty"`
	Audit    []ScoredResult `json:"audit,omitempty"`
	Error    string         `json:"error,omitempty"`
	Progress *Progress      `json:"progress,omitempty"`
}

// Settings is the immutable configuration snapshot injected into each batch.
type Settings struct {
	MaxResultsPerQuery int       `json:"maxResultsPerQuery" mapstructure:"max_results_per_query"`
	SearchResultsLimit int       `json:"searchResultsLimit" mapstructure:"search_results_limit"`
	ScrapeLimit        int       `json:"scrapeLimit" mapstructure:"scrape_limit"`
	MinScoreThreshold  float64   `json:"minScoreThreshold" mapstructure:"min_score_threshold"`
	SearchRateLimit    int       `json:"searchRateLimit" mapstructure:"search_rate_limit"`
	FetchRateLimit     int       `json:"fetchRateLimit" mapstructure:"fetch_rate_limit"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// BulkRequest is a validated bulk submission.
type BulkRequest struct {
	Queries            []Query  `json:"queries"`
	GlobalListsEnabled bool     `json:"globalListsEnabled"`
	GlobalWhitelist    []string `json:"globalWhitelist,omitempty"`
	GlobalBlacklist    []string `json:"globalBlacklist,omitempty"`
}

// QueueItem wraps one child job awaiting a worker slot.
type QueueItem struct {
	JobID     string
	ParentID  string
	Query     Query
	Whitelist []string
	Blacklist []string
	Settings  Settings
	Submitted int64
}
