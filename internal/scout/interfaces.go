package scout

import (
	"context"
	"time"
)

// SearchProvider returns ranked candidates for a query.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

// ContentExtractor fetches a URL and returns its extracted content.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (Document, error)
}

// LogStore persists jobs for polling clients. The orchestrator keeps its own
// authoritative state for in-flight batches and never reads its writes back
// for control decisions.
type LogStore interface {
	Append(ctx context.Context, job Job) error
	Update(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID string) (Job, error)
	ListChildren(ctx context.Context, parentID string) ([]Job, error)
	List(ctx context.Context, limit, offset int) ([]Job, int, error)
}

// ListStore holds the global whitelist and blacklist.
type ListStore interface {
	GetWhitelist(ctx context.Context) ([]string, error)
	GetBlacklist(ctx context.Context) ([]string, error)
	PutWhitelist(ctx context.Context, domains []string) error
	PutBlacklist(ctx context.Context, domains []string) error
}

// SettingsStore persists mutable runtime settings. Callers snapshot the
// returned value per batch rather than re-reading mid-flight.
type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, settings Settings) error
}

// Publisher pushes terminal job events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for child admission. Dequeue order
// is submission order.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher digests extracted content for deduplication.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
