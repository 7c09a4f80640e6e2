package scout

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors shared by providers, extractors and the pipeline.
var (
	// ErrProviderUnavailable signals an unreachable search or fetch backend.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrRateLimitExceeded signals a budget exhausted after backoff.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrInvalidURL signals a candidate URL that cannot be parsed or fetched.
	ErrInvalidURL = errors.New("invalid url")
	// ErrNoResults signals a search that returned nothing. It is a legitimate
	// empty outcome, not a failure.
	ErrNoResults = errors.New("no results")
	// ErrJobNotFound is returned by log stores for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")
)

// IsTimeout reports whether err is a deadline expiry, either from context
// cancellation or the network layer.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsPipelineFatal reports whether a search-step error aborts the whole query.
// A no-result search is a legitimate empty outcome; any other search failure
// is fatal. Fetch-step errors never reach this check; they degrade to
// per-document failures.
func IsPipelineFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrNoResults)
}
