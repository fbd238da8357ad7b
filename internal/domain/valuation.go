package domain

import (
	"context"
	"time"
)

// ScriptRunner executes a valuation script and returns its numeric result
type ScriptRunner interface {
	Execute(ctx context.Context, source string) (float64, error)
}

// ScriptCache memoizes script results keyed by the exact script content
type ScriptCache interface {
	// Get returns the cached value if it was computed less than ttl ago
	Get(source string, ttl time.Duration) (float64, bool)

	// Put stores value for source stamped with the current time
	Put(source string, value float64)

	// Invalidate removes the entry for source, if any
	Invalidate(source string)

	// Clear removes every entry
	Clear()
}

// Clock returns the current time. Injected so valuation can be tested deterministically.
type Clock func() time.Time
