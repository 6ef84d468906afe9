package refresh

import (
	"context"
	"time"
)

// Prober issues a reachability probe and classifies the outcome.
type Prober interface {
	Probe(ctx context.Context, req ProbeRequest) ProbeResult
}

// RetryPolicy decides whether a classified outcome is retried and
// after what delay.
type RetryPolicy interface {
	Decide(class Class, attempt int) (retry bool, delay time.Duration)
}

// CatalogStore loads and persists a domain's entry catalog.
type CatalogStore interface {
	Load(ctx context.Context, path string) ([]Entry, error)
	Save(ctx context.Context, path string, entries []Entry) error
}

// Publisher pushes finalized cycle reports to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for a duration or until the context finishes.
// Injected so backoff and cycle cadence are testable without real time.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
