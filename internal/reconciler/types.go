package reconciler

import (
	"time"

	"mcpstudio/internal/aggregator"
	"mcpstudio/internal/api"
	"mcpstudio/internal/store"
)

// DefaultRetryInterval is how long a server that failed to connect is left
// alone before the next attempt.
const DefaultRetryInterval = 30 * time.Second

// Options configures a Coordinator.
type Options struct {
	Manager *aggregator.ConnectionManager

	// Store provides per-user servers. When nil only globals are managed.
	Store store.ServerStore

	// Globals are connected once per process and shared by every user.
	Globals []api.ServerDescriptor

	RetryInterval time.Duration

	// MaxParallel bounds concurrent connects within one reconciliation.
	MaxParallel int
}

func (o Options) withDefaults() Options {
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.MaxParallel <= 0 {
		o.MaxParallel = aggregator.DefaultMaxParallel
	}
	return o
}

// Result summarizes one user reconciliation. All name lists hold registry
// names and are sorted.
type Result struct {
	UserID string

	// Connected servers are ready.
	Connected []string

	// Failed servers could not connect, now or within the retry interval.
	Failed []string

	// Invalid holds the store names of rows that could not be converted.
	Invalid []string

	// Removed servers were owned by the user but are no longer configured.
	Removed []string
}

// failure remembers the last failed attempt for one server.
type failure struct {
	at   time.Time
	desc api.ServerDescriptor
}
