package presence

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/streamwatch/watchlist"
)

// Defaults for zero-valued Options. A zero PacingDelay disables pacing, so
// callers that want the default pass DefaultPacingDelay explicitly.
const (
	DefaultInterval      = 5 * time.Minute
	DefaultPacingDelay   = time.Second
	DefaultLookupTimeout = 10 * time.Second
	DefaultStoreTimeout  = 5 * time.Second
	DefaultRetries       = 1
	DefaultWorkers       = 1
)

// Options configures a Watcher for one provider.
type Options struct {
	Provider string
	Store    watchlist.Store
	// Lookup is the raw provider adapter; NewWatcher adds rate limiting and retries.
	Lookup  Lookup
	Emitter Emitter
	Clock   clockwork.Clock
	Logger  *slog.Logger

	Interval      time.Duration
	PacingDelay   time.Duration
	LookupTimeout time.Duration
	// StoreTimeout bounds each watchlist read made by the scheduler and CheckAllNow.
	StoreTimeout time.Duration
	// Retries is the number of retries after the first attempt. Use -1 for none.
	Retries    int
	RetryDelay time.Duration
	Workers    int
	RatePerSec float64
	RateBurst  int
}

// Watcher bundles the scheduler and service of one provider over a shared
// state table and lookup chain.
type Watcher struct {
	Provider  string
	Scheduler *Scheduler
	Service   *Service
	Table     *StateTable
}

func NewWatcher(o Options) *Watcher {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.PacingDelay < 0 {
		o.PacingDelay = 0
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = DefaultLookupTimeout
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = DefaultStoreTimeout
	}
	switch {
	case o.Retries == 0:
		o.Retries = DefaultRetries
	case o.Retries < 0:
		o.Retries = 0
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}

	logger := o.Logger.With(slog.String("provider", o.Provider))
	lookup := &RetryingLookup{
		Provider: o.Provider,
		Inner:    NewRateLimitedLookup(o.Lookup, o.RatePerSec, o.RateBurst),
		Retries:  o.Retries,
		Timeout:  o.LookupTimeout,
		Delay:    o.RetryDelay,
	}
	table := NewStateTable()

	return &Watcher{
		Provider: o.Provider,
		Table:    table,
		Scheduler: &Scheduler{
			provider: o.Provider,
			store:    o.Store,
			lookup:   lookup,
			table:    table,
			emitter:  o.Emitter,
			pacer:    NewPacer(o.Clock, o.PacingDelay),
			clock:    o.Clock,
			interval: o.Interval,
			workers:  o.Workers,
			storeTTL: o.StoreTimeout,
			logger:   logger.With(slog.String("component", "scheduler")),
		},
		Service: &Service{
			provider: o.Provider,
			store:    o.Store,
			lookup:   lookup,
			table:    table,
			clock:    o.Clock,
			pacing:   o.PacingDelay,
			storeTTL: o.StoreTimeout,
			logger:   logger.With(slog.String("component", "service")),
		},
	}
}
