package presence

import (
	"sync"
	"time"
)

// Record is the last-known state of one watched name.
type Record struct {
	Name                string
	LastKnownLive       bool
	LastCheckedAt       time.Time
	ConsecutiveFailures int
}

// Transition is the result of applying one lookup outcome to a record.
type Transition int

const (
	// TransitionNone means the name had no record (removed mid-cycle).
	TransitionNone Transition = iota
	// TransitionFailed means the lookup failed and the record was left as is.
	TransitionFailed
	// TransitionWentLive is the only transition that produces an Event.
	TransitionWentLive
	TransitionStillLive
	TransitionOffline
)

func (t Transition) String() string {
	switch t {
	case TransitionFailed:
		return "failed"
	case TransitionWentLive:
		return "went_live"
	case TransitionStillLive:
		return "still_live"
	case TransitionOffline:
		return "offline"
	default:
		return "none"
	}
}

// StateTable holds one Record per watched name. All access goes through a
// single mutex.
//
// Removal is tracked with an epoch counter: Forget bumps the epoch and leaves
// a tombstone, and Sync ignores tombstoned names coming from a watchlist
// snapshot taken before the removal. This keeps a name removed while a cycle
// is in flight from being resurrected by that cycle.
type StateTable struct {
	mu      sync.Mutex
	records map[string]*Record
	epoch   uint64
	removed map[string]uint64
}

func NewStateTable() *StateTable {
	return &StateTable{
		records: make(map[string]*Record),
		removed: make(map[string]uint64),
	}
}

// Epoch returns the current removal epoch. Take it before reading the
// watchlist and pass it to Sync.
func (t *StateTable) Epoch() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epoch
}

// Sync reconciles the table with a watchlist snapshot read at epoch since.
// Missing records are created not-live; records for names not in the snapshot
// are dropped. It returns the names that should be evaluated this cycle.
func (t *StateTable) Sync(names []string, since uint64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := make([]string, 0, len(names))
	keep := make(map[string]struct{}, len(names))
	for _, n := range names {
		if e, ok := t.removed[n]; ok && e > since {
			continue
		}
		if _, dup := keep[n]; dup {
			continue
		}
		keep[n] = struct{}{}
		active = append(active, n)
		if _, ok := t.records[n]; !ok {
			t.records[n] = &Record{Name: n}
		}
	}
	for n := range t.records {
		if _, ok := keep[n]; !ok {
			delete(t.records, n)
		}
	}
	for n, e := range t.removed {
		if e <= since {
			delete(t.removed, n)
		}
	}
	return active
}

// Apply folds one lookup outcome into the record for name.
//
// A failed lookup never changes LastKnownLive. Only a not-live to live change
// returns TransitionWentLive.
func (t *StateTable) Apply(name string, status LiveStatus, lookupErr error, at time.Time) Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[name]
	if !ok {
		return TransitionNone
	}
	if lookupErr != nil {
		rec.ConsecutiveFailures++
		return TransitionFailed
	}
	rec.LastCheckedAt = at
	rec.ConsecutiveFailures = 0

	switch {
	case status.Live && !rec.LastKnownLive:
		rec.LastKnownLive = true
		return TransitionWentLive
	case status.Live:
		return TransitionStillLive
	default:
		rec.LastKnownLive = false
		return TransitionOffline
	}
}

// Forget drops the record for name and tombstones it for in-flight cycles.
func (t *StateTable) Forget(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, name)
	t.epoch++
	t.removed[name] = t.epoch
}

// Get returns a copy of the record for name.
func (t *StateTable) Get(name string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[name]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

func (t *StateTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
