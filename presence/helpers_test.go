package presence

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/streamwatch/watchlist"
)

var errBoom = errors.New("boom")

type step struct {
	status LiveStatus
	err    error
	panics bool
}

func live() step                { return step{status: LiveStatus{Live: true}} }
func liveWith(m *Metadata) step { return step{status: LiveStatus{Live: true, Metadata: m}} }
func offline() step             { return step{} }
func failed() step              { return step{err: errBoom} }

// scriptedLookup replays a per-name sequence of outcomes; the last step
// repeats once the script is exhausted.
type scriptedLookup struct {
	mu     sync.Mutex
	script map[string][]step
	calls  map[string]int
	hook   func(name string)
}

func newScriptedLookup(script map[string][]step) *scriptedLookup {
	return &scriptedLookup{script: script, calls: make(map[string]int)}
}

func (l *scriptedLookup) CheckLive(ctx context.Context, name string) (LiveStatus, error) {
	l.mu.Lock()
	idx := l.calls[name]
	l.calls[name]++
	seq := l.script[name]
	hook := l.hook
	l.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	if len(seq) == 0 {
		return LiveStatus{}, nil
	}
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	s := seq[idx]
	if s.panics {
		panic("lookup exploded")
	}
	return s.status, s.err
}

func (l *scriptedLookup) Calls(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[name]
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func (e *recordingEmitter) Emit(_ context.Context, ev Event) error {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
	if e.ch != nil {
		e.ch <- ev
	}
	return nil
}

func (e *recordingEmitter) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

func (e *recordingEmitter) Count(name string) int {
	n := 0
	for _, ev := range e.Events() {
		if ev.Name == name {
			n++
		}
	}
	return n
}

type failingStore struct{}

func (failingStore) Add(context.Context, string) (bool, error) {
	return false, watchlist.WrapStorage("test", "add", errBoom)
}
func (failingStore) Remove(context.Context, string) (bool, error) {
	return false, watchlist.WrapStorage("test", "remove", errBoom)
}
func (failingStore) List(context.Context) ([]string, error) {
	return nil, watchlist.WrapStorage("test", "list", errBoom)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestWatcher builds a watcher without pacing or retries on a fake clock.
func newTestWatcher(t *testing.T, store watchlist.Store, lookup Lookup, em Emitter) (*Watcher, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	w := NewWatcher(Options{
		Provider: "test",
		Store:    store,
		Lookup:   lookup,
		Emitter:  em,
		Clock:    clock,
		Logger:   quietLogger(),
		Retries:  -1,
	})
	return w, clock
}

// hangingStore blocks every call until its context ends.
type hangingStore struct{}

func (hangingStore) Add(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}
func (hangingStore) Remove(ctx context.Context, _ string) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}
func (hangingStore) List(ctx context.Context) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
