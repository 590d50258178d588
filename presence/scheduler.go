package presence

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/streamwatch/telemetry"
	"github.com/onnwee/streamwatch/watchlist"
)

// Emitter receives went-live events. Emit must hand the event off and return
// without waiting for delivery.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// Scheduler runs poll cycles for one provider until its context is cancelled.
// Cycles never overlap; within a cycle up to Workers lookups run at once and
// every lookup start waits on the shared pacer.
type Scheduler struct {
	provider string
	store    watchlist.Store
	lookup   Lookup
	table    *StateTable
	emitter  Emitter
	pacer    *Pacer
	clock    clockwork.Clock
	interval time.Duration
	workers  int
	storeTTL time.Duration
	logger   *slog.Logger
}

// Run executes a cycle immediately, then one per interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("poll scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("workers", s.workers))
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("poll scheduler stopped")
			return nil
		}
		if err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("poll cycle failed", slog.Any("err", err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("poll scheduler stopped")
			return nil
		case <-s.clock.After(s.interval):
		}
	}
}

// RunCycle evaluates every watched name once. A failing or panicking name
// does not stop the others; a store failure aborts the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) (err error) {
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "streamwatch/presence", "poll.cycle", telemetry.ProviderAttr(s.provider))
	defer span.End()
	log := s.logger.With(slog.String("corr", telemetry.GetCorrelation(ctx)))

	start := s.clock.Now()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			result = "panic"
			err = fmt.Errorf("poll cycle panic: %v", r)
			log.Error("poll cycle panic", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.SetSpanSuccess(span)
		}
		telemetry.ObserveCycle(s.provider, result, s.clock.Since(start))
	}()

	epoch := s.table.Epoch()
	names, err := listWithTimeout(ctx, s.store, s.storeTTL)
	if err != nil {
		result = "error"
		return fmt.Errorf("list watchlist: %w", err)
	}
	active := s.table.Sync(names, epoch)
	telemetry.SetWatched(s.provider, len(active))
	log.Debug("poll cycle started", slog.Int("names", len(active)))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, name := range active {
		if err := s.pacer.Wait(ctx); err != nil {
			break
		}
		g.Go(func() error {
			s.checkOne(ctx, log, name)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		result = "cancelled"
		return ctx.Err()
	}
	log.Debug("poll cycle finished", slog.Duration("took", s.clock.Since(start)))
	return nil
}

// listWithTimeout reads the watchlist under its own deadline so a stalled
// backend fails the read instead of the whole loop.
func listWithTimeout(ctx context.Context, store watchlist.Store, d time.Duration) ([]string, error) {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return store.List(ctx)
}

func (s *Scheduler) checkOne(ctx context.Context, log *slog.Logger, name string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("poll name panic", slog.String("streamer", name), slog.Any("panic", r))
		}
	}()
	if ctx.Err() != nil {
		return
	}

	ctx, span := telemetry.StartSpan(ctx, "streamwatch/presence", "presence.lookup",
		telemetry.ProviderAttr(s.provider), telemetry.StreamerAttr(name))
	defer span.End()

	status, err := s.lookup.CheckLive(ctx, name)
	if err != nil && ctx.Err() != nil {
		// Shutdown, not a provider failure.
		return
	}
	tr := s.table.Apply(name, status, err, s.clock.Now())

	switch tr {
	case TransitionFailed:
		telemetry.ObserveLookup(s.provider, "failed")
		telemetry.RecordError(span, err)
		log.Warn("presence lookup failed", slog.String("streamer", name), slog.Any("err", err))
		return
	case TransitionNone:
		log.Debug("streamer removed during cycle", slog.String("streamer", name))
		return
	case TransitionOffline:
		telemetry.ObserveLookup(s.provider, "offline")
	default:
		telemetry.ObserveLookup(s.provider, "live")
	}
	telemetry.SetSpanSuccess(span)

	if tr != TransitionWentLive {
		return
	}
	ev := Event{Provider: s.provider, Name: name, Metadata: status.Metadata, At: s.clock.Now()}
	log.Info("streamer went live", slog.String("streamer", name))
	if err := s.emitter.Emit(ctx, ev); err != nil {
		log.Warn("emit live event failed", slog.String("streamer", name), slog.Any("err", err))
	}
}
