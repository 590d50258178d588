package presence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/onnwee/streamwatch/watchlist"
)

// Service exposes the watchlist operations and on-demand checks for one
// provider. It shares the lookup (and its rate ceiling) with the scheduler but
// paces CheckAllNow with its own Pacer.
type Service struct {
	provider string
	store    watchlist.Store
	lookup   Lookup
	table    *StateTable
	clock    clockwork.Clock
	pacing   time.Duration
	storeTTL time.Duration
	logger   *slog.Logger
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// AddStreamer adds name to the watchlist. added is false if it was already watched.
func (s *Service) AddStreamer(ctx context.Context, name string) (bool, error) {
	name, err := normalizeName(name)
	if err != nil {
		return false, err
	}
	added, err := s.store.Add(ctx, name)
	if err != nil {
		return false, err
	}
	if added {
		s.logger.Info("streamer added", slog.String("streamer", name))
	}
	return added, nil
}

// RemoveStreamer deletes name from the watchlist and drops its presence state.
func (s *Service) RemoveStreamer(ctx context.Context, name string) (bool, error) {
	name, err := normalizeName(name)
	if err != nil {
		return false, err
	}
	removed, err := s.store.Remove(ctx, name)
	if err != nil {
		return false, err
	}
	s.table.Forget(name)
	if removed {
		s.logger.Info("streamer removed", slog.String("streamer", name))
	}
	return removed, nil
}

func (s *Service) ListStreamers(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

// CheckNow performs a single lookup. It does not read or modify presence state.
func (s *Service) CheckNow(ctx context.Context, name string) (LiveStatus, error) {
	name, err := normalizeName(name)
	if err != nil {
		return LiveStatus{}, err
	}
	return s.lookup.CheckLive(ctx, name)
}

// CheckAllNow returns the currently live names in watchlist order. Names
// whose lookup fails are skipped.
func (s *Service) CheckAllNow(ctx context.Context) ([]string, error) {
	names, err := listWithTimeout(ctx, s.store, s.storeTTL)
	if err != nil {
		return nil, err
	}
	pacer := NewPacer(s.clock, s.pacing)
	live := make([]string, 0, len(names))
	for _, name := range names {
		if err := pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("check all: %w", err)
		}
		st, err := s.lookup.CheckLive(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("check all: %w", ctx.Err())
			}
			s.logger.Warn("check all lookup failed", slog.String("streamer", name), slog.Any("err", err))
			continue
		}
		if st.Live {
			live = append(live, name)
		}
	}
	return live, nil
}
