package presence

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Pacer spaces consecutive call starts by a fixed delay. It is safe for use
// by several workers; each Wait reserves the next free slot.
type Pacer struct {
	clock clockwork.Clock
	delay time.Duration

	mu   sync.Mutex
	next time.Time
}

func NewPacer(clock clockwork.Clock, delay time.Duration) *Pacer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pacer{clock: clock, delay: delay}
}

// Wait blocks until the caller's slot arrives or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.delay <= 0 {
		return nil
	}

	p.mu.Lock()
	now := p.clock.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.delay)
	p.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}
	select {
	case <-p.clock.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
