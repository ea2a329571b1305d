// Package renewal drives the lock store: every tick applies finished
// commands, flushes persistence and starts a refresh when one is due.
package renewal

import (
	"context"
	"time"

	"github.com/PinkPanter/gitlock/pkg/logging"
)

// Target is what the scheduler drives. *lockstate.Store satisfies it.
type Target interface {
	Tick(now time.Time)
	// Wake is signalled when there is work to apply before the next tick.
	Wake() <-chan struct{}
}

// Scheduler ticks a Target until its context is cancelled.
type Scheduler struct {
	target   Target
	interval time.Duration
	now      func() time.Time
	log      *logging.Logger
	reset    chan time.Duration
}

// New returns a scheduler ticking every interval.
func New(target Target, interval time.Duration, log *logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = logging.Global()
	}
	return &Scheduler{
		target:   target,
		interval: interval,
		now:      time.Now,
		log:      log.WithFields(map[string]any{"component": "renewal"}),
		reset:    make(chan time.Duration, 1),
	}
}

// SetInterval changes the tick interval of a running scheduler.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	// Keep only the latest request.
	select {
	case <-s.reset:
	default:
	}
	select {
	case s.reset <- d:
	default:
	}
}

// Run ticks immediately and then on every interval or wake-up. It returns
// nil when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Debug("scheduler started", map[string]any{"interval": s.interval.String()})
	s.target.Tick(s.now())
	for {
		select {
		case <-ctx.Done():
			s.log.Debug("scheduler stopped")
			return nil
		case d := <-s.reset:
			s.interval = d
			ticker.Reset(d)
			s.log.Info("tick interval changed", map[string]any{"interval": d.String()})
		case <-ticker.C:
			s.target.Tick(s.now())
		case <-s.target.Wake():
			s.target.Tick(s.now())
		}
	}
}
