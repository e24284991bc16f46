// Package scheduler runs the periodic background threads assigned to the
// coordinator (SR scan sweeps, metrics polling, certificate checks)
// and the rate limiters that throttle bursty ones. There is no in-pack
// usage file for golang.org/x/time/rate to crib from, so this package
// follows the library's own documented API directly (see DESIGN.md).
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Func is one periodic unit of work. It should return promptly when ctx is
// cancelled.
type Func func(ctx context.Context) error

// Scheduler owns a registry of named periodic threads, each running on
// its own interval until the scheduler is stopped.
type Scheduler struct {
	log *logger.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func New(log *logger.Logger) *Scheduler {
	return &Scheduler{log: log, cancels: make(map[string]context.CancelFunc)}
}

// Register starts a named periodic thread running fn every interval,
// logging (rather than aborting the scheduler) on error so one bad cycle
// doesn't take down unrelated background work.
func (s *Scheduler) Register(ctx context.Context, name string, interval time.Duration, fn Func) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if old, ok := s.cancels[name]; ok {
		old()
	}
	s.cancels[name] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					s.log.Warn("periodic thread failed", zap.String("name", name), zap.Error(err))
				}
			}
		}
	}()
}

// Cancel stops one named thread.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[name]; ok {
		cancel()
		delete(s.cancels, name)
	}
}

// Stop cancels every registered thread and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = make(map[string]context.CancelFunc)
	s.mu.Unlock()
	s.wg.Wait()
}

// Throttle wraps rate.Limiter as a token bucket pacing how often a single
// named piece of work may start. Callers Wait before doing the throttled
// work; the limiter itself is safe for concurrent use.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle allows burst immediate operations and then one every
// 1/perSecond thereafter.
func NewThrottle(perSecond float64, burst int) *Throttle {
	return &Throttle{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

func (t *Throttle) Allow() bool {
	return t.limiter.Allow()
}
