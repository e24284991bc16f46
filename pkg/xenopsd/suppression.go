package xenopsd

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xapi-core/xapi-core/pkg/model"
)

// Suppression implements the narrow window (spec §4.5) during which an
// event pulled back from xenopsd for a VM is ignored: right after xapi
// itself pushes a state change (e.g. a plug it initiated), the next
// xenopsd event for that VM is its own echo and must not be re-applied as
// if it were independently observed, or the two event streams would loop.
//
// Re-entrant suppression (an op that suppresses while a previous
// suppression for the same VM is still open) extends the existing window
// rather than stacking a second one: see DESIGN.md for why.
type Suppression struct {
	mu    sync.Mutex
	until map[model.Ref]time.Time
}

// suppressionWindow is how long a pushed write is assumed to take to echo
// back from xenopsd before being treated as an independent observation.
const suppressionWindow = 3 * time.Second

func NewSuppression() *Suppression {
	return &Suppression{until: make(map[model.Ref]time.Time)}
}

// Begin opens (or extends) a suppression window for ref.
func (s *Suppression) Begin(ref model.Ref, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := time.Now().Add(window)
	if existing, ok := s.until[ref]; ok && existing.After(deadline) {
		return
	}
	s.until[ref] = deadline
}

// Active reports whether ref is currently within a suppression window.
func (s *Suppression) Active(ref model.Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline, ok := s.until[ref]
	if !ok {
		return false
	}
	if time.Now().After(deadline) {
		delete(s.until, ref)
		return false
	}
	return true
}

// Clear ends a window early, used once the expected echo has actually
// been observed and consumed. There is no per-caller count: the first
// Clear closes the window for every operation inside it. It reports
// whether a window was open, so a caller can tell "I just closed the
// window" (and must now force a refresh-and-barrier, per with_suppressed
// in §4.4) apart from "there was nothing to clear".
func (s *Suppression) Clear(ref model.Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.until[ref]
	delete(s.until, ref)
	return ok
}

// endSuppression implements with_suppressed's close-of-window behaviour
// (spec §4.4): when its Clear finds the window still open, force a
// fresh read of the VM's actual state from xenopsd, apply it (which is
// now unsuppressed, so updateVM writes it for real), await a barrier so
// any event pending on the bus from before the window closes has been
// processed, and only then return — so a migrate or power op that calls
// this before completing its own task sees the final, true state.
func (a *Adapter) endSuppression(ctx context.Context, client *Client, vm *model.VM) {
	if !a.sup.Clear(vm.Ref) {
		return
	}

	xenopsID := vm.UUID.String()
	if u, err := a.statVM(ctx, client, xenopsID); err != nil {
		a.log.Warn("refresh on suppression close failed", zap.String("vm", string(vm.Ref)), zap.Error(err))
	} else {
		a.updateVM(ctx, client, u)
	}

	barrierID := a.nextBarrierID()
	a.store.Bus.InjectBarrier(barrierID)
	if err := a.store.Bus.WaitBarrier(ctx, barrierID); err != nil {
		a.log.Warn("barrier wait on suppression close cancelled", zap.String("vm", string(vm.Ref)), zap.Error(err))
	}
}
