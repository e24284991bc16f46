package bootstrap

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/model"
	"go.uber.org/zap"
)

var errVersionTooHigh = errors.New("local xapi version is higher than the coordinator's")

const (
	emergencyRestartBase  = 30 * time.Second
	emergencyRestartJitter = 30 * time.Second
)

// Emergency tracks whether this node is in emergency mode (spec §4.5):
// client traffic is blocked, and a self-restart is scheduled for a
// randomised time in the future so that a whole pool recovering from the
// same outage doesn't restart every member in lockstep.
type Emergency struct {
	log *logger.Logger

	mu     sync.Mutex
	active bool
	reason *model.ApiError

	restartFunc func()
}

func NewEmergency(log *logger.Logger) *Emergency {
	return &Emergency{log: log, restartFunc: func() { panic("emergency mode self-restart") }}
}

// Enter puts the node into emergency mode and schedules a self-restart
// after base+random(jitter), unless already active (re-entering does not
// reschedule the restart).
func (e *Emergency) Enter(reason *model.ApiError) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return
	}
	e.active = true
	e.reason = reason
	e.log.Error("entering emergency mode", zap.String("code", string(reason.Code)))

	delay := emergencyRestartBase + time.Duration(rand.Int63n(int64(emergencyRestartJitter)))
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		<-t.C
		e.mu.Lock()
		stillActive := e.active
		e.mu.Unlock()
		if stillActive {
			e.restartFunc()
		}
	}()
}

// Clear leaves emergency mode, e.g. once a slave successfully connects.
func (e *Emergency) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
	e.reason = nil
}

func (e *Emergency) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Emergency) Reason() *model.ApiError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason
}

// Blocks reports whether op should be rejected with the emergency-mode
// error because this node cannot safely serve client traffic right now.
func (e *Emergency) Blocks(ctx context.Context) bool {
	return e.Active()
}
