package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xapi-core/xapi-core/internal/common/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(false)
	require.NoError(t, err)
	return log
}

func TestRegisterRunsPeriodically(t *testing.T) {
	s := New(newTestLogger(t))
	var calls int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Register(ctx, "tick", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	time.Sleep(55 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestCancelStopsThread(t *testing.T) {
	s := New(newTestLogger(t))
	var calls int32

	s.Register(context.Background(), "tick", 10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	time.Sleep(25 * time.Millisecond)
	s.Cancel("tick")
	after := atomic.LoadInt32(&calls)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))
}

func TestThrottleLimitsBurst(t *testing.T) {
	th := NewThrottle(1000, 2)
	assert.True(t, th.Allow())
	assert.True(t, th.Allow())
	assert.False(t, th.Allow())
}

func TestThrottleWaitRespectsContext(t *testing.T) {
	th := NewThrottle(1, 1)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	err := th.Wait(ctx)
	assert.Error(t, err)
}
