package dbserver

import (
	"context"
	"sync"

	"github.com/xapi-core/xapi-core/pkg/bootstrap"
)

var _ bootstrap.StoreReady = (*ReadyGate)(nil)

// ReadyGate is the "database ready" barrier of spec §4.1/§4.5: the
// replication endpoint must not answer a pull or stream request until
// bootstrap has finished populating the database (master branch) or
// pulled it from the master (slave branch). It satisfies
// bootstrap.StoreReady.
type ReadyGate struct {
	once sync.Once
	ch   chan struct{}
}

func NewReadyGate() *ReadyGate {
	return &ReadyGate{ch: make(chan struct{})}
}

// SignalReady flips the gate open. Idempotent: bootstrap may call it at
// most once in practice, but a second call must not panic on a
// close-of-closed-channel.
func (g *ReadyGate) SignalReady() {
	g.once.Do(func() { close(g.ch) })
}

// WaitReady blocks until SignalReady has been called or ctx is done.
func (g *ReadyGate) WaitReady(ctx context.Context) error {
	select {
	case <-g.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
