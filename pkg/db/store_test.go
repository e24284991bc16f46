package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
)

func newTestStore() *Store {
	return New(events.NewBus(), nil)
}

func TestStorePutStampsGenerationAndEmitsEvent(t *testing.T) {
	s := newTestStore()

	vm := model.VM{Row: model.NewRow(model.ClassVM)}
	vm.NameLabel = "vm1"
	Put(s, s.VMs, vm)

	got, ok := s.VMs.Get(vm.Ref)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Generation)

	vm.NameLabel = "vm1-renamed"
	Put(s, s.VMs, vm)

	got, ok = s.VMs.Get(vm.Ref)
	require.True(t, ok)
	assert.Equal(t, uint64(2), got.Generation)
	assert.Equal(t, "vm1-renamed", got.NameLabel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evs, _ := s.Bus.Wait(ctx, 0, []string{"VM"})
	require.Len(t, evs, 2)
	assert.Equal(t, model.ClassVM, evs[0].Class)
}

func TestStoreDeleteEmitsTombstone(t *testing.T) {
	s := newTestStore()
	vm := model.VM{Row: model.NewRow(model.ClassVM)}
	Put(s, s.VMs, vm)

	Delete(s, s.VMs, vm.Ref)

	_, ok := s.VMs.Get(vm.Ref)
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	evs, _ := s.Bus.Wait(ctx, 0, []string{"VM/" + vm.Ref.String()})
	require.Len(t, evs, 2)
	assert.Nil(t, evs[1].Snapshot)
}

func TestTableByUUID(t *testing.T) {
	s := newTestStore()
	vm := model.VM{Row: model.NewRow(model.ClassVM)}
	Put(s, s.VMs, vm)

	got, ok := s.VMs.GetByUUID(vm.UUID)
	require.True(t, ok)
	assert.Equal(t, vm.Ref, got.Ref)
}

func TestEventBusBarrier(t *testing.T) {
	bus := events.NewBus()
	bus.Emit(model.ClassVM, model.NewRef(), nil)

	bus.InjectBarrier(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bus.WaitBarrier(ctx, 1))
}
