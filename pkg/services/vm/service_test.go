package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services"
	"github.com/xapi-core/xapi-core/pkg/taskmgr"
)

type fakeHypervisor struct {
	failBoot bool
	booted   []model.Ref
}

var errBootFailed = errors.New("boot failed")

func (f *fakeHypervisor) Boot(ctx context.Context, v *model.VM) error {
	if f.failBoot {
		return errBootFailed
	}
	f.booted = append(f.booted, v.Ref)
	return nil
}
func (f *fakeHypervisor) Shutdown(ctx context.Context, v *model.VM, clean bool) error { return nil }
func (f *fakeHypervisor) Reboot(ctx context.Context, v *model.VM, clean bool) error   { return nil }
func (f *fakeHypervisor) Suspend(ctx context.Context, v *model.VM) error              { return nil }
func (f *fakeHypervisor) Resume(ctx context.Context, v *model.VM) error               { return nil }

type fakePool struct {
	ha  bool
	rpu bool
}

func (f *fakePool) HAEnabled() bool      { return f.ha }
func (f *fakePool) RollingUpgrade() bool { return f.rpu }

func newTestService(t *testing.T, hv Hypervisor) (*Service, *db.Store) {
	log, err := logger.New(false)
	require.NoError(t, err)
	store := db.New(events.NewBus(), nil)
	deps := services.Deps{Store: store, Tasks: taskmgr.New(store, log), Log: log}
	return New(deps, hv, &fakePool{}), store
}

func TestStartTransitionsHaltedToRunning(t *testing.T) {
	hv := &fakeHypervisor{}
	svc, store := newTestService(t, hv)

	row := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerHalted})

	res, err := svc.Start(context.Background(), "", row.Ref)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Task)

	updated, ok := store.VMs.Get(row.Ref)
	require.True(t, ok)
	assert.Equal(t, model.PowerRunning, updated.PowerState)
	assert.Contains(t, hv.booted, row.Ref)

	task, ok := store.Tasks.Get(res.Task)
	require.True(t, ok)
	assert.Equal(t, model.TaskCompleted, task.Status)
}

func TestStartAttachesAndShutdownDetachesDevices(t *testing.T) {
	hv := &fakeHypervisor{}
	svc, store := newTestService(t, hv)

	row := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerHalted})
	vbd := db.Put(store, store.VBDs, model.VBD{Row: model.NewRow(model.ClassVBD), VM: row.Ref})
	vif := db.Put(store, store.VIFs, model.VIF{Row: model.NewRow(model.ClassVIF), VM: row.Ref})
	vgpu := db.Put(store, store.VGPUs, model.VGPU{Row: model.NewRow(model.ClassVGPU), VM: row.Ref})
	row.VBDs = []model.Ref{vbd.Ref}
	row.VIFs = []model.Ref{vif.Ref}
	row.VGPUs = []model.Ref{vgpu.Ref}
	row = db.Put(store, store.VMs, row)

	_, err := svc.Start(context.Background(), "", row.Ref)
	require.NoError(t, err)

	vbdRow, _ := store.VBDs.Get(vbd.Ref)
	vifRow, _ := store.VIFs.Get(vif.Ref)
	assert.True(t, vbdRow.CurrentlyAttached)
	assert.True(t, vifRow.CurrentlyAttached)

	_, err = svc.HardShutdown(context.Background(), "", row.Ref)
	require.NoError(t, err)

	vbdRow, _ = store.VBDs.Get(vbd.Ref)
	vifRow, _ = store.VIFs.Get(vif.Ref)
	vgpuRow, _ := store.VGPUs.Get(vgpu.Ref)
	assert.False(t, vbdRow.CurrentlyAttached, "INV1: halted VM must have no attached VBDs")
	assert.False(t, vifRow.CurrentlyAttached, "INV1: halted VM must have no attached VIFs")
	assert.Empty(t, vgpuRow.VM, "INV1: halted VM must have released its VGPUs")
}

func TestStartRejectedWhenAlreadyRunning(t *testing.T) {
	hv := &fakeHypervisor{}
	svc, store := newTestService(t, hv)

	row := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerRunning})

	_, err := svc.Start(context.Background(), "", row.Ref)
	assert.ErrorIs(t, err, model.NewApiError(model.ErrBadPowerState))
	assert.Empty(t, hv.booted)
}

func TestStartFailureLeavesTaskFailedAndClearsLock(t *testing.T) {
	hv := &fakeHypervisor{failBoot: true}
	svc, store := newTestService(t, hv)

	row := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerHalted})

	res, err := svc.Start(context.Background(), "", row.Ref)
	assert.Error(t, err)

	updated, ok := store.VMs.Get(row.Ref)
	require.True(t, ok)
	assert.Equal(t, model.PowerHalted, updated.PowerState)
	assert.Empty(t, updated.CurrentOperations)

	task, ok := store.Tasks.Get(res.Task)
	require.True(t, ok)
	assert.Equal(t, model.TaskFailed, task.Status)
}

func TestDestroyRemovesRow(t *testing.T) {
	svc, store := newTestService(t, &fakeHypervisor{})

	row := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerHalted})

	_, err := svc.Destroy(context.Background(), "", row.Ref)
	require.NoError(t, err)

	_, ok := store.VMs.Get(row.Ref)
	assert.False(t, ok)
}

func TestSnapshotProducesNewRowLinkedToOriginal(t *testing.T) {
	svc, store := newTestService(t, &fakeHypervisor{})

	row := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerHalted})

	res, err := svc.Snapshot(context.Background(), "", row.Ref, "nightly")
	require.NoError(t, err)
	require.NotEmpty(t, res.Result)

	snap, ok := store.VMs.Get(model.Ref(res.Result))
	require.True(t, ok)
	assert.True(t, snap.IsASnapshot)
	assert.Equal(t, row.Ref, snap.SnapshotOf)
}

func TestRollingUpgradeAllowsStartButBlocksDestroy(t *testing.T) {
	svc, store := newTestService(t, &fakeHypervisor{})
	svc.Pool = &fakePool{rpu: true}

	startable := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerHalted})
	_, err := svc.Start(context.Background(), "", startable.Ref)
	assert.NoError(t, err, "start is on the rolling-upgrade allowlist")

	destroyable := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerHalted})
	_, err = svc.Destroy(context.Background(), "", destroyable.Ref)
	assert.ErrorIs(t, err, model.NewApiError(model.ErrNotSupportedDuringUpgrade), "destroy is not on the rolling-upgrade allowlist")
}
