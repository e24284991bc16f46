// Package vm implements the VM class's lifecycle operations (spec §4.3)
// as the authoritative handler: the allowed-operations verdict, the
// semantic lock, and the effect itself (a DB mutation plus, for a
// resident VM, a call into the hypervisor adapter) all happen here
// rather than on a remote server this code merely calls.
package vm

import (
	"context"
	"fmt"

	"github.com/xapi-core/xapi-core/pkg/allowedops"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services"
	"github.com/xapi-core/xapi-core/pkg/services/library"
	"github.com/xapi-core/xapi-core/pkg/xenopsd"
)

// Hypervisor is the subset of xenopsd.Adapter the VM service drives.
// Narrowed to an interface so tests can stub the hypervisor call without
// a real queue.
type Hypervisor interface {
	Boot(ctx context.Context, vm *model.VM) error
	Shutdown(ctx context.Context, vm *model.VM, clean bool) error
	Reboot(ctx context.Context, vm *model.VM, clean bool) error
	Suspend(ctx context.Context, vm *model.VM) error
	Resume(ctx context.Context, vm *model.VM) error
}

var _ Hypervisor = (*xenopsd.Adapter)(nil)
var _ library.VM = (*Service)(nil)

// PoolState is the small slice of pool-wide facts (§4.2 steps 15-16) the
// VM service needs but does not own: whether HA is enabled and whether a
// rolling pool upgrade is in progress.
type PoolState interface {
	HAEnabled() bool
	RollingUpgrade() bool
}

type Service struct {
	services.Deps
	Hypervisor Hypervisor
	Pool       PoolState
}

func New(deps services.Deps, hv Hypervisor, pool PoolState) *Service {
	return &Service{Deps: deps, Hypervisor: hv, Pool: pool}
}

func (s *Service) vmContext(vm model.VM, op model.OpKind) *allowedops.Context {
	ctx := &allowedops.Context{
		Class:             model.ClassVM,
		Op:                op,
		BlockedOperations: vm.BlockedOperations,
		CurrentOperations: vm.CurrentOperations,
		PowerState:        vm.PowerState,
		IsATemplate:       vm.IsATemplate,
		IsASnapshot:       vm.IsASnapshot,
		IsControlDomain:   vm.IsControlDomain,
		IsMobile:          vm.IsMobile(),
		HasVUSB:           len(vm.VUSBs) > 0,
		VTPMCount:         len(vm.VTPMs),
		ApplianceMember:   vm.ApplianceMember,
		RollingUpgrade:    s.Pool.RollingUpgrade(),
		HAEnabled:         s.Pool.HAEnabled(),
	}
	if vm.GuestMetrics != nil {
		ctx.DataCantSuspend = vm.GuestMetrics.DataCantSuspendReason != ""
	}
	return ctx
}

func (s *Service) target(ref model.Ref, op model.OpKind) (services.EnvelopeTarget, model.VM, error) {
	vmRow, ok := s.Store.VMs.Get(ref)
	if !ok {
		return services.EnvelopeTarget{}, model.VM{}, fmt.Errorf("no such VM %s", ref)
	}
	return services.EnvelopeTarget{
		Context: s.vmContext(vmRow, op),
		Lock: func(taskRef model.Ref, op model.OpKind) {
			row, ok := s.Store.VMs.Get(ref)
			if !ok {
				return
			}
			row.CurrentOperations[taskRef] = op
			db.Put(s.Store, s.Store.VMs, row)
		},
		Unlock: func(taskRef model.Ref) {
			row, ok := s.Store.VMs.Get(ref)
			if !ok {
				return
			}
			delete(row.CurrentOperations, taskRef)
			db.Put(s.Store, s.Store.VMs, row)
		},
		Refresh: func() { s.refreshAllowedOperations(ref) },
	}, vmRow, nil
}

// RefreshAllowedOperations recomputes and stores the allowed_operations
// cache for ref. Exported so the hypervisor adapter can trigger it after
// a guest-agent change (§4.4) without pkg/xenopsd importing pkg/services.
func (s *Service) RefreshAllowedOperations(ref model.Ref) {
	s.refreshAllowedOperations(ref)
}

func (s *Service) refreshAllowedOperations(ref model.Ref) {
	row, ok := s.Store.VMs.Get(ref)
	if !ok {
		return
	}
	var allowed []model.OpKind
	for _, op := range []model.OpKind{
		model.OpStart, model.OpCleanShutdown, model.OpHardShutdown, model.OpCleanReboot,
		model.OpHardReboot, model.OpSuspend, model.OpResume, model.OpSnapshot, model.OpDestroy,
	} {
		if allowedops.Evaluate(s.vmContext(row, op)).Allowed {
			allowed = append(allowed, op)
		}
	}
	row.AllowedOperations = allowed
	db.Put(s.Store, s.Store.VMs, row)
}

func (s *Service) run(ctx context.Context, parent, ref model.Ref, op model.OpKind, effect func(vm model.VM) error) (library.Result, error) {
	target, vmRow, err := s.target(ref, op)
	if err != nil {
		return library.Result{}, err
	}

	taskRef, err := s.Envelope(string(op), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		return "", effect(vmRow)
	})
	return library.Result{Task: taskRef}, err
}

func (s *Service) Start(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	return s.run(ctx, parent, ref, model.OpStart, func(vmRow model.VM) error {
		if err := s.Hypervisor.Boot(ctx, &vmRow); err != nil {
			return err
		}
		vmRow.PowerState = model.PowerRunning
		db.Put(s.Store, s.Store.VMs, vmRow)
		s.attachDevices(vmRow)
		return nil
	})
}

// attachDevices marks every VBD/VIF belonging to vmRow as currently
// attached, the counterpart of detachDevices run when a VM reaches
// Halted (§8 INV1, end-to-end scenario 1).
func (s *Service) attachDevices(vmRow model.VM) {
	for _, vbdRef := range vmRow.VBDs {
		if row, ok := s.Store.VBDs.Get(vbdRef); ok && !row.CurrentlyAttached {
			row.CurrentlyAttached = true
			db.Put(s.Store, s.Store.VBDs, row)
		}
	}
	for _, vifRef := range vmRow.VIFs {
		if row, ok := s.Store.VIFs.Get(vifRef); ok && !row.CurrentlyAttached {
			row.CurrentlyAttached = true
			db.Put(s.Store, s.Store.VIFs, row)
		}
	}
}

// detachDevices clears CurrentlyAttached on every VBD/VIF/VUSB belonging
// to vmRow and releases its VGPUs and passed-through PCIs (clearing their
// VM field), enforcing
// INV1 (§8): power_state=Halted implies no device stays attached.
func (s *Service) detachDevices(vmRow model.VM) {
	for _, vbdRef := range vmRow.VBDs {
		if row, ok := s.Store.VBDs.Get(vbdRef); ok && row.CurrentlyAttached {
			row.CurrentlyAttached = false
			db.Put(s.Store, s.Store.VBDs, row)
		}
	}
	for _, vifRef := range vmRow.VIFs {
		if row, ok := s.Store.VIFs.Get(vifRef); ok && row.CurrentlyAttached {
			row.CurrentlyAttached = false
			db.Put(s.Store, s.Store.VIFs, row)
		}
	}
	for _, vgpuRef := range vmRow.VGPUs {
		if row, ok := s.Store.VGPUs.Get(vgpuRef); ok {
			row.VM = ""
			db.Put(s.Store, s.Store.VGPUs, row)
		}
	}
	for _, vusbRef := range vmRow.VUSBs {
		if row, ok := s.Store.VUSBs.Get(vusbRef); ok && row.CurrentlyAttached {
			row.CurrentlyAttached = false
			db.Put(s.Store, s.Store.VUSBs, row)
		}
	}
	for _, pciRef := range vmRow.PCIs {
		if row, ok := s.Store.PCIs.Get(pciRef); ok && row.VM != "" {
			row.VM = ""
			db.Put(s.Store, s.Store.PCIs, row)
		}
	}
}

func (s *Service) CleanShutdown(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	return s.shutdown(ctx, parent, ref, model.OpCleanShutdown, true)
}

func (s *Service) HardShutdown(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	return s.shutdown(ctx, parent, ref, model.OpHardShutdown, false)
}

func (s *Service) shutdown(ctx context.Context, parent, ref model.Ref, op model.OpKind, clean bool) (library.Result, error) {
	return s.run(ctx, parent, ref, op, func(vmRow model.VM) error {
		if err := s.Hypervisor.Shutdown(ctx, &vmRow, clean); err != nil {
			return err
		}
		vmRow.PowerState = model.PowerHalted
		vmRow.ResidentOn = ""
		vmRow.Domid = -1
		db.Put(s.Store, s.Store.VMs, vmRow)
		s.detachDevices(vmRow)
		return nil
	})
}

func (s *Service) CleanReboot(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	return s.reboot(ctx, parent, ref, model.OpCleanReboot, true)
}

func (s *Service) HardReboot(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	return s.reboot(ctx, parent, ref, model.OpHardReboot, false)
}

func (s *Service) reboot(ctx context.Context, parent, ref model.Ref, op model.OpKind, clean bool) (library.Result, error) {
	return s.run(ctx, parent, ref, op, func(vmRow model.VM) error {
		return s.Hypervisor.Reboot(ctx, &vmRow, clean)
	})
}

func (s *Service) Suspend(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	return s.run(ctx, parent, ref, model.OpSuspend, func(vmRow model.VM) error {
		if err := s.Hypervisor.Suspend(ctx, &vmRow); err != nil {
			return err
		}
		vmRow.PowerState = model.PowerSuspended
		db.Put(s.Store, s.Store.VMs, vmRow)
		return nil
	})
}

func (s *Service) Resume(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	return s.run(ctx, parent, ref, model.OpResume, func(vmRow model.VM) error {
		if err := s.Hypervisor.Resume(ctx, &vmRow); err != nil {
			return err
		}
		vmRow.PowerState = model.PowerRunning
		db.Put(s.Store, s.Store.VMs, vmRow)
		return nil
	})
}

// Snapshot creates a new VM row marked IsASnapshot, pointing at ref, with
// no hypervisor effect: a snapshot is a pure-DB fork of the record plus
// (in a fuller build) VDI snapshots of each attached disk.
func (s *Service) Snapshot(ctx context.Context, parent, ref model.Ref, nameLabel string) (library.Result, error) {
	target, vmRow, err := s.target(ref, model.OpSnapshot)
	if err != nil {
		return library.Result{}, err
	}

	var snapshotRef model.Ref
	taskRef, err := s.Envelope(string(model.OpSnapshot), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		snap := vmRow
		snap.Row = model.NewRow(model.ClassVM)
		snap.NameLabel = nameLabel
		snap.IsASnapshot = true
		snap.SnapshotOf = ref
		snap.PowerState = model.PowerHalted
		snap.ResidentOn = ""
		snap = db.Put(s.Store, s.Store.VMs, snap)
		snapshotRef = snap.Ref
		return string(snapshotRef), nil
	})
	return library.Result{Task: taskRef, Result: string(snapshotRef)}, err
}

func (s *Service) Destroy(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	target, _, err := s.target(ref, model.OpDestroy)
	if err != nil {
		return library.Result{}, err
	}

	taskRef, err := s.Envelope(string(model.OpDestroy), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		db.Delete(s.Store, s.Store.VMs, ref)
		return "", nil
	})
	return library.Result{Task: taskRef}, err
}
