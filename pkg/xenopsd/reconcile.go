package xenopsd

import (
	"context"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
)

// Device kinds carried on observedUpdate.Kind, one per entity class the
// pull pump reconciles (spec §4.4: "update_vm/update_vbd/update_vif/
// update_pci/update_vgpu/update_vusb").
const (
	kindVM   = "VM"
	kindVBD  = "vbd"
	kindVIF  = "vif"
	kindPCI  = "pci"
	kindVGPU = "vgpu"
	kindVUSB = "vusb"
)

// excludedGuestAgentKeys are dropped before comparing guest-agent maps
// (spec §4.4): the in-guest agent refreshes these every few seconds, so
// comparing on them would trigger an allowed-operations refresh on every
// poll instead of only on an actual feature-flag change.
var excludedGuestAgentKeys = map[string]bool{
	"memory":               true,
	"memory-internal-free": true,
	"disks":                true,
}

// updateVM is the update_vm handler (spec §4.4): diffs one hypervisor-
// reported VM state against xenops_cache and writes only the fields that
// changed. It is not the only writer of VM.power_state: pkg/services/vm
// also sets it when a power operation succeeds, and resyncResidentOn
// sets it too.
func (a *Adapter) updateVM(ctx context.Context, client *Client, u observedUpdate) {
	id, err := uuid.FromString(u.XenopsID)
	if err != nil {
		a.log.Warn("observed VM update with malformed id", zap.String("id", u.XenopsID), zap.Error(err))
		return
	}
	vmRow, ok := a.store.VMs.GetByUUID(id)
	if !ok {
		return
	}
	if a.sup.Active(vmRow.Ref) {
		a.cache.SetObserved(u.XenopsID, u.toObservedState())
		return
	}

	prev, hadPrev := a.cache.Observed(u.XenopsID)
	next := u.toObservedState()
	a.cache.SetObserved(u.XenopsID, next)

	changed := false
	wasHalted := vmRow.PowerState == model.PowerHalted
	wasSuspended := vmRow.PowerState == model.PowerSuspended

	if !hadPrev || prev.PowerState != next.PowerState {
		vmRow.PowerState = next.PowerState
		vmRow.Domid = next.Domid
		changed = true

		switch next.PowerState {
		case model.PowerHalted:
			vmRow.ResidentOn = ""
			vmRow.ScheduledToBeResident = ""
			vmRow.Domid = -1
			vmRow.RequiresReboot = false
			delete(vmRow.PendingGuidance, "restart_device_model")
			delete(vmRow.PendingGuidance, "restart_vm")
			a.cache.ClearPushed(vmRow.Ref)
			vmRow = db.Put(a.store, a.store.VMs, vmRow)
			a.detachAllDevices(vmRow)
			vmRow, _ = a.store.VMs.Get(vmRow.Ref)
			changed = false // already flushed above; avoid a duplicate Put below
		case model.PowerSuspended:
			// currently_attached fields and current_domain_type are
			// preserved, not cleared, while the domain goes away.
			if record, err := a.pullMetadata(ctx, client, u.XenopsID); err == nil {
				vmRow.LastBootedRecord = record
			} else {
				a.log.Warn("metadata pull on suspend failed", zap.String("vm", string(vmRow.Ref)), zap.Error(err))
			}
		case model.PowerRunning:
			if (wasSuspended || wasHalted) && vmRow.GuestMetrics == nil {
				vmRow.GuestMetrics = &model.GuestMetrics{Ref: model.NewRef()}
			}
		}
	}

	// domain_type mirrors onto the VM row except a transient "unspecified"
	// report for a VM that isn't Halted, which xenopsd emits mid-boot.
	if next.DomainType != "" {
		transientUndefined := next.DomainType == model.DomainUndefined && vmRow.PowerState != model.PowerHalted
		if !transientUndefined && vmRow.DomainType != next.DomainType {
			vmRow.DomainType = next.DomainType
			changed = true
		}
	}

	if !stringSetsEqual(vmRow.Consoles, next.Consoles) {
		vmRow.Consoles = next.Consoles
		changed = true
	}

	guestAgentChanged := guestAgentDiffers(prev.GuestAgent, next.GuestAgent)
	if guestAgentChanged && vmRow.GuestMetrics != nil {
		vmRow.GuestMetrics.Other = next.GuestAgent
		vmRow.GuestMetrics.LastUpdated = next.LastStartTime
		changed = true
	}

	if !next.LastStartTime.IsZero() {
		clamped := next.LastStartTime.Truncate(timeSecond)
		if clamped.After(vmRow.LastStartTime) {
			vmRow.LastStartTime = clamped
			changed = true
			if vmRow.PowerState == model.PowerRunning && !wasSuspended {
				delete(vmRow.PendingGuidance, "restart_device_model")
				delete(vmRow.PendingGuidance, "restart_vm")
			}
			if vmRow.GuestMetrics != nil && vmRow.GuestMetrics.LastUpdated.Before(clamped) {
				vmRow.GuestMetrics = nil
			}
		}
	}

	if next.Featureset != "" && next.Featureset != prev.Featureset && vmRow.PowerState != model.PowerSuspended {
		vmRow.LastBootCPUFlags = map[string]string{"vendor": next.Vendor, "featureset": next.Featureset}
		changed = true
	}

	if changed {
		db.Put(a.store, a.store.VMs, vmRow)
	}
	if guestAgentChanged {
		a.refreshAllowedOperations(vmRow.Ref)
	}
}

// refreshAllowedOperationsHook lets pkg/services/vm register its
// allowed-operations recompute without this package importing pkg/services
// (which itself depends on pkg/xenopsd through the Hypervisor interface).
var refreshAllowedOperationsHook func(model.Ref)

// SetRefreshAllowedOperationsHook wires the allowed-operations recompute
// called whenever the guest-agent diff (§4.4) changes a VM's feature set.
func SetRefreshAllowedOperationsHook(hook func(model.Ref)) {
	refreshAllowedOperationsHook = hook
}

func (a *Adapter) refreshAllowedOperations(ref model.Ref) {
	if refreshAllowedOperationsHook != nil {
		refreshAllowedOperationsHook(ref)
	}
}

const timeSecond = 1_000_000_000 // time.Duration's unit is nanoseconds

// detachAllDevices clears CurrentlyAttached on every VBD/VIF/VUSB of
// vmRow and releases its VGPUs/PCIs, the adapter-side counterpart of the
// service-layer clearing a user-initiated shutdown does (§8 INV1).
func (a *Adapter) detachAllDevices(vmRow model.VM) {
	for _, ref := range vmRow.VBDs {
		if row, ok := a.store.VBDs.Get(ref); ok && row.CurrentlyAttached {
			row.CurrentlyAttached = false
			db.Put(a.store, a.store.VBDs, row)
		}
	}
	for _, ref := range vmRow.VIFs {
		if row, ok := a.store.VIFs.Get(ref); ok && row.CurrentlyAttached {
			row.CurrentlyAttached = false
			db.Put(a.store, a.store.VIFs, row)
		}
	}
	for _, ref := range vmRow.VGPUs {
		if row, ok := a.store.VGPUs.Get(ref); ok && row.VM != "" {
			row.VM = ""
			db.Put(a.store, a.store.VGPUs, row)
		}
	}
	for _, ref := range vmRow.VUSBs {
		if row, ok := a.store.VUSBs.Get(ref); ok && row.CurrentlyAttached {
			row.CurrentlyAttached = false
			db.Put(a.store, a.store.VUSBs, row)
		}
	}
	for _, ref := range vmRow.PCIs {
		if row, ok := a.store.PCIs.Get(ref); ok && row.VM != "" {
			row.VM = ""
			db.Put(a.store, a.store.PCIs, row)
		}
	}
}

// updateDevice is the shared body of update_vbd/update_vif/update_pci/
// update_vgpu/update_vusb (spec §4.4): diff one device's currently_attached
// flag against xenops_cache and write it if it changed. u.Device carries
// the device's own Ref (the adapter's own wire convention, since xenopsd
// devices are addressed the same way xapi addresses them).
func (a *Adapter) updateDevice(u observedUpdate) {
	id, err := uuid.FromString(u.XenopsID)
	if err != nil {
		return
	}
	vmRow, ok := a.store.VMs.GetByUUID(id)
	if !ok {
		return
	}

	prev, hadPrev := a.cache.ObservedDevice(u.XenopsID, u.Kind, u.Device)
	next := DeviceObservedState{CurrentlyAttached: u.CurrentlyAttached}
	a.cache.SetObservedDevice(u.XenopsID, u.Kind, u.Device, next)
	if a.sup.Active(vmRow.Ref) || (hadPrev && prev == next) {
		return
	}

	ref := model.Ref(u.Device)
	switch u.Kind {
	case kindVBD:
		if row, ok := a.store.VBDs.Get(ref); ok && row.VM == vmRow.Ref && row.CurrentlyAttached != u.CurrentlyAttached {
			row.CurrentlyAttached = u.CurrentlyAttached
			db.Put(a.store, a.store.VBDs, row)
		}
	case kindVIF:
		if row, ok := a.store.VIFs.Get(ref); ok && row.VM == vmRow.Ref && row.CurrentlyAttached != u.CurrentlyAttached {
			row.CurrentlyAttached = u.CurrentlyAttached
			db.Put(a.store, a.store.VIFs, row)
		}
	case kindVUSB:
		if row, ok := a.store.VUSBs.Get(ref); ok && row.VM == vmRow.Ref && row.CurrentlyAttached != u.CurrentlyAttached {
			row.CurrentlyAttached = u.CurrentlyAttached
			db.Put(a.store, a.store.VUSBs, row)
		}
	case kindPCI:
		if row, ok := a.store.PCIs.Get(ref); ok {
			want := model.Ref("")
			if u.CurrentlyAttached {
				want = vmRow.Ref
			}
			if row.VM != want {
				row.VM = want
				db.Put(a.store, a.store.PCIs, row)
			}
		}
	case kindVGPU:
		if row, ok := a.store.VGPUs.Get(ref); ok {
			want := model.Ref("")
			if u.CurrentlyAttached {
				want = vmRow.Ref
			}
			if row.VM != want {
				row.VM = want
				db.Put(a.store, a.store.VGPUs, row)
			}
		}
	}
}

// stringSetsEqual reports whether a and b contain the same elements,
// ignoring order and duplicates (spec §4.4 consoles "symmetric diff").
func stringSetsEqual(a, b []string) bool {
	inA := make(map[string]bool, len(a))
	for _, v := range a {
		inA[v] = true
	}
	inB := make(map[string]bool, len(b))
	for _, v := range b {
		if !inA[v] {
			return false
		}
		inB[v] = true
	}
	return len(inA) == len(inB)
}

// guestAgentDiffers compares two guest-agent key/value maps excluding the
// high-churn keys (spec §4.4).
func guestAgentDiffers(prev, next map[string]string) bool {
	if len(prev) == 0 && len(next) == 0 {
		return false
	}
	filtered := func(m map[string]string) map[string]string {
		out := make(map[string]string, len(m))
		for k, v := range m {
			if !excludedGuestAgentKeys[k] {
				out[k] = v
			}
		}
		return out
	}
	p, n := filtered(prev), filtered(next)
	if len(p) != len(n) {
		return true
	}
	for k, v := range p {
		if n[k] != v {
			return true
		}
	}
	return false
}
