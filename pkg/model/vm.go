package model

import "time"

// VM is the authoritative row for a virtual machine (spec §3). Only the
// fields that drive the allowed-operations engine, the lifecycle services,
// or the hypervisor adapter are modelled; decorative metadata (name,
// description, tags) is present but never branched on by the core.
type VM struct {
	Row

	NameLabel       string
	NameDescription string

	PowerState   PowerState
	DomainType   DomainType
	IsATemplate  bool
	IsASnapshot  bool
	SnapshotOf   Ref
	IsControlDomain bool

	VCPUsMax        int
	VCPUsAtStartup  int
	MemoryStaticMin int64
	MemoryStaticMax int64
	MemoryDynMin    int64
	MemoryDynMax    int64

	VBDs  []Ref
	VIFs  []Ref
	VGPUs []Ref
	VUSBs []Ref
	VTPMs []Ref
	PCIs  []Ref

	// Consoles holds one "protocol|uri" entry per console the hypervisor
	// reports for this domain, reconciled by the event pump's update_vm
	// handler via a symmetric diff against what it last observed (§4.4).
	Consoles []string

	ResidentOn            Ref // host ref; empty when not resident anywhere
	ScheduledToBeResident Ref
	Domid                 int // -1 when not running

	SuspendVDI       Ref
	LastBootedRecord string // serialised metadata captured by pull() on suspend
	LastBootCPUFlags map[string]string

	Platform          map[string]string
	HVMBootParams     map[string]string
	NVRAM             map[string]string
	XenstoreData      map[string]string

	ActionsAfterShutdown  string
	ActionsAfterReboot    string
	ActionsAfterCrash     string
	ActionsAfterSoftReboot string

	// AppliancePart / ProtectionPolicy / SnapshotSchedule membership, used
	// by the §4.2 step 13 predicate (make_into_template forbidden while
	// a member of either).
	ApplianceMember bool

	RequiresReboot bool
	// PendingGuidance tracks post-operation guidance entries such as
	// restart_device_model and restart_vm (§4.4, last_start_time rule).
	PendingGuidance map[string]bool

	LastStartTime time.Time

	GuestMetrics *GuestMetrics
}

// GuestMetrics mirrors VM_guest_metrics: the subset of in-guest feature
// flags and agent data the allowed-operations engine and the hypervisor
// adapter consult.
type GuestMetrics struct {
	Ref         Ref
	Other       map[string]string // "feature-shutdown", "feature-suspend", ...
	LastUpdated time.Time
	// DataCantSuspendReason, when non-empty, blocks the whole suspend
	// family with vm_non_suspendable (§4.2 step 8).
	DataCantSuspendReason string
}

// IsMobile implements the §4.2 step 6 mobility predicate: nomigrate/
// nested_virt derived first from guest metrics, falling back to platform
// keys when metrics are absent.
func (vm *VM) IsMobile() bool {
	if vm.GuestMetrics != nil {
		if v, ok := vm.GuestMetrics.Other["nomigrate"]; ok {
			return v != "1" && v != "true"
		}
	}
	if v, ok := vm.Platform["nomigrate"]; ok {
		return v != "1" && v != "true"
	}
	if v, ok := vm.Platform["nested-virt"]; ok && (v == "1" || v == "true") {
		return false
	}
	return true
}

// HasFeature reports whether the guest has advertised the named feature
// flag in its guest metrics "other" map (§4.2 step 8).
func (vm *VM) HasFeature(feature string) bool {
	if vm.GuestMetrics == nil {
		return false
	}
	v, ok := vm.GuestMetrics.Other[feature]
	return ok && (v == "1" || v == "true")
}
