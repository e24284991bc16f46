package model

// OpKind is a wire-stable operation identifier: a named string type whose
// values are the constants below, each constant's string being its wire
// form. The type does not itself reject other strings.
type OpKind string

const (
	OpCreate   OpKind = "create"
	OpDestroy  OpKind = "destroy"
	OpPlug     OpKind = "plug"
	OpUnplug   OpKind = "unplug"
	OpInsert   OpKind = "insert"
	OpEject    OpKind = "eject"
	OpAttach   OpKind = "attach"
	OpDetach   OpKind = "detach"

	OpStart             OpKind = "start"
	OpCleanShutdown     OpKind = "clean_shutdown"
	OpHardShutdown      OpKind = "hard_shutdown"
	OpCleanReboot       OpKind = "clean_reboot"
	OpHardReboot        OpKind = "hard_reboot"
	OpSuspend           OpKind = "suspend"
	OpResume            OpKind = "resume"
	OpPause             OpKind = "pause"
	OpUnpause           OpKind = "unpause"
	OpCheckpoint        OpKind = "checkpoint"
	OpSnapshot          OpKind = "snapshot"
	OpSnapshotQuiesce   OpKind = "snapshot_with_quiesce"
	OpClone             OpKind = "clone"
	OpCopy              OpKind = "copy"
	OpPoolMigrate       OpKind = "pool_migrate"
	OpMigrateSend       OpKind = "migrate_send"
	OpProvision         OpKind = "provision"
	OpRevert            OpKind = "revert"
	OpMakeIntoTemplate  OpKind = "make_into_template"
	OpChangingDynRange  OpKind = "changing_dynamic_range"
	OpChangingStaticRng OpKind = "changing_static_range"
	OpCreateVTPM        OpKind = "create_vtpm"

	OpResize       OpKind = "resize"
	OpResizeOnline OpKind = "resize_online"
	OpMirror       OpKind = "mirror"
	OpDataDestroy  OpKind = "data_destroy"
	OpEnableCBT    OpKind = "enable_cbt"
	OpDisableCBT   OpKind = "disable_cbt"

	OpScan   OpKind = "scan"
	OpForget OpKind = "forget"

	OpCancel OpKind = "cancel"
)

// liveOpsOnAttachedVDI is the narrow exception table referenced in §4.2
// step 10: operations that are permitted on a VDI even while one of its
// VBDs is currently attached or reserved.
var liveOpsOnAttachedVDI = map[OpKind]bool{
	OpSnapshot:        true,
	OpSnapshotQuiesce: true,
	OpResizeOnline:    true,
	OpClone:           true,
	OpMirror:          true,
	OpDataDestroy:     true,
	OpEnableCBT:       true,
	OpDisableCBT:      true,
}

// PermitsLiveOnAttachedVDI reports whether op is in the live-op exception
// table for VDI attachment preconditions.
func PermitsLiveOnAttachedVDI(op OpKind) bool {
	return liveOpsOnAttachedVDI[op]
}

// PowerState is the closed set of VM power states.
type PowerState string

const (
	PowerHalted    PowerState = "Halted"
	PowerPaused    PowerState = "Paused"
	PowerSuspended PowerState = "Suspended"
	PowerRunning   PowerState = "Running"
)

// DomainType is the closed set of VM domain types.
type DomainType string

const (
	DomainHVM       DomainType = "hvm"
	DomainPV        DomainType = "pv"
	DomainPVInPVH   DomainType = "pv_in_pvh"
	DomainPVH       DomainType = "pvh"
	DomainUndefined DomainType = "unspecified"
)

// VDIType is the closed set of VDI content types.
type VDIType string

const (
	VDIUser        VDIType = "user"
	VDISystem      VDIType = "system"
	VDISuspend     VDIType = "suspend"
	VDICrashdump   VDIType = "crashdump"
	VDIHAStatefile VDIType = "ha_statefile"
	VDIRedoLog     VDIType = "redo_log"
	VDIMetadata    VDIType = "metadata"
	VDIRRD         VDIType = "rrd"
	VDICBTMetadata VDIType = "cbt_metadata"
	VDIPVSCache    VDIType = "pvs_cache"
	VDIEphemeral   VDIType = "ephemeral"
)

// VBDMode and VBDType are the closed sets governing a VBD's access.
type VBDMode string

const (
	VBDModeRO VBDMode = "RO"
	VBDModeRW VBDMode = "RW"
)

type VBDType string

const (
	VBDTypeDisk   VBDType = "Disk"
	VBDTypeCD     VBDType = "CD"
	VBDTypeFloppy VBDType = "Floppy"
)

// OnBoot is the closed set for a VDI's on_boot behaviour.
type OnBoot string

const (
	OnBootPersist OnBoot = "persist"
	OnBootReset   OnBoot = "reset"
)
