package allowedops

import "github.com/xapi-core/xapi-core/pkg/model"

// vmPowerStatePreconditions lists, for each VM operation, the power states
// it is valid from (§4.2 step 2).
var vmPowerStatePreconditions = map[model.OpKind]map[model.PowerState]bool{
	model.OpStart:            {model.PowerHalted: true},
	model.OpCleanShutdown:    {model.PowerRunning: true, model.PowerPaused: true},
	model.OpHardShutdown:     {model.PowerRunning: true, model.PowerPaused: true, model.PowerSuspended: true},
	model.OpCleanReboot:      {model.PowerRunning: true},
	model.OpHardReboot:       {model.PowerRunning: true, model.PowerPaused: true},
	model.OpSuspend:          {model.PowerRunning: true},
	model.OpResume:           {model.PowerSuspended: true},
	model.OpPause:            {model.PowerRunning: true},
	model.OpUnpause:          {model.PowerPaused: true},
	model.OpCheckpoint:       {model.PowerRunning: true},
	model.OpSnapshot:         {model.PowerHalted: true, model.PowerRunning: true, model.PowerSuspended: true},
	model.OpSnapshotQuiesce:  {model.PowerRunning: true},
	model.OpClone:            {model.PowerHalted: true, model.PowerSuspended: true},
	model.OpCopy:             {model.PowerHalted: true, model.PowerSuspended: true, model.PowerRunning: true},
	model.OpPoolMigrate:      {model.PowerRunning: true},
	model.OpMigrateSend:      {model.PowerRunning: true, model.PowerSuspended: true, model.PowerHalted: true},
	model.OpProvision:        {model.PowerHalted: true},
	model.OpRevert:           {model.PowerHalted: true, model.PowerRunning: true, model.PowerSuspended: true},
	model.OpMakeIntoTemplate: {model.PowerHalted: true},
	model.OpDestroy:          {model.PowerHalted: true},
	model.OpCreateVTPM:       {model.PowerHalted: true},
}

// vmConcurrencyExceptions lists pairs (inFlight, requested) that are
// pairwise parallelisable (§4.2 step 3) even though most operations are
// mutually exclusive. Anything not listed here is exclusive: a second op
// of any kind fails with other_operation_in_progress while one is in
// flight, with one explicit exception baked into the chain logic itself
// (identical plug/unplug-style ops against different targets are fine
// because current_operations is scoped per-row, not global).
var vmConcurrencyExceptions = map[model.OpKind]map[model.OpKind]bool{
	model.OpSnapshotQuiesce: {model.OpSnapshot: true},
}

// vmTemplateWhitelist / vmSnapshotWhitelist are the operations allowed on
// templates and snapshots respectively (§4.2 step 4).
var vmTemplateWhitelist = map[model.OpKind]bool{
	model.OpClone: true, model.OpCopy: true, model.OpDestroy: true,
	model.OpProvision: true,
}

var vmSnapshotWhitelist = map[model.OpKind]bool{
	model.OpClone: true, model.OpCopy: true, model.OpDestroy: true,
	model.OpRevert: true,
}

// controlDomainWhitelist is the set of operations permitted on dom0 (§4.2
// step 7); everything else on a control-domain VM is rejected regardless
// of what the rest of the chain would otherwise say. Dom0 is never
// started, shut down, migrated, or destroyed through this engine — it is
// managed by the host's own lifecycle, not a client-visible VM operation.
var controlDomainWhitelist = map[model.OpKind]bool{
	model.OpSnapshot: true,
}

// featureRequirements maps a VM operation to the guest-metrics feature flag
// it requires when the VM is HVM and platform strict-mode is set (§4.2
// step 8).
var featureRequirements = map[model.OpKind]string{
	model.OpCleanShutdown: "feature-shutdown",
	model.OpCleanReboot:   "feature-reboot",
	model.OpSuspend:       "feature-suspend",
	model.OpCheckpoint:    "feature-suspend",
}

// rpuAllowedVM / rpuAllowedVDI are the whitelists applied when a rolling
// upgrade is in progress (§4.2 step 16), regardless of what the rest of
// the chain would otherwise allow (B5).
var rpuAllowedVM = map[model.OpKind]bool{
	model.OpStart: true, model.OpCleanShutdown: true, model.OpHardShutdown: true,
	model.OpCleanReboot: true, model.OpHardReboot: true, model.OpSuspend: true,
	model.OpResume: true, model.OpPause: true, model.OpUnpause: true,
	model.OpSnapshot: true,
}

var rpuAllowedVDI = map[model.OpKind]bool{
	model.OpAttach: true, model.OpDetach: true, model.OpResize: true,
	model.OpSnapshot: true, model.OpClone: true,
}

// resetOnBootForbidden are VDI ops forbidden while on_boot=reset (§4.2
// step 11).
var resetOnBootForbidden = map[model.OpKind]bool{
	model.OpSnapshot: true, model.OpSuspend: true, model.OpCheckpoint: true,
}

// haForbiddenVDIOps is the operation set step 15 restricts; haForbiddenVDITypes
// is the VDI type set it applies to. Both must match for the step to veto:
// only ha_statefile/redo_log VDIs are protected, not every VDI on an
// HA-enabled pool.
var haForbiddenVDIOps = map[model.OpKind]bool{
	model.OpDestroy: true, model.OpForget: true, model.OpResize: true, model.OpResizeOnline: true,
}

var haForbiddenVDITypes = map[model.VDIType]bool{
	model.VDIHAStatefile: true, model.VDIRedoLog: true,
}
