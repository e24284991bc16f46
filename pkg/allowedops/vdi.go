package allowedops

import "github.com/xapi-core/xapi-core/pkg/model"

// VDIChain applies the subset of the 17-step chain relevant to VDI: blocked
// operations (1), concurrency (3), the attachment precondition (10),
// on_boot=reset restrictions (11), capability gating (9), HA protection
// (15), and rolling-upgrade gating (16).
func VDIChain() []Predicate {
	return []Predicate{
		stepBlockedOperations,
		stepConcurrency(nil),
		vdiStepAttachment,
		vdiStepOnBootReset,
		vdiStepCapability,
		vdiStepHA,
		stepRollingUpgrade(rpuAllowedVDI),
	}
}

// vdiStepAttachment is §4.2 step 10 (B1): most operations on a VDI with a
// currently-attached or reserved VBD are rejected, except the narrow
// exception table of operations safe to run live.
func vdiStepAttachment(ctx *Context) *model.ApiError {
	if !ctx.AnyVBDAttachedOrReserved {
		return nil
	}
	if model.PermitsLiveOnAttachedVDI(ctx.Op) {
		return nil
	}
	return model.NewApiError(model.ErrVDIInUse, string(ctx.Op))
}

// vdiStepOnBootReset is §4.2 step 11: a handful of ops don't make sense on
// a disk that reverts to its parent on every boot.
func vdiStepOnBootReset(ctx *Context) *model.ApiError {
	if ctx.OnBootReset && resetOnBootForbidden[ctx.Op] {
		return model.NewApiError(model.ErrOperationBlocked, string(ctx.Op), "on_boot_reset")
	}
	return nil
}

// vdiStepCapability is §4.2 step 9: an operation that needs an SM
// capability the backing SR doesn't advertise is rejected up front, rather
// than failing later inside the storage adapter.
func vdiStepCapability(ctx *Context) *model.ApiError {
	if ctx.RequiredCapability == "" {
		return nil
	}
	if ctx.SRCapabilities[ctx.RequiredCapability] {
		return nil
	}
	return model.NewApiError(model.ErrSROperationNotSupported, string(ctx.Op), ctx.RequiredCapability)
}

// vdiStepHA is §4.2 step 15: destroy/forget/resize/resize_online on an
// ha_statefile or redo_log VDI are forbidden while HA is enabled, since HA
// depends on those VDIs keeping a stable identity and size.
func vdiStepHA(ctx *Context) *model.ApiError {
	if ctx.HAEnabled && haForbiddenVDIOps[ctx.Op] && haForbiddenVDITypes[ctx.VDIType] {
		return model.NewApiError(model.ErrHAIsEnabled, string(ctx.Op))
	}
	return nil
}
