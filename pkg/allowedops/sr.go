package allowedops

import "github.com/xapi-core/xapi-core/pkg/model"

// SRChain applies blocked operations (1), concurrency (3), the indestructible
// veto (17, B4), and the local-cache-SR restriction.
func SRChain() []Predicate {
	return []Predicate{
		stepBlockedOperations,
		stepConcurrency(nil),
		srStepIndestructible,
		srStepLocalCacheSR,
		srStepPBDState,
	}
}

// srStepIndestructible is §4.2 step 17 (B4): other_config:indestructible
// vetoes destroy and forget unconditionally, regardless of anything else.
func srStepIndestructible(ctx *Context) *model.ApiError {
	if ctx.SRIndestructible && (ctx.Op == model.OpDestroy || ctx.Op == model.OpForget) {
		return model.NewApiError(model.ErrSRIndestructible, string(ctx.Op))
	}
	return nil
}

// srStepLocalCacheSR rejects destroy/forget on an SR currently serving as
// a host's local cache.
func srStepLocalCacheSR(ctx *Context) *model.ApiError {
	if ctx.SRIsAnyHostsLocalCacheSR && (ctx.Op == model.OpDestroy || ctx.Op == model.OpForget) {
		return model.NewApiError(model.ErrSRIsLocalCacheSR, string(ctx.Op))
	}
	return nil
}

// srStepPBDState requires at least one attached PBD for plug-dependent
// operations like scan, and requires none for destroy.
func srStepPBDState(ctx *Context) *model.ApiError {
	switch ctx.Op {
	case model.OpScan:
		if !ctx.SRHasAttachedPBD {
			return model.NewApiError(model.ErrSRNoPBDs, string(ctx.Op))
		}
	case model.OpDestroy:
		if ctx.SRHasAttachedPBD {
			return model.NewApiError(model.ErrSRHasPBD, string(ctx.Op))
		}
		if ctx.SRHasManagedNonRRDVDIs {
			return model.NewApiError(model.ErrSRNotEmpty, string(ctx.Op))
		}
	}
	return nil
}
