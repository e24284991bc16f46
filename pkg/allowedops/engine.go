// Package allowedops implements the allowed-operations engine (spec §4.2):
// a pure, I/O-free, ordered predicate chain per entity class. The first
// failing predicate wins, because error codes are user-visible and
// expected in that order. Outputs populate a row's AllowedOperations cache
// via the refresh pass (pkg/services) but the chain itself is always
// re-evaluated before a mutation — the cache is never trusted server-side.
package allowedops

import "github.com/xapi-core/xapi-core/pkg/model"

// Predicate is one link in the ordered chain. It returns nil to let the
// next predicate run, or a non-nil ApiError to fail the whole chain.
type Predicate func(ctx *Context) *model.ApiError

// Context carries every fact a predicate might need, gathered by the
// caller (pkg/services) from a read-only view of the database. It is a
// plain value with no methods that touch the database, keeping the engine
// itself I/O-free and safe to call from within a read transaction.
type Context struct {
	Class model.Class
	Op    model.OpKind

	BlockedOperations map[model.OpKind]string
	CurrentOperations map[model.Ref]model.OpKind

	// VM-shaped fields (ignored for non-VM classes).
	PowerState      model.PowerState
	IsATemplate     bool
	IsASnapshot     bool
	IsControlDomain bool
	IsMobile        bool
	HasPCIAttached  bool
	NonSRIOVPCI     bool
	VGPUBlocksMigrate bool
	HasVUSB         bool
	DataCantSuspend bool
	MissingFeature  string // set by the caller when a required feature is absent
	VTPMCount       int
	ApplianceMember bool

	// VDI-shaped fields.
	VDIType           model.VDIType
	OnBootReset       bool
	OnBootResetCached bool
	AnyVBDAttachedOrReserved bool
	IsCBTMetadata     bool

	// SR-shaped fields.
	SRCapabilities     map[string]bool
	RequiredCapability string // capability op needs, empty if none
	SRHasAttachedPBD   bool
	SRHasManagedNonRRDVDIs bool
	SRIndestructible   bool
	SRIsAnyHostsLocalCacheSR bool

	RollingUpgrade bool
	HAEnabled      bool
}

// Verdict is the engine's answer for one (class, record, op) triple.
type Verdict struct {
	Allowed bool
	Err     *model.ApiError
}

func ok() Verdict { return Verdict{Allowed: true} }

func fail(err *model.ApiError) Verdict { return Verdict{Allowed: false, Err: err} }

// run executes chain in order, short-circuiting on the first failure.
func run(ctx *Context, chain []Predicate) Verdict {
	for _, p := range chain {
		if err := p(ctx); err != nil {
			return fail(err)
		}
	}
	return ok()
}

// --- shared predicates (apply to every class) ---

// stepBlockedOperations is §4.2 step 1.
func stepBlockedOperations(ctx *Context) *model.ApiError {
	if reason, blocked := ctx.BlockedOperations[ctx.Op]; blocked {
		return model.NewApiError(model.ErrOperationBlocked, string(ctx.Op), reason)
	}
	return nil
}

// stepConcurrency is §4.2 step 3: most ops are mutually exclusive with any
// other in-flight op; a small exceptions table allows specific pairs.
func stepConcurrency(exceptions map[model.OpKind]map[model.OpKind]bool) Predicate {
	return func(ctx *Context) *model.ApiError {
		for ref, inFlight := range ctx.CurrentOperations {
			if pairAllowed(exceptions, inFlight, ctx.Op) {
				continue
			}
			return model.NewApiError(model.ErrOtherOperationInProgress, string(ref), string(inFlight))
		}
		return nil
	}
}

func pairAllowed(exceptions map[model.OpKind]map[model.OpKind]bool, inFlight, requested model.OpKind) bool {
	if m, ok := exceptions[inFlight]; ok && m[requested] {
		return true
	}
	return false
}

// stepRollingUpgrade is §4.2 step 16 (B5): when RPU is in progress, only
// the allowlisted ops pass, regardless of anything else in the chain.
func stepRollingUpgrade(allowlist map[model.OpKind]bool) Predicate {
	return func(ctx *Context) *model.ApiError {
		if !ctx.RollingUpgrade {
			return nil
		}
		if allowlist[ctx.Op] {
			return nil
		}
		return model.NewApiError(model.ErrNotSupportedDuringUpgrade, string(ctx.Op))
	}
}

// Evaluate picks the chain for ctx.Class and runs it. Callers (pkg/services)
// build Context from the live row plus whatever siblings the predicates
// need (attached VBDs, SR capabilities, pool HA/RPU state) and call this
// once per requested operation — both to answer allowed_operations queries
// and to gate the mutation itself.
func Evaluate(ctx *Context) Verdict {
	switch ctx.Class {
	case model.ClassVM:
		return run(ctx, VMChain())
	case model.ClassVDI:
		return run(ctx, VDIChain())
	case model.ClassSR:
		return run(ctx, SRChain())
	case model.ClassVBD:
		return run(ctx, VBDChain())
	case model.ClassVIF:
		return run(ctx, VIFChain())
	default:
		return ok()
	}
}
