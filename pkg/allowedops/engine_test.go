package allowedops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xapi-core/xapi-core/pkg/model"
)

func TestVDIDataDestroyHasNoChainVeto(t *testing.T) {
	ctx := &Context{
		Class: model.ClassVDI,
		Op:    model.OpDataDestroy,
	}
	v := Evaluate(ctx)
	assert.True(t, v.Allowed, "data_destroy has no direct chain veto")
}

func TestVDIAttachedBlocksDestroyButAllowsSnapshot(t *testing.T) {
	ctx := &Context{
		Class:                    model.ClassVDI,
		Op:                       model.OpDestroy,
		AnyVBDAttachedOrReserved: true,
	}
	v := Evaluate(ctx)
	assert.False(t, v.Allowed)
	assert.Equal(t, model.ErrVDIInUse, v.Err.Code)

	ctx.Op = model.OpSnapshot
	v = Evaluate(ctx)
	assert.True(t, v.Allowed)
}

func TestVMSuspendWithPCIAttachedBlocked(t *testing.T) {
	ctx := &Context{
		Class:          model.ClassVM,
		Op:             model.OpSuspend,
		PowerState:     model.PowerRunning,
		IsMobile:       true,
		HasPCIAttached: true,
	}
	v := Evaluate(ctx)
	assert.False(t, v.Allowed)
	assert.Equal(t, model.ErrVMHasPCIAttached, v.Err.Code)
}

func TestVMNestedVirtBlocksChangingDynamicRangeButPermitsStart(t *testing.T) {
	// changing_dynamic_range has no power-state precondition in this engine
	// and no direct nested-virt predicate either: nested-virt only affects
	// mobility (IsMobile), which changing_dynamic_range never checks.
	ctx := &Context{
		Class:      model.ClassVM,
		Op:         model.OpChangingDynRange,
		PowerState: model.PowerRunning,
		IsMobile:   false,
	}
	v := Evaluate(ctx)
	assert.True(t, v.Allowed)

	ctx2 := &Context{
		Class:      model.ClassVM,
		Op:         model.OpStart,
		PowerState: model.PowerHalted,
	}
	v2 := Evaluate(ctx2)
	assert.True(t, v2.Allowed)
}

func TestSRDestroyAlwaysFailsWhenIndestructible(t *testing.T) {
	ctx := &Context{
		Class:            model.ClassSR,
		Op:               model.OpDestroy,
		SRIndestructible: true,
	}
	v := Evaluate(ctx)
	assert.False(t, v.Allowed)
	assert.Equal(t, model.ErrSRIndestructible, v.Err.Code)
}

func TestRollingUpgradeBlocksNonWhitelistedVMOp(t *testing.T) {
	ctx := &Context{
		Class:          model.ClassVM,
		Op:             model.OpMakeIntoTemplate,
		PowerState:     model.PowerHalted,
		RollingUpgrade: true,
	}
	v := Evaluate(ctx)
	assert.False(t, v.Allowed)
	assert.Equal(t, model.ErrNotSupportedDuringUpgrade, v.Err.Code)

	ctx.Op = model.OpStart
	v = Evaluate(ctx)
	assert.True(t, v.Allowed)
}

func TestConcurrentDuplicateOperationRejected(t *testing.T) {
	inFlight := model.NewRef()
	ctx := &Context{
		Class:      model.ClassVM,
		Op:         model.OpStart,
		PowerState: model.PowerHalted,
		CurrentOperations: map[model.Ref]model.OpKind{
			inFlight: model.OpStart,
		},
	}
	v := Evaluate(ctx)
	assert.False(t, v.Allowed)
	assert.Equal(t, model.ErrOtherOperationInProgress, v.Err.Code)
	assert.Equal(t, []string{string(inFlight), string(model.OpStart)}, v.Err.Args)
}

func TestSnapshotWithQuiesceConcurrentWithSnapshotAllowed(t *testing.T) {
	inFlight := model.NewRef()
	ctx := &Context{
		Class:      model.ClassVM,
		Op:         model.OpSnapshot,
		PowerState: model.PowerHalted,
		CurrentOperations: map[model.Ref]model.OpKind{
			inFlight: model.OpSnapshotQuiesce,
		},
	}
	v := Evaluate(ctx)
	assert.True(t, v.Allowed)
}

func TestControlDomainRejectsNonWhitelistedOp(t *testing.T) {
	ctx := &Context{
		Class:           model.ClassVM,
		Op:              model.OpHardShutdown,
		PowerState:      model.PowerRunning,
		IsControlDomain: true,
	}
	v := Evaluate(ctx)
	assert.False(t, v.Allowed)
	assert.Equal(t, model.ErrOperationBlocked, v.Err.Code)
}

func TestBlockedOperationsVetoesEverythingElse(t *testing.T) {
	ctx := &Context{
		Class:      model.ClassVM,
		Op:         model.OpStart,
		PowerState: model.PowerHalted,
		BlockedOperations: map[model.OpKind]string{
			model.OpStart: "maintenance mode",
		},
	}
	v := Evaluate(ctx)
	assert.False(t, v.Allowed)
	assert.Equal(t, model.ErrOperationBlocked, v.Err.Code)
}
