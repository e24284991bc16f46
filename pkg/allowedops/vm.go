package allowedops

import (
	"sort"
	"strings"

	"github.com/xapi-core/xapi-core/pkg/model"
)

// VMChain assembles the full 17-step chain for VM operations (§4.2). Most
// of the steps are VM-specific, so this is the one chain that implements
// the whole list; the other classes apply the subset that actually
// applies to them.
func VMChain() []Predicate {
	return []Predicate{
		stepBlockedOperations,
		vmStepPowerState,
		stepConcurrency(vmConcurrencyExceptions),
		vmStepTemplateSnapshot,
		vmStepControlDomain,
		vmStepMobility,
		vmStepFeatureAndSuspendability,
		vmStepPCI,
		vmStepVGPU,
		vmStepVUSB,
		vmStepVTPM,
		vmStepAppliance,
		stepRollingUpgrade(rpuAllowedVM),
	}
}

// vmStepPowerState is §4.2 step 2.
func vmStepPowerState(ctx *Context) *model.ApiError {
	allowed, known := vmPowerStatePreconditions[ctx.Op]
	if !known {
		return nil // op has no power-state precondition (e.g. changing_dynamic_range)
	}
	if !allowed[ctx.PowerState] {
		expected := make([]string, 0, len(allowed))
		for ps := range allowed {
			expected = append(expected, string(ps))
		}
		sort.Strings(expected)
		return model.NewApiError(model.ErrBadPowerState, strings.Join(expected, ","), string(ctx.PowerState))
	}
	return nil
}

// vmStepTemplateSnapshot is §4.2 step 4: templates and snapshots each have
// their own narrow whitelist, independent of power state.
func vmStepTemplateSnapshot(ctx *Context) *model.ApiError {
	if ctx.IsATemplate && !vmTemplateWhitelist[ctx.Op] {
		return model.NewApiError(model.ErrOperationBlocked, string(ctx.Op), "is_a_template")
	}
	if ctx.IsASnapshot && !vmSnapshotWhitelist[ctx.Op] {
		return model.NewApiError(model.ErrOperationBlocked, string(ctx.Op), "is_a_snapshot")
	}
	return nil
}

// vmStepControlDomain is §4.2 step 7.
func vmStepControlDomain(ctx *Context) *model.ApiError {
	if ctx.IsControlDomain && !controlDomainWhitelist[ctx.Op] {
		return model.NewApiError(model.ErrOperationBlocked, string(ctx.Op), "is_control_domain")
	}
	return nil
}

// vmStepMobility is §4.2 step 6: migration-family ops require mobility.
func vmStepMobility(ctx *Context) *model.ApiError {
	if !isMigrationOp(ctx.Op) {
		return nil
	}
	if !ctx.IsMobile {
		return model.NewApiError(model.ErrVMIsImmobile, string(ctx.Op))
	}
	return nil
}

func isMigrationOp(op model.OpKind) bool {
	switch op {
	case model.OpPoolMigrate, model.OpMigrateSend:
		return true
	}
	return false
}

// vmStepFeatureAndSuspendability is §4.2 step 8: guest feature flags gate
// the shutdown/reboot/suspend family, and data_cant_suspend_reason vetoes
// the whole suspend family outright.
func vmStepFeatureAndSuspendability(ctx *Context) *model.ApiError {
	if isSuspendFamily(ctx.Op) && ctx.DataCantSuspend {
		return model.NewApiError(model.ErrVMNonSuspendable, string(ctx.Op))
	}
	if feature, needed := featureRequirements[ctx.Op]; needed && ctx.MissingFeature == feature {
		return model.NewApiError(model.ErrVMLacksFeature, string(ctx.Op), feature)
	}
	return nil
}

func isSuspendFamily(op model.OpKind) bool {
	switch op {
	case model.OpSuspend, model.OpCheckpoint:
		return true
	}
	return false
}

// vmStepPCI is §4.2 step 12: a VM with a PCI device passed through cannot
// suspend, checkpoint, or migrate.
func vmStepPCI(ctx *Context) *model.ApiError {
	if !ctx.HasPCIAttached {
		return nil
	}
	switch ctx.Op {
	case model.OpSuspend, model.OpCheckpoint, model.OpPoolMigrate, model.OpMigrateSend:
		return model.NewApiError(model.ErrVMHasPCIAttached, string(ctx.Op))
	}
	return nil
}

// vmStepVGPU blocks migration when the attached vGPU's SM plugin does not
// advertise migration support.
func vmStepVGPU(ctx *Context) *model.ApiError {
	if ctx.VGPUBlocksMigrate && isMigrationOp(ctx.Op) {
		return model.NewApiError(model.ErrVMHasPCIAttached, string(ctx.Op), "vgpu")
	}
	return nil
}

// vmStepVUSB blocks migration while a USB device is passed through.
func vmStepVUSB(ctx *Context) *model.ApiError {
	if ctx.HasVUSB && isMigrationOp(ctx.Op) {
		return model.NewApiError(model.ErrVMHasPCIAttached, string(ctx.Op), "vusb")
	}
	return nil
}

// vmStepVTPM is §9's VTPM/BIOS-boot ambiguity (see DESIGN.md): create_vtpm
// is rejected outright once one vTPM already exists, independent of boot
// firmware — the adapter-side BIOS check happens later, at metadata build.
func vmStepVTPM(ctx *Context) *model.ApiError {
	if ctx.Op == model.OpCreateVTPM && ctx.VTPMCount > 0 {
		return model.NewApiError(model.ErrOperationBlocked, string(ctx.Op), "vtpm_already_exists")
	}
	return nil
}

// vmStepAppliance is §4.2 step 13: make_into_template is forbidden for a
// VM that is a member of an appliance, protection policy, or snapshot
// schedule.
func vmStepAppliance(ctx *Context) *model.ApiError {
	if ctx.Op == model.OpMakeIntoTemplate && ctx.ApplianceMember {
		return model.NewApiError(model.ErrOperationBlocked, string(ctx.Op), "appliance_member")
	}
	return nil
}
