// Package services implements the object lifecycle operations (spec
// §4.3): one sub-package per entity class (vm, vbd, vif, vdi, sr), each
// holding a Service struct that embeds Deps (store, task manager, logger)
// plus the hypervisor/storage adapters needed to actually perform an
// effect. This file holds the seven-step envelope every
// operation runs through, shared across classes so each handler only
// supplies steps 2 and 4 (the assertion inputs and the effect itself).
package services

import (
	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/allowedops"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/taskmgr"
	"go.uber.org/zap"
)

// Deps is the common wiring every per-class Service embeds: the store,
// task manager, and logger. Per-class services add whatever adapters
// their operations need (xenopsd.Adapter for VM, storage.ScanThrottle for
// SR) alongside an embedded Deps.
type Deps struct {
	Store   *db.Store
	Tasks   *taskmgr.Manager
	Log     *logger.Logger
}

// Envelope runs the seven-step operation sequence common to every class
// (spec §4.3): open a task, evaluate the allowed-operations verdict for
// each target, register the semantic lock, run effect, then for each
// target clear the lock and refresh allowed_operations, and complete the
// task. Each target's Unlock and Refresh run after effect whether or not
// it returned an error, since a partially-applied mutation can still
// change a row's verdict.
func (d *Deps) Envelope(name string, parent model.Ref, cancellable bool, targets []EnvelopeTarget, effect func(taskRef model.Ref) (result string, err error)) (model.Ref, error) {
	taskRef := d.Tasks.Create(name, parent, cancellable)

	for _, t := range targets {
		if verdict := allowedops.Evaluate(t.Context); !verdict.Allowed {
			d.Tasks.Fail(taskRef, verdict.Err)
			return taskRef, verdict.Err
		}
	}

	for _, t := range targets {
		t.Lock(taskRef, t.Context.Op)
	}

	result, err := effect(taskRef)

	for _, t := range targets {
		t.Unlock(taskRef)
		t.Refresh()
	}

	if err != nil {
		apiErr := toApiError(err)
		d.Tasks.Fail(taskRef, apiErr)
		d.Log.Warn("operation failed", zap.String("task", name), zap.Error(err))
		return taskRef, apiErr
	}

	d.Tasks.Complete(taskRef, result)
	return taskRef, nil
}

func toApiError(err error) *model.ApiError {
	if apiErr, ok := err.(*model.ApiError); ok {
		return apiErr
	}
	return model.NewApiError(model.ErrInternalError, err.Error())
}

// EnvelopeTarget is one row touched by an operation: the allowed-ops
// Context to evaluate against it, and the Lock/Unlock/Refresh closures
// that read-modify-write that row's CurrentOperations/AllowedOperations
// fields. Per-class services build these from their own row types since
// Envelope itself has no row type to be generic over.
type EnvelopeTarget struct {
	Context *allowedops.Context
	Lock    func(taskRef model.Ref, op model.OpKind)
	Unlock  func(taskRef model.Ref)
	Refresh func()
}
