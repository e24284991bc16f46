// Package vbd implements the VBD class's plug/unplug operations. Its
// allowed-operations chain is only blocked-operations plus concurrency
// (see pkg/allowedops/vbd.go). Plug additionally checks here, rather than
// in the engine, that the owning VM is running, since that depends on a
// sibling row the chain is deliberately kept blind to. Whether the VDI is
// already exclusively locked is not checked.
package vbd

import (
	"context"
	"fmt"

	"github.com/xapi-core/xapi-core/pkg/allowedops"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services"
	"github.com/xapi-core/xapi-core/pkg/services/library"
)

type Service struct {
	services.Deps
}

var _ library.VBD = (*Service)(nil)

func New(deps services.Deps) *Service {
	return &Service{Deps: deps}
}

func (s *Service) target(ref model.Ref, op model.OpKind) (services.EnvelopeTarget, model.VBD, error) {
	row, ok := s.Store.VBDs.Get(ref)
	if !ok {
		return services.EnvelopeTarget{}, model.VBD{}, fmt.Errorf("no such VBD %s", ref)
	}
	ctx := &allowedops.Context{
		Class:             model.ClassVBD,
		Op:                op,
		BlockedOperations: row.BlockedOperations,
		CurrentOperations: row.CurrentOperations,
	}
	return services.EnvelopeTarget{
		Context: ctx,
		Lock: func(taskRef model.Ref, op model.OpKind) {
			r, ok := s.Store.VBDs.Get(ref)
			if !ok {
				return
			}
			r.CurrentOperations[taskRef] = op
			db.Put(s.Store, s.Store.VBDs, r)
		},
		Unlock: func(taskRef model.Ref) {
			r, ok := s.Store.VBDs.Get(ref)
			if !ok {
				return
			}
			delete(r.CurrentOperations, taskRef)
			db.Put(s.Store, s.Store.VBDs, r)
		},
		Refresh: func() {},
	}, row, nil
}

func (s *Service) Plug(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	target, row, err := s.target(ref, model.OpPlug)
	if err != nil {
		return library.Result{}, err
	}
	if vm, ok := s.Store.VMs.Get(row.VM); !ok || vm.PowerState != model.PowerRunning {
		return library.Result{}, model.NewApiError(model.ErrBadPowerState, string(model.PowerRunning), string(vm.PowerState))
	}
	taskRef, err := s.Envelope(string(model.OpPlug), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		row.CurrentlyAttached = true
		db.Put(s.Store, s.Store.VBDs, row)
		return "", nil
	})
	return library.Result{Task: taskRef}, err
}

func (s *Service) Unplug(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	target, row, err := s.target(ref, model.OpUnplug)
	if err != nil {
		return library.Result{}, err
	}
	taskRef, err := s.Envelope(string(model.OpUnplug), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		row.CurrentlyAttached = false
		db.Put(s.Store, s.Store.VBDs, row)
		return "", nil
	})
	return library.Result{Task: taskRef}, err
}
