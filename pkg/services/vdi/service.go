// Package vdi implements the VDI class's lifecycle operations, including
// the data_destroy algorithm's VBD-teardown wait (spec §4.3).
package vdi

import (
	"context"
	"fmt"
	"time"

	"github.com/xapi-core/xapi-core/pkg/allowedops"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services"
	"github.com/xapi-core/xapi-core/pkg/services/library"
	"github.com/xapi-core/xapi-core/pkg/storage"
)

// DataDestroyTimeout bounds how long data_destroy waits for every VBD
// attached to a VDI to be destroyed before giving up (spec §4.3).
const DataDestroyTimeout = 2 * time.Minute

type PoolState interface {
	HAEnabled() bool
	RollingUpgrade() bool
}

type Service struct {
	services.Deps
	Pool   PoolState
	Plugin storage.SMAPI
}

var _ library.VDI = (*Service)(nil)

func New(deps services.Deps, pool PoolState, plugin storage.SMAPI) *Service {
	return &Service{Deps: deps, Pool: pool, Plugin: plugin}
}

func (s *Service) vdiContext(v model.VDI, op model.OpKind) *allowedops.Context {
	anyAttached := false
	for _, vbdRef := range v.VBDs {
		if vbd, ok := s.Store.VBDs.Get(vbdRef); ok && (vbd.CurrentlyAttached || vbd.Reserved) {
			anyAttached = true
			break
		}
	}
	return &allowedops.Context{
		Class:                    model.ClassVDI,
		Op:                       op,
		BlockedOperations:        v.BlockedOperations,
		CurrentOperations:        v.CurrentOperations,
		VDIType:                  v.Type,
		OnBootReset:              v.OnBoot == model.OnBootReset,
		AnyVBDAttachedOrReserved: anyAttached,
		IsCBTMetadata:            v.Type == model.VDICBTMetadata,
		RollingUpgrade:           s.Pool.RollingUpgrade(),
		HAEnabled:                s.Pool.HAEnabled(),
	}
}

func (s *Service) target(ref model.Ref, op model.OpKind) (services.EnvelopeTarget, model.VDI, error) {
	row, ok := s.Store.VDIs.Get(ref)
	if !ok {
		return services.EnvelopeTarget{}, model.VDI{}, fmt.Errorf("no such VDI %s", ref)
	}
	return services.EnvelopeTarget{
		Context: s.vdiContext(row, op),
		Lock: func(taskRef model.Ref, op model.OpKind) {
			r, ok := s.Store.VDIs.Get(ref)
			if !ok {
				return
			}
			r.CurrentOperations[taskRef] = op
			db.Put(s.Store, s.Store.VDIs, r)
		},
		Unlock: func(taskRef model.Ref) {
			r, ok := s.Store.VDIs.Get(ref)
			if !ok {
				return
			}
			delete(r.CurrentOperations, taskRef)
			db.Put(s.Store, s.Store.VDIs, r)
		},
		Refresh: func() { s.refreshAllowedOperations(ref) },
	}, row, nil
}

func (s *Service) refreshAllowedOperations(ref model.Ref) {
	row, ok := s.Store.VDIs.Get(ref)
	if !ok {
		return
	}
	var allowed []model.OpKind
	for _, op := range []model.OpKind{model.OpDestroy, model.OpForget, model.OpResize, model.OpResizeOnline, model.OpSnapshot, model.OpDataDestroy} {
		if allowedops.Evaluate(s.vdiContext(row, op)).Allowed {
			allowed = append(allowed, op)
		}
	}
	row.AllowedOperations = allowed
	db.Put(s.Store, s.Store.VDIs, row)
}

func (s *Service) Destroy(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	target, _, err := s.target(ref, model.OpDestroy)
	if err != nil {
		return library.Result{}, err
	}
	taskRef, err := s.Envelope(string(model.OpDestroy), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		db.Delete(s.Store, s.Store.VDIs, ref)
		return "", nil
	})
	return library.Result{Task: taskRef}, err
}

func (s *Service) Resize(ctx context.Context, parent, ref model.Ref, newSize int64) (library.Result, error) {
	target, row, err := s.target(ref, model.OpResize)
	if err != nil {
		return library.Result{}, err
	}
	taskRef, err := s.Envelope(string(model.OpResize), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		row.VirtualSize = newSize
		db.Put(s.Store, s.Store.VDIs, row)
		return "", nil
	})
	return library.Result{Task: taskRef}, err
}

// DataDestroy implements §4.3's algorithm: tentatively mark the VDI
// cbt_metadata so no new VBD can attach to it, then subscribe to the VDI's
// own row events and wait for every currently-linked VBD to be destroyed.
// On timeout or error it restores the VDI's original type; on success the
// tentative type change is committed.
func (s *Service) DataDestroy(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	target, row, err := s.target(ref, model.OpDataDestroy)
	if err != nil {
		return library.Result{}, err
	}

	taskRef, err := s.Envelope(string(model.OpDataDestroy), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		row.BeginTentativeCBTMetadata()
		db.Put(s.Store, s.Store.VDIs, row)

		waitCtx, cancel := context.WithTimeout(ctx, DataDestroyTimeout)
		defer cancel()

		if err := s.waitForNoVBDs(waitCtx, ref); err != nil {
			row.AbortTentative()
			db.Put(s.Store, s.Store.VDIs, row)
			if waitCtx.Err() != nil {
				// The deadline tripped with a VBD still attached: the VDI
				// is still in use, not an internal failure (spec §4.3).
				return "", model.NewApiError(model.ErrVDIInUse, string(ref))
			}
			return "", err
		}

		if err := s.Plugin.DataDestroy(ctx, &row); err != nil {
			row.AbortTentative()
			db.Put(s.Store, s.Store.VDIs, row)
			return "", err
		}

		row.CommitTentative()
		db.Put(s.Store, s.Store.VDIs, row)
		return "", nil
	})
	return library.Result{Task: taskRef}, err
}

func (s *Service) waitForNoVBDs(ctx context.Context, ref model.Ref) error {
	var from events.Token
	for {
		row, ok := s.Store.VDIs.Get(ref)
		if !ok {
			return fmt.Errorf("VDI %s vanished during data_destroy", ref)
		}
		if len(row.VBDs) == 0 {
			return nil
		}

		_, next := s.Store.Bus.Wait(ctx, from, []string{string(model.ClassVDI) + "/" + string(ref)})
		if ctx.Err() != nil {
			return fmt.Errorf("timed out waiting for VBDs to detach from VDI %s: %w", ref, ctx.Err())
		}
		from = next
	}
}
