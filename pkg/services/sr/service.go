// Package sr implements the SR class's lifecycle operations, delegating
// the scan effect itself to pkg/storage.ScanThrottle (spec §4.3, §4.6).
package sr

import (
	"context"
	"fmt"

	"github.com/xapi-core/xapi-core/pkg/allowedops"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services"
	"github.com/xapi-core/xapi-core/pkg/services/library"
	"github.com/xapi-core/xapi-core/pkg/storage"
)

type Service struct {
	services.Deps
	Throttle *storage.ScanThrottle
	Plugin   storage.SMAPI
}

var _ library.SR = (*Service)(nil)

func New(deps services.Deps, throttle *storage.ScanThrottle, plugin storage.SMAPI) *Service {
	return &Service{Deps: deps, Throttle: throttle, Plugin: plugin}
}

func (s *Service) srContext(row model.SR, op model.OpKind) *allowedops.Context {
	anyAttached := false
	for _, pbdRef := range row.PBDs {
		if pbd, ok := s.Store.PBDs.Get(pbdRef); ok && pbd.CurrentlyAttached {
			anyAttached = true
			break
		}
	}
	managedNonRRD := false
	for _, vdiRef := range row.VDIs {
		if vdi, ok := s.Store.VDIs.Get(vdiRef); ok && vdi.Managed && vdi.Type != model.VDIRRD {
			managedNonRRD = true
			break
		}
	}
	return &allowedops.Context{
		Class:                    model.ClassSR,
		Op:                       op,
		BlockedOperations:        row.BlockedOperations,
		CurrentOperations:        row.CurrentOperations,
		SRCapabilities:           row.Capabilities,
		SRHasAttachedPBD:         anyAttached,
		SRHasManagedNonRRDVDIs:   managedNonRRD,
		SRIndestructible:         row.Indestructible(),
		SRIsAnyHostsLocalCacheSR: row.OtherConfig["is_local_cache_sr"] == "true",
	}
}

func (s *Service) target(ref model.Ref, op model.OpKind) (services.EnvelopeTarget, model.SR, error) {
	row, ok := s.Store.SRs.Get(ref)
	if !ok {
		return services.EnvelopeTarget{}, model.SR{}, fmt.Errorf("no such SR %s", ref)
	}
	return services.EnvelopeTarget{
		Context: s.srContext(row, op),
		Lock: func(taskRef model.Ref, op model.OpKind) {
			r, ok := s.Store.SRs.Get(ref)
			if !ok {
				return
			}
			r.CurrentOperations[taskRef] = op
			db.Put(s.Store, s.Store.SRs, r)
		},
		Unlock: func(taskRef model.Ref) {
			r, ok := s.Store.SRs.Get(ref)
			if !ok {
				return
			}
			delete(r.CurrentOperations, taskRef)
			db.Put(s.Store, s.Store.SRs, r)
		},
		Refresh: func() { s.refreshAllowedOperations(ref) },
	}, row, nil
}

func (s *Service) refreshAllowedOperations(ref model.Ref) {
	row, ok := s.Store.SRs.Get(ref)
	if !ok {
		return
	}
	var allowed []model.OpKind
	for _, op := range []model.OpKind{model.OpScan, model.OpDestroy} {
		if allowedops.Evaluate(s.srContext(row, op)).Allowed {
			allowed = append(allowed, op)
		}
	}
	row.AllowedOperations = allowed
	db.Put(s.Store, s.Store.SRs, row)
}

// Scan runs the throttled three-way-merge scan (spec §4.3's distinguished
// SR.scan operation) inside the usual seven-step envelope.
func (s *Service) Scan(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	target, row, err := s.target(ref, model.OpScan)
	if err != nil {
		return library.Result{}, err
	}
	taskRef, err := s.Envelope(string(model.OpScan), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		return "", s.Throttle.Scan(ctx, s.Store, s.Plugin, &row, row.SMConfig)
	})
	return library.Result{Task: taskRef}, err
}

func (s *Service) Destroy(ctx context.Context, parent, ref model.Ref) (library.Result, error) {
	target, _, err := s.target(ref, model.OpDestroy)
	if err != nil {
		return library.Result{}, err
	}
	taskRef, err := s.Envelope(string(model.OpDestroy), parent, true, []services.EnvelopeTarget{target}, func(model.Ref) (string, error) {
		db.Delete(s.Store, s.Store.SRs, ref)
		return "", nil
	})
	return library.Result{Task: taskRef}, err
}
