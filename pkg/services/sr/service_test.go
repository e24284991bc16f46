package sr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services"
	"github.com/xapi-core/xapi-core/pkg/storage"
	"github.com/xapi-core/xapi-core/pkg/taskmgr"
)

type fakeSMAPI struct {
	result storage.ScanResult
}

func (f *fakeSMAPI) Scan(ctx context.Context, sr *model.SR, deviceConfig map[string]string) (storage.ScanResult, error) {
	return f.result, nil
}

func newTestService(t *testing.T, plugin storage.SMAPI) (*Service, *db.Store) {
	log, err := logger.New(false)
	require.NoError(t, err)
	store := db.New(events.NewBus(), nil)
	deps := services.Deps{Store: store, Tasks: taskmgr.New(store, log), Log: log}
	return New(deps, storage.NewScanThrottle(4, log), plugin), store
}

func TestScanRequiresAttachedPBD(t *testing.T) {
	svc, store := newTestService(t, &fakeSMAPI{})
	row := db.Put(store, store.SRs, model.SR{Row: model.NewRow(model.ClassSR), OtherConfig: map[string]string{}})

	_, err := svc.Scan(context.Background(), "", row.Ref)
	assert.ErrorIs(t, err, model.NewApiError(model.ErrSRNoPBDs))
}

func TestScanMergesNewVDI(t *testing.T) {
	plugin := &fakeSMAPI{result: storage.ScanResult{VDIs: map[string]storage.ScannedVDI{
		"disk0": {Location: "disk0", VirtualSize: 1024, Type: model.VDIUser},
	}}}
	svc, store := newTestService(t, plugin)

	sr := db.Put(store, store.SRs, model.SR{Row: model.NewRow(model.ClassSR), OtherConfig: map[string]string{}})
	pbd := db.Put(store, store.PBDs, model.PBD{Row: model.NewRow(model.ClassPBD), SR: sr.Ref, CurrentlyAttached: true})
	sr.PBDs = []model.Ref{pbd.Ref}
	sr = db.Put(store, store.SRs, sr)

	_, err := svc.Scan(context.Background(), "", sr.Ref)
	require.NoError(t, err)

	updated, ok := store.SRs.Get(sr.Ref)
	require.True(t, ok)
	require.Len(t, updated.VDIs, 1)

	vdi, ok := store.VDIs.Get(updated.VDIs[0])
	require.True(t, ok)
	assert.Equal(t, "disk0", vdi.Location)
	assert.EqualValues(t, 1024, vdi.VirtualSize)
}

func TestDestroyIndestructibleAlwaysFails(t *testing.T) {
	svc, store := newTestService(t, &fakeSMAPI{})
	row := db.Put(store, store.SRs, model.SR{Row: model.NewRow(model.ClassSR), OtherConfig: map[string]string{"indestructible": "true"}})

	_, err := svc.Destroy(context.Background(), "", row.Ref)
	assert.ErrorIs(t, err, model.NewApiError(model.ErrSRIndestructible))
}

func TestDestroyRequiresNoAttachedPBD(t *testing.T) {
	svc, store := newTestService(t, &fakeSMAPI{})
	sr := db.Put(store, store.SRs, model.SR{Row: model.NewRow(model.ClassSR), OtherConfig: map[string]string{}})
	pbd := db.Put(store, store.PBDs, model.PBD{Row: model.NewRow(model.ClassPBD), SR: sr.Ref, CurrentlyAttached: true})
	sr.PBDs = []model.Ref{pbd.Ref}
	sr = db.Put(store, store.SRs, sr)

	_, err := svc.Destroy(context.Background(), "", sr.Ref)
	assert.ErrorIs(t, err, model.NewApiError(model.ErrSRHasPBD))
}
