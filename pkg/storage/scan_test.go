package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
)

type fakeSMAPI struct {
	calls  int32
	result ScanResult
	delay  time.Duration
}

func (f *fakeSMAPI) Scan(ctx context.Context, sr *model.SR, deviceConfig map[string]string) (ScanResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.result, nil
}

func newTestStore() *db.Store {
	return db.New(events.NewBus(), nil)
}

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(false)
	require.NoError(t, err)
	return log
}

func TestScanCreatesNewVDIs(t *testing.T) {
	store := newTestStore()
	sr := model.SR{Row: model.NewRow(model.ClassSR)}
	db.Put(store, store.SRs, sr)

	plugin := &fakeSMAPI{result: ScanResult{VDIs: map[string]ScannedVDI{
		"loc-1": {Location: "loc-1", VirtualSize: 1024, Type: model.VDIUser},
	}}}

	throttle := NewScanThrottle(4, newTestLogger(t))
	require.NoError(t, throttle.Scan(context.Background(), store, plugin, &sr, nil))

	got, ok := store.SRs.Get(sr.Ref)
	require.True(t, ok)
	assert.Len(t, got.VDIs, 1)
}

func TestScanDeletesVanishedVDIButKeepsMetadataVDI(t *testing.T) {
	store := newTestStore()
	sr := model.SR{Row: model.NewRow(model.ClassSR)}

	gone := model.VDI{Row: model.NewRow(model.ClassVDI), SR: sr.Ref, Location: "gone", Type: model.VDIUser}
	meta := model.VDI{Row: model.NewRow(model.ClassVDI), SR: sr.Ref, Location: "meta", Type: model.VDIMetadata}
	db.Put(store, store.VDIs, gone)
	db.Put(store, store.VDIs, meta)
	sr.VDIs = []model.Ref{gone.Ref, meta.Ref}
	db.Put(store, store.SRs, sr)

	plugin := &fakeSMAPI{result: ScanResult{VDIs: map[string]ScannedVDI{}}}
	throttle := NewScanThrottle(4, newTestLogger(t))
	require.NoError(t, throttle.Scan(context.Background(), store, plugin, &sr, nil))

	_, ok := store.VDIs.Get(gone.Ref)
	assert.False(t, ok, "vanished VDI should be forgotten")

	_, ok = store.VDIs.Get(meta.Ref)
	assert.True(t, ok, "metadata VDI must survive a scan that doesn't see it")
}

func TestScanCollapsesConcurrentCallsPerSR(t *testing.T) {
	store := newTestStore()
	sr := model.SR{Row: model.NewRow(model.ClassSR)}
	db.Put(store, store.SRs, sr)

	plugin := &fakeSMAPI{result: ScanResult{VDIs: map[string]ScannedVDI{}}, delay: 30 * time.Millisecond}
	throttle := NewScanThrottle(4, newTestLogger(t))

	done := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			done <- throttle.Scan(context.Background(), store, plugin, &sr, nil)
		}()
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, <-done)
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&plugin.calls), int32(2), "singleflight should collapse concurrent scans of the same SR")
}

func TestRefreshStats(t *testing.T) {
	store := newTestStore()
	sr := model.SR{Row: model.NewRow(model.ClassSR)}
	vdi := model.VDI{Row: model.NewRow(model.ClassVDI), SR: sr.Ref, VirtualSize: 500, PhysicalUtilisation: 200}
	db.Put(store, store.VDIs, vdi)
	sr.VDIs = []model.Ref{vdi.Ref}
	db.Put(store, store.SRs, sr)

	RefreshStats(store, sr.Ref)

	got, _ := store.SRs.Get(sr.Ref)
	assert.Equal(t, int64(500), got.VirtualAllocation)
	assert.Equal(t, int64(200), got.PhysicalUtilisation)
}

func TestAttachForeignPoolRequiresMetadataVDI(t *testing.T) {
	store := newTestStore()
	sr := model.SR{Row: model.NewRow(model.ClassSR)}
	db.Put(store, store.SRs, sr)

	_, err := AttachForeignPool(store, &sr)
	assert.ErrorIs(t, err, ErrNoMetadataVDI)

	pool := model.NewRef()
	vdi := CreateMetadataVDI(store, &sr, pool)
	sr2, _ := store.SRs.Get(sr.Ref)
	got, err := AttachForeignPool(store, &sr2)
	require.NoError(t, err)
	assert.Equal(t, pool, got)
	assert.Equal(t, model.VDIMetadata, vdi.Type)
}
