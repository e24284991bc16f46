// Package storage is the storage-repository adapter (spec §4.6): scan
// throttling, stats aggregation, and DR metadata-VDI handling — the
// authoritative scan path that runs inside SR.scan (§4.3).
package storage

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
)

// SMAPI is the storage-manager-plugin client surface a ScanThrottle drives
// a call through. Real plugin invocation (xapi's SM scripts, or SMAPIv3's
// own RPC) is outside this package's scope; the adapter only owns the
// concurrency policy and the merge of the results into the database.
type SMAPI interface {
	Scan(ctx context.Context, sr *model.SR, deviceConfig map[string]string) (ScanResult, error)

	// DataDestroy asks the SM plugin to discard vdi's data while keeping
	// its metadata, the backing call behind VDI.data_destroy (spec §4.3).
	DataDestroy(ctx context.Context, vdi *model.VDI) error
}

// ScanResult is what an SM plugin scan reports: the live VDI set as it
// actually exists in the backing storage, keyed by location.
type ScanResult struct {
	VDIs map[string]ScannedVDI
}

type ScannedVDI struct {
	Location            string
	VirtualSize         int64
	PhysicalUtilisation int64
	Type                model.VDIType
}

// ScanThrottle bounds SR.scan in two ways: at most one scan in flight per
// SR (via singleflight, collapsing concurrent callers onto the same
// in-flight scan rather than queuing duplicates), and a shared
// rate.Limiter token bucket that paces how often scans start across the
// whole host. The limiter bounds the start rate, not the number of scans
// in flight: a token is not returned when a scan finishes.
type ScanThrottle struct {
	group   singleflight.Group
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewScanThrottle builds a limiter refilling maxConcurrent tokens per
// second with a burst of maxConcurrent: a burst of maxConcurrent requests
// all pass immediately and the (maxConcurrent+1)th waits for the next
// token to refill, whether or not any earlier scan has finished.
func NewScanThrottle(maxConcurrent int, log *logger.Logger) *ScanThrottle {
	return &ScanThrottle{
		limiter: rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent),
		log:     log,
	}
}

// Scan runs plugin.Scan for sr, collapsing concurrent callers for the same
// SR and waiting on the global rate limiter, then merges the result
// into store via a three-way diff (new/changed/removed VDIs) under
// Store.Transact so readers never see a partially-merged scan.
func (t *ScanThrottle) Scan(ctx context.Context, store *db.Store, plugin SMAPI, sr *model.SR, deviceConfig map[string]string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("scan throttle: %w", err)
	}

	key := string(sr.Ref)
	v, err, _ := t.group.Do(key, func() (any, error) {
		return plugin.Scan(ctx, sr, deviceConfig)
	})
	if err != nil {
		return fmt.Errorf("scan SR %s: %w", sr.Ref, err)
	}

	result := v.(ScanResult)
	t.merge(store, sr, result)
	return nil
}

// merge performs the three-way diff against the database's current VDI
// children of sr: anything in result but not in the DB is created,
// anything in both has its stats refreshed, anything in the DB but not in
// result (and not itself a metadata VDI pinned by a DR attach) is forgotten.
func (t *ScanThrottle) merge(store *db.Store, sr *model.SR, result ScanResult) {
	store.Transact(func() {
		seen := make(map[model.Ref]bool)

		for _, child := range sr.VDIs {
			vdi, ok := store.VDIs.Get(child)
			if !ok {
				continue
			}
			scanned, stillPresent := result.VDIs[vdi.Location]
			if !stillPresent {
				if vdi.Type == model.VDIMetadata {
					continue // DR metadata VDIs survive a scan even if storage can't see them directly
				}
				db.Delete(store, store.VDIs, vdi.Ref)
				continue
			}
			vdi.VirtualSize = scanned.VirtualSize
			vdi.PhysicalUtilisation = scanned.PhysicalUtilisation
			db.Put(store, store.VDIs, vdi)
			seen[vdi.Ref] = true
		}

		for loc, scanned := range result.VDIs {
			if locationAlreadyTracked(store, sr, loc) {
				continue
			}
			vdi := model.VDI{
				Row:                 model.NewRow(model.ClassVDI),
				SR:                  sr.Ref,
				Location:            loc,
				Type:                scanned.Type,
				VirtualSize:         scanned.VirtualSize,
				PhysicalUtilisation: scanned.PhysicalUtilisation,
				Managed:             true,
			}
			db.Put(store, store.VDIs, vdi)
			sr.VDIs = append(sr.VDIs, vdi.Ref)
		}

		refreshSRStats(store, sr)
		db.Put(store, store.SRs, *sr)
	})
}

func locationAlreadyTracked(store *db.Store, sr *model.SR, loc string) bool {
	for _, ref := range sr.VDIs {
		if vdi, ok := store.VDIs.Get(ref); ok && vdi.Location == loc {
			return true
		}
	}
	return false
}
