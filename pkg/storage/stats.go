package storage

import (
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
)

// refreshSRStats rolls up physical_utilisation and virtual_allocation from
// sr's current VDI children (spec §3: SR carries aggregate stats, not just
// per-VDI ones).
func refreshSRStats(store *db.Store, sr *model.SR) {
	var physUtil, virtAlloc int64
	for _, ref := range sr.VDIs {
		vdi, ok := store.VDIs.Get(ref)
		if !ok {
			continue
		}
		physUtil += vdi.PhysicalUtilisation
		virtAlloc += vdi.VirtualSize
	}
	sr.PhysicalUtilisation = physUtil
	sr.VirtualAllocation = virtAlloc
}

// RefreshStats is the exported entry point used outside of a scan (e.g.
// after VDI.resize) to keep SR aggregates current without a full rescan.
func RefreshStats(store *db.Store, srRef model.Ref) {
	store.Transact(func() {
		sr, ok := store.SRs.Get(srRef)
		if !ok {
			return
		}
		refreshSRStats(store, &sr)
		db.Put(store, store.SRs, sr)
	})
}
