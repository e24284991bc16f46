package storage

import (
	"fmt"

	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
)

// ErrNoMetadataVDI is returned by AttachForeignPool when sr has no VDI of
// type metadata, so there is nothing to read a foreign pool database from.
var ErrNoMetadataVDI = fmt.Errorf("SR has no metadata VDI")

// FindMetadataVDI returns the VDI of type=metadata attached to sr, if any
// (spec §3's metadata_of_pool field; §4.6 DR). An SR is expected to carry
// at most one live metadata VDI at a time.
func FindMetadataVDI(store *db.Store, sr *model.SR) (*model.VDI, bool) {
	for _, ref := range sr.VDIs {
		vdi, ok := store.VDIs.Get(ref)
		if ok && vdi.Type == model.VDIMetadata {
			return &vdi, true
		}
	}
	return nil, false
}

// CreateMetadataVDI provisions a fresh metadata VDI on sr to hold a
// serialised snapshot of poolRef's database, used when DR-enabling an SR
// for the first time.
func CreateMetadataVDI(store *db.Store, sr *model.SR, poolRef model.Ref) model.VDI {
	vdi := model.VDI{
		Row:            model.NewRow(model.ClassVDI),
		SR:             sr.Ref,
		Type:           model.VDIMetadata,
		MetadataOfPool: poolRef,
		Managed:        true,
		ReadOnly:       false,
	}
	db.Put(store, store.VDIs, vdi)

	sr.VDIs = append(sr.VDIs, vdi.Ref)
	db.Put(store, store.SRs, *sr)
	return vdi
}

// AttachForeignPool reads the pool ref a foreign SR's metadata VDI was
// stamped with, the first step of attaching a DR-replicated SR to a new
// pool (spec §4.6): the caller is expected to then fetch and restore the
// serialised database content itself via the xenopsd/SMAPI data path this
// package does not own.
func AttachForeignPool(store *db.Store, sr *model.SR) (model.Ref, error) {
	vdi, ok := FindMetadataVDI(store, sr)
	if !ok {
		return "", ErrNoMetadataVDI
	}
	return vdi.MetadataOfPool, nil
}
