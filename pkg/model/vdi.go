package model

import "time"

// VDI is a virtual disk image within a storage repository.
type VDI struct {
	Row

	SR       Ref
	Location string // (SR.uuid, Location) is the adapter-facing identity

	Type VDIType

	VirtualSize        int64
	PhysicalUtilisation int64

	Sharable bool
	ReadOnly bool
	Managed  bool
	OnBoot   OnBoot

	CBTEnabled bool

	IsASnapshot  bool
	SnapshotOf   Ref
	SnapshotTime time.Time

	MetadataOfPool Ref // non-nil for a DR metadata VDI (§4.6)
	IsToolsISO     bool

	VBDs []Ref

	// tentativeRestoreType is set by data_destroy while it waits for VBD
	// teardown (§4.3 VDI.data_destroy), so an abort can restore it.
	tentativeRestoreType VDIType
	tentative            bool
}

// BeginTentativeCBTMetadata marks the VDI as cbt_metadata ahead of a
// data_destroy wait, remembering the prior type for rollback on abort.
func (v *VDI) BeginTentativeCBTMetadata() {
	if v.tentative {
		return
	}
	v.tentativeRestoreType = v.Type
	v.tentative = true
	v.Type = VDICBTMetadata
}

// AbortTentative restores the type recorded by BeginTentativeCBTMetadata.
func (v *VDI) AbortTentative() {
	if !v.tentative {
		return
	}
	v.Type = v.tentativeRestoreType
	v.tentative = false
}

// CommitTentative keeps the VDI as cbt_metadata permanently (data_destroy
// succeeded): the type is left as-is and the rollback record is cleared.
func (v *VDI) CommitTentative() {
	v.tentative = false
}
