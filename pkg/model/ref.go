// Package model holds the authoritative cluster-database row types: the
// entity classes of §3 (Pool, Host, VM, VBD, VIF, VDI, SR, PBD, Task, and
// their smaller neighbours), the closed enum sets they are built from, and
// the ApiError shape every operation fails with.
package model

import (
	"github.com/gofrs/uuid"
)

// Ref is an opaque reference to a row, stable for the row's lifetime.
// It is never reused after a row is destroyed.
type Ref string

// NewRef mints a fresh opaque reference. Refs are random so that a stale
// reference held by a client after a restart cannot collide with a
// different row.
func NewRef() Ref {
	return Ref(uuid.Must(uuid.NewV4()).String())
}

func (r Ref) String() string { return string(r) }

// Class identifies a row's entity class for the purposes of event
// filters, the allowed-operations engine, and the DB's class×ref index.
type Class string

const (
	ClassPool    Class = "pool"
	ClassHost    Class = "host"
	ClassVM      Class = "VM"
	ClassVBD     Class = "VBD"
	ClassVIF     Class = "VIF"
	ClassVDI     Class = "VDI"
	ClassSR      Class = "SR"
	ClassPBD     Class = "PBD"
	ClassPCI     Class = "PCI"
	ClassVGPU    Class = "VGPU"
	ClassPUSB    Class = "PUSB"
	ClassVUSB    Class = "VUSB"
	ClassVTPM    Class = "VTPM"
	ClassNetwork Class = "network"
	ClassPIF     Class = "PIF"
	ClassTask    Class = "task"
)

// Row is embedded by every entity class. It carries the fields required
// on every record: a stable ref and UUID, the semantic-lock map of
// operations currently in flight, the advisory allowed_operations cache,
// and a per-row generation counter bumped on every write.
type Row struct {
	Ref        Ref       `json:"ref"`
	UUID       uuid.UUID `json:"uuid"`
	Generation uint64    `json:"generation"`

	// CurrentOperations maps a task ref to the kind of operation it is
	// performing. Entries are removed when the task completes or is
	// cancelled (INV3).
	CurrentOperations map[Ref]OpKind `json:"current_operations"`

	// AllowedOperations is a cache of the allowed-operations engine's last
	// verdict (INV2). It is never consulted by the server itself for
	// authorization — only recomputed and handed to clients for UI.
	AllowedOperations []OpKind `json:"allowed_operations"`

	// BlockedOperations lists operations an administrator has explicitly
	// forbidden on this row, with a human-readable reason.
	BlockedOperations map[OpKind]string `json:"blocked_operations"`
}

func NewRow(class Class) Row {
	return Row{
		Ref:               NewRef(),
		UUID:              uuid.Must(uuid.NewV4()),
		CurrentOperations: make(map[Ref]OpKind),
		BlockedOperations: make(map[OpKind]string),
	}
}

func (r *Row) String() string {
	return r.Ref.String()
}
