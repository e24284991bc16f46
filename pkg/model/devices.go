package model

// PCI is a physical PCI device that can be passed through to a VM. A VM
// with a passed-through PCI attached (that is not an SR-IOV VF VIF) blocks
// suspend/checkpoint/migrate (§4.2 step 12, B2).
type PCI struct {
	Row

	Host     Ref
	VM       Ref // empty when not attached
	PCIClass string
}

// VGPU is a virtual GPU assignment. NVIDIA vGPU variants relax the PCI
// passthrough migration block when the underlying PGPU advertises the
// migration feature.
type VGPU struct {
	Row

	VM   Ref
	PGPU Ref

	NVIDIAVariant      bool
	MigrationSupported bool // advertised on the pgpu
}

// PUSB is a physical USB device a VUSB can be bound to.
type PUSB struct {
	Row

	Host Ref
}

// VUSB binds a PUSB to a VM. Any op that would reassign device ownership
// is blocked while a VUSB exists (§4.2 step 12).
type VUSB struct {
	Row

	VM   Ref
	PUSB Ref

	CurrentlyAttached bool
}

// VTPM is a virtual trusted platform module attached to a VM. At most one
// may exist per VM (§4.2 step 14); BIOS (non-UEFI) VMs reject one entirely,
// resolved at metadata-build time (§9 ambiguity, see DESIGN.md).
type VTPM struct {
	Row

	VM            Ref
	PersistentKey string
}

// Network is an L2 network a VIF can attach to.
type Network struct {
	Row

	NameLabel string
	PIFs      []Ref
}

// PIF is a physical network interface binding a Network to a Host.
type PIF struct {
	Row

	Network Ref
	Host    Ref
	Device  string

	CurrentlyAttached bool
}
