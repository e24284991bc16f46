package model

// VBD is a virtual block device attaching a VDI to a VM.
type VBD struct {
	Row

	VM  Ref
	VDI Ref

	Userdevice string
	Mode       VBDMode
	Type       VBDType
	Empty      bool

	CurrentlyAttached bool
	Reserved          bool
}

// VIF is a virtual network interface attaching a network to a VM.
type VIF struct {
	Row

	VM      Ref
	Network Ref
	Device  string
	MAC     string

	LockingMode       string
	CurrentlyAttached bool

	IPv4Configuration string
	IPv6Configuration string
	ReservedPCI       Ref
}
