package model

// SR is a storage repository: the container a set of VDIs live in, bound
// to one or more hosts via PBDs.
type SR struct {
	Row

	Type string // SM plugin name, e.g. "lvm", "nfs", "ext"

	PBDs []Ref
	VDIs []Ref

	PhysicalSize        int64
	PhysicalUtilisation int64
	VirtualAllocation   int64

	Shared    bool
	Clustered bool
	IsToolsSR bool

	SMConfig    map[string]string
	OtherConfig map[string]string // carries auto_scan, indestructible

	// Capabilities is the SM plugin's advertised capability set (§4.2
	// step 9), e.g. "Vdi_clone", "Vdi_mirror", "Sr_update".
	Capabilities map[string]bool
}

// Indestructible reports other_config["indestructible"] == "true" (§4.2
// step 17 / B4).
func (sr *SR) Indestructible() bool {
	return sr.OtherConfig["indestructible"] == "true"
}

// AutoScan reports other_config["auto_scan"] == "true".
func (sr *SR) AutoScan() bool {
	return sr.OtherConfig["auto_scan"] == "true"
}

func (sr *SR) HasCapability(cap string) bool {
	return sr.Capabilities[cap]
}

// PBD binds an SR to a host.
type PBD struct {
	Row

	SR   Ref
	Host Ref

	DeviceConfig      map[string]string
	CurrentlyAttached bool
}
