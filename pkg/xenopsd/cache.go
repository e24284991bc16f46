package xenopsd

import (
	"sync"
	"time"

	"github.com/xapi-core/xapi-core/pkg/model"
)

// Cache tracks the mapping between xapi's view of a VM and xenopsd's last
// reported state for it (spec §4.5: "xapi_cache" / "xenops_cache"). Two
// caches exist in practice — one keyed by xapi ref holding the last state
// pushed to xenopsd, one keyed by xenopsd id holding the last state pulled
// from it — so that resync_resident_on can diff them without a live call.
type Cache struct {
	mu sync.RWMutex

	// pushed is the metadata xapi last believed it handed to xenopsd,
	// keyed by VM ref.
	pushed map[model.Ref]VMMetadata

	// observed is the state xenopsd last reported, keyed by xenopsd's own
	// VM id (which is the VM's UUID string in this adapter, per §4.5).
	observed map[string]ObservedState

	// observedDevice is xenops_cache's device half: last-seen attachment
	// state per (VM id, kind, device), used to diff incoming VBD/VIF/
	// PCI/VGPU/VUSB updates so only changed fields are written to the DB.
	observedDevice map[string]DeviceObservedState
}

// VMMetadata is what gets pushed to xenopsd ahead of a start/resume/migrate
// (spec §4.5 "metadata push"): enough of the VM/VBD/VIF/VTPM graph for
// xenopsd to build a domain.
type VMMetadata struct {
	VMRef       model.Ref
	UUID        string
	VCPUsMax    int
	MemoryMax   int64
	DomainType  model.DomainType
	Platform    map[string]string
	Disks       []DiskMetadata
	VIFs        []VIFMetadata
	HasVTPM     bool
	FirmwareIsUEFI bool
}

type DiskMetadata struct {
	VBDRef     model.Ref
	Location   string // SR-relative location of the backing VDI
	Mode       model.VBDMode
	Userdevice string
}

type VIFMetadata struct {
	VIFRef model.Ref
	MAC    string
	Device string
}

// ObservedState is what xenopsd reports back for a running domain (spec
// §4.5 "event pump from hypervisor").
type ObservedState struct {
	Domid      int
	PowerState model.PowerState
	ResidentOn string // always the local host in this adapter

	DomainType    model.DomainType
	GuestAgent    map[string]string
	Featureset    string
	Vendor        string
	LastStartTime time.Time
	Consoles      []string
}

// DeviceObservedState is xenops_cache's per-device entry (spec §4.4:
// "maps each id (VM, VBD, VIF, PCI, VGPU, VUSB) to the last state
// observed from the hypervisor").
type DeviceObservedState struct {
	CurrentlyAttached bool
}

func NewCache() *Cache {
	return &Cache{
		pushed:         make(map[model.Ref]VMMetadata),
		observed:       make(map[string]ObservedState),
		observedDevice: make(map[string]DeviceObservedState),
	}
}

func (c *Cache) SetPushed(md VMMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushed[md.VMRef] = md
}

func (c *Cache) Pushed(ref model.Ref) (VMMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	md, ok := c.pushed[ref]
	return md, ok
}

func (c *Cache) ClearPushed(ref model.Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pushed, ref)
}

func (c *Cache) SetObserved(xenopsID string, st ObservedState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observed[xenopsID] = st
}

func (c *Cache) Observed(xenopsID string) (ObservedState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.observed[xenopsID]
	return st, ok
}

func (c *Cache) ClearObserved(xenopsID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.observed, xenopsID)
}

// deviceKey identifies one (VM, kind, device) entry in observedDevice.
func deviceKey(vmID, kind, device string) string {
	return vmID + "/" + kind + "/" + device
}

func (c *Cache) ObservedDevice(vmID, kind, device string) (DeviceObservedState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.observedDevice[deviceKey(vmID, kind, device)]
	return st, ok
}

func (c *Cache) SetObservedDevice(vmID, kind, device string, st DeviceObservedState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observedDevice[deviceKey(vmID, kind, device)] = st
}

// ResidentVMs lists every xenopsd id this cache currently has observed
// state for.
func (c *Cache) ResidentVMs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.observed))
	for id := range c.observed {
		ids = append(ids, id)
	}
	return ids
}
