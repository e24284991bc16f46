package xenopsd

import (
	"context"
	"fmt"

	"github.com/xapi-core/xapi-core/pkg/model"
)

// pushMetadata builds VMMetadata from the live row graph and hands it to
// xenopsd's VM.import_metadata call (spec §4.5 "metadata push").
//
// The BIOS/UEFI-vs-VTPM check is resolved here rather than in the allowed-
// operations engine (see §9 ambiguity, recorded in DESIGN.md): a VM can
// carry a VTPM row in the database in any boot-firmware configuration
// (allowedops only forbids a second one), but a non-UEFI domain cannot
// actually attach one, so metadata build is where the attempt is finally
// rejected if the platform's firmware flag isn't "uefi".
func (a *Adapter) pushMetadata(ctx context.Context, client *Client, vm *model.VM) error {
	md := VMMetadata{
		VMRef:       vm.Ref,
		UUID:        vm.UUID.String(),
		VCPUsMax:    vm.VCPUsMax,
		MemoryMax:   vm.MemoryDynMax,
		DomainType:  vm.DomainType,
		Platform:    vm.Platform,
	}

	isUEFI := vm.Platform["firmware"] == "uefi"
	md.FirmwareIsUEFI = isUEFI
	if len(vm.VTPMs) > 0 {
		if !isUEFI {
			return fmt.Errorf("VM %s has a vTPM attached but firmware is not uefi", vm.Ref)
		}
		md.HasVTPM = true
	}

	for _, vbdRef := range vm.VBDs {
		vbd, ok := a.store.VBDs.Get(vbdRef)
		if !ok || vbd.Empty {
			continue
		}
		vdi, ok := a.store.VDIs.Get(vbd.VDI)
		if !ok {
			continue
		}
		md.Disks = append(md.Disks, DiskMetadata{
			VBDRef:     vbdRef,
			Location:   vdi.Location,
			Mode:       vbd.Mode,
			Userdevice: vbd.Userdevice,
		})
	}

	for _, vifRef := range vm.VIFs {
		vif, ok := a.store.VIFs.Get(vifRef)
		if !ok {
			continue
		}
		md.VIFs = append(md.VIFs, VIFMetadata{VIFRef: vifRef, MAC: vif.MAC, Device: vif.Device})
	}

	a.sup.Begin(vm.Ref, suppressionWindow)
	a.cache.SetPushed(md)

	var ack bool
	if err := client.Call(ctx, "VM.import_metadata", md, &ack); err != nil {
		a.sup.Clear(vm.Ref)
		return err
	}
	if !ack {
		a.sup.Clear(vm.Ref)
		return fmt.Errorf("xenopsd rejected metadata for VM %s", vm.Ref)
	}
	return nil
}

// pullMetadata asks xenopsd for the live metadata of one domain (spec
// §4.4's "pull() on suspend"), returning it as the opaque serialised
// record VM.last_booted_record stores.
func (a *Adapter) pullMetadata(ctx context.Context, client *Client, xenopsID string) (string, error) {
	var record string
	if err := client.Call(ctx, "VM.export_metadata", map[string]any{"id": xenopsID}, &record); err != nil {
		return "", err
	}
	return record, nil
}
