package xenopsd

import (
	"context"
	"fmt"

	"github.com/xapi-core/xapi-core/pkg/model"
)

// ErrNotConnected is returned when a power operation is requested while
// Run's connection to xenopsd is down; the caller (pkg/services) surfaces
// this as an internal_error rather than retrying itself, since
// RunWithBackoff owns reconnection.
var ErrNotConnected = fmt.Errorf("xenopsd: not connected")

func (a *Adapter) client() (*Client, error) {
	a.connMu.RLock()
	defer a.connMu.RUnlock()
	if a.conn == nil {
		return nil, ErrNotConnected
	}
	return a.conn, nil
}

// Boot pushes vm's metadata and asks xenopsd to create and start the
// domain, suppressing the resulting pumpFromXapi echo the way pushMetadata
// does for a plain metadata refresh.
func (a *Adapter) Boot(ctx context.Context, vm *model.VM) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	if err := a.pushMetadata(ctx, client, vm); err != nil {
		return err
	}
	a.sup.Begin(vm.Ref, suppressionWindow)
	var ack struct{}
	if err := client.Call(ctx, "VM.start", map[string]any{"id": string(vm.Ref)}, &ack); err != nil {
		a.sup.Clear(vm.Ref)
		return wrap(err, "VM.start")
	}
	a.endSuppression(ctx, client, vm)
	return nil
}

// Shutdown asks xenopsd to power the domain off, clean (ACPI request to
// the guest) or hard (immediate domain destroy).
func (a *Adapter) Shutdown(ctx context.Context, vm *model.VM, clean bool) error {
	return a.simplePowerCall(ctx, vm, "VM.shutdown", clean)
}

// Reboot asks xenopsd to reboot the domain in place, clean or hard.
func (a *Adapter) Reboot(ctx context.Context, vm *model.VM, clean bool) error {
	return a.simplePowerCall(ctx, vm, "VM.reboot", clean)
}

// Suspend asks xenopsd to suspend the domain to vm.SuspendVDI.
func (a *Adapter) Suspend(ctx context.Context, vm *model.VM) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	a.sup.Begin(vm.Ref, suppressionWindow)
	var ack struct{}
	params := map[string]any{"id": string(vm.Ref), "suspend_vdi": string(vm.SuspendVDI)}
	if err := client.Call(ctx, "VM.suspend", params, &ack); err != nil {
		a.sup.Clear(vm.Ref)
		return wrap(err, "VM.suspend")
	}
	a.endSuppression(ctx, client, vm)
	return nil
}

// Resume asks xenopsd to resume the domain from vm.SuspendVDI, re-pushing
// metadata first since a suspended-then-resumed domain needs the same
// setup a fresh boot does.
func (a *Adapter) Resume(ctx context.Context, vm *model.VM) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	if err := a.pushMetadata(ctx, client, vm); err != nil {
		return err
	}
	a.sup.Begin(vm.Ref, suppressionWindow)
	var ack struct{}
	params := map[string]any{"id": string(vm.Ref), "suspend_vdi": string(vm.SuspendVDI)}
	if err := client.Call(ctx, "VM.resume", params, &ack); err != nil {
		a.sup.Clear(vm.Ref)
		return wrap(err, "VM.resume")
	}
	a.endSuppression(ctx, client, vm)
	return nil
}

func (a *Adapter) simplePowerCall(ctx context.Context, vm *model.VM, method string, clean bool) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	a.sup.Begin(vm.Ref, suppressionWindow)
	var ack struct{}
	params := map[string]any{"id": string(vm.Ref), "clean": clean}
	if err := client.Call(ctx, method, params, &ack); err != nil {
		a.sup.Clear(vm.Ref)
		return wrap(err, method)
	}
	a.endSuppression(ctx, client, vm)
	return nil
}
