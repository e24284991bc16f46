package clientapi

import (
	"context"

	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services/library"
)

// refParams is the params shape shared by every operation that only
// takes a session/parent task ref and the target object's ref.
type refParams struct {
	Parent model.Ref `json:"parent"`
	Ref    model.Ref `json:"ref"`
}

// RegisterVM wires every VM.* method onto d.
func RegisterVM(d *Dispatcher, svc library.VM) {
	Typed(d, "VM.start", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Start(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VM.clean_shutdown", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.CleanShutdown(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VM.hard_shutdown", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.HardShutdown(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VM.clean_reboot", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.CleanReboot(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VM.hard_reboot", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.HardReboot(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VM.suspend", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Suspend(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VM.resume", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Resume(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VM.destroy", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Destroy(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VM.snapshot", func(ctx context.Context, p struct {
		Parent    model.Ref `json:"parent"`
		Ref       model.Ref `json:"ref"`
		NameLabel string    `json:"new_name_label"`
	}) (library.Result, error) {
		return svc.Snapshot(ctx, p.Parent, p.Ref, p.NameLabel)
	})
}

// RegisterVDI wires every VDI.* method onto d.
func RegisterVDI(d *Dispatcher, svc library.VDI) {
	Typed(d, "VDI.destroy", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Destroy(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VDI.data_destroy", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.DataDestroy(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VDI.resize", func(ctx context.Context, p struct {
		Parent  model.Ref `json:"parent"`
		Ref     model.Ref `json:"ref"`
		NewSize int64     `json:"new_size"`
	}) (library.Result, error) {
		return svc.Resize(ctx, p.Parent, p.Ref, p.NewSize)
	})
}

// RegisterSR wires every SR.* method onto d.
func RegisterSR(d *Dispatcher, svc library.SR) {
	Typed(d, "SR.scan", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Scan(ctx, p.Parent, p.Ref)
	})
	Typed(d, "SR.destroy", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Destroy(ctx, p.Parent, p.Ref)
	})
}

// RegisterVBD wires every VBD.* method onto d.
func RegisterVBD(d *Dispatcher, svc library.VBD) {
	Typed(d, "VBD.plug", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Plug(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VBD.unplug", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Unplug(ctx, p.Parent, p.Ref)
	})
}

// RegisterVIF wires every VIF.* method onto d.
func RegisterVIF(d *Dispatcher, svc library.VIF) {
	Typed(d, "VIF.plug", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Plug(ctx, p.Parent, p.Ref)
	})
	Typed(d, "VIF.unplug", func(ctx context.Context, p refParams) (library.Result, error) {
		return svc.Unplug(ctx, p.Parent, p.Ref)
	})
}
