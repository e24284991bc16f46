package library

import (
	"context"

	"github.com/xapi-core/xapi-core/pkg/model"
)

//go:generate mockgen --build_flags=--mod=mod --destination mock/vm.go . VM

// VM is the lifecycle contract for the VM class (spec §4.3).
type VM interface {
	Start(ctx context.Context, parent model.Ref, ref model.Ref) (Result, error)
	CleanShutdown(ctx context.Context, parent, ref model.Ref) (Result, error)
	HardShutdown(ctx context.Context, parent, ref model.Ref) (Result, error)
	CleanReboot(ctx context.Context, parent, ref model.Ref) (Result, error)
	HardReboot(ctx context.Context, parent, ref model.Ref) (Result, error)
	Suspend(ctx context.Context, parent, ref model.Ref) (Result, error)
	Resume(ctx context.Context, parent, ref model.Ref) (Result, error)
	Snapshot(ctx context.Context, parent, ref model.Ref, nameLabel string) (Result, error)
	Destroy(ctx context.Context, parent, ref model.Ref) (Result, error)
}
