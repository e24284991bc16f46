package library

import (
	"context"

	"github.com/xapi-core/xapi-core/pkg/model"
)

//go:generate mockgen --build_flags=--mod=mod --destination mock/vdi.go . VDI

// VDI is the lifecycle contract for the VDI class.
type VDI interface {
	Destroy(ctx context.Context, parent, ref model.Ref) (Result, error)
	DataDestroy(ctx context.Context, parent, ref model.Ref) (Result, error)
	Resize(ctx context.Context, parent, ref model.Ref, newSize int64) (Result, error)
}
