package library

import (
	"context"

	"github.com/xapi-core/xapi-core/pkg/model"
)

//go:generate mockgen --build_flags=--mod=mod --destination mock/vbd.go . VBD

// VBD is the lifecycle contract for the VBD class.
type VBD interface {
	Plug(ctx context.Context, parent, ref model.Ref) (Result, error)
	Unplug(ctx context.Context, parent, ref model.Ref) (Result, error)
}

//go:generate mockgen --build_flags=--mod=mod --destination mock/vif.go . VIF

// VIF is the lifecycle contract for the VIF class.
type VIF interface {
	Plug(ctx context.Context, parent, ref model.Ref) (Result, error)
	Unplug(ctx context.Context, parent, ref model.Ref) (Result, error)
}
