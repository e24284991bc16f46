package library

import (
	"context"

	"github.com/xapi-core/xapi-core/pkg/model"
)

//go:generate mockgen --build_flags=--mod=mod --destination mock/sr.go . SR

// SR is the lifecycle contract for the SR class.
type SR interface {
	Scan(ctx context.Context, parent, ref model.Ref) (Result, error)
	Destroy(ctx context.Context, parent, ref model.Ref) (Result, error)
}
