// Package library holds the per-class service interfaces, mirroring the
// teacher's pkg/services/library split of "one interface per class,
// registered into a client-facing registry" — generalised here from a
// thin XO API proxy into the authoritative lifecycle operation contract
// pkg/rpc/clientapi dispatches against. Splitting the contract from the
// implementation keeps pkg/rpc/clientapi buildable against a mock
// (go.uber.org/mock) without wiring a real database or hypervisor queue.
package library

import (
	"context"

	"github.com/xapi-core/xapi-core/pkg/model"
)

// Result is the outcome every lifecycle operation returns: the task
// tracking it, plus whatever ref the operation produced (e.g. a new VM's
// ref for VM.clone), empty when the operation has no such result.
type Result struct {
	Task   model.Ref
	Result string
}
