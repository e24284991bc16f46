package core

import (
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
)

// PathBuilder helps construct dispatch paths in a consistent way: the
// client RPC surface, the replication HTTP endpoint, and the xenopsd
// message-queue topic names all want "class/id/action"-shaped strings, and
// this is the one place that knows how to join them.
type PathBuilder struct {
	segments []string
}

func NewPathBuilder() *PathBuilder {
	return &PathBuilder{segments: []string{}}
}

// Resource adds a resource type to the path (e.g., "vms", "tasks").
func (p *PathBuilder) Resource(resource string) *PathBuilder {
	p.segments = append(p.segments, resource)
	return p
}

// ID adds a UUID resource ID to the path.
func (p *PathBuilder) ID(id uuid.UUID) *PathBuilder {
	p.segments = append(p.segments, id.String())
	return p
}

// IDString adds a string ID to the path when you don't have a UUID.
func (p *PathBuilder) IDString(id string) *PathBuilder {
	p.segments = append(p.segments, id)
	return p
}

// Action adds an action to the path (e.g., "start", "suspend").
func (p *PathBuilder) Action(action string) *PathBuilder {
	p.segments = append(p.segments, action)
	return p
}

// ActionsGroup adds an "actions" segment to the path, grouping operations
// on a resource the way the client RPC surface exposes them.
func (p *PathBuilder) ActionsGroup() *PathBuilder {
	p.segments = append(p.segments, "actions")
	return p
}

// Build returns the constructed path with segments joined by "/".
func (p *PathBuilder) Build() string {
	return strings.Join(p.segments, "/")
}

// FormatPath is a convenience function for simple resource/ID paths.
func FormatPath(resource string, id uuid.UUID) string {
	return fmt.Sprintf("%s/%s", resource, id.String())
}

// FormatActionPath builds a "resource/_/actions/action" path, used for
// operations that are not scoped to one existing resource instance (e.g.
// pool-level VM creation).
func FormatActionPath(resource, action string) string {
	return NewPathBuilder().Resource(resource).IDString("_").ActionsGroup().Action(action).Build()
}

// MethodName formats the "class.op" JSON-RPC method name used by the
// client RPC surface, e.g. "VM.start", "SR.scan".
func MethodName(class, op string) string {
	return class + "." + op
}
