// Package clientapi is the client-facing JSON-RPC surface (spec §4.3,
// §6): the registered lifecycle operations (no getters or setters are
// registered) are reached here over both HTTPS and a Unix domain socket, the same pair of
// transports §6 specifies for the wire client. A jsonrpc2.Conn is
// accepted per incoming connection rather than dialled, and method
// dispatch stands in for REST-style path routing, since the wire
// contract this server implements is JSON-RPC.
package clientapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Handler is one registered RPC method: decode raw JSON-RPC params into a
// concrete request type and produce a result.
type Handler func(ctx context.Context, rawParams *json.RawMessage) (any, error)

// Dispatcher maps "class.op"-shaped method names (core.MethodName) to
// handlers. One Dispatcher is shared by every transport (HTTPS and the
// Unix socket) a Server listens on.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register adds a method under name.
func (d *Dispatcher) Register(name string, h Handler) {
	d.handlers[name] = h
}

// Dispatch looks up method and invokes its handler, or returns an
// unknown-method error a caller turns into a JSON-RPC error response.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, rawParams *json.RawMessage) (any, error) {
	h, ok := d.handlers[method]
	if !ok {
		return nil, fmt.Errorf("unknown method %q", method)
	}
	return h(ctx, rawParams)
}

// DecodeParams unmarshals rawParams into a generic map and then uses
// mapstructure to populate dst (wire -> map -> struct), keeping one
// params representation shared across every operation's request type
// without hand-written per-method unmarshalling.
func DecodeParams(rawParams *json.RawMessage, dst any) error {
	if rawParams == nil {
		return nil
	}
	var asMap map[string]any
	if err := json.Unmarshal(*rawParams, &asMap); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return fmt.Errorf("build params decoder: %w", err)
	}
	return decoder.Decode(asMap)
}

// Typed registers a method whose params decode into P before calling fn,
// on the server's receiving side of the params-as-a-map indirection.
func Typed[P any, R any](d *Dispatcher, name string, fn func(ctx context.Context, params P) (R, error)) {
	d.Register(name, func(ctx context.Context, rawParams *json.RawMessage) (any, error) {
		var params P
		if err := DecodeParams(rawParams, &params); err != nil {
			return nil, err
		}
		return fn(ctx, params)
	})
}
