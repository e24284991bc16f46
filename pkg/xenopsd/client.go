// Package xenopsd is the hypervisor-daemon adapter (spec §4.5): it talks
// JSON-RPC to the local xenopsd over a Unix domain socket, with the same
// Call/logging/error-wrapping shape used elsewhere in this codebase for
// JSON-RPC transports.
package xenopsd

import (
	"context"
	"fmt"
	"net"

	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/zap"

	"github.com/xapi-core/xapi-core/internal/common/logger"
)

// Client is a thin JSON-RPC-over-Unix-socket caller. One Client per
// xenopsd queue (spec §4.5: "hosts may run more than one xenopsd, each
// bound to a named socket").
type Client struct {
	queue string
	sock  string
	log   *logger.Logger

	conn *jsonrpc2.Conn
}

// Dial opens a fresh JSON-RPC connection to the named queue's socket.
// Callers are expected to retry Dial through pkg/scheduler or the pump's
// own backoff loop; Dial itself does not retry.
func Dial(ctx context.Context, queue, sockPath string, log *logger.Logger) (*Client, error) {
	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("dial xenopsd queue %s at %s: %w", queue, sockPath, err)
	}
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
	rpcConn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(
		func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
			// xenopsd only ever calls back for unsolicited notifications
			// (none defined yet); unexpected incoming requests are logged
			// and otherwise ignored.
			log.Warn("unexpected call from xenopsd", zap.String("queue", queue), zap.String("method", req.Method))
			return nil, nil
		}))

	return &Client{queue: queue, sock: sockPath, log: log, conn: rpcConn}, nil
}

// Call performs one JSON-RPC round trip: debug-log the request, call,
// and either log+wrap the error or debug-log the result.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	c.log.Debug("calling xenopsd", zap.String("queue", c.queue), zap.String("method", method), zap.Any("params", params))

	if err := c.conn.Call(ctx, method, params, result); err != nil {
		c.log.Error("xenopsd call failed", zap.String("queue", c.queue), zap.String("method", method), zap.Error(err))
		return fmt.Errorf("xenopsd call %s on queue %s failed: %w", method, c.queue, err)
	}

	c.log.Debug("xenopsd call successful", zap.String("queue", c.queue), zap.String("method", method))
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// DisconnectNotify exposes the underlying connection's close channel so a
// pump can detect a dropped socket and trigger a reconnect.
func (c *Client) DisconnectNotify() <-chan struct{} {
	return c.conn.DisconnectNotify()
}
