package clientapi

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"

	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/zap"

	"github.com/xapi-core/xapi-core/internal/common/logger"
)

// Server accepts JSON-RPC connections on a Unix domain socket and a
// TLS listener simultaneously (spec §6), handing every request on every
// connection to the same Dispatcher regardless of which transport it
// arrived on.
type Server struct {
	dispatcher *Dispatcher
	log        *logger.Logger
}

func NewServer(dispatcher *Dispatcher, log *logger.Logger) *Server {
	return &Server{dispatcher: dispatcher, log: log}
}

// ServeUnix accepts connections on a Unix domain socket until ctx is
// cancelled or the listener errors.
func (s *Server) ServeUnix(ctx context.Context, sockPath string) error {
	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("listen on unix socket %s: %w", sockPath, err)
	}
	return s.serve(ctx, ln)
}

// ServeTLS accepts connections on a TLS listener until ctx is cancelled
// or the listener errors.
func (s *Server) ServeTLS(ctx context.Context, addr string, cert tls.Certificate) error {
	ln, err := tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("accept on %s: %w", ln.Addr(), err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	stream := jsonrpc2.NewBufferedStream(conn, jsonrpc2.VSCodeObjectCodec{})
	rpcConn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	<-rpcConn.DisconnectNotify()
}

func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	s.log.Debug("clientapi request", zap.String("method", req.Method))

	result, err := s.dispatcher.Dispatch(ctx, req.Method, req.Params)
	if err != nil {
		s.log.Error("clientapi request failed", zap.String("method", req.Method), zap.Error(err))
		return nil, err
	}
	return result, nil
}
