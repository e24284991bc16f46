// Command xapi-core is the coordinator/member daemon entrypoint (spec
// §4.5/§9): parse CLI flags, build a pkg/corectx.Core, run bootstrap's
// startup sequencer, then serve the replication, peer, and client-facing
// RPC listeners until signalled to stop.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/config"
	"github.com/xapi-core/xapi-core/pkg/corectx"
)

type cliOptions struct {
	Role       string `short:"r" long:"role" description:"override XAPI_ROLE (coordinator or member)"`
	ConfigFile string `short:"c" long:"config" description:"path to a .env-style config file (loaded before the environment)"`
	DBPath     string `long:"db-path" description:"override XAPI_DB_PATHS with a single path"`
	UnixSocket string `long:"unix-socket" description:"path of the client-facing JSON-RPC unix socket" default:"/var/lib/xapi-core/xapi-core.sock"`
	TLSAddr    string `long:"tls-addr" description:"address the client-facing JSON-RPC TLS listener binds to" default:":443"`
	TLSCert    string `long:"tls-cert" description:"TLS certificate for the client-facing listener"`
	TLSKey     string `long:"tls-key" description:"TLS private key for the client-facing listener"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var opts cliOptions
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return nil
		}
		return fmt.Errorf("parse flags: %w", err)
	}

	if opts.ConfigFile != "" {
		if err := os.Setenv("XAPI_ENV_FILE", opts.ConfigFile); err != nil {
			return fmt.Errorf("set XAPI_ENV_FILE: %w", err)
		}
	}
	if opts.Role != "" {
		if err := os.Setenv("XAPI_ROLE", opts.Role); err != nil {
			return fmt.Errorf("set XAPI_ROLE: %w", err)
		}
	}
	if opts.DBPath != "" {
		if err := os.Setenv("XAPI_DB_PATHS", opts.DBPath); err != nil {
			return fmt.Errorf("set XAPI_DB_PATHS: %w", err)
		}
	}

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.Development)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	core, err := corectx.New(cfg, log)
	if err != nil {
		return fmt.Errorf("assemble core: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := startup(ctx, core, cfg); err != nil {
		return fmt.Errorf("startup sequence: %w", err)
	}

	return serve(ctx, core, opts)
}

// startup runs the role-appropriate branch of the state machine (spec
// §4.5) before any listener is allowed to serve traffic, since the
// replication endpoint blocks on exactly this signal.
func startup(ctx context.Context, core *corectx.Core, cfg *config.Config) error {
	switch cfg.Role {
	case "coordinator":
		return core.Sequencer.RunMaster(ctx)
	case "member":
		return core.Sequencer.RunSlave(ctx, cfg.BindAddress)
	default:
		return fmt.Errorf("unknown role %q", cfg.Role)
	}
}

// serve starts every listener this process owns and blocks until ctx is
// cancelled or one of them fails.
func serve(ctx context.Context, core *corectx.Core, opts cliOptions) error {
	errCh := make(chan error, 4)

	go func() {
		errCh <- core.RunXenopsdPumps(ctx)
	}()

	dbServerAddr := ":8080"
	go func() {
		errCh <- runHTTP(ctx, dbServerAddr, core.DBServer)
	}()

	peerAddr := ":8443"
	go func() {
		errCh <- runHTTP(ctx, peerAddr, core.PeerServer)
	}()

	go func() {
		errCh <- core.RPCServer.ServeUnix(ctx, opts.UnixSocket)
	}()

	if opts.TLSCert != "" && opts.TLSKey != "" {
		go func() {
			cert, err := tls.LoadX509KeyPair(opts.TLSCert, opts.TLSKey)
			if err != nil {
				errCh <- fmt.Errorf("load TLS keypair: %w", err)
				return
			}
			errCh <- core.RPCServer.ServeTLS(ctx, opts.TLSAddr, cert)
		}()
	}

	select {
	case <-ctx.Done():
		core.Log.Info("shutting down", zap.String("reason", ctx.Err().Error()))
		return nil
	case err := <-errCh:
		return err
	}
}

func runHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
