// Package corectx wires every package built under pkg/ into one running
// process (spec §9's design note: "an explicit wiring struct, not global
// state"): one database, one event bus, one task manager per process,
// fanned out to every entity class's service and every transport (peer
// RPC, replication, client-facing RPC).
package corectx

import (
	"context"
	"fmt"

	"github.com/blang/semver/v4"
	"golang.org/x/sync/errgroup"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/bootstrap"
	"github.com/xapi-core/xapi-core/pkg/config"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/dbserver"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/peer"
	"github.com/xapi-core/xapi-core/pkg/rpc/clientapi"
	"github.com/xapi-core/xapi-core/pkg/scheduler"
	"github.com/xapi-core/xapi-core/pkg/services"
	"github.com/xapi-core/xapi-core/pkg/services/sr"
	"github.com/xapi-core/xapi-core/pkg/services/vbd"
	"github.com/xapi-core/xapi-core/pkg/services/vdi"
	"github.com/xapi-core/xapi-core/pkg/services/vif"
	"github.com/xapi-core/xapi-core/pkg/services/vm"
	"github.com/xapi-core/xapi-core/pkg/storage"
	"github.com/xapi-core/xapi-core/pkg/taskmgr"
	"github.com/xapi-core/xapi-core/pkg/xenopsd"
)

// Version is the process's own xapi build version, compared against a
// master's advertised version during slave join (§4.5).
var Version = semver.MustParse("1.0.0")

// Core is every long-lived component one xapi-core process owns.
type Core struct {
	Log   *logger.Logger
	Store *db.Store
	Bus   *events.Bus
	Tasks *taskmgr.Manager

	Sched *scheduler.Scheduler

	Xenopsd map[string]*xenopsd.Adapter // keyed by queue name (§4.5)

	ReadyGate *dbserver.ReadyGate
	DBServer  *dbserver.Server

	Sequencer  *bootstrap.Sequencer
	PeerServer *peer.Server

	Dispatcher *clientapi.Dispatcher
	RPCServer  *clientapi.Server

	VM  *vm.Service
	VDI *vdi.Service
	SR  *sr.Service
	VBD *vbd.Service
	VIF *vif.Service
}

// New assembles a Core from cfg. It does not start anything — dialling
// xenopsd queues, running the sequencer, and serving the listeners are
// left to the caller (cmd/xapi-core) so that tests can assemble a Core
// without any I/O happening.
func New(cfg *config.Config, log *logger.Logger) (*Core, error) {
	bus := events.NewBus()
	store := db.New(bus, nil)
	tasks := taskmgr.New(store, log)
	sched := scheduler.New(log)

	pool := &poolState{store: store}

	xenopsdAdapters := make(map[string]*xenopsd.Adapter, len(cfg.XenopsdQueues))
	for queue, sock := range cfg.XenopsdQueues {
		xenopsdAdapters[queue] = xenopsd.NewAdapter(queue, sock, store, log)
	}
	hv, err := singleHypervisor(xenopsdAdapters)
	if err != nil {
		return nil, err
	}

	deps := services.Deps{Store: store, Tasks: tasks, Log: log}
	vmSvc := vm.New(deps, hv, pool)
	xenopsd.SetRefreshAllowedOperationsHook(vmSvc.RefreshAllowedOperations)
	vdiSvc := vdi.New(deps, pool, noopSMAPI{})
	srSvc := sr.New(deps, storage.NewScanThrottle(cfg.ScanConcurrency, log), noopSMAPI{})
	vbdSvc := vbd.New(deps)
	vifSvc := vif.New(deps)

	ready := dbserver.NewReadyGate()
	dbSrv := dbserver.NewServer(store, ready, log)

	dispatcher := clientapi.NewDispatcher()
	clientapi.RegisterVM(dispatcher, vmSvc)
	clientapi.RegisterVDI(dispatcher, vdiSvc)
	clientapi.RegisterSR(dispatcher, srSvc)
	clientapi.RegisterVBD(dispatcher, vbdSvc)
	clientapi.RegisterVIF(dispatcher, vifSvc)
	rpcSrv := clientapi.NewServer(dispatcher, log)

	var seq *bootstrap.Sequencer
	if cfg.Role == "member" {
		peerClient, err := peer.New(cfg.MasterAddress, cfg.PoolSecret, false)
		if err != nil {
			return nil, fmt.Errorf("build peer client to master %s: %w", cfg.MasterAddress, err)
		}
		seq = bootstrap.NewSequencer(log, Version, peerClient, ready)
	} else {
		seq = bootstrap.NewSequencer(log, Version, nil, ready)
	}
	peerSrv := peer.NewServer(log, cfg.PoolSecret, Version, &helloHandler{store: store})

	return &Core{
		Log:        log,
		Store:      store,
		Bus:        bus,
		Tasks:      tasks,
		Sched:      sched,
		Xenopsd:    xenopsdAdapters,
		ReadyGate:  ready,
		DBServer:   dbSrv,
		Sequencer:  seq,
		PeerServer: peerSrv,
		Dispatcher: dispatcher,
		RPCServer:  rpcSrv,
		VM:         vmSvc,
		VDI:        vdiSvc,
		SR:         srSvc,
		VBD:        vbdSvc,
		VIF:        vifSvc,
	}, nil
}

// RunXenopsdPumps starts every configured xenopsd queue's pump loop under
// an errgroup, so a crash in one queue's connection is observed by the
// caller rather than silently dropped.
func (c *Core) RunXenopsdPumps(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for name, adapter := range c.Xenopsd {
		name, adapter := name, adapter
		g.Go(func() error {
			if err := adapter.Run(gctx); err != nil {
				return fmt.Errorf("xenopsd queue %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// singleHypervisor picks the sole configured xenopsd adapter to back
// pkg/services/vm.Hypervisor. Multiple simultaneous queues exist for
// routing different VM classes to different xenopsd instances (§4.5);
// that routing table is a placement-layer concern out of scope here, so
// today exactly one queue must be configured.
func singleHypervisor(adapters map[string]*xenopsd.Adapter) (*xenopsd.Adapter, error) {
	if len(adapters) != 1 {
		return nil, fmt.Errorf("corectx: exactly one xenopsd queue must be configured, got %d", len(adapters))
	}
	for _, a := range adapters {
		return a, nil
	}
	panic("unreachable")
}

// poolState reads the singleton Pool row's HA/rolling-upgrade flags for
// pkg/services/{vm,vdi}.PoolState, since those packages are kept blind to
// db.Store to stay testable against a fake.
type poolState struct {
	store *db.Store
}

func (p *poolState) pool() (model.Pool, bool) {
	rows := p.store.Pools.List()
	if len(rows) == 0 {
		return model.Pool{}, false
	}
	return rows[0], true
}

func (p *poolState) HAEnabled() bool {
	row, ok := p.pool()
	return ok && row.HAEnabled
}

func (p *poolState) RollingUpgrade() bool {
	row, ok := p.pool()
	return ok && row.RollingUpgradeInProgress
}

// helloHandler answers Pool.hello on behalf of the coordinator, checked
// against the peer's own idea of whether it belongs to this pool.
type helloHandler struct {
	store *db.Store
}

func (h *helloHandler) Hello(hostAddress string) bootstrap.StatusResult {
	for _, host := range h.store.Hosts.List() {
		if host.Address == hostAddress {
			return bootstrap.StatusOK
		}
	}
	return bootstrap.StatusUnknownHost
}

// noopSMAPI is the default storage-manager-plugin client: it reports no
// discovered VDIs. Real SM plugin invocation is a separate adapter
// (shell-script or SMAPIv3 RPC) outside this module's scope; wiring it in
// is future work left to whichever component owns SR-type-specific
// plugin dispatch.
type noopSMAPI struct{}

func (noopSMAPI) Scan(ctx context.Context, srRow *model.SR, deviceConfig map[string]string) (storage.ScanResult, error) {
	return storage.ScanResult{VDIs: map[string]storage.ScannedVDI{}}, nil
}

func (noopSMAPI) DataDestroy(ctx context.Context, vdi *model.VDI) error {
	return nil
}
