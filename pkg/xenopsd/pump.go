package xenopsd

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
)

// Adapter runs the two event pumps xapi keeps open against one xenopsd
// queue (spec §4.5): one draining xapi's own event bus to push state
// changes down, one draining xenopsd's event stream to pull observed
// state up. Both are supervised by an errgroup.Group so that either pump
// dying tears down the other and Run returns, letting the caller's retry
// loop redial.
type Adapter struct {
	queue string
	sock  string
	log   *logger.Logger
	store *db.Store
	cache *Cache
	sup   *Suppression
	tasks *TaskBridge

	// host, when set via SetHost, is this process's own host ref, used by
	// resyncResidentOn (§4.5) to tell "resident on me" apart from
	// "resident on some other pool member" when both appear in the DB.
	// Left empty in a single-adapter deployment, where every VM xenopsd
	// reports running is by definition resident on this host.
	host model.Ref

	// barrierSeq mints the ids InjectBarrier/WaitBarrier key on, local to
	// this adapter so concurrent suppression-window closes and resyncs
	// never collide.
	barrierSeq atomic.Int64

	connMu sync.RWMutex
	conn   *Client // set while Run's connection is live; nil otherwise
}

func NewAdapter(queue, sockPath string, store *db.Store, log *logger.Logger) *Adapter {
	return &Adapter{
		queue: queue,
		sock:  sockPath,
		log:   log,
		store: store,
		cache: NewCache(),
		sup:   NewSuppression(),
		tasks: NewTaskBridge(),
	}
}

// SetHost records this process's own host ref, letting resyncResidentOn
// tell a DB row legitimately resident on a different pool member apart
// from one this host's xenopsd simply hasn't reported yet.
func (a *Adapter) SetHost(ref model.Ref) {
	a.host = ref
}

// nextBarrierID mints a fresh id for InjectBarrier/WaitBarrier.
func (a *Adapter) nextBarrierID() int {
	return int(a.barrierSeq.Add(1))
}

// Run dials once and pumps both directions until either fails or ctx is
// cancelled, then returns. Callers wrap Run in RunWithBackoff for
// reconnect-on-failure behaviour.
func (a *Adapter) Run(ctx context.Context) error {
	client, err := Dial(ctx, a.queue, a.sock, a.log)
	if err != nil {
		return err
	}
	defer client.Close()

	a.connMu.Lock()
	a.conn = client
	a.connMu.Unlock()
	defer func() {
		a.connMu.Lock()
		a.conn = nil
		a.connMu.Unlock()
	}()

	if err := a.resyncResidentOn(ctx, client); err != nil {
		a.log.Error("resync_resident_on failed", zap.String("queue", a.queue), zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.pumpFromXapi(ctx, client) })
	g.Go(func() error { return a.pumpFromHypervisor(ctx, client) })
	return g.Wait()
}

// RunWithBackoff keeps calling Run, backing off exponentially between
// attempts, until ctx is cancelled, using cenkalti/backoff/v3 the same
// way internal/common/core.RetryMode.Backoff drives a retryable
// operation, generalised here from a single-call retry to a
// supervise-and-reconnect loop.
func (a *Adapter) RunWithBackoff(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0 // retry forever; only ctx cancellation stops us

	for {
		if ctx.Err() != nil {
			return
		}
		err := a.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			a.log.Warn("xenopsd pump exited, reconnecting",
				zap.String("queue", a.queue), zap.Error(err))
		}
		wait := b.NextBackOff()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

// pumpFromXapi watches the local event bus for VM writes and
// pushes metadata to xenopsd when a row enters a state (scheduled to be
// resident, about to migrate) that requires it.
func (a *Adapter) pumpFromXapi(ctx context.Context, client *Client) error {
	bus := a.store.Bus
	var from events.Token
	for {
		evs, next := bus.Wait(ctx, from, []string{string(model.ClassVM)})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		from = next
		for _, ev := range evs {
			if a.sup.Active(ev.Ref) {
				continue
			}
			vm, ok := a.store.VMs.Get(ev.Ref)
			if !ok {
				a.cache.ClearPushed(ev.Ref)
				continue
			}
			if vm.ScheduledToBeResident == "" {
				continue
			}
			if err := a.pushMetadata(ctx, client, &vm); err != nil {
				a.log.Error("metadata push failed", zap.String("vm", string(vm.Ref)), zap.Error(err))
			}
		}
	}
}

// pumpFromHypervisor calls xenopsd's own event-wait endpoint in a loop,
// routing each reported update through the matching update_<kind>
// handler (spec §4.4), which diffs it against xenops_cache and writes
// only the DB fields that actually changed.
func (a *Adapter) pumpFromHypervisor(ctx context.Context, client *Client) error {
	var from int
	for {
		var resp hypervisorEventResponse
		if err := client.Call(ctx, "VM.events", map[string]any{"from": from}, &resp); err != nil {
			return err
		}
		from = resp.Next
		for _, u := range resp.Updates {
			if u.Kind == kindVM || u.Kind == "" {
				a.updateVM(ctx, client, u)
			} else {
				a.updateDevice(u)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

type hypervisorEventResponse struct {
	Next    int              `json:"next"`
	Updates []observedUpdate `json:"updates"`
}

// observedUpdate is one entry of xenopsd's event-wait/list response. Kind
// selects which fields are meaningful: a "VM" entry carries the VM-level
// fields, anything else carries Device/CurrentlyAttached for one of the
// VM's VBD/VIF/PCI/VGPU/VUSB rows, addressed by that device's own xapi
// Ref (the adapter's own wire convention).
type observedUpdate struct {
	Kind       string           `json:"kind"`
	XenopsID   string           `json:"id"`
	Device     string           `json:"device,omitempty"`
	Domid      int              `json:"domid"`
	PowerState model.PowerState `json:"power_state"`

	DomainType    model.DomainType  `json:"domain_type,omitempty"`
	GuestAgent    map[string]string `json:"guest_agent,omitempty"`
	Featureset    string            `json:"featureset,omitempty"`
	Vendor        string            `json:"vendor,omitempty"`
	LastStartTime time.Time         `json:"last_start_time"`
	Consoles      []string          `json:"consoles,omitempty"`

	CurrentlyAttached bool `json:"currently_attached,omitempty"`
}

func (u observedUpdate) toObservedState() ObservedState {
	return ObservedState{
		Domid:         u.Domid,
		PowerState:    u.PowerState,
		DomainType:    u.DomainType,
		GuestAgent:    u.GuestAgent,
		Featureset:    u.Featureset,
		Vendor:        u.Vendor,
		LastStartTime: u.LastStartTime,
		Consoles:      u.Consoles,
	}
}

type vmListResponse struct {
	VMs []observedUpdate `json:"vms"`
}

// statVM asks xenopsd for one VM's current state directly, used by
// endSuppression to force the refresh §4.4's with_suppressed mandates on
// a window's last withdrawal.
func (a *Adapter) statVM(ctx context.Context, client *Client, xenopsID string) (observedUpdate, error) {
	var u observedUpdate
	if err := client.Call(ctx, "VM.stat", map[string]any{"id": xenopsID}, &u); err != nil {
		return observedUpdate{}, err
	}
	u.Kind = kindVM
	u.XenopsID = xenopsID
	return u, nil
}

// resyncResidentOn reconciles the database's VM.resident_on fields against
// whatever xenopsd reports as actually running, immediately after a
// (re)connect (spec §4.5 "resync_resident_on"). It computes the four sets
// the spec names and applies the DB correction each one mandates, then
// awaits a barrier per freshly-reconciled resident VM so a caller blocked
// on WaitBarrier observes the correction before proceeding.
func (a *Adapter) resyncResidentOn(ctx context.Context, client *Client) error {
	var resp vmListResponse
	if err := client.Call(ctx, "VM.list", nil, &resp); err != nil {
		return fmt.Errorf("resync_resident_on: VM.list: %w", err)
	}

	reported := make(map[string]observedUpdate, len(resp.VMs))
	for _, u := range resp.VMs {
		u.Kind = kindVM
		reported[u.XenopsID] = u
		a.cache.SetObserved(u.XenopsID, u.toObservedState())
	}

	var toRefresh []model.Ref

	// xenopsd_vms_unknown_to_xapi / xenopsd_vms_resident_nowhere /
	// xenopsd_vms_in_xapi_resident_elsewhere: walk what xenopsd reports.
	for xenopsID, u := range reported {
		id, err := uuid.FromString(xenopsID)
		if err != nil {
			continue
		}
		vmRow, ok := a.store.VMs.GetByUUID(id)
		if !ok {
			a.log.Warn("xenopsd reports a VM unknown to the database; shutting it down",
				zap.String("queue", a.queue), zap.String("xenops_id", xenopsID))
			var ack struct{}
			if err := client.Call(ctx, "VM.shutdown", map[string]any{"id": xenopsID, "clean": false}, &ack); err != nil {
				a.log.Error("failed to shut down stray domain", zap.String("xenops_id", xenopsID), zap.Error(err))
			}
			continue
		}

		switch {
		case vmRow.ResidentOn == "":
			// xenopsd_vms_resident_nowhere: actually running, DB had no
			// resident_on recorded (likely this host never finished
			// marking it before a restart).
			vmRow.ResidentOn = a.host
			vmRow.PowerState = u.PowerState
			vmRow.Domid = u.Domid
			vmRow = db.Put(a.store, a.store.VMs, vmRow)
		case a.host != "" && vmRow.ResidentOn != a.host:
			// xenopsd_vms_in_xapi_resident_elsewhere: this hypervisor is
			// ground truth for what it's actually running.
			vmRow.ResidentOn = a.host
			vmRow.PowerState = u.PowerState
			vmRow.Domid = u.Domid
			vmRow = db.Put(a.store, a.store.VMs, vmRow)
		}
		toRefresh = append(toRefresh, vmRow.Ref)
	}

	// xapi_vms_not_in_xenopsd: the DB believes a VM is resident on this
	// host, but this host's xenopsd has no record of it at all.
	for _, vmRow := range a.store.VMs.List() {
		if vmRow.ResidentOn == "" {
			continue
		}
		if a.host != "" && vmRow.ResidentOn != a.host {
			continue
		}
		if _, ok := reported[vmRow.UUID.String()]; ok {
			continue
		}
		vmRow.PowerState = model.PowerHalted
		vmRow.ResidentOn = ""
		vmRow.Domid = -1
		db.Put(a.store, a.store.VMs, vmRow)
	}

	for _, ref := range toRefresh {
		barrierID := a.nextBarrierID()
		a.store.Bus.InjectBarrier(barrierID)
		if err := a.store.Bus.WaitBarrier(ctx, barrierID); err != nil {
			return err
		}
	}
	return nil
}
