// Package bootstrap implements the coordinator/member role state machine
// (spec §4.5): which role this host starts as, the slave-join retry
// ladder against the master, emergency mode, and the startup sequencer
// that threads master-only/slave-only/background startup tasks together.
package bootstrap

import (
	"context"
	"time"

	"github.com/blang/semver/v4"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/model"
)

// Role is a node's resolved position in the pool.
type Role string

const (
	RoleMaster Role = "master"
	RoleSlave  Role = "slave"
	RoleBroken Role = "broken"
)

// Peer is the subset of the peer-RPC surface (§6) the bootstrap state
// machine needs to talk to the master.
type Peer interface {
	// HostStatusCheck calls Pool.hello and returns which of the named
	// StatusResult outcomes the master reported.
	HostStatusCheck(ctx context.Context, myIP string) (StatusResult, error)
	// MasterVersion returns the master's advertised xapi version.
	MasterVersion(ctx context.Context) (semver.Version, error)
}

type StatusResult string

const (
	StatusOK               StatusResult = "ok"
	StatusCannotTalkBack   StatusResult = "cannot_talk_back"
	StatusUnknownHost      StatusResult = "unknown_host"
	StatusAuthFailed       StatusResult = "session_authentication_failed"
)

// Sequencer drives one node's startup: resolve its role, run the
// corresponding branch of the state machine, and land in either steady
// state or emergency mode.
type Sequencer struct {
	log         *logger.Logger
	ownVersion  semver.Version
	peer        Peer
	emergency   *Emergency
	store       StoreReady
}

// StoreReady is the narrow "database ready" signal the replication
// endpoint (pkg/dbserver) blocks on; bootstrap owns flipping it once the
// master branch has populated the DB, or once a slave has pulled it.
type StoreReady interface {
	SignalReady()
}

func NewSequencer(log *logger.Logger, ownVersion semver.Version, peer Peer, store StoreReady) *Sequencer {
	return &Sequencer{
		log:        log,
		ownVersion: ownVersion,
		peer:       peer,
		emergency:  NewEmergency(log),
		store:      store,
	}
}

// RunMaster is the Master branch of §4.5's state machine: populate DB,
// signal database-ready, and return — the caller is expected to have
// already run master-only startup tasks before calling this, since DB
// population is itself one of those tasks.
func (s *Sequencer) RunMaster(ctx context.Context) error {
	s.store.SignalReady()
	s.log.Info("started as pool coordinator")
	return nil
}

// RunSlave is the Slave(master_addr) branch: retry host_status_check_with_master
// until it succeeds or the context is cancelled, checking the version
// gate along the way, then signal ready. Enters emergency mode on any
// unrecoverable outcome.
func (s *Sequencer) RunSlave(ctx context.Context, myIP string) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		status, err := s.peer.HostStatusCheck(ctx, myIP)
		if err != nil {
			s.emergency.Enter(model.NewApiError(model.ErrInternalError, err.Error()))
			s.sleepRetry(ctx, cannotTalkBackRetry)
			continue
		}

		switch status {
		case StatusOK:
			masterVersion, err := s.peer.MasterVersion(ctx)
			if err != nil {
				s.sleepRetry(ctx, cannotTalkBackRetry)
				continue
			}
			if s.ownVersion.GT(masterVersion) {
				s.emergency.Enter(model.NewApiError(model.ErrHostXAPIVersionHigherThanCoord, s.ownVersion.String(), masterVersion.String()))
				return errVersionTooHigh
			}
			s.emergency.Clear()
			s.store.SignalReady()
			s.log.Info("joined pool as member")
			return nil

		case StatusCannotTalkBack:
			s.emergency.Enter(model.NewApiError(model.ErrHostMasterCannotTalkBack))
			s.sleepRetry(ctx, cannotTalkBackRetry)

		case StatusUnknownHost, StatusAuthFailed:
			s.emergency.Enter(model.NewApiError(model.ErrHostUnknownToMaster))
			s.sleepRetry(ctx, unknownHostRetry)

		default:
			s.sleepRetry(ctx, cannotTalkBackRetry)
		}
	}
}

// RunBroken is the Broken branch: go straight to emergency mode without
// ever attempting to talk to the master.
func (s *Sequencer) RunBroken(reason *model.ApiError) {
	s.emergency.Enter(reason)
}

func (s *Sequencer) sleepRetry(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

const (
	cannotTalkBackRetry = 5 * time.Second
	unknownHostRetry    = 5 * time.Minute
)
