package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/model"
)

func newTestLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(false)
	require.NoError(t, err)
	return log
}

type fakeStoreReady struct{ signalled bool }

func (f *fakeStoreReady) SignalReady() { f.signalled = true }

type fakePeer struct {
	status  StatusResult
	version semver.Version
	err     error
}

func (f *fakePeer) HostStatusCheck(ctx context.Context, myIP string) (StatusResult, error) {
	return f.status, f.err
}

func (f *fakePeer) MasterVersion(ctx context.Context) (semver.Version, error) {
	return f.version, nil
}

func TestRunMasterSignalsReady(t *testing.T) {
	store := &fakeStoreReady{}
	seq := NewSequencer(newTestLogger(t), semver.MustParse("1.0.0"), &fakePeer{}, store)

	require.NoError(t, seq.RunMaster(context.Background()))
	assert.True(t, store.signalled)
}

func TestRunSlaveJoinsOnOK(t *testing.T) {
	store := &fakeStoreReady{}
	peer := &fakePeer{status: StatusOK, version: semver.MustParse("1.0.0")}
	seq := NewSequencer(newTestLogger(t), semver.MustParse("1.0.0"), peer, store)

	require.NoError(t, seq.RunSlave(context.Background(), "10.0.0.1"))
	assert.True(t, store.signalled)
	assert.False(t, seq.emergency.Active())
}

func TestRunSlaveRefusesWhenVersionHigherThanMaster(t *testing.T) {
	store := &fakeStoreReady{}
	peer := &fakePeer{status: StatusOK, version: semver.MustParse("1.0.0")}
	seq := NewSequencer(newTestLogger(t), semver.MustParse("2.0.0"), peer, store)
	seq.emergency.restartFunc = func() {} // neutralise the real self-restart for the test

	err := seq.RunSlave(context.Background(), "10.0.0.1")
	assert.Error(t, err)
	assert.False(t, store.signalled)
	assert.True(t, seq.emergency.Active())
}

func TestRunSlaveUnknownHostEntersEmergencyAndRetries(t *testing.T) {
	store := &fakeStoreReady{}
	peer := &fakePeer{status: StatusUnknownHost}
	seq := NewSequencer(newTestLogger(t), semver.MustParse("1.0.0"), peer, store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := seq.RunSlave(ctx, "10.0.0.1")
	assert.Error(t, err)
	assert.True(t, seq.emergency.Active())
}

func TestRunBrokenNeverTalksToMaster(t *testing.T) {
	store := &fakeStoreReady{}
	peer := &fakePeer{status: StatusOK}
	seq := NewSequencer(newTestLogger(t), semver.MustParse("1.0.0"), peer, store)

	seq.emergency.restartFunc = func() {}
	seq.RunBroken(model.NewApiError(model.ErrInternalError, "hardware fault"))
	assert.False(t, store.signalled)
	assert.True(t, seq.emergency.Active())
}
