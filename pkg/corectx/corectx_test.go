package corectx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/config"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Role:            "coordinator",
		PoolSecret:      "s3cr3t",
		XenopsdQueues:   map[string]string{"main": "/tmp/xenopsd-main.sock"},
		ScanConcurrency: 2,
	}
}

func TestNewAssemblesEveryComponent(t *testing.T) {
	log, err := logger.New(false)
	require.NoError(t, err)

	core, err := New(testConfig(), log)
	require.NoError(t, err)

	assert.NotNil(t, core.Store)
	assert.NotNil(t, core.Tasks)
	assert.NotNil(t, core.Sched)
	assert.NotNil(t, core.DBServer)
	assert.NotNil(t, core.Sequencer)
	assert.NotNil(t, core.PeerServer)
	assert.NotNil(t, core.RPCServer)
	assert.NotNil(t, core.VM)
	assert.NotNil(t, core.VDI)
	assert.NotNil(t, core.SR)
	assert.NotNil(t, core.VBD)
	assert.NotNil(t, core.VIF)
	assert.Len(t, core.Xenopsd, 1)
}

func TestNewRequiresExactlyOneXenopsdQueue(t *testing.T) {
	log, err := logger.New(false)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.XenopsdQueues = map[string]string{}
	_, err = New(cfg, log)
	assert.Error(t, err)
}

func TestNewMemberWithMasterAddressBuildsSequencer(t *testing.T) {
	log, err := logger.New(false)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Role = "member"
	cfg.MasterAddress = "https://master.example.com"
	core, err := New(cfg, log)
	require.NoError(t, err)
	assert.NotNil(t, core.Sequencer)
}

func TestPoolStateReadsSingletonRow(t *testing.T) {
	store := db.New(nil, nil)
	p := &poolState{store: store}
	assert.False(t, p.HAEnabled())
	assert.False(t, p.RollingUpgrade())

	db.Put(store, store.Pools, model.Pool{Row: model.NewRow(model.ClassPool), HAEnabled: true, RollingUpgradeInProgress: true})
	assert.True(t, p.HAEnabled())
	assert.True(t, p.RollingUpgrade())
}
