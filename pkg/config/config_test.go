package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/core"
)

func clearEnv(t *testing.T) {
	vars := []string{
		"XAPI_ROLE", "XAPI_DB_PATHS", "XAPI_DB_QUORUM", "XAPI_POOL_SECRET",
		"XAPI_BIND_ADDRESS", "XAPI_MASTER_ADDRESS", "XAPI_XENOPSD_QUEUES",
		"XAPI_SCAN_CONCURRENCY", "XAPI_DEVELOPMENT", "XAPI_RETRY_MODE",
		"XAPI_RETRY_MAX_TIME",
	}
	for _, v := range vars {
		t.Setenv(v, "")
	}
}

func TestNewRequiresRole(t *testing.T) {
	clearEnv(t)
	_, err := New()
	assert.Error(t, err)
}

func TestNewMemberRequiresMasterAddress(t *testing.T) {
	clearEnv(t)
	t.Setenv("XAPI_ROLE", "member")
	t.Setenv("XAPI_DB_PATHS", "/tmp/a.db")
	t.Setenv("XAPI_POOL_SECRET", "secret")
	_, err := New()
	assert.Error(t, err)
}

func TestNewCoordinatorDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("XAPI_ROLE", "coordinator")
	t.Setenv("XAPI_DB_PATHS", "/tmp/a.db,/tmp/b.db,/tmp/c.db")
	t.Setenv("XAPI_POOL_SECRET", "secret")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "coordinator", cfg.Role)
	assert.Len(t, cfg.DBPaths, 3)
	assert.Equal(t, 2, cfg.DBQuorum) // majority of 3
	assert.Equal(t, core.None, cfg.RetryMode)
}

func TestXenopsdQueuesParsing(t *testing.T) {
	clearEnv(t)
	t.Setenv("XAPI_ROLE", "coordinator")
	t.Setenv("XAPI_DB_PATHS", "/tmp/a.db")
	t.Setenv("XAPI_POOL_SECRET", "secret")
	t.Setenv("XAPI_XENOPSD_QUEUES", "main=/var/run/xenopsd.sock,gpu=/var/run/xenopsd-gpu.sock")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/var/run/xenopsd.sock", cfg.XenopsdQueues["main"])
	assert.Equal(t, "/var/run/xenopsd-gpu.sock", cfg.XenopsdQueues["gpu"])
}

func TestToRetryMode(t *testing.T) {
	assert.Equal(t, core.Backoff, ToRetryMode("backoff"))
	assert.Equal(t, core.None, ToRetryMode("bogus"))
}
