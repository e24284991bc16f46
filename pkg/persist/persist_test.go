package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDBConf(t *testing.T) {
	dir := t.TempDir()
	confPath := filepath.Join(dir, "db.conf")
	loc1 := filepath.Join(dir, "a.db")
	loc2 := filepath.Join(dir, "b.db")

	require.NoError(t, os.WriteFile(confPath, []byte(loc1+"\n"+loc2+"\n"), 0o600))
	require.NoError(t, os.WriteFile(loc1+".generation", []byte("7"), 0o600))

	conf, err := ReadDBConf(confPath)
	require.NoError(t, err)
	require.Len(t, conf.Locations, 2)
	assert.Equal(t, uint64(7), conf.Locations[0].Generation)
	assert.Equal(t, uint64(0), conf.Locations[1].Generation)
}

func TestLocalDBRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.db")

	db, err := OpenLocalDB(path)
	require.NoError(t, err)

	_, ok := db.Get("ha_armed")
	assert.False(t, ok)

	require.NoError(t, db.Set("ha_armed", "true"))
	assert.True(t, db.GetBool("ha_armed"))

	reopened, err := OpenLocalDB(path)
	require.NoError(t, err)
	assert.True(t, reopened.GetBool("ha_armed"))
}

func TestNetworkResetTriggerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network-reset")
	assert.False(t, NetworkResetPending(path))

	require.NoError(t, os.WriteFile(path, []byte{}, 0o600))
	assert.True(t, NetworkResetPending(path))

	require.NoError(t, ClearNetworkReset(path))
	assert.False(t, NetworkResetPending(path))
}

func TestCertRenewalMarkerLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cert-renew")
	assert.False(t, CertRenewalPending(path))

	require.NoError(t, MarkCertRenewal(path))
	assert.True(t, CertRenewalPending(path))

	require.NoError(t, ClearCertRenewal(path))
	assert.False(t, CertRenewalPending(path))
}
