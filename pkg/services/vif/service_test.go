package vif

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
	"github.com/xapi-core/xapi-core/pkg/services"
	"github.com/xapi-core/xapi-core/pkg/taskmgr"
)

func newTestService(t *testing.T) (*Service, *db.Store) {
	log, err := logger.New(false)
	require.NoError(t, err)
	store := db.New(events.NewBus(), nil)
	deps := services.Deps{Store: store, Tasks: taskmgr.New(store, log), Log: log}
	return New(deps), store
}

func TestPlugRequiresRunningVM(t *testing.T) {
	svc, store := newTestService(t)
	vmRow := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM), PowerState: model.PowerHalted})
	vifRow := db.Put(store, store.VIFs, model.VIF{Row: model.NewRow(model.ClassVIF), VM: vmRow.Ref})

	_, err := svc.Plug(context.Background(), "", vifRow.Ref)
	assert.Error(t, err)
}

func TestUnplugDetaches(t *testing.T) {
	svc, store := newTestService(t)
	vifRow := db.Put(store, store.VIFs, model.VIF{Row: model.NewRow(model.ClassVIF), CurrentlyAttached: true})

	_, err := svc.Unplug(context.Background(), "", vifRow.Ref)
	require.NoError(t, err)

	updated, ok := store.VIFs.Get(vifRow.Ref)
	require.True(t, ok)
	assert.False(t, updated.CurrentlyAttached)
}
