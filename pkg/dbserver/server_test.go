package dbserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
)

func newTestServer(t *testing.T) (*Server, *db.Store, *ReadyGate) {
	log, err := logger.New(false)
	require.NoError(t, err)
	store := db.New(events.NewBus(), nil)
	gate := NewReadyGate()
	return NewServer(store, gate, log), store, gate
}

func TestPullBlocksUntilReady(t *testing.T) {
	s, _, gate := newTestServer(t)
	srv := httptest.NewServer(s)
	defer srv.Close()

	done := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/replication/pull")
		require.NoError(t, err)
		done <- resp
	}()

	select {
	case <-done:
		t.Fatal("pull should block until the database is ready")
	case <-time.After(50 * time.Millisecond):
	}

	gate.SignalReady()

	select {
	case resp := <-done:
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	case <-time.After(time.Second):
		t.Fatal("pull should have returned once ready")
	}
}

func TestPullReturnsSnapshot(t *testing.T) {
	s, store, gate := newTestServer(t)
	gate.SignalReady()
	db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM)})

	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/replication/pull")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body pullResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	vms, ok := body.Tables[string(model.ClassVM)].([]any)
	require.True(t, ok)
	assert.Len(t, vms, 1)
}

func TestStreamReturnsNewEventsSinceFrom(t *testing.T) {
	s, store, gate := newTestServer(t)
	gate.SignalReady()

	srv := httptest.NewServer(s)
	defer srv.Close()

	done := make(chan streamResponse, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/replication/stream?from=0")
		require.NoError(t, err)
		defer resp.Body.Close()
		var body streamResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		done <- body
	}()

	time.Sleep(20 * time.Millisecond)
	db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM)})

	select {
	case body := <-done:
		assert.Len(t, body.Events, 1)
	case <-time.After(time.Second):
		t.Fatal("stream should have observed the new event")
	}
}

func TestReadyGateSignalReadyIsIdempotent(t *testing.T) {
	gate := NewReadyGate()
	gate.SignalReady()
	assert.NotPanics(t, gate.SignalReady)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.NoError(t, gate.WaitReady(ctx))
}
