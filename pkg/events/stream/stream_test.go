package stream

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
)

func TestHandlerStreamsMatchingEvents(t *testing.T) {
	log, err := logger.New(false)
	require.NoError(t, err)
	bus := events.NewBus()
	store := db.New(bus, nil)

	server := httptest.NewServer(NewHandler(bus, log))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(subscribeRequest{Classes: []string{string(model.ClassVM)}}))

	vmRow := db.Put(store, store.VMs, model.VM{Row: model.NewRow(model.ClassVM)})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var got batch
	require.NoError(t, conn.ReadJSON(&got))
	require.Len(t, got.Events, 1)
	require.Equal(t, vmRow.Ref, got.Events[0].Ref)
}
