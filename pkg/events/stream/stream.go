// Package stream offers the event bus's long-poll feed (pkg/events) over
// a websocket as well, for long-lived UI subscribers that would otherwise
// have to re-poll /event.from on a timer. It is additive: the long-poll
// contract is unchanged, this is a second transport onto the same Bus.
// Upgrading uses gorilla/websocket's Upgrader; the socket carries plain
// JSON event batches rather than a JSON-RPC conversation.
package stream

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades incoming HTTP requests to websockets and streams Bus
// events matching the connection's requested filters.
type Handler struct {
	bus *events.Bus
	log *logger.Logger
}

func NewHandler(bus *events.Bus, log *logger.Logger) *Handler {
	return &Handler{bus: bus, log: log}
}

// subscribeRequest is the single message a client sends right after
// connecting, naming which classes/refs it wants (events package's
// filter syntax: "VM", "VM/<ref>").
type subscribeRequest struct {
	Classes []string     `json:"classes"`
	From    events.Token `json:"from"`
}

type batch struct {
	Events []events.Event `json:"events"`
	Next   events.Token   `json:"next"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	var sub subscribeRequest
	if err := conn.ReadJSON(&sub); err != nil {
		return
	}

	ctx := r.Context()
	from := sub.From
	for {
		evs, next := h.bus.Wait(ctx, from, sub.Classes)
		if ctx.Err() != nil {
			return
		}
		if err := conn.WriteJSON(batch{Events: evs, Next: next}); err != nil {
			return
		}
		from = next
	}
}
