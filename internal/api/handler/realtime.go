package handler

import (
	"net/http"

	"github.com/bundlenudge/bundlenudge/internal/api/middleware"
	"github.com/bundlenudge/bundlenudge/internal/api/request"
	"github.com/bundlenudge/bundlenudge/internal/api/response"
	"github.com/bundlenudge/bundlenudge/internal/hub"
)

// Realtime handles the websocket endpoint and the internal broadcast hook.
type Realtime struct {
	hub *hub.Hub
}

func NewRealtime(h *hub.Hub) *Realtime {
	return &Realtime{hub: h}
}

// Connect upgrades to a websocket and runs the subscription session. The
// session records which API key opened it.
func (h *Realtime) Connect(w http.ResponseWriter, r *http.Request) {
	var principal string
	if identity := middleware.GetIdentity(r.Context()); identity != nil {
		principal = identity.KeyID
	}
	h.hub.Serve(w, r, principal)
}

// Broadcast lets trusted services push an event to subscribers. The response
// reports how many sessions received it.
func (h *Realtime) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req request.Broadcast
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	delivered := h.hub.Broadcast(req.Event, req.Resource, req.ID, req.Data)
	response.WriteJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}

// Sessions lists connected realtime sessions for operators. Snapshots cover
// every API instance sharing the session store, not just this one.
func (h *Realtime) Sessions(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.hub.Snapshots(r.Context())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"connected": h.hub.SessionCount(),
		"sessions":  snapshots,
	})
}
