package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bundlenudge/bundlenudge/internal/api/request"
	"github.com/bundlenudge/bundlenudge/internal/api/response"
	"github.com/bundlenudge/bundlenudge/internal/core"
	"github.com/bundlenudge/bundlenudge/internal/model"
	"github.com/bundlenudge/bundlenudge/internal/platform"
)

// Channel handles distribution channel endpoints.
type Channel struct {
	svc *core.ChannelService
}

func NewChannel(svc *core.ChannelService) *Channel {
	return &Channel{svc: svc}
}

func (h *Channel) Create(w http.ResponseWriter, r *http.Request) {
	appID, err := request.RequireID(chi.URLParam(r, "appID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CreateChannel
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	channel := &model.Channel{
		ID:        platform.NewName("ch_"),
		AppID:     appID,
		Name:      req.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.svc.Create(r.Context(), channel); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, channel)
}

func (h *Channel) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	channel, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, channel)
}

func (h *Channel) ListByApp(w http.ResponseWriter, r *http.Request) {
	appID, err := request.RequireID(chi.URLParam(r, "appID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	channels, err := h.svc.ListByApp(r.Context(), appID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, channels)
}
