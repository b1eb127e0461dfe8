package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	mw "github.com/bundlenudge/bundlenudge/internal/api/middleware"
	"github.com/bundlenudge/bundlenudge/internal/api/request"
	"github.com/bundlenudge/bundlenudge/internal/api/response"
	"github.com/bundlenudge/bundlenudge/internal/core"
	"github.com/bundlenudge/bundlenudge/internal/model"
	"github.com/bundlenudge/bundlenudge/internal/platform"
)

// App handles app registration endpoints.
type App struct {
	svc *core.AppService
}

func NewApp(svc *core.AppService) *App {
	return &App{svc: svc}
}

func (h *App) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateApp
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity := mw.GetIdentity(r.Context())
	now := time.Now()
	app := &model.App{
		ID:        platform.NewName("app_"),
		Name:      req.Name,
		Platform:  req.Platform,
		OrgID:     identity.OrgID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.svc.Create(r.Context(), app); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, app)
}

func (h *App) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	app, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, app)
}

func (h *App) List(w http.ResponseWriter, r *http.Request) {
	identity := mw.GetIdentity(r.Context())
	apps, err := h.svc.ListByOrg(r.Context(), identity.OrgID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, apps)
}
