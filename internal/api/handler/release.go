package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bundlenudge/bundlenudge/internal/api/request"
	"github.com/bundlenudge/bundlenudge/internal/api/response"
	"github.com/bundlenudge/bundlenudge/internal/core"
	"github.com/bundlenudge/bundlenudge/internal/model"
	"github.com/bundlenudge/bundlenudge/internal/platform"
)

// Release handles release lifecycle endpoints.
type Release struct {
	svc       *core.ReleaseService
	uploads   *core.UploadService
	telemetry *core.TelemetryService
}

func NewRelease(svc *core.ReleaseService, uploads *core.UploadService, telemetry *core.TelemetryService) *Release {
	return &Release{svc: svc, uploads: uploads, telemetry: telemetry}
}

// Create makes a draft release. When a job_id is given, the referenced upload
// must already be completed; its bundle becomes the release's bundle.
func (h *Release) Create(w http.ResponseWriter, r *http.Request) {
	appID, err := request.RequireID(chi.URLParam(r, "appID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.CreateRelease
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	release := &model.Release{
		ID:            platform.NewName("rel_"),
		AppID:         appID,
		Version:       req.Version,
		Status:        model.ReleaseStatusDraft,
		MinAppVersion: req.MinAppVersion,
		MaxAppVersion: req.MaxAppVersion,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.RolloutPercent != nil {
		release.RolloutPercent = *req.RolloutPercent
	} else {
		release.RolloutPercent = 100
	}

	if req.JobID != "" {
		job, err := h.uploads.GetJob(r.Context(), req.JobID)
		if err != nil {
			response.WriteServiceError(w, err)
			return
		}
		if job.Status != model.UploadStatusCompleted {
			response.WriteServiceError(w, core.NewError(model.CodeMissingBundle,
				"upload job %s is %s, not completed", job.ID, job.Status))
			return
		}
		if job.AppID != appID {
			response.WriteServiceError(w, core.NewError(model.CodeValidation,
				"upload job %s belongs to a different app", job.ID))
			return
		}
		release.BundleHash = &job.BundleHash
		release.BundleRef = &job.BundleRef
		release.BundleSize = job.BundleSize
	}

	if err := h.svc.Create(r.Context(), release); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, release)
}

func (h *Release) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, release)
}

func (h *Release) ListByApp(w http.ResponseWriter, r *http.Request) {
	appID, err := request.RequireID(chi.URLParam(r, "appID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	releases, err := h.svc.ListByApp(r.Context(), appID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, releases)
}

func (h *Release) Activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Activate)
}

func (h *Release) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Pause)
}

func (h *Release) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Resume)
}

func (h *Release) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (*model.Release, error)) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, err := fn(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, release)
}

// UpdateRollout changes the staged rollout percentage of an active release.
func (h *Release) UpdateRollout(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.UpdateRollout
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, err := h.svc.UpdateRollout(r.Context(), id, req.Percent)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, release)
}

// Promote points a channel at the release.
func (h *Release) Promote(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.PromoteRelease
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, err := h.svc.Promote(r.Context(), id, req.ChannelID)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, release)
}

// Rollback rolls the release back and repoints its channel at the previous
// healthy release.
func (h *Release) Rollback(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.RollbackRelease
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	release, err := h.svc.Rollback(r.Context(), id, req.Reason)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, release)
}

// ListTelemetry returns recent telemetry events for a release, newest first.
func (h *Release) ListTelemetry(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.telemetry.ListByRelease(r.Context(), id, request.ParseLimit(r))
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, events)
}
