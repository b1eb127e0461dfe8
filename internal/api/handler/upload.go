package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/bundlenudge/bundlenudge/internal/api/middleware"
	"github.com/bundlenudge/bundlenudge/internal/api/request"
	"github.com/bundlenudge/bundlenudge/internal/api/response"
	"github.com/bundlenudge/bundlenudge/internal/core"
	"github.com/bundlenudge/bundlenudge/internal/model"
)

// maxUploadBytes caps the request body read for a bundle upload. The
// validator enforces the real per-bundle limit; this is the transport guard.
const maxUploadBytes = 64 << 20

// Upload handles bundle intake and job status endpoints.
type Upload struct {
	svc *core.UploadService
}

func NewUpload(svc *core.UploadService) *Upload {
	return &Upload{svc: svc}
}

// Submit takes the raw bundle bytes, validates them synchronously, and queues
// the upload on the caller's tier lane. The response carries the job to poll
// plus the validation report.
func (h *Upload) Submit(w http.ResponseWriter, r *http.Request) {
	appID, err := request.RequireID(chi.URLParam(r, "appID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "read bundle body: "+err.Error())
		return
	}
	if len(data) == 0 {
		response.WriteError(w, http.StatusBadRequest, "empty bundle body")
		return
	}
	if len(data) > maxUploadBytes {
		response.WriteError(w, http.StatusRequestEntityTooLarge, "bundle exceeds upload limit")
		return
	}

	identity := mw.GetIdentity(r.Context())
	job, validation, err := h.svc.Submit(r.Context(), appID, identity.Tier, data)
	if err != nil {
		// Validation failures still return the report so the CLI can show
		// the operator what to fix.
		response.WriteJSON(w, statusForSubmit(err), map[string]any{
			"error":      err.Error(),
			"code":       core.ErrCode(err),
			"validation": validation,
		})
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]any{
		"job":        job,
		"validation": validation,
	})
}

func statusForSubmit(err error) int {
	switch core.ErrCode(err) {
	case model.CodeInvalidBundle:
		return http.StatusUnprocessableEntity
	case model.CodeUnknownTier:
		return http.StatusBadRequest
	case model.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// GetJob reports the current status of an upload job.
func (h *Upload) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "jobID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.svc.GetJob(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, job)
}
