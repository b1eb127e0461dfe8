package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bundlenudge/bundlenudge/internal/api/request"
	"github.com/bundlenudge/bundlenudge/internal/api/response"
	"github.com/bundlenudge/bundlenudge/internal/core"
	"github.com/bundlenudge/bundlenudge/internal/model"
	"github.com/bundlenudge/bundlenudge/internal/storage"
)

// BundleReader is the slice of the storage uploader the download path needs.
type BundleReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Device handles the unauthenticated device-facing endpoints: check for
// update, telemetry ingest, and bundle download. Devices hold no credentials;
// they identify themselves by app, channel, and a stable install id.
type Device struct {
	checks    *core.CheckService
	telemetry *core.TelemetryService
	bundles   BundleReader
}

func NewDevice(checks *core.CheckService, telemetry *core.TelemetryService, bundles BundleReader) *Device {
	return &Device{checks: checks, telemetry: telemetry, bundles: bundles}
}

// Check answers a device's check-for-update call.
func (h *Device) Check(w http.ResponseWriter, r *http.Request) {
	var req request.DeviceCheck
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.checks.Check(r.Context(), core.CheckRequest{
		DeviceID:    req.DeviceID,
		AppID:       req.AppID,
		Channel:     req.Channel,
		AppVersion:  req.AppVersion,
		CurrentHash: req.CurrentHash,
	})
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}

// Telemetry ingests a device status report. The only hard failure is an
// unknown event type; everything else is accepted.
func (h *Device) Telemetry(w http.ResponseWriter, r *http.Request) {
	var req request.DeviceTelemetry
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	event := &model.TelemetryEvent{
		DeviceID:   req.DeviceID,
		AppID:      req.AppID,
		ReleaseID:  req.ReleaseID,
		Type:       req.Type,
		ReportedAt: req.ReportedAt,
	}
	if event.ReportedAt.IsZero() {
		event.ReportedAt = time.Now()
	}
	if req.Payload != nil {
		payload, err := json.Marshal(req.Payload)
		if err != nil {
			response.WriteError(w, http.StatusBadRequest, "encode payload: "+err.Error())
			return
		}
		event.Payload = payload
	}

	if err := h.telemetry.Ingest(r.Context(), event); err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, map[string]string{"id": event.ID})
}

// DownloadBundle streams a bundle to the device. The hash in the URL is the
// content address; the device re-verifies it before applying.
func (h *Device) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	appID, err := request.RequireID(chi.URLParam(r, "appID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := request.RequireID(chi.URLParam(r, "hash"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.bundles.Get(r.Context(), storage.BundleKey(appID, hash))
	if err != nil {
		response.WriteError(w, http.StatusNotFound, "bundle not found")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", `"`+hash+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
