package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newDeviceHandler() *Device {
	return NewDevice(nil, nil, nil)
}

func TestDeviceCheck_InvalidJSON(t *testing.T) {
	h := newDeviceHandler()
	rec := httptest.NewRecorder()
	r := newRequestRaw(http.MethodPost, "/device/check", "{bad")

	h.Check(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestDeviceCheck_MissingFields(t *testing.T) {
	h := newDeviceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/device/check", map[string]any{
		"device_id": "d-1",
	})

	h.Check(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestDeviceCheck_BadAppVersion(t *testing.T) {
	h := newDeviceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/device/check", map[string]any{
		"device_id":   "d-1",
		"app_id":      "app-1",
		"channel":     "production",
		"app_version": "one point two",
	})

	h.Check(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceTelemetry_MissingType(t *testing.T) {
	h := newDeviceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodPost, "/device/telemetry", map[string]any{
		"device_id": "d-1",
		"app_id":    "app-1",
	})

	h.Telemetry(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceDownloadBundle_MissingParams(t *testing.T) {
	h := newDeviceHandler()
	rec := httptest.NewRecorder()
	r := newRequest(http.MethodGet, "/device/bundles//", nil)
	r = withChiURLParams(r, map[string]string{"appID": "", "hash": ""})

	h.DownloadBundle(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
