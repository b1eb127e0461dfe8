package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// CheckRequest is the check-for-update call payload.
type CheckRequest struct {
	DeviceID    string `json:"device_id"`
	AppID       string `json:"app_id"`
	Channel     string `json:"channel"`
	AppVersion  string `json:"app_version"`
	CurrentHash string `json:"current_hash,omitempty"`
}

// CheckResult is the server's answer.
type CheckResult struct {
	UpdateAvailable bool   `json:"update_available"`
	ReleaseID       string `json:"release_id"`
	Version         string `json:"version"`
	BundleHash      string `json:"bundle_hash"`
	BundleSize      int64  `json:"bundle_size"`
	DownloadURL     string `json:"download_url"`
	Reason          string `json:"reason"`
}

// TelemetryEvent is a fire-and-forget status report.
type TelemetryEvent struct {
	DeviceID   string         `json:"device_id"`
	AppID      string         `json:"app_id"`
	ReleaseID  *string        `json:"release_id,omitempty"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload,omitempty"`
	ReportedAt time.Time      `json:"reported_at"`
}

// ServerClient is the agent's view of the update server.
type ServerClient interface {
	Check(ctx context.Context, req CheckRequest) (*CheckResult, error)
	Download(ctx context.Context, url string) ([]byte, error)
	ReportTelemetry(ctx context.Context, event TelemetryEvent) error
}

// Client talks to the device endpoints of the update server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With().Str("component", "server-client").Logger(),
	}
}

// Check asks the server whether an update applies to this device.
func (c *Client) Check(ctx context.Context, req CheckRequest) (*CheckResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal check request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/device/check", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("check for update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("check for update: status %d: %s", resp.StatusCode, data)
	}

	var result CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode check result: %w", err)
	}
	return &result, nil
}

// Download fetches a bundle. url may be relative, as returned by Check.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	if len(url) > 0 && url[0] == '/' {
		url = c.baseURL + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download bundle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download bundle: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bundle body: %w", err)
	}
	return data, nil
}

// ReportTelemetry posts one telemetry event.
func (c *Client) ReportTelemetry(ctx context.Context, event TelemetryEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal telemetry event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/device/telemetry", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report telemetry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("report telemetry: status %d", resp.StatusCode)
	}
	return nil
}
