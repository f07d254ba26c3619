// Package monitor implements the Status Monitor (C9): a terminal
// application that polls the Control Surface and renders the five flag
// bytes, the print-job state, and host resource usage.
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusView mirrors internal/api's status response shape.
type StatusView struct {
	Flags1                 []string `json:"flags1"`
	Flags2                 []string `json:"flags2"`
	Flags3                 []string `json:"flags3"`
	Flags4                 []string `json:"flags4"`
	Flags5                 []string `json:"flags5"`
	JobState               string   `json:"jobState"`
	LastTemplateID         string   `json:"lastTemplateId"`
	StatusReportTemplateID string   `json:"statusReportTemplateId"`
}

// HealthView mirrors internal/api's health response shape.
type HealthView struct {
	Status          string  `json:"status"`
	Uptime          string  `json:"uptime"`
	FramesProcessed uint64  `json:"framesProcessed"`
	FramesEmitted   uint64  `json:"framesEmitted"`
	CPUPercent      float64 `json:"cpuPercent"`
	MemPercent      float64 `json:"memPercent"`
	GoVersion       string  `json:"goVersion"`
}

// Client polls the Control Surface over plain HTTP.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a Client against baseURL, e.g. "http://127.0.0.1:8420".
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 2 * time.Second},
	}
}

// GetStatus polls GET /api/v1/status.
func (c *Client) GetStatus() (*StatusView, error) {
	var v StatusView
	if err := c.get("/api/v1/status", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetHealth polls GET /api/v1/health.
func (c *Client) GetHealth() (*HealthView, error) {
	var v HealthView
	if err := c.get("/api/v1/health", &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SendTestPrint calls the injection endpoint used by the monitor's manual
// "send test print" key binding during bring-up. Returns an error if the
// Control Surface build doesn't have injection enabled.
func (c *Client) SendTestPrint(templateID byte) error {
	body, err := json.Marshal(map[string]string{"templateId": string(templateID)})
	if err != nil {
		return fmt.Errorf("monitor: marshal print request: %w", err)
	}
	resp, err := c.HTTPClient.Post(c.BaseURL+"/api/v1/print", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("monitor: send test print: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("monitor: send test print: server returned %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

func (c *Client) get(endpoint string, out any) error {
	resp, err := c.HTTPClient.Get(c.BaseURL + endpoint)
	if err != nil {
		return fmt.Errorf("monitor: request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("monitor: reading response from %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("monitor: %s returned status %d: %s", endpoint, resp.StatusCode, respBody)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("monitor: decoding response from %s: %w", endpoint, err)
	}
	return nil
}
