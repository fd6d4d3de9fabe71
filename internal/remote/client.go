// Package remote talks to the plant box backend: it polls reference values
// (setpoints and the watering command) and pushes sensor telemetry.
// Both directions are best effort and rate-limited; failures surface as
// outcomes plus typed errors and are retried only on the next interval.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dokzlo13/plantboxd/internal/config"
)

const maxResponseBytes = 1 << 20

// Client performs single HTTP exchanges with the backend.
type Client struct {
	http         *http.Client
	configURL    string
	telemetryURL string
}

// NewClient derives both endpoint URLs once from the immutable backend config.
// A nil httpClient uses a client with the configured timeout.
func NewClient(cfg config.BackendConfig, deviceID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout.Duration()}
	}
	return &Client{
		http:         httpClient,
		configURL:    cfg.ConfigURL(deviceID),
		telemetryURL: cfg.TelemetryURL(deviceID),
	}
}

// ConfigURL returns the reference values endpoint
func (c *Client) ConfigURL() string { return c.configURL }

// TelemetryURL returns the telemetry endpoint
func (c *Client) TelemetryURL() string { return c.telemetryURL }

// GetJSON fetches the reference values document and decodes it into out.
func (c *Client) GetJSON(ctx context.Context, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.configURL, nil)
	if err != nil {
		return &TransportError{Op: http.MethodGet, URL: c.configURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ProtocolError{Op: http.MethodGet, URL: c.configURL, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// PostJSON encodes payload and posts it to the telemetry endpoint.
func (c *Client) PostJSON(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.telemetryURL, bytes.NewReader(data))
	if err != nil {
		return &TransportError{Op: http.MethodPost, URL: c.telemetryURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	url := req.URL.String()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Op: req.Method, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProtocolError{
			Op:     req.Method,
			URL:    url,
			Status: resp.StatusCode,
			Err:    errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	return body, nil
}
