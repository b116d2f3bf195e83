// Package peerclient performs the synchronous HTTP calls between services.
// Every call observes its latency regardless of outcome; the source system
// had no outbound timeout at all, the 5s here is a deliberate hardening.
package peerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Client struct {
	baseURL    string
	service    string
	httpClient *http.Client
	latency    *prometheus.HistogramVec
}

// New builds a client for one peer. The latency histogram is labeled
// {service, endpoint} and may be nil.
func New(baseURL, service string, latency *prometheus.HistogramVec) *Client {
	return &Client{
		baseURL: baseURL,
		service: service,
		latency: latency,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) observe(endpoint string, start time.Time) {
	if c.latency != nil {
		c.latency.WithLabelValues(c.service, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (c *Client) do(ctx context.Context, method, path, endpoint string, body, out any) error {
	start := time.Now()
	defer c.observe(endpoint, start)

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", c.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: status %d", c.service, endpoint, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", c.service, err)
		}
	}

	return nil
}

func (c *Client) GetJSON(ctx context.Context, path, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, path, endpoint, nil, out)
}

func (c *Client) PostJSON(ctx context.Context, path, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, endpoint, body, out)
}

// Health probes the peer's /health endpoint with its own bounded timeout.
func (c *Client) Health(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.do(probeCtx, http.MethodGet, "/health", "/health", nil, nil)
}
