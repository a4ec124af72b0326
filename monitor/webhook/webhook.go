// Package webhook implements a monitor.Adapter that POSTs monitor.Event
// payloads as JSON to a configurable URL, and a monitor.Monitor that
// drives it from the engine's callbacks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sable-labs/katana/monitor"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the webhook adapter.
type Config struct {
	// URL is the HTTP endpoint to POST to (required).
	URL string
	// Headers are custom HTTP headers added to each request.
	Headers map[string]string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Adapter publishes monitor.Events via HTTP POST.
type Adapter struct {
	config Config
	client *http.Client
}

// New creates a webhook adapter from the given config. Returns an error
// if the URL is empty.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish sends event as a JSON POST request. Retries with exponential
// backoff on 5xx responses and network errors. 4xx responses are
// non-retriable and fail immediately.
func (a *Adapter) Publish(ctx context.Context, event *monitor.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	var lastErr error
	attempts := 1 + a.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("webhook: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("webhook: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = a.doRequest(ctx, body)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return fmt.Errorf("webhook: non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("webhook: failed after %d attempts: %w", attempts, lastErr)
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

func (a *Adapter) doRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ monitor.Adapter = (*Adapter)(nil)

// Monitor drives a monitor.Adapter from engine callbacks. Publish errors
// are swallowed after one attempt sequence — a webhook outage must never
// stall evaluation — but are handed to onPublishError if set, so a caller
// can log them.
type Monitor struct {
	adapter        monitor.Adapter
	onPublishError func(error)
}

// NewMonitor wraps adapter as a monitor.Monitor. onPublishError may be nil.
func NewMonitor(adapter monitor.Adapter, onPublishError func(error)) *Monitor {
	return &Monitor{adapter: adapter, onPublishError: onPublishError}
}

func (m *Monitor) publish(e *monitor.Event) {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	if err := m.adapter.Publish(context.Background(), e); err != nil && m.onPublishError != nil {
		m.onPublishError(err)
	}
}

func (m *Monitor) OnArtifact(mgr unit.Registrar, u unit.Unit, path string) {
	m.publish(&monitor.Event{Type: "artifact", Unit: unitName(u), Path: path})
}

func (m *Monitor) OnData(mgr unit.Registrar, u unit.Unit, data any) {
	m.publish(&monitor.Event{Type: "data", Unit: unitName(u)})
}

func (m *Monitor) OnFlag(mgr unit.Registrar, u unit.Unit, flag string) {
	m.publish(&monitor.Event{Type: "flag", Unit: unitName(u), Flag: flag})
}

func (m *Monitor) OnException(mgr unit.Registrar, u unit.Unit, err error) {
	m.publish(&monitor.Event{Type: "exception", Unit: unitName(u), Error: err.Error()})
}

func (m *Monitor) OnDepthLimit(mgr unit.Registrar, t *target.Target, parent unit.Unit) {
	m.publish(&monitor.Event{Type: "depth_limit", Unit: unitName(parent), Depth: t.Depth})
}

func (m *Monitor) OnCompletion(mgr unit.Registrar, didTimeout bool) {
	m.publish(&monitor.Event{Type: "completion", DidTimeout: didTimeout})
}

func unitName(u unit.Unit) string {
	if u == nil {
		return ""
	}
	return u.Target().Name
}

var _ monitor.Monitor = (*Monitor)(nil)
