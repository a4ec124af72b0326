// Package redis implements a monitor.Adapter that PUBLISHes monitor.Event
// payloads as JSON to a Redis pub/sub channel, and a monitor.Monitor that
// drives it from the engine's callbacks.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sable-labs/katana/monitor"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "katana:events"

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 3

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required). Format:
	// redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: katana:events).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure (default 3).
	Retries int
}

// Adapter publishes monitor.Events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}

	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends event as a JSON PUBLISH to the configured channel.
// Retries with exponential backoff on failures.
func (a *Adapter) Publish(ctx context.Context, event *monitor.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	var lastErr error
	attempts := 1 + a.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: context canceled: %w", err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("redis: context canceled during backoff: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		lastErr = a.client.Publish(publishCtx, a.config.Channel, body).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ monitor.Adapter = (*Adapter)(nil)

// Monitor drives a monitor.Adapter from engine callbacks, mirroring
// webhook.Monitor's shape.
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
