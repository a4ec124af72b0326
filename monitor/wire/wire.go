// Package wire implements a monitor.Monitor that appends every event to a
// msgpack-encoded event log on disk — a durable, language-agnostic audit
// trail alongside whatever live sink (logmonitor, webhook, redis) is also
// configured.
package wire

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sable-labs/katana/monitor"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// Monitor appends a msgpack-encoded monitor.Event per callback to a
// single append-only file. Safe for concurrent use: writes are
// serialized by mu, since os.File.Write alone does not guarantee
// multiple concurrent msgpack-encoded records stay unmixed.
type Monitor struct {
	mu  sync.Mutex
	f   *os.File
	enc *msgpack.Encoder
}

// Open creates (or truncates) path and returns a Monitor writing to it.
func Open(path string) (*Monitor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wire: open %q: %w", path, err)
	}
	return &Monitor{f: f, enc: msgpack.NewEncoder(f)}, nil
}

// Close flushes and closes the underlying file.
func (m *Monitor) Close() error {
	return m.f.Close()
}

func (m *Monitor) write(e *monitor.Event) {
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.enc.Encode(e)
}

func (m *Monitor) OnArtifact(mgr unit.Registrar, u unit.Unit, path string) {
	m.write(&monitor.Event{Type: "artifact", Unit: unitName(u), Path: path})
}

func (m *Monitor) OnData(mgr unit.Registrar, u unit.Unit, data any) {
	m.write(&monitor.Event{Type: "data", Unit: unitName(u)})
}

func (m *Monitor) OnFlag(mgr unit.Registrar, u unit.Unit, flag string) {
	m.write(&monitor.Event{Type: "flag", Unit: unitName(u), Flag: flag})
}

func (m *Monitor) OnException(mgr unit.Registrar, u unit.Unit, err error) {
	m.write(&monitor.Event{Type: "exception", Unit: unitName(u), Error: err.Error()})
}

func (m *Monitor) OnDepthLimit(mgr unit.Registrar, t *target.Target, parent unit.Unit) {
	m.write(&monitor.Event{Type: "depth_limit", Unit: unitName(parent), Depth: t.Depth})
}

func (m *Monitor) OnCompletion(mgr unit.Registrar, didTimeout bool) {
	m.write(&monitor.Event{Type: "completion", DidTimeout: didTimeout})
}

func unitName(u unit.Unit) string {
	if u == nil {
		return ""
	}
	return u.Target().Name
}

var _ monitor.Monitor = (*Monitor)(nil)
