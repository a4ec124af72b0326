// Package logmonitor implements monitor.Monitor by writing every event as
// a structured log line. It is katana's base sink: `katana eval` always
// wires it in, alongside any optional wire, webhook or redis sink.
package logmonitor

import (
	"github.com/sable-labs/katana/log"
	"github.com/sable-labs/katana/monitor"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// Monitor logs every callback through a *log.Logger.
type Monitor struct {
	logger *log.Logger
}

// New wraps logger as a monitor.Monitor.
func New(logger *log.Logger) *Monitor {
	return &Monitor{logger: logger}
}

func unitName(u unit.Unit) string {
	if u == nil {
		return ""
	}
	return u.Target().Name
}

// OnArtifact logs a registered artifact path.
func (m *Monitor) OnArtifact(mgr unit.Registrar, u unit.Unit, path string) {
	m.logger.Info("artifact registered", map[string]any{
		"unit": unitName(u),
		"path": path,
	})
}

// OnData logs that a unit registered data, without echoing the payload
// itself (which may be large or binary).
func (m *Monitor) OnData(mgr unit.Registrar, u unit.Unit, data any) {
	m.logger.Debug("data registered", map[string]any{
		"unit": unitName(u),
	})
}

// OnFlag logs a matched flag at info level — this is the one event a
// default deployment actually wants visible on stdout/stderr.
func (m *Monitor) OnFlag(mgr unit.Registrar, u unit.Unit, flag string) {
	m.logger.Info("flag found", map[string]any{
		"unit": unitName(u),
		"flag": flag,
	})
}

// OnException logs a unit failure at warn level; a single unit erroring
// is expected background noise, not a run-ending condition.
func (m *Monitor) OnException(mgr unit.Registrar, u unit.Unit, err error) {
	m.logger.Warn("unit raised an error", map[string]any{
		"unit":  unitName(u),
		"error": err.Error(),
	})
}

// OnDepthLimit logs a rejected recursion.
func (m *Monitor) OnDepthLimit(mgr unit.Registrar, t *target.Target, parent unit.Unit) {
	m.logger.Debug("depth limit reached", map[string]any{
		"unit":  unitName(parent),
		"depth": t.Depth,
	})
}

// OnCompletion logs the terminal event of a run.
func (m *Monitor) OnCompletion(mgr unit.Registrar, didTimeout bool) {
	m.logger.Info("run completed", map[string]any{
		"timed_out": didTimeout,
	})
}

var _ monitor.Monitor = (*Monitor)(nil)
