// Package monitor defines the passive external event sink the engine
// reports to. Concrete sinks (monitor/logmonitor, monitor/webhook,
// monitor/redis) are external collaborators from the engine's point of
// view — the core only ever calls through this interface, and a Monitor
// implementation is responsible for its own serialization since handlers
// may be called concurrently from any worker.
package monitor

import (
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// Monitor receives evaluation events. No return value is consulted;
// a Monitor exists purely to observe.
type Monitor interface {
	// OnArtifact fires when a unit registers a file-shaped result.
	OnArtifact(mgr unit.Registrar, u unit.Unit, path string)
	// OnData fires when a unit registers an arbitrary result.
	OnData(mgr unit.Registrar, u unit.Unit, data any)
	// OnFlag fires when find_flag matches the configured pattern.
	OnFlag(mgr unit.Registrar, u unit.Unit, flag string)
	// OnException fires when a unit's Evaluate or Enumerate panics or
	// returns an error.
	OnException(mgr unit.Registrar, u unit.Unit, err error)
	// OnDepthLimit fires when a candidate Target would exceed max-depth.
	OnDepthLimit(mgr unit.Registrar, t *target.Target, parent unit.Unit)
	// OnCompletion fires exactly once, when join returns.
	OnCompletion(mgr unit.Registrar, didTimeout bool)
}
