package monitor

import (
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// multi fans every callback out to a fixed list of Monitors, in order,
// mirroring io.MultiWriter. Used to run e.g. logmonitor and wire
// side by side with an external sink.
type multi struct {
	monitors []Monitor
}

// Multi composes monitors into a single Monitor that calls each of them,
// in order, for every event.
func Multi(monitors ...Monitor) Monitor {
	return &multi{monitors: monitors}
}

func (m *multi) OnArtifact(mgr unit.Registrar, u unit.Unit, path string) {
	for _, sub := range m.monitors {
		sub.OnArtifact(mgr, u, path)
	}
}

func (m *multi) OnData(mgr unit.Registrar, u unit.Unit, data any) {
	for _, sub := range m.monitors {
		sub.OnData(mgr, u, data)
	}
}

func (m *multi) OnFlag(mgr unit.Registrar, u unit.Unit, flag string) {
	for _, sub := range m.monitors {
		sub.OnFlag(mgr, u, flag)
	}
}

func (m *multi) OnException(mgr unit.Registrar, u unit.Unit, err error) {
	for _, sub := range m.monitors {
		sub.OnException(mgr, u, err)
	}
}

func (m *multi) OnDepthLimit(mgr unit.Registrar, t *target.Target, parent unit.Unit) {
	for _, sub := range m.monitors {
		sub.OnDepthLimit(mgr, t, parent)
	}
}

func (m *multi) OnCompletion(mgr unit.Registrar, didTimeout bool) {
	for _, sub := range m.monitors {
		sub.OnCompletion(mgr, didTimeout)
	}
}
