package engine

import "sync/atomic"

// Stats is an immutable point-in-time snapshot of scheduler-level
// counters, the core's analogue of the teacher's metrics.Collector —
// scoped to what the scheduler itself observes rather than run/executor
// lifecycle, since there is no external executor process in this domain.
type Stats struct {
	UnitsEvaluated int64
	FlagsFound     int64
	Exceptions     int64
	DepthLimitHits int64
	ActiveWorkers  int64
	QueueLength    int64
}

// counters holds the atomic fields Manager mutates during evaluation.
// Kept as an embeddable struct so Manager's zero value is already usable.
type counters struct {
	unitsEvaluated atomic.Int64
	flagsFound     atomic.Int64
	exceptions     atomic.Int64
	depthLimitHits atomic.Int64
	active         atomic.Int64
}

// Stats returns a snapshot of the current counters plus live queue
// length. Safe to call concurrently, including from a Monitor handler or
// a TUI polling loop.
func (m *Manager) Stats() Stats {
	return Stats{
		UnitsEvaluated: m.counters.unitsEvaluated.Load(),
		FlagsFound:     m.counters.flagsFound.Load(),
		Exceptions:     m.counters.exceptions.Load(),
		DepthLimitHits: m.counters.depthLimitHits.Load(),
		ActiveWorkers:  m.counters.active.Load(),
		QueueLength:    int64(m.queue.Len()),
	}
}
