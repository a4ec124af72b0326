package engine

import (
	"fmt"

	"github.com/sable-labs/katana/queue"
	"github.com/sable-labs/katana/unit"
)

// worker runs a single scheduler thread: a tight, non-blocking dequeue
// loop that falls back to the idle barrier when the queue empties out,
// ported from katana.manager.py's _thread. The requeue-before-evaluate
// ordering is deliberate: it lets a second worker pick up the next case
// from the same generator while this one is still busy evaluating the
// current one, which is what lets a single slow Unit's case generator
// fan out across the whole pool instead of pinning to one thread.
func (m *Manager) worker(id int) {
	defer m.wg.Done()

	for {
		item, ok := m.queue.Dequeue()
		if !ok {
			wait, tripped := m.barrier.arrive()
			<-wait
			if tripped() {
				return
			}
			continue
		}

		if item.Action == queue.ActionAbort {
			return
		}

		if item.Unit.Origin().Completed() {
			continue
		}

		// A panic while enumerating or advancing the case sequence is
		// reported to the Monitor and treated as an exhausted sequence.
		c, ok := func() (c unit.Case, ok bool) {
			defer func() {
				if r := recover(); r != nil {
					m.counters.exceptions.Add(1)
					m.monitor.OnException(m, item.Unit, fmt.Errorf("engine: panic enumerating cases: %v", r))
					c, ok = nil, false
				}
			}()
			if item.Action == queue.ActionInit {
				item.Generator = item.Unit.Enumerate()
			}
			return item.Generator.Next()
		}()
		if !ok {
			continue
		}

		m.requeue(item)
		m.safeEvaluate(item.Unit, c)
	}
}

// safeEvaluate runs a single Unit.Evaluate call, recovering from any
// panic and routing both panics and returned errors to
// Monitor.OnException so a single misbehaving Unit can never take down a
// worker goroutine.
func (m *Manager) safeEvaluate(u unit.Unit, c unit.Case) {
	m.counters.active.Add(1)
	defer m.counters.active.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			m.counters.exceptions.Add(1)
			m.monitor.OnException(m, u, fmt.Errorf("engine: panic evaluating case: %v", r))
		}
	}()

	m.counters.unitsEvaluated.Add(1)
	if err := u.Evaluate(c); err != nil {
		m.counters.exceptions.Add(1)
		m.monitor.OnException(m, u, err)
	}
}
