// Package engine implements the concurrent evaluation scheduler: the
// priority work queue, the worker pool, the recursion/depth-limit policy,
// the flag-search mechanism, the cancellation/timeout/interrupt protocol,
// and the monitor-callback contract described in spec.md. Everything
// else — unit implementations, the Finder, the Monitor sink — is an
// external collaborator reached only through the unit and monitor
// interfaces.
package engine

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sable-labs/katana/config"
	"github.com/sable-labs/katana/monitor"
	"github.com/sable-labs/katana/queue"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// Manager owns the worker pool, the idle barrier, the compiled flag
// matcher, the recursion policy, and every register/queue/join entry
// point. It is the single owner of scheduler state — inject it
// explicitly into Units (via unit.Registrar) rather than relying on a
// process-wide singleton.
type Manager struct {
	config  *config.Config
	finder  unit.Finder
	monitor monitor.Monitor

	queue   *queue.WorkQueue
	barrier *barrier
	wg      sync.WaitGroup

	threads     int
	maxDepth    int
	outdir      string
	flagPattern *regexp.Regexp

	started atomic.Bool
	joined  atomic.Bool

	counters counters
}

// New creates a Manager. Start must be called before any unit work is
// scheduled; QueueTarget may be called before Start to seed root
// targets — queued WorkItems simply wait in the queue until workers spin
// up.
func New(cfg *config.Config, finder unit.Finder, mon monitor.Monitor) *Manager {
	return &Manager{
		config:  cfg,
		finder:  finder,
		monitor: mon,
		queue:   queue.New(),
	}
}

// Start validates configuration, creates outdir, compiles the flag
// pattern exactly once, and spawns the worker pool.
func (m *Manager) Start() error {
	if m.started.Swap(true) {
		return ErrAlreadyStarted
	}

	outdir := m.config.GetString(config.ManagerSection, "outdir", "./results")
	if err := os.Mkdir(outdir, 0o755); err != nil {
		return fmt.Errorf("engine: create outdir %q: %w", outdir, err)
	}
	m.outdir = outdir

	if err := m.validate(); err != nil {
		return err
	}

	flagFormat := m.config.GetString(config.ManagerSection, "flag-format", "")
	pattern, err := regexp.Compile("(?ism)" + flagFormat)
	if err != nil {
		return fmt.Errorf("engine: compile flag-format %q: %w", flagFormat, err)
	}
	m.flagPattern = pattern

	threads, err := m.config.GetInt(config.ManagerSection, "threads", 1)
	if err != nil {
		return err
	}
	if threads < 1 {
		return fmt.Errorf("engine: threads must be >= 1, got %d", threads)
	}
	m.threads = threads

	maxDepth, err := m.config.GetInt(config.ManagerSection, "max-depth", 10)
	if err != nil {
		return err
	}
	if maxDepth < 1 {
		return fmt.Errorf("engine: max-depth must be >= 1, got %d", maxDepth)
	}
	m.maxDepth = maxDepth

	m.barrier = newBarrier(threads + 1)

	m.wg.Add(threads)
	for i := 0; i < threads; i++ {
		go m.worker(i)
	}

	return nil
}

// validate checks that flag-format is present and delegates to the
// Finder's own configuration validation.
func (m *Manager) validate() error {
	if !m.config.Has(config.ManagerSection, "flag-format") {
		return fmt.Errorf("engine: manager: flag-format not specified")
	}
	return m.finder.Validate()
}

// OutDir returns the results directory created by Start.
func (m *Manager) OutDir() string {
	return m.outdir
}

// QueueTarget builds a new Target, runs the Finder, and enqueues an init
// WorkItem for every applicable Unit. Returns (nil, nil) for an
// empty/whitespace payload, a completed-origin parent, or a depth-limit
// rejection (the last two distinguish themselves only via the
// Monitor.OnDepthLimit callback, matching spec.md §4.3).
func (m *Manager) QueueTarget(payload []byte, parent unit.Unit) (*target.Target, error) {
	if parent == nil && m.joined.Load() {
		return nil, ErrState
	}

	if strings.TrimSpace(string(payload)) == "" {
		return nil, nil
	}

	var tgt *target.Target
	if parent == nil {
		tgt = target.New(payload, "")
	} else {
		parentTarget := parent.Target()
		if parentTarget.Origin().Completed() {
			return nil, nil
		}
		depth := parentTarget.Depth + 1
		if depth >= m.maxDepth {
			m.monitor.OnDepthLimit(m, parentTarget, parent)
			m.counters.depthLimitHits.Add(1)
			return nil, nil
		}
		tgt = target.NewChild(payload, "", parent, parentTarget.Origin(), depth)
	}

	units, err := m.finder.Match(tgt)
	if err != nil {
		return nil, fmt.Errorf("engine: finder match: %w", err)
	}
	for _, u := range units {
		m.Queue(u)
	}

	return tgt, nil
}

// Queue enqueues a single unit's init WorkItem, unless its origin has
// already completed. Resets the idle barrier so sleeping workers re-check
// the queue.
func (m *Manager) Queue(u unit.Unit) {
	if u.Origin().Completed() {
		return
	}
	m.queue.Enqueue(queue.WorkItem{Priority: u.Priority(), Action: queue.ActionInit, Unit: u})
	if m.barrier != nil {
		m.barrier.reset()
	}
}

// requeue re-enqueues a partially consumed WorkItem with action=evaluate,
// preserving its generator. Silently skipped if the origin has since
// completed. Like Queue, requeue resets the idle barrier so a peer asleep
// on an empty queue wakes and can take the unit's next case.
func (m *Manager) requeue(item queue.WorkItem) {
	if item.Unit.Origin().Completed() {
		return
	}
	item.Action = queue.ActionEvaluate
	m.queue.Enqueue(item)
	if m.barrier != nil {
		m.barrier.reset()
	}
}

// RegisterArtifact emits Monitor.OnArtifact and, if recursion is enabled
// both globally and locally, feeds path back in as a new Target.
func (m *Manager) RegisterArtifact(u unit.Unit, path string, recurse bool) {
	m.monitor.OnArtifact(m, u, path)

	globalRecurse, _ := m.config.GetBool(config.ManagerSection, "recurse", true)
	if globalRecurse && recurse {
		_, _ = m.QueueTarget([]byte(path), u)
	}
}

// RegisterData emits Monitor.OnData, searches data for a flag, and — if
// recursion is enabled (globally, locally, and the origin has not
// completed) — feeds data back in as a new Target.
func (m *Manager) RegisterData(u unit.Unit, data any, recurse bool) {
	m.monitor.OnData(m, u, data)

	m.findFlag(u, data)

	globalRecurse, _ := m.config.GetBool(config.ManagerSection, "recurse", true)
	if !globalRecurse || !recurse || u.Origin().Completed() {
		return
	}

	switch v := data.(type) {
	case []byte:
		_, _ = m.QueueTarget(v, u)
	case string:
		_, _ = m.QueueTarget([]byte(v), u)
	}
}

// RegisterFlag emits Monitor.OnFlag and marks u.Origin() completed.
// Idempotent: repeated calls for an already-completed origin are
// harmless.
func (m *Manager) RegisterFlag(u unit.Unit, flag string) {
	m.monitor.OnFlag(m, u, flag)
	m.counters.flagsFound.Add(1)
	u.Origin().MarkCompleted()
}

// Join waits for global quiescence, a timeout, or an interrupt signal.
// interrupt may be nil if the caller never wires interrupt support (e.g.
// in tests). Returns true iff completion was clean (no timeout);
// interrupt-driven completion still returns true since it is not a
// timeout, per spec.md §6.
func (m *Manager) Join(timeout *time.Duration, interrupt <-chan os.Signal) bool {
	defer m.joined.Store(true)

	var timeoutC <-chan time.Time
	if timeout != nil {
		timer := time.NewTimer(*timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	aborting := false
	// drained is closed once every worker has exited after the first
	// interrupt; nil (never ready) until then.
	var drained chan struct{}
	for {
		wait, tripped := m.barrier.arrive()
		select {
		case <-wait:
			if tripped() {
				m.injectAborts()
				m.wg.Wait()
				m.monitor.OnCompletion(m, false)
				return true
			}
			// Reset: new work was enqueued. Re-arrive for the next round.
			continue

		case <-timeoutC:
			m.barrier.leave(wait)
			m.injectAborts()
			m.wg.Wait()
			m.monitor.OnCompletion(m, true)
			return false

		case <-drained:
			m.barrier.leave(wait)
			m.monitor.OnCompletion(m, false)
			return true

		case <-interrupt:
			m.barrier.leave(wait)
			if !aborting {
				m.injectAborts()
				aborting = true
				drained = make(chan struct{})
				go func() { m.wg.Wait(); close(drained) }()
				continue
			}
			// Second interrupt: stop waiting gracefully and force the join.
			m.wg.Wait()
			m.monitor.OnCompletion(m, false)
			return true
		}
	}
}

// injectAborts enqueues one abort WorkItem per worker thread, the safety
// net described in spec.md §5 route 1, and wakes any sleeping workers so
// they observe it promptly.
func (m *Manager) injectAborts() {
	for i := 0; i < m.threads; i++ {
		m.queue.Enqueue(queue.WorkItem{Priority: queue.AbortPriority, Action: queue.ActionAbort})
	}
	if m.barrier != nil {
		m.barrier.reset()
	}
}
