package engine

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sable-labs/katana/config"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

// sliceCaseSeq is the simplest possible CaseSeq: a fixed slice of cases.
type sliceCaseSeq struct {
	cases []unit.Case
	i     int
}

func (s *sliceCaseSeq) Next() (unit.Case, bool) {
	if s.i >= len(s.cases) {
		return nil, false
	}
	c := s.cases[s.i]
	s.i++
	return c, true
}

// fakeUnit is a scriptable unit.Unit: evaluate calls a caller-supplied
// closure per case.
type fakeUnit struct {
	tgt      *target.Target
	priority int
	strict   bool
	protect  bool
	cases    []unit.Case
	onEval   func(mgr unit.Registrar, c unit.Case)
}

func (u *fakeUnit) Target() *target.Target   { return u.tgt }
func (u *fakeUnit) Origin() *target.Target   { return u.tgt.Origin() }
func (u *fakeUnit) Priority() int            { return u.priority }
func (u *fakeUnit) StrictFlags() bool        { return u.strict }
func (u *fakeUnit) ProtectedRecurse() bool   { return u.protect }
func (u *fakeUnit) Enumerate() unit.CaseSeq  { return &sliceCaseSeq{cases: u.cases} }
func (u *fakeUnit) Evaluate(c unit.Case) error {
	if u.onEval != nil {
		u.onEval(nil, c)
	}
	return nil
}

// registrarUnit wraps fakeUnit to capture the live Registrar at Evaluate
// time, since Evaluate needs to call back into the Manager under test.
type registrarUnit struct {
	*fakeUnit
	mgr    unit.Registrar
	onEval func(mgr unit.Registrar, c unit.Case)
}

func (u *registrarUnit) Evaluate(c unit.Case) error {
	u.onEval(u.mgr, c)
	return nil
}

// staticFinder returns a fixed unit set for every target, wiring mgr into
// each unit that wants a Registrar back-reference.
type staticFinder struct {
	build func(t *target.Target, mgr unit.Registrar) []unit.Unit
	mgr   unit.Registrar
}

func (f *staticFinder) Match(t *target.Target) ([]unit.Unit, error) {
	return f.build(t, f.mgr), nil
}
func (f *staticFinder) Validate() error { return nil }

// recordingMonitor stores every callback invocation for assertions.
type recordingMonitor struct {
	mu         sync.Mutex
	flags      []string
	depthHits  int
	exceptions []error
	completed  bool
	didTimeout bool
}

func (m *recordingMonitor) OnArtifact(unit.Registrar, unit.Unit, string) {}
func (m *recordingMonitor) OnData(unit.Registrar, unit.Unit, any)        {}
func (m *recordingMonitor) OnFlag(mgr unit.Registrar, u unit.Unit, flag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = append(m.flags, flag)
}
func (m *recordingMonitor) OnException(mgr unit.Registrar, u unit.Unit, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exceptions = append(m.exceptions, err)
}
func (m *recordingMonitor) OnDepthLimit(unit.Registrar, *target.Target, unit.Unit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depthHits++
}
func (m *recordingMonitor) OnCompletion(mgr unit.Registrar, didTimeout bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = true
	m.didTimeout = didTimeout
}

func newTestConfig(t *testing.T, flagFormat string) (*config.Config, string) {
	t.Helper()
	cfg := config.New()
	dir := t.TempDir()
	outdir := dir + "/results"
	cfg.Set(config.ManagerSection, "outdir", outdir)
	cfg.Set(config.ManagerSection, "threads", "2")
	cfg.Set(config.ManagerSection, "max-depth", "10")
	cfg.Set(config.ManagerSection, "flag-format", flagFormat)
	return cfg, outdir
}

func TestManager_MatchesFlagAndCompletesOrigin(t *testing.T) {
	cfg, _ := newTestConfig(t, `flag\{[a-z]+\}`)
	mon := &recordingMonitor{}

	root := target.New([]byte("flag{hello}"), "seed")
	finder := &staticFinder{}
	m := New(cfg, finder, mon)
	finder.mgr = m
	finder.build = func(t *target.Target, mgr unit.Registrar) []unit.Unit {
		fu := &fakeUnit{tgt: t, priority: 0, cases: []unit.Case{t.Payload}}
		return []unit.Unit{&registrarUnit{fakeUnit: fu, mgr: mgr, onEval: func(mgr unit.Registrar, c unit.Case) {
			mgr.RegisterData(fu, c.([]byte), false)
		}}}
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, u := range finder.build(root, m) {
		m.Queue(u)
	}

	timeout := 2 * time.Second
	done := m.Join(&timeout, nil)
	if !done {
		t.Fatalf("expected clean join, got timeout")
	}

	if len(mon.flags) != 1 || mon.flags[0] != "flag{hello}" {
		t.Fatalf("expected one flag 'flag{hello}', got %v", mon.flags)
	}
	if !root.Completed() {
		t.Fatalf("expected root to be marked completed")
	}
}

func TestManager_StrictFlagsRejectsPartialMatch(t *testing.T) {
	cfg, _ := newTestConfig(t, `flag\{[a-z]+\}`)
	mon := &recordingMonitor{}

	root := target.New([]byte("noise flag{hello} noise"), "seed")
	finder := &staticFinder{}
	m := New(cfg, finder, mon)
	finder.mgr = m
	finder.build = func(t *target.Target, mgr unit.Registrar) []unit.Unit {
		fu := &fakeUnit{tgt: t, priority: 0, strict: true, cases: []unit.Case{t.Payload}}
		return []unit.Unit{&registrarUnit{fakeUnit: fu, mgr: mgr, onEval: func(mgr unit.Registrar, c unit.Case) {
			mgr.RegisterData(fu, c.([]byte), false)
		}}}
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, u := range finder.build(root, m) {
		m.Queue(u)
	}

	timeout := 500 * time.Millisecond
	m.Join(&timeout, nil)

	if len(mon.flags) != 0 {
		t.Fatalf("expected no flag for a strict unit given a non-spanning match, got %v", mon.flags)
	}
}

func TestManager_DepthLimitFiresOnDepthLimit(t *testing.T) {
	cfg, _ := newTestConfig(t, `flag\{[a-z]+\}`)
	cfg.Set(config.ManagerSection, "max-depth", "1")
	mon := &recordingMonitor{}

	root := target.New([]byte("seed"), "seed")
	finder := &staticFinder{}
	m := New(cfg, finder, mon)
	finder.mgr = m

	var built bool
	finder.build = func(t *target.Target, mgr unit.Registrar) []unit.Unit {
		if built {
			return nil
		}
		built = true
		fu := &fakeUnit{tgt: t, priority: 0, cases: []unit.Case{t.Payload}}
		return []unit.Unit{&registrarUnit{fakeUnit: fu, mgr: mgr, onEval: func(mgr unit.Registrar, c unit.Case) {
			mgr.RegisterData(fu, []byte("derived output that goes one level deeper"), true)
		}}}
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, u := range finder.build(root, m) {
		m.Queue(u)
	}

	timeout := 500 * time.Millisecond
	m.Join(&timeout, nil)

	if mon.depthHits == 0 {
		t.Fatalf("expected at least one OnDepthLimit callback")
	}
}

func TestManager_XMLStrippingSurfacesHiddenFlag(t *testing.T) {
	cfg, _ := newTestConfig(t, `flag\{[a-z]+\}`)
	mon := &recordingMonitor{}

	root := target.New([]byte("<b>flag{hidden}</b>"), "seed")
	finder := &staticFinder{}
	m := New(cfg, finder, mon)
	finder.mgr = m
	finder.build = func(t *target.Target, mgr unit.Registrar) []unit.Unit {
		fu := &fakeUnit{tgt: t, priority: 0, cases: []unit.Case{t.Payload}}
		return []unit.Unit{&registrarUnit{fakeUnit: fu, mgr: mgr, onEval: func(mgr unit.Registrar, c unit.Case) {
			mgr.RegisterData(fu, c.([]byte), false)
		}}}
	}

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for _, u := range finder.build(root, m) {
		m.Queue(u)
	}

	timeout := 2 * time.Second
	m.Join(&timeout, nil)

	// The original's XML hack searches the stripped form AND the raw form
	// independently, so a flag that also reads as valid outside its tags
	// (as here) can register more than once; every occurrence must still
	// be the correct flag text.
	if len(mon.flags) == 0 {
		t.Fatalf("expected the XML-wrapped flag to surface at least once")
	}
	for _, f := range mon.flags {
		if f != "flag{hidden}" {
			t.Fatalf("expected every registered flag to be 'flag{hidden}', got %v", mon.flags)
		}
	}
}

func TestManager_JoinTripsCleanlyWithNoWork(t *testing.T) {
	// Nobody ever queues a target, so every worker is idle from the first
	// round: the barrier trips immediately and Join reports a clean
	// completion well before its timeout, exactly as it would if a run
	// drained its queue naturally.
	cfg, _ := newTestConfig(t, `flag\{[a-z]+\}`)
	mon := &recordingMonitor{}
	finder := &staticFinder{build: func(*target.Target, unit.Registrar) []unit.Unit { return nil }}
	m := New(cfg, finder, mon)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	timeout := 2 * time.Second
	ok := m.Join(&timeout, nil)
	if !ok {
		t.Fatalf("expected a clean join with no work ever queued")
	}
	if mon.didTimeout {
		t.Fatalf("expected OnCompletion(didTimeout=false)")
	}
}

func TestManager_StartCreatesOutdirAndRejectsDoubleStart(t *testing.T) {
	cfg, outdir := newTestConfig(t, `flag\{[a-z]+\}`)
	mon := &recordingMonitor{}
	finder := &staticFinder{build: func(*target.Target, unit.Registrar) []unit.Unit { return nil }}
	m := New(cfg, finder, mon)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := os.Stat(outdir); err != nil {
		t.Fatalf("expected outdir to exist: %v", err)
	}
	if err := m.Start(); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}

	timeout := 50 * time.Millisecond
	m.Join(&timeout, nil)
}

func TestManager_QueueTargetAfterJoinIsRejected(t *testing.T) {
	cfg, _ := newTestConfig(t, `flag\{[a-z]+\}`)
	mon := &recordingMonitor{}
	finder := &staticFinder{build: func(*target.Target, unit.Registrar) []unit.Unit { return nil }}
	m := New(cfg, finder, mon)

	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	timeout := 50 * time.Millisecond
	m.Join(&timeout, nil)

	if _, err := m.QueueTarget([]byte("late"), nil); err != ErrState {
		t.Fatalf("expected ErrState queuing a root target after join, got %v", err)
	}
}
