package engine

import "sync"

// barrier is a resettable rendezvous of a fixed party size. Workers call
// Arrive when the WorkQueue is empty; the join driver is the +1 party.
// Reset lets any other goroutine "break" an in-flight round early (new
// work was enqueued) without waiting for every party to arrive, which is
// how a sleeping worker is woken to recheck the queue per spec.md §5.
//
// This stands in for Python's threading.Barrier (reset() +
// BrokenBarrierError), which has no direct Go standard-library
// equivalent; the generation-channel pattern below is the idiomatic Go
// replacement seen throughout the corpus's own scheduler-shaped files.
type barrier struct {
	mu      sync.Mutex
	parties int
	count   int
	gen     *generation
}

type generation struct {
	ch      chan struct{}
	tripped bool
}

func newBarrier(parties int) *barrier {
	return &barrier{parties: parties, gen: &generation{ch: make(chan struct{})}}
}

// arrive registers the caller as present for the current round and
// returns a channel that closes when the round ends, plus a function
// reporting whether the round ended via a clean trip (every party
// arrived) as opposed to an early Reset. Call arrive, then select on the
// returned channel (optionally alongside a timeout/cancel channel); if a
// different case fires first, call leave to withdraw.
func (b *barrier) arrive() (wait <-chan struct{}, tripped func() bool) {
	b.mu.Lock()
	g := b.gen
	b.count++
	if b.count == b.parties {
		g.tripped = true
		close(g.ch)
		b.gen = &generation{ch: make(chan struct{})}
		b.count = 0
	}
	b.mu.Unlock()
	return g.ch, func() bool { return g.tripped }
}

// leave withdraws a prior arrive call whose round has not yet ended. A
// no-op if the round already ended (the channel is already closed).
func (b *barrier) leave(wait <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-wait:
		return
	default:
	}
	if b.count > 0 {
		b.count--
	}
}

// reset breaks the current round early. Every goroutine currently
// blocked on the channel returned by arrive wakes with tripped()==false.
// A no-op if nobody is waiting.
func (b *barrier) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	g := b.gen
	select {
	case <-g.ch:
		return
	default:
	}
	close(g.ch)
	b.gen = &generation{ch: make(chan struct{})}
	b.count = 0
}
