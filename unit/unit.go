// Package unit defines the polymorphic analysis-module contract the
// engine schedules work against. Concrete Units (e.g. units/railfence)
// are external collaborators from the engine's point of view: the core
// only ever calls through this interface.
package unit

import "github.com/sable-labs/katana/target"

// Case is opaque to the scheduler. It is produced lazily by a Unit's
// Enumerate and passed back verbatim to Evaluate. The scheduler requires
// only that CaseSeq be finite-or-unbounded and single-pass.
type Case any

// CaseSeq is a single-consumer pull iterator over a Unit's candidate
// cases. Next returns (case, true) for a valid case, or (nil, false) once
// the sequence is exhausted. Exhaustion must be signalled distinctly from
// a valid case — a nil Case with ok=true is a legal (if unusual) case.
type CaseSeq interface {
	Next() (Case, bool)
}

// Unit is the analysis-module contract. Each Unit is bound to exactly one
// Target (its own derivation node) for its lifetime.
type Unit interface {
	// Target returns the Target this Unit was constructed against.
	Target() *target.Target

	// Origin returns Target().Origin(), exposed directly per the spec's
	// data model so the engine need not chase the pointer itself.
	Origin() *target.Target

	// Priority is the unit's static scheduling priority. Lower values are
	// served first by the WorkQueue.
	Priority() int

	// StrictFlags reports whether a flag match must span the entirety of
	// the candidate data to be registered (see engine's flag search).
	StrictFlags() bool

	// ProtectedRecurse advises the recursion system not to feed this
	// unit's own output back into itself. It is advisory only: neither
	// the core nor finder.Finder reads it, so a unit's derived targets
	// are offered to that same unit again whenever its match applies.
	ProtectedRecurse() bool

	// Enumerate returns a lazy, single-consumer sequence of candidate
	// cases. Called at most once per Unit, on first dequeue.
	Enumerate() CaseSeq

	// Evaluate processes a single case. Any panic/error raised here is
	// caught by the worker loop and routed to Monitor.OnException; it
	// must never bring down the worker goroutine.
	Evaluate(c Case) error
}

// Registrar is the subset of engine.Manager's public contract a Unit
// needs to report results and schedule further work. Units receive a
// Registrar at construction time (injected by the Finder) rather than
// reaching for a process-wide singleton.
type Registrar interface {
	// RegisterArtifact records a file-shaped result and, if recursion is
	// enabled globally and locally, feeds it back in as a new Target.
	RegisterArtifact(u Unit, path string, recurse bool)

	// RegisterData records an arbitrary result, searches it for a flag,
	// and — if recursion is enabled and the origin has not already
	// completed — feeds it back in as a new Target.
	RegisterData(u Unit, data any, recurse bool)

	// RegisterFlag records a flag and marks u.Origin() completed.
	RegisterFlag(u Unit, flag string)

	// Queue enqueues a single Unit for evaluation.
	Queue(u Unit)
}

// Finder maps a Target to the ordered set of Units applicable to it.
type Finder interface {
	// Match returns the Units the Finder considers applicable to target.
	// Order is the priority hint the original Finder implementation
	// observed (e.g. file-signature specificity); the WorkQueue is the
	// sole arbiter of actual scheduling order.
	Match(t *target.Target) ([]Unit, error)

	// Validate checks the Finder's own configuration (e.g. that every
	// configured unit name actually resolves to a registered Unit
	// constructor) and returns an error describing the first problem
	// found, or nil.
	Validate() error
}
