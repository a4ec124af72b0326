// Package strings implements a trivial triage unit: it extracts runs of
// printable bytes from the target's payload, the same first move a human
// would make by piping a binary through the Unix strings(1) utility, and
// feeds each run back in as a candidate target. It has no original
// katana source to port from; it exists to give the engine a minimal,
// always-applicable unit to exercise during tests and as a template for
// new units.
package strings

import (
	"github.com/sable-labs/katana/finder"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

const name = "strings"

// MinLength is the shortest printable run worth recursing on. Shorter
// runs are noise in almost every payload.
const MinLength = 4

func init() {
	finder.Register(name, func(t *target.Target, mgr unit.Registrar) unit.Unit {
		return &Unit{tgt: t, mgr: mgr}
	})
}

// Unit extracts printable byte runs from its target's payload. It is not
// strict about flag spans (a flag may be embedded inside a longer binary
// blob) and does not protect against recursing into itself, since a
// printable run fed back in is already pure text with nothing further to
// extract.
type Unit struct {
	tgt *target.Target
	mgr unit.Registrar
}

func (u *Unit) Target() *target.Target  { return u.tgt }
func (u *Unit) Origin() *target.Target  { return u.tgt.Origin() }
func (u *Unit) Priority() int           { return 100 }
func (u *Unit) StrictFlags() bool       { return false }
func (u *Unit) ProtectedRecurse() bool  { return false }
func (u *Unit) Enumerate() unit.CaseSeq { return &once{} }

// Evaluate runs once (the case itself carries no information) and
// registers every printable run at least MinLength bytes long.
func (u *Unit) Evaluate(c unit.Case) error {
	for _, run := range printableRuns(u.tgt.Payload, MinLength) {
		u.mgr.RegisterData(u, run, true)
	}
	return nil
}

// once yields a single placeholder case, then signals exhaustion. Units
// whose work isn't naturally parameterized by a sequence of cases still
// need exactly one Evaluate call to do that work.
type once struct {
	done bool
}

func (o *once) Next() (unit.Case, bool) {
	if o.done {
		return nil, false
	}
	o.done = true
	return struct{}{}, true
}

// printableRuns returns every maximal run of printable ASCII bytes in
// data at least minLength long.
func printableRuns(data []byte, minLength int) [][]byte {
	var runs [][]byte
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minLength {
			run := make([]byte, end-start)
			copy(run, data[start:end])
			runs = append(runs, run)
		}
		start = -1
	}
	for i, b := range data {
		if isPrintable(b) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(data))
	return runs
}

func isPrintable(b byte) bool {
	return b >= 0x20 && b < 0x7f
}

var _ unit.Unit = (*Unit)(nil)
