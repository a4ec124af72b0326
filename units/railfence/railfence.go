// Package railfence implements the rail fence cipher decryption unit,
// ported from the original katana crypto unit of the same name. It tries
// every rail count in [2, 99] against the target's payload and feeds
// every resulting plaintext back into the engine.
package railfence

import (
	"github.com/sable-labs/katana/finder"
	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

const name = "railfence"

func init() {
	finder.Register(name, func(t *target.Target, mgr unit.Registrar) unit.Unit {
		return &Unit{tgt: t, mgr: mgr}
	})
}

// Unit decrypts a rail fence cipher at every plausible rail count.
// ProtectedRecurse is true: the plaintext it produces should not be
// re-offered to another instance of this same unit, matching the
// original's PROTECTED_RECURSE = True.
type Unit struct {
	tgt *target.Target
	mgr unit.Registrar
}

func (u *Unit) Target() *target.Target  { return u.tgt }
func (u *Unit) Origin() *target.Target  { return u.tgt.Origin() }
func (u *Unit) Priority() int           { return 50 }
func (u *Unit) StrictFlags() bool       { return true }
func (u *Unit) ProtectedRecurse() bool  { return true }
func (u *Unit) Enumerate() unit.CaseSeq { return &railSeq{next: 2} }

// Evaluate decrypts the target's payload at the case's rail count and
// registers the plaintext. The original's seenPlaintext dedup is not
// ported: a plaintext that repeats across rail counts is registered
// again for each of them.
func (u *Unit) Evaluate(c unit.Case) error {
	rails := c.(int)
	plaintext := decryptFence(u.tgt.Payload, rails)
	u.mgr.RegisterData(u, plaintext, true)
	return nil
}

// railSeq enumerates rail counts 2..99 inclusive, matching the original's
// range(2, 100).
type railSeq struct {
	next int
}

func (s *railSeq) Next() (unit.Case, bool) {
	if s.next > 99 {
		return nil, false
	}
	c := s.next
	s.next++
	return c, true
}

// decryptFence reverses a rail fence cipher with the given rail count,
// ported byte-for-byte from the original's zig-zag index walk.
func decryptFence(cipher []byte, rails int) []byte {
	length := len(cipher)
	fence := make([][]byte, rails)
	for r := range fence {
		fence[r] = make([]byte, length)
		for i := range fence[r] {
			fence[r][i] = '#'
		}
	}

	i := 0
	for rail := 0; rail < rails; rail++ {
		down := rail != rails-1
		x := rail
		for x < length && i < length {
			fence[rail][x] = cipher[i]
			if down {
				x += 2 * (rails - rail - 1)
			} else {
				x += 2 * rail
			}
			if rail != 0 && rail != rails-1 {
				down = !down
			}
			i++
		}
	}

	plain := make([]byte, 0, length)
	for col := 0; col < length; col++ {
		for rail := 0; rail < rails; rail++ {
			if fence[rail][col] != '#' {
				plain = append(plain, fence[rail][col])
			}
		}
	}
	return plain
}

var _ unit.Unit = (*Unit)(nil)
