package railfence

import (
	"testing"

	"github.com/sable-labs/katana/target"
	"github.com/sable-labs/katana/unit"
)

type recordingRegistrar struct {
	data [][]byte
}

func (r *recordingRegistrar) RegisterArtifact(unit.Unit, string, bool) {}
func (r *recordingRegistrar) RegisterData(u unit.Unit, data any, recurse bool) {
	r.data = append(r.data, data.([]byte))
}
func (r *recordingRegistrar) RegisterFlag(unit.Unit, string) {}
func (r *recordingRegistrar) Queue(unit.Unit)                {}

func TestDecryptFence_ClassicThreeRailExample(t *testing.T) {
	cipher := []byte("WECRLTEERDSOEEFEAOCAIVDEN")
	want := "WEAREDISCOVEREDFLEEATONCE"

	got := string(decryptFence(cipher, 3))
	if got != want {
		t.Fatalf("decryptFence(%q, 3) = %q, want %q", cipher, got, want)
	}
}

func TestDecryptFence_TwoRails(t *testing.T) {
	// "HELLO" zig-zagged over 2 rails reads back as "HLOEL".
	got := string(decryptFence([]byte("HLOEL"), 2))
	if got != "HELLO" {
		t.Fatalf("decryptFence(%q, 2) = %q, want HELLO", "HLOEL", got)
	}
}

func TestEvaluate_RegistersDecryptedPlaintext(t *testing.T) {
	reg := &recordingRegistrar{}
	u := &Unit{tgt: target.New([]byte("WECRLTEERDSOEEFEAOCAIVDEN"), ""), mgr: reg}

	if err := u.Evaluate(3); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(reg.data) != 1 {
		t.Fatalf("expected 1 registered plaintext, got %d", len(reg.data))
	}
	if got := string(reg.data[0]); got != "WEAREDISCOVEREDFLEEATONCE" {
		t.Fatalf("registered plaintext = %q, want WEAREDISCOVEREDFLEEATONCE", got)
	}
}

func TestEnumerate_CoversRails2Through99(t *testing.T) {
	u := &Unit{tgt: target.New([]byte("x"), "")}
	seq := u.Enumerate()

	count := 0
	first, ok := seq.Next()
	if !ok || first.(int) != 2 {
		t.Fatalf("expected first case to be rails=2, got %v ok=%v", first, ok)
	}
	count++
	var last int
	for {
		c, ok := seq.Next()
		if !ok {
			break
		}
		last = c.(int)
		count++
	}
	if count != 98 {
		t.Fatalf("expected 98 cases (rails 2..99), got %d", count)
	}
	if last != 99 {
		t.Fatalf("expected last case to be rails=99, got %d", last)
	}
}
