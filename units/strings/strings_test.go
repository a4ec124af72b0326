package strings

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

func TestPrintableRuns_ExtractsRunsAtOrAboveMinLength(t *testing.T) {
	data := []byte("\x00\x01flag{abc}\x00ok\x00\x02longenough\x00")
	runs := printableRuns(data, MinLength)

	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d: %q", len(runs), runs)
	}
	if string(runs[0]) != "flag{abc}" {
		t.Fatalf("runs[0] = %q, want flag{abc}", runs[0])
	}
	if string(runs[1]) != "longenough" {
		t.Fatalf("runs[1] = %q, want longenough", runs[1])
	}
}

func TestPrintableRuns_DropsShortRuns(t *testing.T) {
	data := []byte("\x00ab\x00cd\x00")
	runs := printableRuns(data, MinLength)
	if len(runs) != 0 {
		t.Fatalf("expected 0 runs, got %d: %q", len(runs), runs)
	}
}

func TestEvaluate_RegistersEveryExtractedRun(t *testing.T) {
	reg := &recordingRegistrar{}
	u := &Unit{tgt: target.New([]byte("junk\x00flag{here}\x00morejunkhere"), ""), mgr: reg}

	seq := u.Enumerate()
	c, ok := seq.Next()
	if !ok {
		t.Fatalf("expected one case from Enumerate")
	}
	if err := u.Evaluate(c); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, ok := seq.Next(); ok {
		t.Fatalf("expected Enumerate's sequence to be exhausted after one case")
	}

	if len(reg.data) != 3 {
		t.Fatalf("expected 3 registered runs, got %d: %q", len(reg.data), reg.data)
	}
}
