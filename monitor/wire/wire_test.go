package wire

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/sable-labs/katana/monitor"
)

func TestMonitor_OnFlag_AppendsDecodableRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.msgpack")

	m, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	m.OnFlag(nil, nil, "flag{wire}")
	m.OnCompletion(nil, false)

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)

	var first monitor.Event
	if err := dec.Decode(&first); err != nil {
		t.Fatalf("decode first record: %v", err)
	}
	if first.Type != "flag" || first.Flag != "flag{wire}" {
		t.Fatalf("unexpected first record: %+v", first)
	}

	var second monitor.Event
	if err := dec.Decode(&second); err != nil {
		t.Fatalf("decode second record: %v", err)
	}
	if second.Type != "completion" {
		t.Fatalf("unexpected second record: %+v", second)
	}
}
