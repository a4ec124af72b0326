package logmonitor

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sable-labs/katana/log"
	"github.com/sable-labs/katana/target"
)

func newTestLogger(t *testing.T) (*log.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.NewLogger(log.RunContext{RunID: "test-run", Threads: 1, MaxDepth: 10}).WithOutput(&buf)
	return logger, &buf
}

func TestOnFlag_LogsFlagAtInfo(t *testing.T) {
	logger, buf := newTestLogger(t)
	m := New(logger)

	m.OnFlag(nil, nil, "flag{test}")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected a single JSON log line, got %q: %v", buf.String(), err)
	}
	if line["level"] != "info" {
		t.Fatalf("expected level=info, got %v", line["level"])
	}
	fields, _ := line["fields"].(map[string]any)
	if fields["flag"] != "flag{test}" {
		t.Fatalf("expected flag field, got %v", line)
	}
}

func TestOnCompletion_RecordsTimeoutFlag(t *testing.T) {
	logger, buf := newTestLogger(t)
	m := New(logger)

	m.OnCompletion(nil, true)

	if !strings.Contains(buf.String(), `"timed_out":true`) {
		t.Fatalf("expected timed_out=true in log output, got %q", buf.String())
	}
}

func TestOnDepthLimit_RecordsDepth(t *testing.T) {
	logger, buf := newTestLogger(t)
	m := New(logger)

	tgt := target.NewChild([]byte("x"), "", nil, target.New([]byte("root"), ""), 5)
	m.OnDepthLimit(nil, tgt, nil)

	if !strings.Contains(buf.String(), `"depth":5`) {
		t.Fatalf("expected depth=5 in log output, got %q", buf.String())
	}
}
