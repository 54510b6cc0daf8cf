package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { Configure(Options{}) })

	Info("recompute.done", map[string]any{"documents": 3, "run_id": "abc"})

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", line, err)
	}
	if entry["msg"] != "recompute.done" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["documents"] != float64(3) || entry["run_id"] != "abc" {
		t.Fatalf("fields missing: %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("ts missing: %v", entry)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARN").String() != "warn" {
		t.Fatalf("expected warn level")
	}
	if parseLevel("bogus").String() != "info" {
		t.Fatalf("expected info default")
	}
}
