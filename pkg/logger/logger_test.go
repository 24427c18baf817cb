package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLogWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.log(LevelWarn, "test_action", nil, map[string]interface{}{"key": "value"}, nil)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a JSON line, got %q: %v", buf.String(), err)
	}
	if entry.Level != LevelWarn {
		t.Fatalf("expected warn level, got %s", entry.Level)
	}
	if entry.Action != "test_action" {
		t.Fatalf("expected action test_action, got %s", entry.Action)
	}
	if entry.Details["key"] != "value" {
		t.Fatalf("expected detail preserved, got %+v", entry.Details)
	}
	if entry.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestPackageLevelHelpersAreNilSafe(t *testing.T) {
	original := globalLogger
	globalLogger = nil
	t.Cleanup(func() { globalLogger = original })

	// Must not panic when Init was never called.
	Info("noop", nil)
	Warn("noop", nil)
	Error("noop", nil, nil)
}
