package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriter_EmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf)

	logger.Info("appointment refreshed", "count", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "appointment refreshed" {
		t.Errorf("expected msg field, got %v", entry["msg"])
	}
	if entry["count"] != float64(3) {
		t.Errorf("expected count=3, got %v", entry["count"])
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("warn", &buf)

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected debug/info suppressed at warn level, got %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("expected warn entry, got %q", out)
	}
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	logger := New("verbose")
	if logger == nil || logger.Logger == nil {
		t.Fatal("expected usable logger for unknown level")
	}
}
