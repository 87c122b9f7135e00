package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
)

// decodeLine parses the single JSON entry in buf.
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("entry %q is not JSON: %v", buf.String(), err)
	}
	return entry
}

func TestNewWithWriter_JSONDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "1.4.0", &buf)

	logger.Info("poll cycle complete", "devices", 3)

	entry := decodeLine(t, &buf)
	if entry["service"] != serviceName || entry["version"] != "1.4.0" {
		t.Errorf("service/version = %v/%v", entry["service"], entry["version"])
	}
	if entry["msg"] != "poll cycle complete" || entry["devices"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "debug", Format: "TEXT"}, "dev", &buf)

	logger.Debug("timer armed", "vendor", "hue")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Fatalf("text format wrote JSON: %s", out)
	}
	if !strings.Contains(out, "service=graylogic-hub") || !strings.Contains(out, "vendor=hue") {
		t.Errorf("text entry = %q", out)
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "warn"}, "dev", &buf)

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Errorf("info written at warn level: %s", buf.String())
	}
	logger.Warn("quota nearly exhausted")
	if !strings.Contains(buf.String(), "quota nearly exhausted") {
		t.Errorf("warn entry missing: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogger_ComponentAndIntegration(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(config.LoggingConfig{Level: "info"}, "dev", &buf)

	logger.Component("orchestrator").Info("clients changed", "count", 1)
	entry := decodeLine(t, &buf)
	if entry["component"] != "orchestrator" || entry["count"] != float64(1) {
		t.Errorf("component entry = %v", entry)
	}

	buf.Reset()
	logger.Integration("switchbot").Warn("status fetch failed", "device_id", "switchbot-C0")
	entry = decodeLine(t, &buf)
	if entry["component"] != "integration" || entry["vendor"] != "switchbot" {
		t.Errorf("integration entry = %v", entry)
	}
	if entry["service"] != serviceName {
		t.Errorf("child logger lost default fields: %v", entry)
	}
}

func TestLogger_WithIsIndependent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(config.LoggingConfig{Level: "info"}, "dev", &buf)
	child := parent.With("vendor", "hue")

	parent.Info("parent")
	if strings.Contains(buf.String(), "vendor") {
		t.Errorf("With() leaked into parent: %s", buf.String())
	}
	buf.Reset()
	child.Info("child")
	if !strings.Contains(buf.String(), `"vendor":"hue"`) {
		t.Errorf("child entry = %s", buf.String())
	}
}

func TestNewAndDefault(t *testing.T) {
	if New(config.LoggingConfig{Output: "stderr"}, "dev") == nil {
		t.Error("New() returned nil")
	}
	if Default() == nil {
		t.Error("Default() returned nil")
	}
}
