package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tylerle0/InvestAnalytics/pkg/config"
)

func newBufferLogger(level string) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := &config.Config{Env: "development", LogLevel: level, LogFormat: "json"}
	return NewWithWriter(cfg, &buf), &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"invalid", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufferLogger("warn")

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown too")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if lines[0]["level"] != "warn" || lines[1]["level"] != "error" {
		t.Errorf("Unexpected levels: %v, %v", lines[0]["level"], lines[1]["level"])
	}
	if lines[0]["env"] != "development" {
		t.Errorf("Expected env field, got %v", lines[0]["env"])
	}
}

func TestFields(t *testing.T) {
	log, buf := newBufferLogger("debug")

	log.Component("gate").
		WithFields(map[string]interface{}{"symbol": "aapl", "state": "fresh"}).
		WithError(errors.New("boom")).
		Info("checked")

	lines := decodeLines(t, buf)
	if len(lines) != 1 {
		t.Fatalf("Expected 1 line, got %d", len(lines))
	}

	entry := lines[0]
	want := map[string]string{
		"component": "gate",
		"symbol":    "aapl",
		"state":     "fresh",
		"error":     "boom",
		"message":   "checked",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("field %s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestFormattedAndNop(t *testing.T) {
	log, buf := newBufferLogger("info")
	log.Infof("refreshed %d symbols", 3)

	lines := decodeLines(t, buf)
	if len(lines) != 1 || lines[0]["message"] != "refreshed 3 symbols" {
		t.Errorf("Unexpected output: %v", lines)
	}

	// must not panic
	Nop().WithField("k", "v").Error("discarded")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}, &buf)
	log.Info("hello console")

	if !strings.Contains(buf.String(), "hello console") {
		t.Errorf("Expected console output to contain message, got %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("Expected non-JSON console output")
	}
}

func TestWithContext_RequestID(t *testing.T) {
	log, buf := newBufferLogger("info")

	log.WithContext(context.Background()).Info("untagged")
	ctx := ContextWithRequestID(context.Background(), "req-42")
	log.WithContext(ctx).Info("tagged")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}
	if _, ok := lines[0]["request_id"]; ok {
		t.Errorf("Expected no request_id, got %v", lines[0]["request_id"])
	}
	if lines[1]["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", lines[1]["request_id"])
	}
	if RequestID(ctx) != "req-42" {
		t.Errorf("RequestID(ctx) = %q", RequestID(ctx))
	}
}
