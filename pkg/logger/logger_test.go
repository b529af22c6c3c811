package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/realjkeee/zenbot/pkg/config"
)

func jsonLogger(buf *bytes.Buffer) *Logger {
	return NewWithWriter(&config.Config{Env: "development", LogLevel: "debug", LogFormat: "json"}, buf)
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel zerolog.Level
		wantDebug bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"}, &buf)
			if log.Level() != tt.wantLevel {
				t.Errorf("Expected level %v, got %v", tt.wantLevel, log.Level())
			}
			if log.DebugEnabled() != tt.wantDebug {
				t.Errorf("DebugEnabled() = %v, want %v", log.DebugEnabled(), tt.wantDebug)
			}

			log.Debug("maybe")
			if got := buf.Len() > 0; got != tt.wantDebug {
				t.Errorf("debug line written = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestLevelIsPerLogger(t *testing.T) {
	var quiet, loud bytes.Buffer
	q := NewWithWriter(&config.Config{LogLevel: "error", LogFormat: "json"}, &quiet)
	l := NewWithWriter(&config.Config{LogLevel: "debug", LogFormat: "json"}, &loud)

	q.Info("dropped")
	l.Info("kept")

	if quiet.Len() != 0 {
		t.Errorf("Expected error-level logger to drop info, got %q", quiet.String())
	}
	if !strings.Contains(loud.String(), "kept") {
		t.Errorf("Expected debug-level logger to keep info, got %q", loud.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"invalid", zerolog.InfoLevel}, // Default
		{"", zerolog.InfoLevel},        // Default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	log := jsonLogger(&buf)

	tests := []struct {
		name      string
		logFunc   func()
		wantMsg   string
		wantLevel string
	}{
		{"debug", func() { log.Debug("debug message") }, "debug message", "debug"},
		{"info", func() { log.Info("info message") }, "info message", "info"},
		{"warn", func() { log.Warn("warn message") }, "warn message", "warn"},
		{"error", func() { log.Error("error message") }, "error message", "error"},
		{"infof", func() { log.Infof("[ %d/%d ] %s", 3, 16, "./zenbot.sh sim") }, "[ 3/16 ] ./zenbot.sh sim", "info"},
		{"warnf", func() { log.Warnf("retry attempt: %d", 3) }, "retry attempt: 3", "warn"},
		{"errorf", func() { log.Errorf("failed: %s", "timeout") }, "failed: timeout", "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			entry := decodeEntry(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("Expected level %q, got %q", tt.wantLevel, entry["level"])
			}
			if entry["message"] != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, entry["message"])
			}
			if entry["env"] != "development" {
				t.Errorf("Expected env field, got %v", entry["env"])
			}
		})
	}
}

func TestFields(t *testing.T) {
	var buf bytes.Buffer
	log := jsonLogger(&buf)

	log.Component("pipeline").
		ForRun("run-1").
		ForGeneration(3).
		ForStrategy("macd").
		WithField("command", "./zenbot.sh sim").
		WithError(errors.New("exit status 1")).
		Warn("evaluation failed")

	entry := decodeEntry(t, &buf)
	want := map[string]interface{}{
		FieldComponent:  "pipeline",
		FieldRunID:      "run-1",
		FieldGeneration: float64(3),
		FieldStrategy:   "macd",
		"command":       "./zenbot.sh sim",
		"error":         "exit status 1",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("Expected %s=%v, got %v", k, v, entry[k])
		}
	}
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development", LogLevel: "info", LogFormat: "console"}, &buf)
	log.Info("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", buf.String())
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	log.WithField("a", 1).Error("discarded")
}
