package logging

import (
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	prev := logger
	SetLogger(zap.New(core))
	t.Cleanup(func() { logger = prev })
	return logs
}

func TestInitialize_SilentWithoutLevel(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected nop logger when no level is configured")
	}
}

func TestInitialize_FromEnv(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "debug")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level to be enabled")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogRefresh_FailureIsWarning(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogRefresh(0, 2, time.Second, errors.New("boom"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("Level = %v, want %v", entries[0].Level, zapcore.WarnLevel)
	}
	if entries[0].ContextMap()["skipped"] != int64(2) {
		t.Errorf("skipped = %v, want 2", entries[0].ContextMap()["skipped"])
	}
}

func TestLogWrite(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	LogWrite("n1", "fan_speed", 2, nil)
	LogWrite("n1", "fan_speed", 2, errors.New("rejected"))

	if logs.FilterMessage("Parameter set").Len() != 1 {
		t.Error("expected one success entry")
	}
	if logs.FilterMessage("Failed to set parameter").Len() != 1 {
		t.Error("expected one failure entry")
	}
}

func TestLogRawPayload_Truncates(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogRawPayload("payload", []byte(strings.Repeat("x", maxPayloadDump+10)))

	got := logs.All()[0].ContextMap()["payload"].(string)
	if !strings.HasSuffix(got, "...") || len(got) != maxPayloadDump+3 {
		t.Errorf("payload not truncated, len = %d", len(got))
	}
}
