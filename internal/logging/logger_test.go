package logging

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
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

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("silent logger should not enable any level")
	}
}

func TestLogCommandFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogCommand("get_scene_info", "success", 5*time.Millisecond)
	LogConnection("127.0.0.1:5000", "connection_accepted")
	LogRawBytes("recv", []byte("{\"type\":\n"))

	if logs.Len() != 3 {
		t.Fatalf("logged %d entries, want 3", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["type"] != "get_scene_info" || fields["status"] != "success" {
		t.Errorf("LogCommand fields = %v", fields)
	}
	raw := logs.All()[2].ContextMap()
	if raw["ascii"] != "{\"type\":." {
		t.Errorf("ascii dump = %q", raw["ascii"])
	}
}

func TestHexDumpTruncates(t *testing.T) {
	data := make([]byte, maxDumpBytes+10)
	got := hexDump(data)
	if len(got) != maxDumpBytes*2+3 {
		t.Errorf("hexDump() length = %d, want %d", len(got), maxDumpBytes*2+3)
	}
}
