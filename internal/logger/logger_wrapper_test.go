package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/leandrodaf/usbmidi/sdk/contracts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved(t *testing.T) (*ZapLogger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapLoggerFrom(zap.New(core)), logs
}

func TestSetLevel(t *testing.T) {
	tests := []struct {
		name  string
		level contracts.LogLevel
		debug bool
		info  bool
		warn  bool
	}{
		{"debug", contracts.DebugLevel, true, true, true},
		{"info", contracts.InfoLevel, false, true, true},
		{"warn", contracts.WarnLevel, false, false, true},
		{"error", contracts.ErrorLevel, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, logs := newObserved(t)
			l.SetLevel(tt.level)
			if got := l.Level(); got != tt.level {
				t.Errorf("Level() = %v, want %v", got, tt.level)
			}

			l.Debug("d")
			l.Info("i")
			l.Warn("w")

			if got := logs.FilterMessage("d").Len() == 1; got != tt.debug {
				t.Errorf("debug logged = %v, want %v", got, tt.debug)
			}
			if got := logs.FilterMessage("i").Len() == 1; got != tt.info {
				t.Errorf("info logged = %v, want %v", got, tt.info)
			}
			if got := logs.FilterMessage("w").Len() == 1; got != tt.warn {
				t.Errorf("warn logged = %v, want %v", got, tt.warn)
			}
		})
	}
}

func TestFields(t *testing.T) {
	l, logs := newObserved(t)
	l.SetLevel(contracts.DebugLevel)

	l.Debug("packet",
		l.Field().Uint8("cable", 3),
		l.Field().Int("count", 2),
		l.Field().Binary("bytes", []byte{0x39, 0x90, 0x45, 0x7f}),
		l.Field().Duration("elapsed", 250*time.Millisecond),
		l.Field().Error("error", errors.New("boom")),
		l.Field().Error("skipped", nil),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("logged %d entries, want 1", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["cable"] != uint8(3) {
		t.Errorf("cable = %v, want 3", ctx["cable"])
	}
	if ctx["count"] != int64(2) {
		t.Errorf("count = %v, want 2", ctx["count"])
	}
	if ctx["bytes"] != "39 90 45 7f" {
		t.Errorf("bytes = %q, want %q", ctx["bytes"], "39 90 45 7f")
	}
	if ctx["elapsed"] != 250*time.Millisecond {
		t.Errorf("elapsed = %v, want 250ms", ctx["elapsed"])
	}
	if ctx["error"] != "boom" {
		t.Errorf("error = %v, want boom", ctx["error"])
	}
	if _, ok := ctx["skipped"]; ok {
		t.Error("nil error field should be skipped")
	}
}

func TestSetDestinationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbmidi.log")

	l := NewZapLogger().(*ZapLogger)
	l.SetDestination(contracts.FileLog, path)
	l.Info("written to file", l.Field().String("key", "value"))
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), `"msg":"written to file"`) {
		t.Errorf("log file missing message: %s", data)
	}
	if !strings.Contains(string(data), `"key":"value"`) {
		t.Errorf("log file missing field: %s", data)
	}

	l.SetDestination(contracts.ConsoleLog)
	if l.file != nil {
		t.Error("file should be released after switching to console")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want contracts.LogLevel
		ok   bool
	}{
		{"debug", contracts.DebugLevel, true},
		{"", contracts.InfoLevel, true},
		{"warning", contracts.WarnLevel, true},
		{"error", contracts.ErrorLevel, true},
		{"loud", contracts.InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := contracts.ParseLogLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLogLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
