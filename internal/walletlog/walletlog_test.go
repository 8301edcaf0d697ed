package walletlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": Debug,
		"info":  Info,
		"warn":  Warn,
		"error": Error,
		"fatal": Fatal,
		"":      Info,
		"huh":   Info,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewDiscardDoesNotPanic(t *testing.T) {
	l := NewDiscard()
	l.Debug("hello %s", "world")
	l.Info("hello %s", "world")
	l.Warn("hello %s", "world")
	l.Error("hello %s", "world")
	l.Audit("noop", map[string]interface{}{"k": "v"})
	if err := l.Close(); err != nil {
		t.Errorf("Close on discard logger should not error, got %v", err)
	}
}

func TestNewWritesToLogFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "wallet.log")
	l, err := New(Info, logPath, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Info("scan tick processed %d blocks", 42)
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file failed: %v", err)
	}
	if !strings.Contains(string(raw), "scan tick processed 42 blocks") {
		t.Errorf("log file missing expected message, got: %s", raw)
	}
}

func TestAuditWritesEventToAuditFile(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")
	l, err := New(Debug, "", auditPath)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Audit("key_export", map[string]interface{}{"address": "zdoge:abc"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	raw, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit file failed: %v", err)
	}
	if !strings.Contains(string(raw), "key_export") {
		t.Errorf("audit file missing expected event, got: %s", raw)
	}
}

func TestLevelBelowThresholdIsSuppressed(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "wallet.log")
	l, err := New(Warn, logPath, "")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	l.Debug("should not appear")
	l.Warn("should appear")
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file failed: %v", err)
	}
	if strings.Contains(string(raw), "should not appear") {
		t.Errorf("debug message should have been suppressed below Warn level")
	}
	if !strings.Contains(string(raw), "should appear") {
		t.Errorf("warn message should have been written")
	}
}
