package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "metazip.log")

	cfg := DefaultConfig()
	cfg.FilePath = path
	cfg.Console = false
	cfg.Level = "debug"

	log, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	WithImage(log, "cat.jpg", "JPEG").Info("stripped")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(raw), &entry); err != nil {
		t.Fatalf("log entry is not JSON: %v (%s)", err, raw)
	}
	for key, want := range map[string]string{
		"message": "stripped",
		"level":   "info",
		"image":   "cat.jpg",
		"format":  "JPEG",
	} {
		if entry[key] != want {
			t.Errorf("entry[%q] = %v, want %q", key, entry[key], want)
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("entry has no timestamp field")
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	if _, err := NewLogger(cfg); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestApplyVerbosity(t *testing.T) {
	tests := []struct {
		verbose, quiet bool
		want           logrus.Level
	}{
		{false, false, logrus.InfoLevel},
		{true, false, logrus.DebugLevel},
		{false, true, logrus.ErrorLevel},
		{true, true, logrus.ErrorLevel},
	}

	for _, tt := range tests {
		log := Discard()
		log.SetLevel(logrus.InfoLevel)
		ApplyVerbosity(log, tt.verbose, tt.quiet)
		if log.GetLevel() != tt.want {
			t.Errorf("verbose=%v quiet=%v: level = %s, want %s", tt.verbose, tt.quiet, log.GetLevel(), tt.want)
		}
	}
}

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	log := Discard()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	WithOperation(log, "inspect").Warn("no metadata")
	if !strings.Contains(buf.String(), "operation=inspect") {
		t.Errorf("output = %q", buf.String())
	}
}
