package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupEmitsRenamedKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("sharkd", "test", Options{Level: "debug", Output: &buf})
	logger.Debug("borrow executed", "borrower", "osmo1y244hh4g6ku4kznyy5c53adgu9m8jucf0kmz82")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for _, key := range []string{"timestamp", "severity", "message", "service", "env"} {
		if _, ok := line[key]; !ok {
			t.Fatalf("expected key %q in %v", key, line)
		}
	}
	if line["severity"] != "DEBUG" || line["service"] != "sharkd" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestSetupWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sharkd.log")
	var buf bytes.Buffer
	logger := Setup("sharkd", "", Options{File: path, Output: &buf})
	logger.Info("pool credited")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "pool credited") {
		t.Fatalf("expected file to contain the line, got %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	if level, err := ParseLevel("WARN"); err != nil || level != slog.LevelWarn {
		t.Fatalf("expected warn, got %v (%v)", level, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("api_token", "secret"); attr.Value.String() != RedactedValue {
		t.Fatalf("expected token to be masked, got %s", attr.Value)
	}
	if attr := MaskField("borrower", "osmo1y244"); attr.Value.String() != "osmo1y244" {
		t.Fatalf("expected allowlisted key to pass through, got %s", attr.Value)
	}
}
