package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvFormat, "")
	t.Setenv(EnvLevel, "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q", cfg.Format)
	}
	if cfg.Level != slog.LevelInfo {
		t.Errorf("Level = %v", cfg.Level)
	}
}

func TestLoadConfigFromEnvRejectsUnknownValues(t *testing.T) {
	t.Setenv(EnvFormat, "xml")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected error for unknown format")
	}

	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvLevel, "loud")
	if _, err := LoadConfigFromEnv(); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewLoggerEmitsAppAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DefaultConfig(), &buf, "serve")
	logger.Info("hello")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if record["app"] != "bridgepoint" {
		t.Errorf("app = %v", record["app"])
	}
	if record["command"] != "serve" {
		t.Errorf("command = %v", record["command"])
	}
}

func TestNewLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: "text", Level: slog.LevelInfo}, &buf, "")
	logger.Info("hello")

	if !bytes.Contains(buf.Bytes(), []byte("command=bridgepoint")) {
		t.Errorf("text output missing default command attribute: %s", buf.String())
	}
}
