package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wstail.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
log:
  level: debug
connections:
  - name: ticker
    url: wss://stream.example.com/v1
    auto_reconnect: true
    reconnect_delay_ms: 2500
    store_history: true
    max_messages: 25
    heartbeat_interval_ms: 15000
  - name: firehose
    url: wss://stream.example.com/v1
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if len(cfg.Connections) != 2 {
		t.Fatalf("got %d connections, want 2", len(cfg.Connections))
	}

	p := cfg.Connections[0]
	if p.Name != "ticker" {
		t.Errorf("Name = %q, want %q", p.Name, "ticker")
	}
	if p.URL != "wss://stream.example.com/v1" {
		t.Errorf("URL = %q, want %q", p.URL, "wss://stream.example.com/v1")
	}
	if !p.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
	if p.ReconnectDelayMS != 2500 {
		t.Errorf("ReconnectDelayMS = %d, want 2500", p.ReconnectDelayMS)
	}
	if p.MaxMessages != 25 {
		t.Errorf("MaxMessages = %d, want 25", p.MaxMessages)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_STREAM_HOST", "stream.internal.example.com")

	yaml := `
connections:
  - name: ticker
    url: wss://${TEST_STREAM_HOST}/v1
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := "wss://stream.internal.example.com/v1"
	if cfg.Connections[0].URL != want {
		t.Errorf("URL = %q, want %q", cfg.Connections[0].URL, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadAndValidate_AppliesDefaults(t *testing.T) {
	yaml := `
connections:
  - name: ticker
    url: wss://stream.example.com/v1
    auto_reconnect: true
    store_history: true
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}
	p := cfg.Connections[0]
	if p.ReconnectDelayMS != DefaultReconnectDelayMS {
		t.Errorf("ReconnectDelayMS = %d, want default %d", p.ReconnectDelayMS, DefaultReconnectDelayMS)
	}
	if p.MaxMessages != DefaultMaxMessages {
		t.Errorf("MaxMessages = %d, want default %d", p.MaxMessages, DefaultMaxMessages)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no connections", `
log:
  level: info
`},
		{"missing name", `
connections:
  - url: wss://stream.example.com/v1
`},
		{"duplicate name", `
connections:
  - name: ticker
    url: wss://stream.example.com/v1
  - name: ticker
    url: wss://stream.example.com/v2
`},
		{"missing url", `
connections:
  - name: ticker
`},
		{"bad scheme", `
connections:
  - name: ticker
    url: https://stream.example.com/v1
`},
		{"negative delay", `
connections:
  - name: ticker
    url: wss://stream.example.com/v1
    reconnect_delay_ms: -1
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.yaml)
			if _, err := LoadAndValidate(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestProfileOptions(t *testing.T) {
	p := Profile{
		Name:                "ticker",
		URL:                 "wss://stream.example.com/v1",
		AutoReconnect:       true,
		ReconnectDelayMS:    2500,
		StoreHistory:        true,
		MaxMessages:         25,
		HeartbeatIntervalMS: 15000,
	}

	opts := p.Options()
	if opts.URL != p.URL {
		t.Errorf("URL = %q, want %q", opts.URL, p.URL)
	}
	if opts.ReconnectDelay != 2500*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, want 2.5s", opts.ReconnectDelay)
	}
	if opts.HeartbeatInterval != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 15s", opts.HeartbeatInterval)
	}
	if opts.MaxMessages != 25 {
		t.Errorf("MaxMessages = %d, want 25", opts.MaxMessages)
	}
}
