package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "depflow.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := m.Get()
	if cfg.Manifest != "package.json" {
		t.Errorf("expected default manifest package.json, got %q", cfg.Manifest)
	}
	if cfg.DebounceMs != 25 {
		t.Errorf("expected default debounce 25ms, got %d", cfg.DebounceMs)
	}
	if cfg.Dir != "." {
		t.Errorf("expected default dir %q, got %q", ".", cfg.Dir)
	}
}

func TestLoad_ParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"tool": "yarn",
		"dir": "/srv/site",
		"manifest": "package.json",
		"debounce_ms": 100,
		"logging": {
			"audit": {"type": "file", "path": "/var/log/depflow.log"}
		},
		"realtime": {"host": "ws.example.com", "port": 443, "key": "k", "channel": "installs", "encrypted": true}
	}`)

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := m.Get()
	if cfg.Tool != "yarn" {
		t.Errorf("expected tool yarn, got %q", cfg.Tool)
	}
	if m.Debounce() != 100*time.Millisecond {
		t.Errorf("expected debounce 100ms, got %v", m.Debounce())
	}
	if len(cfg.Logging) != 1 {
		t.Errorf("expected 1 sink config, got %d", len(cfg.Logging))
	}
	if cfg.Realtime == nil || cfg.Realtime.Host != "ws.example.com" {
		t.Errorf("realtime config not parsed: %+v", cfg.Realtime)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	m, err := NewManager(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("missing config file should not be an error: %v", err)
	}

	if m.Debounce() != 25*time.Millisecond {
		t.Errorf("expected default debounce, got %v", m.Debounce())
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)

	if _, err := NewManager(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestOnChange_FiredOnReload(t *testing.T) {
	path := writeConfig(t, `{"debounce_ms": 25}`)

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed := make(chan *Config, 1)
	m.OnChange(func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})

	if err := os.WriteFile(path, []byte(`{"debounce_ms": 50}`), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	if err := m.Load(); err != nil {
		t.Fatalf("failed to reload: %v", err)
	}

	select {
	case c := <-changed:
		if c.DebounceMs != 50 {
			t.Errorf("callback got stale config: %d", c.DebounceMs)
		}
	default:
		t.Error("expected change callback to fire on reload")
	}
}
