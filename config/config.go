package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"depflow/remote"
)

const (
	defaultManifest   = "package.json"
	defaultDebounceMs = 25
)

// Config represents the complete application configuration.
type Config struct {
	Tool       string                            `json:"tool,omitempty"`        // "npm", "yarn" or empty for auto-detect
	Dir        string                            `json:"dir,omitempty"`         // project directory
	Manifest   string                            `json:"manifest,omitempty"`    // manifest resource the install lock covers
	DebounceMs int                               `json:"debounce_ms,omitempty"` // trailing debounce delay in milliseconds
	Verbose    bool                              `json:"verbose,omitempty"`
	Logging    map[string]map[string]interface{} `json:"logging,omitempty"` // event sink configs by name
	Realtime   *remote.Config                    `json:"realtime,omitempty"`
}

// Manager manages the configuration with hot-reload support.
type Manager struct {
	configPath string
	config     *Config
	watcher    *fsnotify.Watcher
	callbacks  []func(*Config)
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager. A missing config file is
// not an error; defaults apply until one appears.
func NewManager(configPath string) (*Manager, error) {
	m := &Manager{configPath: configPath}

	if err := m.Load(); err != nil {
		return nil, err
	}

	return m, nil
}

// Load loads or reloads the configuration from disk.
func (m *Manager) Load() error {
	var config Config

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		log.Printf("[config] No config file at %s, using defaults", m.configPath)
	} else if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}

	applyDefaults(&config)

	m.mu.Lock()
	oldConfig := m.config
	m.config = &config
	callbacks := make([]func(*Config), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	// Notify change listeners on reloads, not the initial load
	if oldConfig != nil {
		for _, callback := range callbacks {
			if callback != nil {
				callback(&config)
			}
		}
	}

	log.Printf("[config] Loaded configuration from %s (tool: %s, debounce: %dms, sinks: %d)",
		m.configPath, toolLabel(config.Tool), config.DebounceMs, len(config.Logging))

	return nil
}

func applyDefaults(c *Config) {
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Manifest == "" {
		c.Manifest = defaultManifest
	}
	if c.DebounceMs <= 0 {
		c.DebounceMs = defaultDebounceMs
	}
}

func toolLabel(tool string) string {
	if tool == "" {
		return "auto"
	}
	return tool
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Debounce returns the configured debounce delay.
func (m *Manager) Debounce() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return time.Duration(m.config.DebounceMs) * time.Millisecond
}

// OnChange adds a callback to be called when configuration changes.
func (m *Manager) OnChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// StartWatcher starts watching the configuration file for changes.
func (m *Manager) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	if err := watcher.Add(m.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", m.configPath, err)
	}

	m.mu.Lock()
	m.watcher = watcher
	m.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					log.Printf("[config] Configuration file changed, reloading...")
					if err := m.Load(); err != nil {
						log.Printf("[config] Failed to reload configuration: %v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[config] Watcher error: %v", err)
			}
		}
	}()

	return nil
}

// StopWatcher stops the configuration file watcher.
func (m *Manager) StopWatcher() {
	m.mu.Lock()
	watcher := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	if watcher != nil {
		watcher.Close()
	}
}
