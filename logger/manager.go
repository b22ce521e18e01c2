package logger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Manager fans install events out to the configured sinks
type Manager struct {
	sinks       map[string]Sink
	sinkConfigs map[string]string // name -> config hash
	mu          sync.RWMutex
}

// NewManager creates a new event log manager
func NewManager() *Manager {
	return &Manager{
		sinks:       make(map[string]Sink),
		sinkConfigs: make(map[string]string),
	}
}

// Write writes an install event to all configured sinks
func (m *Manager) Write(event *Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sink := range m.sinks {
		if err := sink.Write(event); err != nil {
			log.Printf("[logger] Failed to write to sink %s: %v", sink.Name(), err)
		}
	}
}

// UpdateSinks updates the configured sinks based on new configuration.
// Only sinks whose config actually changed are recreated.
func (m *Manager) UpdateSinks(sinksConfig map[string]map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Remove sinks that are no longer in the config
	for name, sink := range m.sinks {
		if _, keep := sinksConfig[name]; !keep {
			log.Printf("[logger] Removing sink: %s", name)
			if err := sink.Close(); err != nil {
				log.Printf("[logger] Error closing sink %s: %v", name, err)
			}
			delete(m.sinks, name)
			delete(m.sinkConfigs, name)
		}
	}

	// Add or update sinks
	for name, config := range sinksConfig {
		configHash := computeConfigHash(config)

		if existingHash, exists := m.sinkConfigs[name]; exists {
			if existingHash == configHash {
				continue
			}

			log.Printf("[logger] Sink %s config changed, recreating", name)
			if oldSink, ok := m.sinks[name]; ok {
				if err := oldSink.Close(); err != nil {
					log.Printf("[logger] Error closing old sink %s: %v", name, err)
				}
			}
		}

		sink, err := CreateSink(name, config)
		if err != nil {
			// Don't fail completely, just skip this sink
			log.Printf("[logger] Failed to create sink %s: %v", name, err)
			continue
		}

		m.sinks[name] = sink
		m.sinkConfigs[name] = configHash
		log.Printf("[logger] Sink %s created/updated successfully", name)
	}

	return nil
}

// Close closes all sinks and releases resources
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstError error
	for name, sink := range m.sinks {
		if err := sink.Close(); err != nil {
			log.Printf("[logger] Error closing sink %s: %v", name, err)
			if firstError == nil {
				firstError = err
			}
		}
	}

	m.sinks = make(map[string]Sink)
	m.sinkConfigs = make(map[string]string)

	return firstError
}

// HasSinks returns true if there are any configured sinks
func (m *Manager) HasSinks() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks) > 0
}

// SinkCount returns the number of configured sinks
func (m *Manager) SinkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sinks)
}

// computeConfigHash computes a hash of a configuration map so changed sink
// configs can be detected without comparing maps field by field
func computeConfigHash(config map[string]interface{}) string {
	jsonBytes, err := json.Marshal(config)
	if err != nil {
		// If we can't marshal, generate a hash that forces recreation
		return fmt.Sprintf("error-%d", len(config))
	}

	hash := sha256.Sum256(jsonBytes)
	return fmt.Sprintf("%x", hash)
}
