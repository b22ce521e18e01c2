package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
)

// FileSink writes install events to a file as JSON lines
type FileSink struct {
	name       string
	path       string
	file       *os.File
	configHash string
	mu         sync.Mutex
}

// FileSinkConfig represents the configuration for a file sink
type FileSinkConfig struct {
	Path string `json:"path"`
}

func init() {
	RegisterSinkFactory("file", NewFileSink)
}

// NewFileSink creates a new file sink
func NewFileSink(name string, config map[string]interface{}) (Sink, error) {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var sinkConfig FileSinkConfig
	if err := json.Unmarshal(configJSON, &sinkConfig); err != nil {
		return nil, fmt.Errorf("failed to parse file sink config: %w", err)
	}

	if sinkConfig.Path == "" {
		return nil, fmt.Errorf("file sink requires 'path' field")
	}

	file, err := os.OpenFile(sinkConfig.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log file %s: %w", sinkConfig.Path, err)
	}

	log.Printf("[logger:file] File sink %s initialized: %s", name, sinkConfig.Path)

	return &FileSink{
		name:       name,
		path:       sinkConfig.Path,
		file:       file,
		configHash: computeConfigHash(config),
	}, nil
}

// Write writes an install event to the file
func (s *FileSink) Write(event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("file sink %s is closed", s.name)
	}

	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal install event: %w", err)
	}

	if _, err := s.file.WriteString(string(jsonBytes) + "\n"); err != nil {
		return fmt.Errorf("failed to write to event log file: %w", err)
	}

	return nil
}

// Close closes the file sink
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	err := s.file.Close()
	s.file = nil
	return err
}

// Name returns the name of this sink
func (s *FileSink) Name() string {
	return s.name
}

// ConfigHash returns the configuration hash
func (s *FileSink) ConfigHash() string {
	return s.configHash
}
