package logger

import (
	"encoding/json"
	"fmt"
)

// Sink represents a destination that can receive install events
type Sink interface {
	// Write writes an install event to the sink
	Write(event *Event) error

	// Close closes the sink and releases any resources
	Close() error

	// Name returns the name/ID of this sink
	Name() string

	// ConfigHash returns a hash of the current configuration
	// Used to detect if the sink's config has actually changed
	ConfigHash() string
}

// Event represents a structured install event
type Event struct {
	Data map[string]interface{}
}

// MarshalJSON marshals the event to JSON
func (e *Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Data)
}

// SinkFactory creates a sink from a configuration
type SinkFactory func(name string, config map[string]interface{}) (Sink, error)

var sinkFactories = make(map[string]SinkFactory)

// RegisterSinkFactory registers a sink factory for a specific type
func RegisterSinkFactory(sinkType string, factory SinkFactory) {
	sinkFactories[sinkType] = factory
}

// CreateSink creates a sink from configuration
func CreateSink(name string, config map[string]interface{}) (Sink, error) {
	sinkType, ok := config["type"].(string)
	if !ok {
		return nil, fmt.Errorf("sink %s: missing or invalid 'type' field", name)
	}

	factory, ok := sinkFactories[sinkType]
	if !ok {
		return nil, fmt.Errorf("sink %s: unknown sink type '%s'", name, sinkType)
	}

	return factory(name, config)
}
