package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
)

// AxiomSink ships install events to Axiom
type AxiomSink struct {
	name         string
	dataset      string
	client       *axiom.Client
	channel      chan axiom.Event
	cancelFunc   context.CancelFunc
	configHash   string
	channelDrops uint64
}

// AxiomSinkConfig represents the configuration for an Axiom sink
type AxiomSinkConfig struct {
	Token   string `json:"token"`
	Dataset string `json:"dataset"`
}

func init() {
	RegisterSinkFactory("axiom", NewAxiomSink)
}

// NewAxiomSink creates a new Axiom sink
func NewAxiomSink(name string, config map[string]interface{}) (Sink, error) {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var sinkConfig AxiomSinkConfig
	if err := json.Unmarshal(configJSON, &sinkConfig); err != nil {
		return nil, fmt.Errorf("failed to parse axiom sink config: %w", err)
	}

	if sinkConfig.Token == "" {
		return nil, fmt.Errorf("axiom sink requires 'token' field")
	}

	if sinkConfig.Dataset == "" {
		return nil, fmt.Errorf("axiom sink requires 'dataset' field")
	}

	client, err := axiom.NewClient(
		axiom.SetToken(sinkConfig.Token),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Axiom client: %w", err)
	}

	channel := make(chan axiom.Event, 1000)
	ctx, cancel := context.WithCancel(context.Background())

	sink := &AxiomSink{
		name:       name,
		dataset:    sinkConfig.Dataset,
		client:     client,
		channel:    channel,
		cancelFunc: cancel,
		configHash: computeConfigHash(config),
	}

	go sink.runIngestion(ctx)

	log.Printf("[logger:axiom] Axiom sink %s initialized: dataset=%s", name, sinkConfig.Dataset)

	return sink, nil
}

// Write writes an install event to Axiom
func (s *AxiomSink) Write(event *Event) error {
	if s.channel == nil {
		return fmt.Errorf("axiom sink %s is closed", s.name)
	}

	var axEvent axiom.Event
	jsonBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal install event: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, &axEvent); err != nil {
		return fmt.Errorf("failed to unmarshal to axiom event: %w", err)
	}

	// Try to send to channel (non-blocking)
	select {
	case s.channel <- axEvent:
		return nil
	default:
		drops := atomic.AddUint64(&s.channelDrops, 1)
		if drops%100 == 1 {
			log.Printf("[logger:axiom] Sink %s channel is full, total drops: %d", s.name, drops)
		}
		return fmt.Errorf("channel full, event dropped")
	}
}

// Close closes the Axiom sink
func (s *AxiomSink) Close() error {
	log.Printf("[logger:axiom] Closing Axiom sink %s", s.name)

	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	if s.channel != nil {
		close(s.channel)
		s.channel = nil
	}

	s.client = nil

	return nil
}

// Name returns the name of this sink
func (s *AxiomSink) Name() string {
	return s.name
}

// ConfigHash returns the configuration hash
func (s *AxiomSink) ConfigHash() string {
	return s.configHash
}

// runIngestion runs the Axiom ingestion loop, reconnecting with backoff
// when ingestion fails
func (s *AxiomSink) runIngestion(ctx context.Context) {
	const (
		initialRetryDelay = 1 * time.Second
		maxRetryDelay     = 5 * time.Minute
	)

	retryDelay := initialRetryDelay

	for {
		select {
		case <-ctx.Done():
			log.Printf("[logger:axiom] Sink %s ingestion stopped (context cancelled)", s.name)
			return
		default:
		}

		if s.client == nil || s.channel == nil {
			log.Printf("[logger:axiom] Sink %s client or channel is nil, stopping ingestion", s.name)
			return
		}

		// This blocks until the context is cancelled or an error occurs
		_, err := s.client.IngestChannel(ctx, s.dataset, s.channel, ingest.SetTimestampField("timestamp"))

		if ctx.Err() != nil {
			log.Printf("[logger:axiom] Sink %s ingestion stopped (context cancelled)", s.name)
			return
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}

			log.Printf("[logger:axiom] Sink %s ingestion error: %v. Retrying in %v", s.name, err, retryDelay)

			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}

			retryDelay *= 2
			if retryDelay > maxRetryDelay {
				retryDelay = maxRetryDelay
			}
			continue
		}

		// Channel was closed cleanly
		return
	}
}
