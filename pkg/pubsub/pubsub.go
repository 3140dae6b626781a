package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the analysis service.
const (
	// TopicAnalysisStatus carries AnalysisStatus updates.
	TopicAnalysisStatus = "analysis_status"
	// TopicAnalysisResult carries an AnalysisSummary per completed run.
	TopicAnalysisResult = "analysis_result"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "analysis_status")
	Type    string          `json:"type"`    // Event type (e.g., "analyzing", "ready", "error")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// AnalysisStatus represents the state of the analysis service
type AnalysisStatus struct {
	State      string `json:"state"`      // analyzing, ready, error
	Message    string `json:"message"`    // Human-readable status message
	Generation uint64 `json:"generation"` // Run the status belongs to
}

// AnalysisSummary announces a completed analysis. Clients fetch the full
// result from the API.
type AnalysisSummary struct {
	Generation      uint64 `json:"generation"`
	Files           int    `json:"files"`
	Dependencies    int    `json:"dependencies"`
	Cycles          int    `json:"cycles"`
	ErrorCycles     bool   `json:"error_cycles"`
	Diagnostics     int    `json:"diagnostics"`
	ComplexityWarns int    `json:"complexity_warnings"`
	Changes         string `json:"changes"` // Structural changes since the previous run
}
