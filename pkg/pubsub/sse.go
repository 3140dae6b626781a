package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ritzau/codegraph/pkg/logging"
)

// ErrClosed is returned once the publisher has shut down.
var ErrClosed = errors.New("publisher is closed")

// subscriberQueue is the per-subscriber channel size. A subscriber that falls
// further behind loses events rather than stalling the analysis.
const subscriberQueue = 64

// TopicConfig configures what late subscribers get to see.
type TopicConfig struct {
	BufferSize int  // Events kept for replay; 0 keeps none
	ReplayAll  bool // Replay the whole buffer instead of only the newest event
}

// topic is the state of one topic. Guarded by SSEPublisher.mu.
type topic struct {
	config  TopicConfig
	version int
	recent  []Event
	subs    map[*sseSubscription]struct{}
}

// replay returns the events a new subscriber starts with.
func (t *topic) replay() []Event {
	if len(t.recent) == 0 {
		return nil
	}
	if t.config.ReplayAll {
		recent := t.recent
		if len(recent) > subscriberQueue {
			recent = recent[len(recent)-subscriberQueue:]
		}
		return append([]Event(nil), recent...)
	}
	return []Event{t.recent[len(t.recent)-1]}
}

// SSEPublisher implements Publisher for Server-Sent Event streams.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

// NewSSEPublisher creates a publisher with no topics configured. Unknown
// topics work but keep nothing for replay.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topic)}
}

func (p *SSEPublisher) topic(name string) *topic {
	t := p.topics[name]
	if t == nil {
		t = &topic{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets the replay behavior of a topic.
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(name).config = config
}

// Subscribe registers a subscriber. The subscription ends when ctx is done,
// when Close is called, or when the publisher closes.
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	t := p.topic(name)
	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberQueue),
		done:      make(chan struct{}),
		publisher: p,
	}
	// Queue the replay before registering so it precedes anything published
	// after this point.
	replay := t.replay()
	for _, e := range replay {
		sub.events <- e
	}
	t.subs[sub] = struct{}{}
	p.mu.Unlock()

	if len(replay) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", name, "count", len(replay))
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Publish sends data as JSON to every subscriber of the topic.
func (p *SSEPublisher) Publish(name string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	t := p.topic(name)
	t.version++
	event := Event{Topic: name, Type: eventType, Data: payload, Version: t.version}

	if n := t.config.BufferSize; n > 0 {
		t.recent = append(t.recent, event)
		if len(t.recent) > n {
			t.recent = t.recent[len(t.recent)-n:]
		}
	}

	for sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscriber is behind, dropping event", "topic", name, "version", event.Version)
		}
	}
	return nil
}

// Close ends every subscription; their event channels are closed.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, t := range p.topics {
		for sub := range t.subs {
			sub.finish()
		}
		t.subs = nil
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t := p.topics[sub.topic]; t != nil && t.subs != nil {
		if _, ok := t.subs[sub]; ok {
			delete(t.subs, sub)
			sub.finish()
		}
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	done      chan struct{}
	once      sync.Once
	publisher *SSEPublisher
}

func (s *sseSubscription) Topic() string        { return s.topic }
func (s *sseSubscription) Events() <-chan Event { return s.events }

// Close unsubscribes and closes the events channel.
func (s *sseSubscription) Close() error {
	s.publisher.unsubscribe(s)
	return nil
}

// finish closes the channels once. Callers hold the publisher lock, so no
// Publish can be sending concurrently.
func (s *sseSubscription) finish() {
	s.once.Do(func() {
		close(s.done)
		close(s.events)
	})
}

// Stream serves topic to an SSE client until the client goes away or the
// publisher closes.
func Stream(w http.ResponseWriter, r *http.Request, p Publisher, topic string) {
	sub, err := p.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Access-Control-Allow-Origin", "*")

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	// A comment line, so clients see the stream open before the first event.
	fmt.Fprint(w, ": connected\n\n")
	flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := WriteSSE(w, event); err != nil {
				logging.DebugContext(r.Context(), "stopped streaming events", "topic", topic, "error", err)
				return
			}
			flush()
		}
	}
}

// WriteSSE writes event as one "data:" frame.
func WriteSSE(w io.Writer, event Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", frame)
	return err
}
