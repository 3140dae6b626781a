package pubsub

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return Event{}
}

func TestSubscribeReplaysBuffer(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(TopicAnalysisStatus, TopicConfig{BufferSize: 3, ReplayAll: true})

	for gen := uint64(1); gen <= 5; gen++ {
		if err := pub.Publish(TopicAnalysisStatus, "analyzing", AnalysisStatus{State: "analyzing", Generation: gen}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	sub, err := pub.Subscribe(context.Background(), TopicAnalysisStatus)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	for want := uint64(3); want <= 5; want++ {
		e := receive(t, sub)
		var status AnalysisStatus
		if err := json.Unmarshal(e.Data, &status); err != nil {
			t.Fatal(err)
		}
		if status.Generation != want || e.Version != int(want) {
			t.Errorf("replayed generation %d version %d, want %d", status.Generation, e.Version, want)
		}
	}
}

func TestSubscribeReplaysNewestOnly(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()
	pub.ConfigureTopic(TopicAnalysisResult, TopicConfig{BufferSize: 5})

	pub.Publish(TopicAnalysisResult, "complete", AnalysisSummary{Generation: 1})
	pub.Publish(TopicAnalysisResult, "complete", AnalysisSummary{Generation: 2})

	sub, err := pub.Subscribe(context.Background(), TopicAnalysisResult)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	if e := receive(t, sub); e.Version != 2 {
		t.Errorf("replayed version %d, want 2", e.Version)
	}
	pub.Publish(TopicAnalysisResult, "complete", AnalysisSummary{Generation: 3})
	if e := receive(t, sub); e.Version != 3 || e.Type != "complete" {
		t.Errorf("live event = %+v, want version 3", e)
	}
}

func TestUnbufferedTopicHasNoReplay(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	pub.Publish("other", "x", 1)
	sub, err := pub.Subscribe(context.Background(), "other")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	select {
	case e := <-sub.Events():
		t.Errorf("unexpected replay %+v", e)
	default:
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := pub.Subscribe(ctx, TopicAnalysisStatus)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("expected the channel to close, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription did not end with its context")
	}
	// Closing again is harmless.
	if err := sub.Close(); err != nil {
		t.Error(err)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	pub := NewSSEPublisher()
	sub, err := pub.Subscribe(context.Background(), TopicAnalysisResult)
	if err != nil {
		t.Fatal(err)
	}
	pub.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("expected a closed channel")
	}
	if err := pub.Publish(TopicAnalysisResult, "complete", nil); err != ErrClosed {
		t.Errorf("Publish() after Close = %v, want ErrClosed", err)
	}
	if _, err := pub.Subscribe(context.Background(), TopicAnalysisResult); err != ErrClosed {
		t.Errorf("Subscribe() after Close = %v, want ErrClosed", err)
	}
	sub.Close()
}

func TestStream(t *testing.T) {
	pub := NewSSEPublisher()
	pub.ConfigureTopic(TopicAnalysisStatus, TopicConfig{BufferSize: 1})
	pub.Publish(TopicAnalysisStatus, "ready", AnalysisStatus{State: "ready", Message: "3 files", Generation: 7})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Stream(w, r, pub, TopicAnalysisStatus)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var frame string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			frame = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	var e Event
	if err := json.Unmarshal([]byte(frame), &e); err != nil {
		t.Fatalf("bad frame %q: %v", frame, err)
	}
	if e.Topic != TopicAnalysisStatus || e.Type != "ready" {
		t.Errorf("event = %+v", e)
	}

	// Closing the publisher ends the stream.
	pub.Close()
	for scanner.Scan() {
		// drain until the server ends the response
	}
}

func TestStreamAfterClose(t *testing.T) {
	pub := NewSSEPublisher()
	pub.Close()

	rec := httptest.NewRecorder()
	Stream(rec, httptest.NewRequest(http.MethodGet, "/", nil), pub, TopicAnalysisStatus)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
