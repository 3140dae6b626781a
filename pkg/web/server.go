package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/codegraph/pkg/analysis"
	"github.com/ritzau/codegraph/pkg/lens"
	"github.com/ritzau/codegraph/pkg/logging"
	"github.com/ritzau/codegraph/pkg/model"
	"github.com/ritzau/codegraph/pkg/pubsub"
	"github.com/ritzau/codegraph/pkg/report"
)

// shutdownTimeout bounds the graceful shutdown in Start.
const shutdownTimeout = 5 * time.Second

// Server serves the latest analysis result and streams updates
type Server struct {
	router    *mux.Router
	publisher *pubsub.SSEPublisher
	title     string

	mu         sync.RWMutex
	result     *model.AnalysisResult
	diff       *lens.ResultDiff // against the previous result
	generation uint64
	status     pubsub.AnalysisStatus
}

// NewServer creates a new web server. title heads the HTML report.
func NewServer(title string) *Server {
	ssePublisher := pubsub.NewSSEPublisher()

	// Subscribers only need the current state, not the history.
	ssePublisher.ConfigureTopic(pubsub.TopicAnalysisStatus, pubsub.TopicConfig{BufferSize: 10})
	ssePublisher.ConfigureTopic(pubsub.TopicAnalysisResult, pubsub.TopicConfig{BufferSize: 5})

	s := &Server{
		router:    mux.NewRouter(),
		publisher: ssePublisher,
		title:     title,
		status:    pubsub.AnalysisStatus{State: string(analysis.StateAnalyzing), Message: "waiting for first analysis"},
	}
	s.setupRoutes()
	return s
}

// SetResult stores the result of run generation and announces it.
func (s *Server) SetResult(generation uint64, r *model.AnalysisResult) {
	s.mu.Lock()
	diff := lens.ComputeDiff(s.result, r)
	s.result = r
	s.diff = diff
	s.generation = generation
	s.mu.Unlock()

	summary := summarize(generation, r)
	summary.Changes = diff.String()
	if err := s.publisher.Publish(pubsub.TopicAnalysisResult, "complete", summary); err != nil {
		logging.Warn("failed to publish analysis result", "generation", generation, "error", err)
	}
}

// SetStatus publishes a runner status change.
func (s *Server) SetStatus(st analysis.Status) {
	status := pubsub.AnalysisStatus{
		State:      string(st.State),
		Message:    st.Message,
		Generation: st.Generation,
	}
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	if err := s.publisher.Publish(pubsub.TopicAnalysisStatus, status.State, status); err != nil {
		logging.Warn("failed to publish analysis status", "state", status.State, "error", err)
	}
}

func summarize(generation uint64, r *model.AnalysisResult) pubsub.AnalysisSummary {
	warns := 0
	for _, fc := range r.Complexity {
		if fc.Warning != "" {
			warns++
		}
	}
	return pubsub.AnalysisSummary{
		Generation:      generation,
		Files:           r.Metrics.TotalFiles,
		Dependencies:    r.Metrics.DependencyCount,
		Cycles:          len(r.Cycles),
		ErrorCycles:     r.HasErrorCycles(),
		Diagnostics:     len(r.Diagnostics),
		ComplexityWarns: warns,
	}
}

// Handler returns the HTTP handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return logging.RequestIDMiddleware(s.router)
}

func (s *Server) setupRoutes() {
	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/status", s.handleSubscribe(pubsub.TopicAnalysisStatus)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/analysis", s.handleSubscribe(pubsub.TopicAnalysisResult)).Methods("GET")

	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/analysis", s.handleAnalysis).Methods("GET")
	s.router.HandleFunc("/api/cycles", s.handleCycles).Methods("GET")
	s.router.HandleFunc("/api/complexity", s.handleComplexity).Methods("GET")
	s.router.HandleFunc("/api/metrics", s.handleMetrics).Methods("GET")
	s.router.HandleFunc("/api/files/{path:.+}/dependencies", s.handleFileDependencies).Methods("GET")
	s.router.HandleFunc("/api/focus", s.handleFocus).Methods("GET")
	s.router.HandleFunc("/api/directories", s.handleDirectories).Methods("GET")
	s.router.HandleFunc("/api/diff", s.handleDiff).Methods("GET")

	s.router.HandleFunc("/", s.handleReport).Methods("GET")
}

func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pubsub.Stream(w, r, s.publisher, topic)
	}
}

// latest returns the current result, or writes 503 and returns nil.
func (s *Server) latest(w http.ResponseWriter) (*model.AnalysisResult, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		writeJSON(w, http.StatusServiceUnavailable, s.status)
		return nil, 0
	}
	return s.result, s.generation
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	result, gen := s.latest(w)
	if result == nil {
		return
	}
	w.Header().Set("X-Analysis-Generation", fmt.Sprint(gen))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	result, _ := s.latest(w)
	if result == nil {
		return
	}

	severity := model.Severity(r.URL.Query().Get("severity"))
	switch severity {
	case "", model.SeverityWarning, model.SeverityError:
	default:
		http.Error(w, fmt.Sprintf("unknown severity %q", severity), http.StatusBadRequest)
		return
	}

	cycles := []model.Cycle{}
	for _, c := range result.Cycles {
		if severity == "" || c.Severity == severity {
			cycles = append(cycles, c)
		}
	}
	writeJSON(w, http.StatusOK, cycles)
}

func (s *Server) handleComplexity(w http.ResponseWriter, r *http.Request) {
	result, _ := s.latest(w)
	if result == nil {
		return
	}

	q := r.URL.Query()
	file := q.Get("file")
	warningsOnly := q.Get("warnings") == "true"

	var (
		floor    model.ComplexityClass
		hasFloor bool
	)
	if m := q.Get("min"); m != "" {
		c, err := model.ParseComplexity(m)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		floor, hasFloor = c, true
	}

	funcs := []model.FunctionComplexity{}
	for _, fc := range result.Complexity {
		if file != "" && fc.File != file {
			continue
		}
		if warningsOnly && fc.Warning == "" {
			continue
		}
		if hasFloor && fc.Complexity.Compare(floor) < 0 {
			continue
		}
		funcs = append(funcs, fc)
	}
	writeJSON(w, http.StatusOK, funcs)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	result, _ := s.latest(w)
	if result == nil {
		return
	}
	writeJSON(w, http.StatusOK, result.Metrics)
}

// fileDependencies is the neighbourhood of one file.
type fileDependencies struct {
	Path       string                     `json:"path"`
	Outgoing   []model.Edge               `json:"outgoing"`
	Incoming   []model.Edge               `json:"incoming"`
	External   []model.ExternalDependency `json:"external"`
	Cycles     []model.Cycle              `json:"cycles"`
	Complexity []model.FunctionComplexity `json:"complexity"`
}

func (s *Server) handleFileDependencies(w http.ResponseWriter, r *http.Request) {
	result, _ := s.latest(w)
	if result == nil {
		return
	}

	path := strings.TrimPrefix(mux.Vars(r)["path"], "/")
	known := false
	for _, n := range result.Nodes {
		if n.ID == path {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, fmt.Sprintf("file %q not found", path), http.StatusNotFound)
		return
	}

	resp := fileDependencies{
		Path:       path,
		Outgoing:   []model.Edge{},
		Incoming:   []model.Edge{},
		External:   []model.ExternalDependency{},
		Cycles:     []model.Cycle{},
		Complexity: []model.FunctionComplexity{},
	}
	for _, e := range result.Dependencies {
		if e.Source == path {
			resp.Outgoing = append(resp.Outgoing, e)
		}
		if e.Target == path {
			resp.Incoming = append(resp.Incoming, e)
		}
	}
	for _, e := range result.External {
		if e.Source == path {
			resp.External = append(resp.External, e)
		}
	}
	for _, c := range result.Cycles {
		if c.Contains(path) {
			resp.Cycles = append(resp.Cycles, c)
		}
	}
	for _, fc := range result.Complexity {
		if fc.File == path {
			resp.Complexity = append(resp.Complexity, fc)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// intParam reads a non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, v)
	}
	return n, nil
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	result, _ := s.latest(w)
	if result == nil {
		return
	}

	files := r.URL.Query()["file"]
	if len(files) == 0 {
		http.Error(w, "at least one file parameter is required", http.StatusBadRequest)
		return
	}
	depth, err := intParam(r, "depth", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, lens.Focus(result, files, depth))
}

func (s *Server) handleDirectories(w http.ResponseWriter, r *http.Request) {
	result, _ := s.latest(w)
	if result == nil {
		return
	}

	depth, err := intParam(r, "depth", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, lens.AggregateByDirectory(result, depth))
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	result, _ := s.latest(w)
	if result == nil {
		return
	}

	s.mu.RLock()
	diff := s.diff
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	result, status := s.result, s.status
	s.mu.RUnlock()

	if result == nil {
		w.Header().Set("Retry-After", "2")
		http.Error(w, fmt.Sprintf("analysis not ready: %s", status.Message), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.WriteHTML(w, result, report.Options{Title: s.title}); err != nil {
		logging.ErrorContext(r.Context(), "failed to render report", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}

// Start serves on port until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.publisher.Close()
		return fmt.Errorf("web server: %w", err)
	case <-ctx.Done():
	}

	// Closing the publisher ends the open SSE streams.
	s.publisher.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}
