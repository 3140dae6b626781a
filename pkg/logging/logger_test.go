package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompactFormat(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(slog.LevelDebug)
	defer SetOutput(&bytes.Buffer{})

	ctx, runID := WithRunID(context.Background())
	InfoContext(ctx, "analysis complete", "files", 3, "reason", "file changed")

	line := buf.String()
	if !strings.HasPrefix(line, "[INFO]  ") {
		t.Errorf("Expected INFO prefix, got %q", line)
	}
	if !strings.Contains(line, "analysis complete | ") {
		t.Errorf("Expected message and separator, got %q", line)
	}
	if !strings.Contains(line, "run="+runID[:8]) {
		t.Errorf("Expected shortened run ID, got %q", line)
	}
	if !strings.Contains(line, `files=3`) || !strings.Contains(line, `reason="file changed"`) {
		t.Errorf("Expected formatted attributes, got %q", line)
	}
}

func TestCompactHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewCompactHandler(&buf, nil).WithAttrs([]slog.Attr{slog.String("component", "watcher")})
	slog.New(h).Info("started")

	if !strings.Contains(buf.String(), "| component=watcher") {
		t.Errorf("Expected attrs from WithAttrs, got %q", buf.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelForVerbosity(0))
	defer SetOutput(&bytes.Buffer{})

	Info("hidden")
	Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("Info should be filtered at verbosity 0")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("Warn should pass at verbosity 0")
	}
}

func TestLevelForVerbosity(t *testing.T) {
	if LevelForVerbosity(1) != slog.LevelInfo {
		t.Error("verbosity 1 should be info")
	}
	if LevelForVerbosity(5) != slog.LevelDebug {
		t.Error("verbosity 5 should be debug")
	}
}

func TestCompactHandlerGroupsAndShorthands(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCompactHandler(&buf, nil))

	logger.WithGroup("engine").Info("run finished",
		"generation", 4,
		slog.Group("files", "parsed", 10, "skipped", 1),
		"error", errors.New("parse a.py: timeout"),
	)

	line := buf.String()
	for _, want := range []string{
		"gen=4",
		"engine.files.parsed=10",
		"engine.files.skipped=1",
		`error="parse a.py: timeout"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Errorf("Expected no color codes, got %q", line)
	}
}

func TestCompactHandlerColor(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewCompactHandler(&buf, nil).WithColor(true)).Warn("slow parse")

	if !strings.Contains(buf.String(), "[WARN]") || !strings.Contains(buf.String(), "slow parse") {
		t.Errorf("Expected a warn line, got %q", buf.String())
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(slog.LevelDebug)
	defer SetOutput(&bytes.Buffer{})

	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("handler should see the request ID")
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want the caller's", got)
	}
	if !strings.Contains(buf.String(), "[DEBUG]") || !strings.Contains(buf.String(), "bytes=2") {
		t.Errorf("Expected a debug line with the size, got %q", buf.String())
	}

	buf.Reset()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a generated request ID")
	}
	if !strings.Contains(buf.String(), "[WARN]") || !strings.Contains(buf.String(), "status=404") {
		t.Errorf("Expected a warn line for a 404, got %q", buf.String())
	}
}
