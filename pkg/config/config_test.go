package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/codegraph/pkg/model"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("format", "text", "")
	f.String("threshold", "O(n log n)", "")
	f.Int("port", 8080, "")
	f.Duration("file-timeout", 30*time.Second, "")
	f.StringSlice("exclude", DefaultExcludes, "")
	f.String("config", DefaultFile, "")
	if err := f.Parse(args); err != nil {
		t.Fatal(err)
	}
	return f
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codegraph.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Format != "text" {
		t.Errorf("Format = %q, want text", cfg.Format)
	}
	if cfg.FileTimeout != 30*time.Second {
		t.Errorf("FileTimeout = %v, want 30s", cfg.FileTimeout)
	}
	if cfg.Debounce != 1500*time.Millisecond {
		t.Errorf("Debounce = %v, want 1.5s", cfg.Debounce)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if len(cfg.Exclude) != len(DefaultExcludes) {
		t.Errorf("Exclude = %v, want %v", cfg.Exclude, DefaultExcludes)
	}
	th, err := cfg.ThresholdClass()
	if err != nil || th != model.Linearithmic {
		t.Errorf("ThresholdClass() = %v, %v; want O(n log n)", th, err)
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, `
format = "json"
port = 7000
threshold = "O(n)"
file-timeout = "5s"
exclude = ["**/testdata/**"]
`)
	t.Setenv("CODEGRAPH_PORT", "9090")
	t.Setenv("CODEGRAPH_FILE_TIMEOUT", "10s")

	cfg, err := Load(testFlags(t, "--config", path, "--format", "yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// flag > env > file > default
	if cfg.Format != "yaml" {
		t.Errorf("Format = %q, want yaml from the flag", cfg.Format)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090 from the environment", cfg.Port)
	}
	if cfg.FileTimeout != 10*time.Second {
		t.Errorf("FileTimeout = %v, want 10s from the environment", cfg.FileTimeout)
	}
	if cfg.Threshold != "O(n)" {
		t.Errorf("Threshold = %q, want O(n) from the file", cfg.Threshold)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "**/testdata/**" {
		t.Errorf("Exclude = %v, want the file's list", cfg.Exclude)
	}
}

func TestLoadUnchangedFlagsKeepFileValues(t *testing.T) {
	path := writeConfig(t, `format = "html"`)

	cfg, err := Load(testFlags(t, "--config", path))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Format != "html" {
		t.Errorf("Format = %q, want html; an unset flag must not override the file", cfg.Format)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.toml")
	if _, err := Load(testFlags(t, "--config", missing)); err == nil {
		t.Error("Load() should fail for a missing --config file")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"threshold", []string{"--threshold", "O(fast)"}},
		{"format", []string{"--format", "pdf"}},
		{"port", []string{"--port", "70000"}},
		{"timeout", []string{"--file-timeout", "-1s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(testFlags(t, tt.args...)); err == nil {
				t.Errorf("Load(%v) should fail", tt.args)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	if got := envKey("CODEGRAPH_FILE_TIMEOUT"); got != "file-timeout" {
		t.Errorf("envKey() = %q, want file-timeout", got)
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		cfg  Config
		want slog.Level
	}{
		{Config{}, slog.LevelWarn},
		{Config{VerboseCnt: 1}, slog.LevelInfo},
		{Config{VerboseCnt: 3}, slog.LevelDebug},
		{Config{Verbosity: "error", VerboseCnt: 2}, slog.LevelError},
	}
	for _, tt := range tests {
		got, err := tt.cfg.LogLevel()
		if err != nil || got != tt.want {
			t.Errorf("%+v.LogLevel() = %v, %v; want %v", tt.cfg, got, err, tt.want)
		}
	}

	if _, err := (&Config{Verbosity: "chatty"}).LogLevel(); err == nil {
		t.Error("LogLevel() should reject an unknown verbosity")
	}
}
