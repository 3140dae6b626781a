package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/ritzau/codegraph/pkg/logging"
	"github.com/ritzau/codegraph/pkg/model"
	"github.com/ritzau/codegraph/pkg/report"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "codegraph.toml"

// EnvPrefix prefixes environment overrides, e.g. CODEGRAPH_PORT=9090.
const EnvPrefix = "CODEGRAPH_"

// DefaultExcludes are skipped during file enumeration unless overridden.
var DefaultExcludes = []string{
	"**/node_modules/**",
	"**/vendor/**",
	"**/.git/**",
	"**/venv/**",
	"**/.venv/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
}

// Config holds all configuration for the application
type Config struct {
	Root        string        `koanf:"root"`
	Format      string        `koanf:"format"`
	Output      string        `koanf:"output"`
	Exclude     []string      `koanf:"exclude"`
	Threshold   string        `koanf:"threshold"`
	Workers     int           `koanf:"workers"`
	FileTimeout time.Duration `koanf:"file-timeout"`
	Verify      bool          `koanf:"verify"`
	Watch       bool          `koanf:"watch"`
	Debounce    time.Duration `koanf:"debounce"`
	WebMode     bool          `koanf:"web"`
	Port        int           `koanf:"port"`
	Verbosity   string        `koanf:"verbosity"`
	VerboseCnt  int           `koanf:"verbose"`
	ConfigFile  string        `koanf:"config"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"root":         ".",
		"format":       "text",
		"output":       "",
		"exclude":      DefaultExcludes,
		"threshold":    model.Linearithmic.String(),
		"workers":      0,
		"file-timeout": "30s",
		"verify":       true,
		"watch":        false,
		"debounce":     "1.5s",
		"web":          false,
		"port":         8080,
		"verbosity":    "",
		"verbose":      0,
		"config":       DefaultFile,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file. The default file is optional; one named explicitly
	// must exist.
	path, explicit := DefaultFile, false
	if f != nil && f.Changed("config") {
		path, _ = f.GetString("config")
		explicit = true
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// 3. Environment Variables
	// Prefix: CODEGRAPH_ (e.g., CODEGRAPH_FILE_TIMEOUT=10s)
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps CODEGRAPH_FILE_TIMEOUT to file-timeout.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", "-")
}

// Validate checks values that the loaders cannot.
func (c *Config) Validate() error {
	if _, err := c.ThresholdClass(); err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	if _, err := report.Lookup(c.Format); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.FileTimeout < 0 {
		return fmt.Errorf("file-timeout must not be negative, got %s", c.FileTimeout)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the named verbosity if set, otherwise the level for the
// -v count.
func (c *Config) LogLevel() (slog.Level, error) {
	if c.Verbosity == "" {
		return logging.LevelForVerbosity(c.VerboseCnt), nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Verbosity)); err != nil {
		return 0, fmt.Errorf("invalid verbosity %q: %w", c.Verbosity, err)
	}
	return l, nil
}

// ThresholdClass parses the warning threshold.
func (c *Config) ThresholdClass() (model.ComplexityClass, error) {
	return model.ParseComplexity(c.Threshold)
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]any
}

func makeMapProvider(m map[string]any) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]any, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
