package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override file values.
// SKILLGATE_CACHE_PATH maps to cache.path.
const EnvPrefix = "SKILLGATE_"

// Config holds all skillgate configuration.
type Config struct {
	Listen       string             `koanf:"listen"`
	Log          LogConfig          `koanf:"log"`
	Cache        CacheConfig        `koanf:"cache"`
	Context      ContextConfig      `koanf:"context"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Router       RouterConfig       `koanf:"router"`
	Registry     RegistryConfig     `koanf:"registry"`
	Server       ServerConfig       `koanf:"server"`
}

// LogConfig selects log level and encoding.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CacheConfig controls the fingerprint cache.
type CacheConfig struct {
	Path          string        `koanf:"path"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// ContextConfig controls context chains.
type ContextConfig struct {
	MaxEntries int           `koanf:"max_entries"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
	Persist    bool          `koanf:"persist"`
}

// OrchestratorConfig controls the admission gate and batch fan-out.
type OrchestratorConfig struct {
	MinConfidence float64       `koanf:"min_confidence"`
	ContextMatch  float64       `koanf:"context_match"`
	MaxConcurrent int           `koanf:"max_concurrent"`
	Timeout       time.Duration `koanf:"timeout"`
}

// RouterConfig maps complexity tiers to logical backends.
type RouterConfig struct {
	LowModel      string  `koanf:"low_model"`
	MediumModel   string  `koanf:"medium_model"`
	HighModel     string  `koanf:"high_model"`
	LowThreshold  float64 `koanf:"low_threshold"`
	HighThreshold float64 `koanf:"high_threshold"`
}

// RegistryConfig locates the skill manifest. An empty path uses the built-in set.
type RegistryConfig struct {
	ManifestPath string `koanf:"manifest_path"`
}

// ServerConfig controls the HTTP transport.
type ServerConfig struct {
	RateLimit       float64       `koanf:"rate_limit"`
	Burst           int           `koanf:"burst"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Path:          "skillgate.db",
			SweepInterval: 10 * time.Minute,
		},
		Context: ContextConfig{
			MaxEntries: 100,
			DefaultTTL: time.Hour,
			Persist:    true,
		},
		Orchestrator: OrchestratorConfig{
			MinConfidence: 0.60,
			ContextMatch:  0.8,
			MaxConcurrent: 4,
			Timeout:       300 * time.Second,
		},
		Router: RouterConfig{
			LowModel:      "gemini",
			MediumModel:   "deepseek",
			HighModel:     "local",
			LowThreshold:  0.3,
			HighThreshold: 0.7,
		},
		Server: ServerConfig{
			RateLimit:       50,
			Burst:           100,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

// Load layers the YAML file at path (with ${VAR} expansion) and SKILLGATE_
// environment variables over Default. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := k.Load(rawbytes.Provider([]byte(expanded)), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps SKILLGATE_SECTION_FIELD_NAME to section.field_name. Only the
// first underscore after the prefix separates the section.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

// Validate reports every out-of-range setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path must be set"))
	}
	if c.Cache.SweepInterval < 0 {
		errs = append(errs, errors.New("cache.sweep_interval must not be negative"))
	}
	if c.Context.MaxEntries <= 0 {
		errs = append(errs, fmt.Errorf("context.max_entries must be positive, got %d", c.Context.MaxEntries))
	}
	if c.Context.DefaultTTL < 0 {
		errs = append(errs, errors.New("context.default_ttl must not be negative"))
	}
	if c.Orchestrator.MinConfidence < 0 || c.Orchestrator.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("orchestrator.min_confidence must be in [0,1], got %v", c.Orchestrator.MinConfidence))
	}
	if c.Orchestrator.ContextMatch < 0 || c.Orchestrator.ContextMatch > 1 {
		errs = append(errs, fmt.Errorf("orchestrator.context_match must be in [0,1], got %v", c.Orchestrator.ContextMatch))
	}
	if c.Orchestrator.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("orchestrator.max_concurrent must be at least 1, got %d", c.Orchestrator.MaxConcurrent))
	}
	if c.Router.LowModel == "" || c.Router.MediumModel == "" || c.Router.HighModel == "" {
		errs = append(errs, errors.New("router tier models must all be set"))
	}
	if !(0 < c.Router.LowThreshold && c.Router.LowThreshold < c.Router.HighThreshold && c.Router.HighThreshold <= 1) {
		errs = append(errs, fmt.Errorf("router thresholds must satisfy 0 < low < high <= 1, got %v/%v",
			c.Router.LowThreshold, c.Router.HighThreshold))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or console, got %q", c.Log.Format))
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
		errs = append(errs, errors.New("server rate limit and burst must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
