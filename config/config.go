/*
Package config loads the service and CLI settings.

SOURCES (later wins):
  1. Defaults below
  2. Optional YAML file (--config or SYNTHGEN_CONFIG)
  3. .env in the working directory (loaded into the process environment)
  4. Environment variables prefixed SYNTHGEN_, e.g. SYNTHGEN_PORT=9090,
     SYNTHGEN_RATE_LIMIT=2

Vertical shapes are not configured here; see the vertical packages' presets
and factory/ for JSON/YAML vertical specs.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/synth-engine/generic"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SYNTHGEN"

// Config is the resolved application configuration.
type Config struct {
	Port      string `mapstructure:"port" yaml:"port"`
	DBPath    string `mapstructure:"db_path" yaml:"db_path"`
	RunStore  string `mapstructure:"run_store" yaml:"run_store"` // "sqlite" or "memory"
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`

	// Generation defaults
	Seed      uint64 `mapstructure:"seed" yaml:"seed"`
	Months    int    `mapstructure:"months" yaml:"months"`
	StartDate string `mapstructure:"start" yaml:"start"` // YYYY-MM or YYYY-MM-DD; empty = vertical default

	// HTTP
	CORSOrigins     []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // generations per second
	RateBurst       int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"` // 0 disables persona refresh
	Persona         string        `mapstructure:"persona" yaml:"persona"`                   // loaded at startup
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:            "8080",
		DBPath:          "./synth.db",
		RunStore:        "sqlite",
		LogLevel:        "info",
		LogFormat:       "text",
		OutputDir:       "./output",
		Seed:            42,
		Months:          0,
		CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		RateLimit:       1,
		RateBurst:       3,
		CacheTTL:        30 * time.Minute,
		RefreshInterval: 0,
		Persona:         "techstyle",
	}
}

// Load resolves the configuration. path may be empty.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	def := Default()
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", def.Port)
	v.SetDefault("db_path", def.DBPath)
	v.SetDefault("run_store", def.RunStore)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("output_dir", def.OutputDir)
	v.SetDefault("seed", def.Seed)
	v.SetDefault("months", def.Months)
	v.SetDefault("start", def.StartDate)
	v.SetDefault("cors_origins", def.CORSOrigins)
	v.SetDefault("rate_limit", def.RateLimit)
	v.SetDefault("rate_burst", def.RateBurst)
	v.SetDefault("cache_ttl", def.CacheTTL)
	v.SetDefault("refresh_interval", def.RefreshInterval)
	v.SetDefault("persona", def.Persona)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	// comma-separated lists from the environment arrive as one element
	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = splitList(cfg.CORSOrigins[0])
	}
	return cfg, cfg.Validate()
}

// Validate checks the values Load cannot type-check.
func (c Config) Validate() error {
	if c.Port == "" {
		return &generic.ConfigurationError{Field: "port", Reason: "port is required"}
	}
	if c.RunStore != "sqlite" && c.RunStore != "memory" {
		return &generic.ConfigurationError{Field: "run_store", Reason: fmt.Sprintf("unknown run store %q", c.RunStore)}
	}
	if c.Months < 0 {
		return &generic.ConfigurationError{Field: "months", Reason: "must not be negative"}
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return &generic.ConfigurationError{Field: "rate_limit", Reason: "must not be negative"}
	}
	if _, err := c.Start(); err != nil {
		return err
	}
	return nil
}

// Start parses StartDate. The zero time means "vertical default".
func (c Config) Start() (time.Time, error) {
	return ParseStart(c.StartDate)
}

// ParseStart accepts YYYY-MM or YYYY-MM-DD and returns the first of the month.
func ParseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return generic.StartOfMonth(t), nil
		}
	}
	return time.Time{}, &generic.ConfigurationError{Field: "start", Reason: fmt.Sprintf("invalid date %q, want YYYY-MM or YYYY-MM-DD", s)}
}

// BuildOptions turns the generation defaults into engine options.
func (c Config) BuildOptions() (generic.BuildOptions, error) {
	start, err := c.Start()
	if err != nil {
		return generic.BuildOptions{}, err
	}
	return generic.BuildOptions{Seed: c.Seed, Start: start, Periods: c.Months}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
