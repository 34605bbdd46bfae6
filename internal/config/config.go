// Package config loads and validates the agent's TOML configuration file
// (spec.md §6 "Config file").
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML string values like "10ms" parse via
// time.ParseDuration, the same pattern the pack's rook agent config uses
// for its "for"/"cooldown" fields.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// General holds [general]: the HTTP listen address and the refresh cache
// TTL (spec.md §4.3, §6).
type General struct {
	Listen string   `toml:"listen"`
	TTL    Duration `toml:"ttl"`
}

// Log holds [log]: the minimum level (spec.md §6).
type Log struct {
	Level string `toml:"level"`
}

// Defaults holds [defaults]: whether a sampler is enabled absent an
// explicit per-sampler section (spec.md §6).
type Defaults struct {
	Enabled bool `toml:"enabled"`
}

// SamplerConfig holds one [samplers.<name>] section. Unknown keys within a
// sampler section are ignored (spec.md §6); only Enabled is recognized, and
// the values of other keys are not kept.
type SamplerConfig struct {
	Enabled *bool `toml:"enabled"`
}

// Config is the fully parsed and defaulted configuration.
type Config struct {
	General  General                  `toml:"general"`
	Log      Log                      `toml:"log"`
	Defaults Defaults                 `toml:"defaults"`
	Samplers map[string]SamplerConfig `toml:"samplers"`
}

func defaultConfig() *Config {
	return &Config{
		General: General{
			Listen: "0.0.0.0:4241",
			TTL:    Duration{10 * time.Millisecond},
		},
		Log: Log{Level: "info"},
		Defaults: Defaults{
			Enabled: true,
		},
		Samplers: make(map[string]SamplerConfig),
	}
}

// Load reads and validates path. Errors returned here are "Config error"
// per spec.md §7 and are printed to stderr by cmd/rezolus, which then exits
// 1 (Testable Scenario F: a malformed ttl names the offending field).
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	meta, err := toml.Decode(string(raw), cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.General.Listen == "" {
		return nil, fmt.Errorf("config: general.listen must not be empty")
	}
	if cfg.General.TTL.Duration < 0 {
		return nil, fmt.Errorf("config: general.ttl must be >= 0")
	}
	switch cfg.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("config: log.level %q is not one of trace|debug|info|warn|error", cfg.Log.Level)
	}

	// Unknown top-level keys are only rejected at debug level or finer
	// (spec.md §6), so a production deployment's forward-compatible extra
	// keys don't crash the agent, but a developer iterating on the schema
	// sees mistakes immediately.
	if cfg.Log.Level == "trace" || cfg.Log.Level == "debug" {
		for _, key := range meta.Undecoded() {
			// Unknown per-sampler keys are always ignored (spec.md §6),
			// regardless of log level — only unknown top-level keys are
			// rejected here.
			if len(key) > 0 && key[0] == "samplers" {
				continue
			}
			return nil, fmt.Errorf("config: unknown key %q (log.level=%s rejects unknown top-level keys)", key.String(), cfg.Log.Level)
		}
	}

	if cfg.Samplers == nil {
		cfg.Samplers = make(map[string]SamplerConfig)
	}

	return cfg, nil
}

// Enabled reports whether sampler name is enabled: an explicit
// [samplers.<name>] enabled value wins; otherwise [defaults] enabled
// applies (spec.md §6).
func (c *Config) Enabled(name string) bool {
	if sc, ok := c.Samplers[name]; ok && sc.Enabled != nil {
		return *sc.Enabled
	}
	return c.Defaults.Enabled
}
