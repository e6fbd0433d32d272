// Package config provides YAML configuration loading and credential
// resolution for trafikwatch.
//
// A single YAML file describes global polling defaults plus named groups of
// targets:
//
//	community: "lab"
//	version: "2c"
//	interval: 10s
//	timeout: 5s
//	port: 161
//	max_history: 60
//
//	groups:
//	  - name: "Arista Aggregation"
//	    targets:
//	      - host: "172.17.1.128"
//	        label: "agg1.iad1"
//	        interfaces: ["Ethernet1", "Ethernet2"]
//
// SNMPv3 credentials may appear globally and/or per target; per-target blocks
// override the global block field by field (see resolve.go).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ─────────────────────────────────────────────────────────────────────────────
// Built-in defaults
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultCommunity    = "public"
	DefaultVersion      = "2c"
	DefaultPort         = 161
	DefaultInterval     = 10 * time.Second
	DefaultTimeout      = 5 * time.Second
	DefaultMaxHistory   = 60
	DefaultAuthProtocol = "sha"
	DefaultPrivProtocol = "aes128"
)

// Rate-policy defaults; see the rate package for how these are applied.
const (
	// DefaultRateCeilingBps caps any emitted rate; a modular delta implying
	// more than this is classified as a device reset, not a wrap.
	DefaultRateCeilingBps = 1e12

	// DefaultSpeedHeadroom multiplies a known interface speed to form a
	// tighter per-interface ceiling.
	DefaultSpeedHeadroom = 2.0
)

// ─────────────────────────────────────────────────────────────────────────────
// Duration — YAML duration strings
// ─────────────────────────────────────────────────────────────────────────────

// Duration wraps time.Duration so YAML values may be written as Go-style
// duration strings ("10s", "1.5m") or as plain numbers of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(dur)
		return nil
	}

	var secs float64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("duration must be a string or number, got %q", value.Value)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ─────────────────────────────────────────────────────────────────────────────
// YAML schema
// ─────────────────────────────────────────────────────────────────────────────

// V3Block holds one SNMPv3 credential block as written in YAML. Empty fields
// fall through during resolution; the block is never used directly for
// polling.
type V3Block struct {
	Username     string `yaml:"username"`
	AuthProtocol string `yaml:"auth_protocol"`
	AuthPassword string `yaml:"auth_password"`
	PrivProtocol string `yaml:"priv_protocol"`
	PrivPassword string `yaml:"priv_password"`
}

// TargetEntry is one device entry inside a group. All fields except Host and
// Interfaces are optional overrides of the global settings.
type TargetEntry struct {
	Host       string   `yaml:"host"`
	Label      string   `yaml:"label"`
	Community  string   `yaml:"community"`
	Port       int      `yaml:"port"`
	Version    string   `yaml:"version"`
	SNMPv3     *V3Block `yaml:"snmpv3"`
	Interfaces []string `yaml:"interfaces"`
}

// Group is a named collection of targets, used for display grouping.
type Group struct {
	Name    string        `yaml:"name"`
	Targets []TargetEntry `yaml:"targets"`
}

// Config is the top-level application configuration.
type Config struct {
	Community  string   `yaml:"community"`
	Version    string   `yaml:"version"`
	Interval   Duration `yaml:"interval"`
	Timeout    Duration `yaml:"timeout"`
	Port       int      `yaml:"port"`
	MaxHistory int      `yaml:"max_history"`
	SNMPv3     *V3Block `yaml:"snmpv3"`
	Groups     []Group  `yaml:"groups"`

	// RateCeilingBps and SpeedHeadroom tune the wrap-vs-reset classifier.
	RateCeilingBps float64 `yaml:"rate_ceiling_bps"`
	SpeedHeadroom  float64 `yaml:"speed_headroom"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads and decodes the YAML file at path, then fills zero-valued global
// fields with built-in defaults. Structural problems (unreadable file, bad
// YAML, no groups) are fatal; cross-field credential validation happens later,
// per target, in ResolveTargets.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(false) // be lenient — extra keys are fine
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	cfg.applyDefaults(logger)

	if len(cfg.Groups) == 0 {
		return nil, fmt.Errorf("config %q: no groups defined", path)
	}

	logger.Debug("config: loaded",
		"file", path,
		"groups", len(cfg.Groups),
		"interval", cfg.Interval.Std().String(),
	)
	return &cfg, nil
}

func (c *Config) applyDefaults(logger *slog.Logger) {
	if c.Community == "" {
		c.Community = DefaultCommunity
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Interval <= 0 {
		c.Interval = Duration(DefaultInterval)
	}
	if c.Timeout <= 0 {
		c.Timeout = Duration(DefaultTimeout)
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.RateCeilingBps <= 0 {
		c.RateCeilingBps = DefaultRateCeilingBps
	}
	if c.SpeedHeadroom <= 0 {
		c.SpeedHeadroom = DefaultSpeedHeadroom
	}

	// The read timeout must stay below the poll interval so a slow device
	// cannot push one cycle into the next.
	if c.Timeout.Std() >= c.Interval.Std() {
		clamped := c.Interval.Std() / 2
		logger.Warn("config: timeout >= interval, clamping",
			"timeout", c.Timeout.Std().String(),
			"interval", c.Interval.Std().String(),
			"clamped_to", clamped.String(),
		)
		c.Timeout = Duration(clamped)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// no-op logger writer
// ─────────────────────────────────────────────────────────────────────────────

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
