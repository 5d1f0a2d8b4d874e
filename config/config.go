// Package config provides YAML configuration parsing for pipeplot.
//
// This package enables running pipeplot as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Bench rig
//	port: 8080
//	window: 10s
//	output: ${RUN_DIR:-.}/run.csv.zst
//
//	channels:
//	  - name: temp
//	    pattern: 'T=(-?\d+\.?\d*)'
//	  - name: humidity
//	    pattern: 'H=(\d+)'
package config

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort      = 8080
	defaultWindow    = 5 * time.Second
	defaultChunkSize = 128
	defaultMaxBuffer = 1 << 20
)

// Config is the root configuration structure for pipeplot.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "pipeplot" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Window is how much history each channel keeps.
	// Accepts duration strings like "5s", "1m", "500ms".
	// Defaults to 5s.
	Window Duration `yaml:"window"`

	// ChunkSize is the number of bytes requested per read. Defaults to 128.
	ChunkSize int `yaml:"chunk_size"`

	// MaxBuffer caps the bytes held while waiting for a match.
	// Defaults to 1 MiB; 0 disables the cap.
	MaxBuffer *int `yaml:"max_buffer"`

	// Output is an optional CSV file receiving every reading.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Output string `yaml:"output"`

	// Archive is an optional BadgerDB directory recording every run.
	// Supports environment variable substitution.
	Archive string `yaml:"archive"`

	// ExitOnClose stops pipeplot when the input ends.
	ExitOnClose bool `yaml:"exit_on_close"`

	// Channels defines one pattern per plotted channel, in channel order.
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig defines a single channel.
type ChannelConfig struct {
	// Name is the display name shown in the dashboard legend.
	Name string `yaml:"name"`

	// Pattern is the regular expression. Its first capture group is the
	// value; without groups the whole match is used.
	// Supports environment variable substitution.
	Pattern string `yaml:"pattern"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""
		defaultVal := submatches[3]

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in Output, Archive and channel
// patterns. Defaults are applied for Port (8080), Window (5s), ChunkSize
// (128) and MaxBuffer (1 MiB).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Window == 0 {
		cfg.Window = Duration(defaultWindow)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.MaxBuffer == nil {
		n := defaultMaxBuffer
		cfg.MaxBuffer = &n
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	w := c.Window.Duration()
	if w <= 0 {
		return fmt.Errorf("window must be positive, got %s", w)
	}
	if w.Milliseconds() >= math.MaxInt32 {
		return fmt.Errorf("window must be below %dms, got %s", math.MaxInt32, w)
	}

	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if *c.MaxBuffer < 0 {
		return fmt.Errorf("max_buffer cannot be negative, got %d", *c.MaxBuffer)
	}

	var err error
	if c.Output, err = expandEnvVars(c.Output); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if c.Archive, err = expandEnvVars(c.Archive); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	seen := make(map[string]int, len(c.Channels))
	for i := range c.Channels {
		ch := &c.Channels[i]

		if ch.Pattern == "" {
			return fmt.Errorf("channels[%d]: pattern is required", i)
		}
		expanded, err := expandEnvVars(ch.Pattern)
		if err != nil {
			return fmt.Errorf("channels[%d]: pattern: %w", i, err)
		}
		ch.Pattern = expanded

		// fail fast before the SDK compiles the set
		if _, err := regexp.Compile(ch.Pattern); err != nil {
			return fmt.Errorf("channels[%d]: invalid pattern: %w", i, err)
		}

		if ch.Name != "" {
			if prev, exists := seen[ch.Name]; exists {
				return fmt.Errorf("channels[%d]: duplicate name %q (also channels[%d])", i, ch.Name, prev)
			}
			seen[ch.Name] = i
		}
	}

	return nil
}

// Patterns returns the channel patterns in channel order.
func (c *Config) Patterns() []string {
	out := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		out[i] = ch.Pattern
	}
	return out
}

// Names returns the channel names in channel order. Unnamed channels
// yield an empty string.
func (c *Config) Names() []string {
	out := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		out[i] = ch.Name
	}
	return out
}
