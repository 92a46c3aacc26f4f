package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// OffloadPolicy says what the worker pool does when its queue is full.
type OffloadPolicy string

const (
	// RejectNew drops the incoming task.
	RejectNew OffloadPolicy = "reject-new"
	// DropOldest discards the oldest queued task to make room.
	DropOldest OffloadPolicy = "drop-oldest"
)

// PortConfig names the devices to open at startup.
type PortConfig struct {
	Input      string `json:"input,omitempty"`
	Output     string `json:"output,omitempty"`
	Serial     string `json:"serial,omitempty"`
	SerialBaud int    `json:"serialBaud,omitempty"`
}

// Config is the construction-time surface of the routing engine.
type Config struct {
	SostenutoController int           `json:"sostenutoController"`
	Threshold           int           `json:"threshold"`
	ReferenceChannel    int           `json:"referenceChannel"` // 1-16
	LogLineCap          int           `json:"logLineCap"`
	DrainHz             int           `json:"drainHz"`
	Workers             int           `json:"workers,omitempty"` // 0 = hardware parallelism
	OffloadQueue        int           `json:"offloadQueue"`
	LogQueue            int           `json:"logQueue"`
	SinkQueue           int           `json:"sinkQueue"`
	OffloadPolicy       OffloadPolicy `json:"offloadPolicy"`
	ShutdownTimeout     Duration      `json:"shutdownTimeout"`
	LoggingEnabled      bool          `json:"loggingEnabled"`
	Ports               PortConfig    `json:"ports,omitempty"`
}

// Duration is a time.Duration that reads and writes as "2s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		SostenutoController: 66,
		Threshold:           64,
		ReferenceChannel:    1,
		LogLineCap:          500,
		DrainHz:             30,
		OffloadQueue:        256,
		LogQueue:            512,
		SinkQueue:           256,
		OffloadPolicy:       RejectNew,
		ShutdownTimeout:     Duration(2 * time.Second),
		LoggingEnabled:      true,
		Ports: PortConfig{
			SerialBaud: 31250,
		},
	}
}

// WorkerCount resolves the worker pool size: the configured value, or the
// hardware parallelism, never less than two.
func (c *Config) WorkerCount() int {
	n := c.Workers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n < 2 {
		n = 2
	}
	return n
}

// DrainInterval is the period between log drain ticks.
func (c *Config) DrainInterval() time.Duration {
	if c.DrainHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.DrainHz)
}

// ValidationError lists every problem found in a config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Validate reports construction-time misconfiguration.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.SostenutoController < 0 || c.SostenutoController > 127 {
		add("sostenutoController %d out of range 0-127", c.SostenutoController)
	}
	if c.Threshold < 1 || c.Threshold > 127 {
		add("threshold %d out of range 1-127", c.Threshold)
	}
	if c.ReferenceChannel < 1 || c.ReferenceChannel > 16 {
		add("referenceChannel %d out of range 1-16", c.ReferenceChannel)
	}
	if c.LogLineCap <= 0 {
		add("logLineCap must be positive")
	}
	if c.DrainHz <= 0 || c.DrainHz > 1000 {
		add("drainHz %d out of range 1-1000", c.DrainHz)
	}
	if c.Workers < 0 {
		add("workers must not be negative")
	}
	if c.OffloadQueue <= 0 {
		add("offloadQueue must be positive")
	}
	if c.LogQueue <= 0 {
		add("logQueue must be positive")
	}
	if c.SinkQueue <= 0 {
		add("sinkQueue must be positive")
	}
	switch c.OffloadPolicy {
	case RejectNew, DropOldest:
	default:
		add("unknown offloadPolicy %q", c.OffloadPolicy)
	}
	if c.ShutdownTimeout <= 0 {
		add("shutdownTimeout must be positive")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-sostenuto"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path over the defaults. A missing file
// yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}
