// Package config loads YAML deployment configuration for a node or the ring
// coordinator, with environment-variable overrides, grounded on
// flavio-simonelli-KoordeDHT's internal/config and internal/configloader.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chordring/chord"
)

// LoggerConfig mirrors logging.Config's YAML shape.
type LoggerConfig struct {
	Level      string `yaml:"level"`
	Encoding   string `yaml:"encoding"`
	Mode       string `yaml:"mode"`
	FilePath   string `yaml:"filePath"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// RingConfig mirrors chord.Config's YAML shape.
type RingConfig struct {
	HashBits          uint          `yaml:"hashBits"`
	NumSuccessors     int           `yaml:"numSuccessors"`
	StabilizeInterval time.Duration `yaml:"stabilizeInterval"`
	FingerInterval    time.Duration `yaml:"fingerInterval"`
	LivenessInterval  time.Duration `yaml:"livenessInterval"`
	ChannelSize       int           `yaml:"channelSize"`
	Bootstrap         string        `yaml:"bootstrap"`
}

// NodeConfig is process-level configuration for a DHT node.
type NodeConfig struct {
	Listen string       `yaml:"listen"`
	Ring   RingConfig   `yaml:"ring"`
	Logger LoggerConfig `yaml:"logger"`
}

// CoordinatorConfig is process-level configuration for the ring coordinator.
type CoordinatorConfig struct {
	Listen string       `yaml:"listen"`
	Ring   RingConfig   `yaml:"ring"`
	Logger LoggerConfig `yaml:"logger"`
}

// LoadYAML reads a YAML file into out, grounded on KoordeDHT's
// internal/configloader.LoadYAML.
func LoadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse yaml: %w", err)
	}
	return nil
}

// ApplyNodeEnvOverrides applies NODE_*/RING_* environment overrides, grounded
// on KoordeDHT's Config.ApplyEnvOverrides.
func (c *NodeConfig) ApplyNodeEnvOverrides() {
	if v := os.Getenv("NODE_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("RING_BOOTSTRAP"); v != "" {
		c.Ring.Bootstrap = v
	}
	if v := os.Getenv("RING_HASH_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ring.HashBits = uint(n)
		}
	}
	if v := os.Getenv("LOGGER_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

// ApplyCoordinatorEnvOverrides applies COORDINATOR_*/RING_* overrides.
func (c *CoordinatorConfig) ApplyCoordinatorEnvOverrides() {
	if v := os.Getenv("COORDINATOR_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("RING_HASH_BITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Ring.HashBits = uint(n)
		}
	}
	if v := os.Getenv("LOGGER_LEVEL"); v != "" {
		c.Logger.Level = v
	}
}

// ToChordConfig converts the YAML-shaped RingConfig into the chord.Config
// the core protocol logic consumes.
func (c *RingConfig) ToChordConfig() *chord.Config {
	return &chord.Config{
		HashBits:          c.HashBits,
		NumSuccessors:     c.NumSuccessors,
		StabilizeInterval: c.StabilizeInterval,
		FingerInterval:    c.FingerInterval,
		LivenessInterval:  c.LivenessInterval,
		ChannelSize:       c.ChannelSize,
		Bootstrap:         c.Bootstrap,
	}
}

// Validate performs structural validation, grounded on KoordeDHT's
// Config.ValidateConfig: accumulate every problem, return one joined error.
func (c *RingConfig) Validate() error {
	var errs []string
	if c.HashBits == 0 || c.HashBits > 64 {
		errs = append(errs, fmt.Sprintf("ring.hashBits must be in (0,64], got %d", c.HashBits))
	}
	if c.NumSuccessors <= 0 {
		errs = append(errs, "ring.numSuccessors must be > 0")
	}
	if c.StabilizeInterval <= 0 {
		errs = append(errs, "ring.stabilizeInterval must be > 0")
	}
	if c.FingerInterval <= 0 {
		errs = append(errs, "ring.fingerInterval must be > 0")
	}
	if c.LivenessInterval <= 0 {
		errs = append(errs, "ring.livenessInterval must be > 0")
	}
	if c.ChannelSize <= 0 {
		errs = append(errs, "ring.channelSize must be > 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid ring configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
