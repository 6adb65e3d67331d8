// Package config loads the robot configuration file.
//
// A configuration names the environment boards are driven in, the log level, an
// optional serial read timeout and the serial numbers of the boards the robot expects:
//
//	environment: hardware
//	log_level: debug
//	read_timeout: 500ms
//	boards:
//	  PowerBoard:
//	    serials: [SRABC1]
//	  MotorBoard:
//	    serials: [SR0AB1, SR0AB2]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/arloliu/go-robohal/boards"
	"github.com/arloliu/go-robohal/errcode"
	"github.com/arloliu/go-robohal/hal"
	"github.com/arloliu/go-robohal/logger"
	"github.com/arloliu/go-robohal/transport/serial"
	"gopkg.in/yaml.v3"
)

// Environment names accepted in configuration files.
const (
	EnvHardware   = "hardware"
	EnvConsole    = "console"
	EnvSimulation = "sim"
)

// Environments lists the accepted environment names.
var Environments = []string{EnvHardware, EnvConsole, EnvSimulation}

// Config is the robot configuration.
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level,omitempty"`
	// ReadTimeout overrides the serial read timeout of every board. Zero keeps the
	// per-board defaults.
	ReadTimeout time.Duration          `yaml:"read_timeout,omitempty"`
	Boards      map[string]BoardConfig `yaml:"boards,omitempty"`
}

// BoardConfig describes the boards of one kind, keyed by kind name in Config.Boards.
type BoardConfig struct {
	Serials []string `yaml:"serials"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{Environment: EnvHardware, LogLevel: "info"}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes and validates a configuration. Unknown keys are rejected and unset
// fields take their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errcode.Wrap(errcode.InvalidParams, "config", err, "failed to parse YAML: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every field. Environment and log level names are case insensitive.
func (c *Config) Validate() error {
	const op = "config"

	if !slices.Contains(Environments, strings.ToLower(c.Environment)) {
		return errcode.New(errcode.InvalidParams, op, "unknown environment %q, expected one of %s",
			c.Environment, strings.Join(Environments, ", "))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errcode.Wrap(errcode.InvalidParams, op, err, "unknown log level %q", c.LogLevel)
	}
	if c.ReadTimeout != 0 && (c.ReadTimeout < serial.MinReadTimeout || c.ReadTimeout > serial.MaxReadTimeout) {
		return errcode.New(errcode.InvalidParams, op, "read_timeout %v is out of range [%v, %v]",
			c.ReadTimeout, serial.MinReadTimeout, serial.MaxReadTimeout)
	}

	for name, bc := range c.Boards {
		if BoardKind(name) == nil {
			return errcode.New(errcode.InvalidParams, op, "unknown board kind %q", name)
		}
		seen := make(map[string]bool, len(bc.Serials))
		for _, s := range bc.Serials {
			if s == "" {
				return errcode.New(errcode.InvalidParams, op, "%s: empty serial number", name)
			}
			if seen[s] {
				return errcode.New(errcode.InvalidParams, op, "%s: duplicate serial number %q", name, s)
			}
			seen[s] = true
		}
	}

	return nil
}

// EnvironmentName returns the normalised environment name.
func (c *Config) EnvironmentName() string { return strings.ToLower(c.Environment) }

// Level returns the configured log level.
func (c *Config) Level() logger.LogLevel {
	level, _ := logger.ParseLevel(c.LogLevel)
	return level
}

// ExpectedSerials returns the serial numbers configured for kind, nil when any board
// of that kind is acceptable.
func (c *Config) ExpectedSerials(kind *hal.BoardKind) []string {
	return slices.Clone(c.Boards[kind.Name()].Serials)
}

// CheckSerials fails when a serial number configured for kind is not among found.
func (c *Config) CheckSerials(kind *hal.BoardKind, found []string) error {
	var missing []string
	for _, s := range c.ExpectedSerials(kind) {
		if !slices.Contains(found, s) {
			missing = append(missing, s)
		}
	}
	if len(missing) > 0 {
		return errcode.New(errcode.NotFound, "config", "expected %s boards not found: %s", kind.Name(), strings.Join(missing, ", "))
	}

	return nil
}

// BoardKind returns the catalogue board kind called name, or nil.
func BoardKind(name string) *hal.BoardKind {
	for _, k := range boards.Kinds() {
		if k.Name() == name {
			return k
		}
	}

	return nil
}
