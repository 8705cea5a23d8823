// Package config holds the sensors CLI settings file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/ds7505/environment"
)

// Set at build time.
var (
	Version = "latest"
	Commit  string
	Date    string
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterPeriph  = "periph"
	AdapterGobot   = "gobot"
	// AdapterSim talks to an in-process simulated sensor.
	AdapterSim = "sim"
)

var ErrUnknownAdapter = errors.New("unknown adapter")

type Config struct {
	Adapter string `yaml:"adapter"`
	// Bus is a periph bus name for the periph adapter and a bus number for
	// gobot. Empty selects the default bus.
	Bus              string `yaml:"bus"`
	Strap            byte   `yaml:"strap"`
	Prefix           byte   `yaml:"prefix"`
	Speed            int    `yaml:"speed"`
	VerifyThresholds bool   `yaml:"verify_thresholds"`
	Alert            Alert  `yaml:"alert"`
}

// Alert describes where the thermostat output is wired.
type Alert struct {
	// Pin is a gpioreg name for the periph adapter or GP0..GP3 for mcp2221.
	Pin      string `yaml:"pin"`
	Polarity string `yaml:"polarity"`
}

func Default() Config {
	return Config{
		Adapter: AdapterMCP2221,
		Prefix:  environment.DS7505DefaultPrefix,
		Speed:   100_000,
		Alert:   Alert{Polarity: "low"},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterMCP2221, AdapterPeriph, AdapterGobot, AdapterSim:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAdapter, c.Adapter)
	}
	if _, err := environment.DS7505Address(c.Prefix, c.Strap); err != nil {
		return err
	}
	if _, err := c.Alert.Pol(); err != nil {
		return err
	}
	return nil
}

// Pol parses the polarity name.
func (a Alert) Pol() (environment.Polarity, error) {
	switch a.Polarity {
	case "low", "":
		return environment.ActiveLow, nil
	case "high":
		return environment.ActiveHigh, nil
	default:
		return environment.ActiveLow, fmt.Errorf("unknown polarity %q (expected low or high)", a.Polarity)
	}
}
