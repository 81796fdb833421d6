// Package config loads the station configuration from a YAML or JSON file
// with optional EV_-prefixed environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/evstation/core/metrics"
	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/core/pile"
	"github.com/kilianp07/evstation/core/scheduler"
	"github.com/kilianp07/evstation/core/station"
	"github.com/kilianp07/evstation/core/waiting"
	"github.com/kilianp07/evstation/infra/billing"
	"github.com/kilianp07/evstation/infra/mqtt"
)

// PileConfig declares one charging pile.
type PileConfig struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	PowerKW  float64 `json:"power_kw"`
}

// StationConfig is the physical layout of the station.
type StationConfig struct {
	Piles           []PileConfig `json:"piles"`
	WaitingCapacity int          `json:"waiting_capacity"`
	ServiceFeeRate  float64      `json:"service_fee_rate"`
}

// SetDefaults fills in the reference layout: three fast piles at 30 kW and
// three slow piles at 7 kW.
func (c *StationConfig) SetDefaults() {
	if len(c.Piles) == 0 {
		c.Piles = []PileConfig{
			{ID: "A", Category: "F", PowerKW: 30},
			{ID: "B", Category: "F", PowerKW: 30},
			{ID: "C", Category: "F", PowerKW: 30},
			{ID: "D", Category: "T", PowerKW: 7},
			{ID: "E", Category: "T", PowerKW: 7},
			{ID: "F", Category: "T", PowerKW: 7},
		}
	}
	if c.WaitingCapacity <= 0 {
		c.WaitingCapacity = waiting.DefaultCapacity
	}
	if c.ServiceFeeRate <= 0 {
		c.ServiceFeeRate = pile.DefaultServiceFeeRate
	}
}

// Validate checks the layout.
func (c StationConfig) Validate() error {
	if len(c.Piles) == 0 {
		return fmt.Errorf("station: at least one pile must be configured")
	}
	seen := make(map[string]bool, len(c.Piles))
	for _, p := range c.Piles {
		if p.ID == "" {
			return fmt.Errorf("station: pile id must not be empty")
		}
		if seen[p.ID] {
			return fmt.Errorf("station: duplicate pile id %s", p.ID)
		}
		seen[p.ID] = true
		if _, err := model.ParseCategory(p.Category); err != nil {
			return fmt.Errorf("station: pile %s: %w", p.ID, err)
		}
		if p.PowerKW <= 0 {
			return fmt.Errorf("station: pile %s: power must be positive", p.ID)
		}
	}
	return nil
}

// SchedulerConfig tunes the background loop.
type SchedulerConfig struct {
	TickSeconds int `json:"tick_seconds"`
}

// TickInterval converts the configured cadence, falling back to the default.
func (c SchedulerConfig) TickInterval() time.Duration {
	if c.TickSeconds <= 0 {
		return scheduler.DefaultTickInterval
	}
	return time.Duration(c.TickSeconds) * time.Second
}

// APIConfig parameterizes the HTTP server.
type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// SetDefaults enables the API on the standard port.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

// VehicleConfig is a static vehicle record for display lookups.
type VehicleConfig struct {
	CarID              string  `json:"car_id"`
	BatteryCapacityKWh float64 `json:"battery_capacity_kwh"`
}

type Config struct {
	Station   StationConfig   `json:"station"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Billing   billing.Config  `json:"billing"`
	Metrics   metrics.Config  `json:"metrics"`
	MQTT      mqtt.Config     `json:"mqtt"`
	API       APIConfig       `json:"api"`
	Vehicles  []VehicleConfig `json:"vehicles"`
}

// Load reads the file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("EV_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ev_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	c.Station.SetDefaults()
	c.Billing.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	return c.Station.Validate()
}

// StationSpec converts the layout into station constructor input.
func (c *Config) StationSpec() station.Config {
	specs := make([]station.PileSpec, 0, len(c.Station.Piles))
	for _, p := range c.Station.Piles {
		cat, _ := model.ParseCategory(p.Category)
		specs = append(specs, station.PileSpec{ID: p.ID, Category: cat, PowerKW: p.PowerKW})
	}
	return station.Config{
		Piles:           specs,
		WaitingCapacity: c.Station.WaitingCapacity,
		ServiceFeeRate:  c.Station.ServiceFeeRate,
		TickInterval:    c.Scheduler.TickInterval(),
	}
}

// Directory builds a static vehicle directory from the config records.
func (c *Config) Directory() station.Directory {
	if len(c.Vehicles) == 0 {
		return nil
	}
	m := make(staticDirectory, len(c.Vehicles))
	for _, v := range c.Vehicles {
		m[v.CarID] = v.BatteryCapacityKWh
	}
	return m
}

type staticDirectory map[string]float64

func (d staticDirectory) BatteryCapacityKWh(carID string) (float64, bool) {
	kwh, ok := d[carID]
	return kwh, ok
}
