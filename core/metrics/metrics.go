// Package metrics declares the observability boundary of the station core.
// Sinks are implemented under infra/metrics.
package metrics

import (
	"time"

	"github.com/kilianp07/evstation/core/model"
)

// TickEvent summarizes one scheduler tick.
type TickEvent struct {
	Duration time.Duration
	Waiting  int
	Assigned int
}

// PileStatusEvent is a status snapshot for one pile.
type PileStatusEvent struct {
	PileID string
	Status model.PileStatus
}

// StationSink records station events for observability purposes. Recording
// must never block core operations for long; implementations are expected to
// buffer or drop.
type StationSink interface {
	RecordSession(bill model.Bill) error
	RecordTick(ev TickEvent) error
	RecordPileStatus(ev PileStatusEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordSession(model.Bill) error         { return nil }
func (NopSink) RecordTick(TickEvent) error             { return nil }
func (NopSink) RecordPileStatus(PileStatusEvent) error { return nil }

// Config selects and parameterizes the metrics sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr"`
	InfluxEnabled     bool   `json:"influx_enabled"`
	InfluxURL         string `json:"influx_url"`
	InfluxToken       string `json:"influx_token"`
	InfluxOrg         string `json:"influx_org"`
	InfluxBucket      string `json:"influx_bucket"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9090"
	}
}
