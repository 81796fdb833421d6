package metrics

import (
	coremetrics "github.com/kilianp07/evstation/core/metrics"
	"github.com/kilianp07/evstation/core/model"
)

// MultiSink fans station events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.StationSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.StationSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordSession forwards the bill to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordSession(bill model.Bill) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordSession(bill); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordTick forwards tick events.
func (m *MultiSink) RecordTick(ev coremetrics.TickEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordTick(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RecordPileStatus forwards pile status snapshots.
func (m *MultiSink) RecordPileStatus(ev coremetrics.PileStatusEvent) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordPileStatus(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FromConfig assembles the sink stack described by cfg. With nothing enabled
// it returns a NopSink.
func FromConfig(cfg coremetrics.Config) (coremetrics.StationSink, error) {
	var sinks []coremetrics.StationSink
	if cfg.PrometheusEnabled {
		prom, err := NewPromSink()
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, prom)
	}
	if cfg.InfluxEnabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket))
	}
	switch len(sinks) {
	case 0:
		return coremetrics.NopSink{}, nil
	case 1:
		return sinks[0], nil
	default:
		return NewMultiSink(sinks...), nil
	}
}
