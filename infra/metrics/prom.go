// Package metrics provides the Prometheus and InfluxDB implementations of
// the station metrics sink.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/kilianp07/evstation/core/metrics"
	"github.com/kilianp07/evstation/core/model"
)

// PromSink records station events in Prometheus metrics.
type PromSink struct {
	sessions prometheus.Counter
	energy   prometheus.Counter
	earnings prometheus.Counter
	waiting  prometheus.Gauge
	status   *prometheus.GaugeVec
	tick     prometheus.Histogram
}

// NewPromSink registers station metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using StartServer.
func NewPromSink() (coremetrics.StationSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.StationSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	sessions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_sessions_total",
		Help: "Total number of completed charging sessions",
	})
	energy := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_energy_kwh_total",
		Help: "Total energy delivered in kWh",
	})
	earnings := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "station_earnings_total",
		Help: "Total billed amount, charging plus service cost",
	})
	waiting := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "station_waiting_vehicles",
		Help: "Number of vehicles in the waiting area",
	})
	status := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "station_pile_status",
		Help: "Pile status code (0 idle, 1 charging, 2 fault, 3 offline)",
	}, []string{"pile_id"})
	tick := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "station_tick_duration_seconds",
		Help:    "Duration of one scheduling round",
		Buckets: prometheus.DefBuckets,
	})

	if err := reg.Register(sessions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			sessions = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(energy); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			energy = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(earnings); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			earnings = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(waiting); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			waiting = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(status); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			status = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(tick); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			tick = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		sessions: sessions,
		energy:   energy,
		earnings: earnings,
		waiting:  waiting,
		status:   status,
		tick:     tick,
	}, nil
}

// RecordSession increments the session counters for a finalized bill.
func (s *PromSink) RecordSession(bill model.Bill) error {
	s.sessions.Inc()
	s.energy.Add(bill.EnergyKWh)
	s.earnings.Add(bill.TotalCost)
	return nil
}

// RecordTick observes the tick duration and updates the waiting gauge.
func (s *PromSink) RecordTick(ev coremetrics.TickEvent) error {
	s.tick.Observe(ev.Duration.Seconds())
	s.waiting.Set(float64(ev.Waiting))
	return nil
}

// RecordPileStatus sets the per-pile status gauge.
func (s *PromSink) RecordPileStatus(ev coremetrics.PileStatusEvent) error {
	s.status.WithLabelValues(ev.PileID).Set(float64(ev.Status))
	return nil
}

// StartServer exposes the Prometheus scrape endpoint on addr. The server runs
// until the listener fails; callers launch it in a goroutine.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
