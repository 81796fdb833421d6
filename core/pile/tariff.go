package pile

import (
	"time"

	"github.com/kilianp07/evstation/core/model"
)

// RatePeriod is one time-of-day band of the tariff, expressed in minutes
// since midnight. Periods never wrap; anything outside the listed bands is
// billed at the off-peak (valley) rate.
type RatePeriod struct {
	StartMin int
	EndMin   int
	RateKWh  float64
}

// Tariff is a fixed daily time-of-use rate schedule.
type Tariff struct {
	Periods []RatePeriod
	OffPeak float64
}

// DefaultTariff returns the station schedule: valley 23:00-07:00 at 0.4/kWh,
// normal 07:00-10:00, 15:00-18:00 and 21:00-23:00 at 0.7/kWh, peak
// 10:00-15:00 and 18:00-21:00 at 1.0/kWh.
func DefaultTariff() Tariff {
	return Tariff{
		Periods: []RatePeriod{
			{StartMin: 7 * 60, EndMin: 10 * 60, RateKWh: 0.7},
			{StartMin: 10 * 60, EndMin: 15 * 60, RateKWh: 1.0},
			{StartMin: 15 * 60, EndMin: 18 * 60, RateKWh: 0.7},
			{StartMin: 18 * 60, EndMin: 21 * 60, RateKWh: 1.0},
			{StartMin: 21 * 60, EndMin: 23 * 60, RateKWh: 0.7},
		},
		OffPeak: 0.4,
	}
}

// RateAt returns the rate in force at the given instant.
func (t Tariff) RateAt(at time.Time) float64 {
	m := at.Hour()*60 + at.Minute()
	for _, p := range t.Periods {
		if m >= p.StartMin && m < p.EndMin {
			return p.RateKWh
		}
	}
	return t.OffPeak
}

// billingSegment bounds the granularity of session billing. Splitting the
// session into short segments handles sessions that span rate boundaries
// without interval-intersection math: each segment is billed at the rate in
// force at its start instant.
const billingSegment = time.Minute

// SessionCost computes the delivered energy and charging cost of a session
// at the given power over [start, end).
func (t Tariff) SessionCost(powerKW float64, start, end time.Time) (energy, cost float64) {
	for cur := start; cur.Before(end); {
		segEnd := cur.Add(billingSegment)
		if segEnd.After(end) {
			segEnd = end
		}
		segEnergy := powerKW * segEnd.Sub(cur).Hours()
		energy += segEnergy
		cost += segEnergy * t.RateAt(cur)
		cur = segEnd
	}
	return energy, cost
}

// round2 is a local alias kept for readability in billing code.
func round2(v float64) float64 { return model.Round2(v) }
