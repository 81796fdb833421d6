// Package station assembles the charging station: the pile set, the waiting
// area and the scheduler, built once at startup and injected into request
// handlers. There are no package-level registries; everything hangs off the
// Station value.
package station

import (
	"time"

	"github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/clock"
	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/logger"
	"github.com/kilianp07/evstation/core/metrics"
	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/core/pile"
	"github.com/kilianp07/evstation/core/scheduler"
	"github.com/kilianp07/evstation/core/waiting"
	"github.com/kilianp07/evstation/internal/eventbus"
)

// PileSpec declares one pile in the station layout.
type PileSpec struct {
	ID       string
	Category model.Category
	PowerKW  float64
}

// Config is the station layout and tuning.
type Config struct {
	Piles           []PileSpec
	WaitingCapacity int
	ServiceFeeRate  float64
	TickInterval    time.Duration
}

// Directory provides read-only vehicle records, used for display only and
// never for scheduling decisions.
type Directory interface {
	BatteryCapacityKWh(carID string) (float64, bool)
}

// Deps are the station's injected collaborators. Zero values fall back to
// no-op implementations.
type Deps struct {
	Clock     *clock.Virtual
	Sink      billing.Sink
	Metrics   metrics.StationSink
	Bus       eventbus.EventBus
	Logger    logger.Logger
	Directory Directory
}

// Station is the owned aggregate over piles, waiting area and scheduler.
type Station struct {
	piles     map[string]*pile.Pile
	order     []string
	queue     *waiting.Queue
	sched     *scheduler.Scheduler
	clk       *clock.Virtual
	log       logger.Logger
	directory Directory
}

// New builds the station. Registering zero piles is a wiring error and
// aborts initialization.
func New(cfg Config, deps Deps) (*Station, error) {
	if len(cfg.Piles) == 0 {
		return nil, errs.Validationf("station: at least one pile must be configured")
	}
	log := deps.Logger
	if log == nil {
		log = logger.Nop{}
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewVirtual()
	}

	st := &Station{
		piles:     make(map[string]*pile.Pile, len(cfg.Piles)),
		clk:       clk,
		log:       log,
		directory: deps.Directory,
	}
	var piles []*pile.Pile
	for _, spec := range cfg.Piles {
		p, err := pile.New(pile.Config{
			ID:             spec.ID,
			Category:       spec.Category,
			PowerKW:        spec.PowerKW,
			ServiceFeeRate: cfg.ServiceFeeRate,
		}, clk, log)
		if err != nil {
			return nil, err
		}
		if _, dup := st.piles[p.ID()]; dup {
			return nil, errs.Validationf("station: duplicate pile id %s", p.ID())
		}
		st.piles[p.ID()] = p
		st.order = append(st.order, p.ID())
		piles = append(piles, p)
	}

	st.queue = waiting.New(cfg.WaitingCapacity, clk, log)
	sched, err := scheduler.New(scheduler.Config{TickInterval: cfg.TickInterval},
		st.queue, piles, clk, deps.Sink, deps.Metrics, deps.Bus, log)
	if err != nil {
		return nil, err
	}
	st.sched = sched
	return st, nil
}

// Start launches the background scheduler.
func (s *Station) Start() { s.sched.Start() }

// Stop halts the scheduler, waiting for the in-flight tick.
func (s *Station) Stop() { s.sched.Stop() }

// Tick runs one scheduling round synchronously. Used by the demo command
// and tests; the background loop calls it on its own cadence.
func (s *Station) Tick() { s.sched.Tick() }

// Clock returns the station clock.
func (s *Station) Clock() *clock.Virtual { return s.clk }

// AddVehicle admits a vehicle into the waiting area.
func (s *Station) AddVehicle(categoryCode string, req model.VehicleRequest) (string, error) {
	cat, err := model.ParseCategory(categoryCode)
	if err != nil {
		return "", errs.Validationf("%v", err)
	}
	return s.queue.AddVehicle(cat, req)
}

// RemoveVehicle drops a vehicle from the waiting area.
func (s *Station) RemoveVehicle(number string) error {
	_, err := s.queue.RemoveVehicle(number)
	return err
}

// Cancel aborts a request wherever it currently lives: in the waiting area,
// queued on a pile, or actively charging. Cancelling a charging session
// bills the energy delivered so far.
func (s *Station) Cancel(number string) error {
	if _, err := s.queue.RemoveVehicle(number); err == nil {
		return nil
	}
	p, charging, ok := s.locate(number)
	if !ok {
		return errs.NotFoundf("queue number %s not found", number)
	}
	if charging {
		bill, err := p.Disconnect(false)
		if err != nil {
			return err
		}
		s.sched.SubmitBill(bill, false)
		return nil
	}
	_, err := p.LeaveQueue(number)
	return err
}

// ModifyRequest amends the requested energy of a vehicle in the waiting
// area, queued on a pile, or charging. For a charging vehicle a request at
// or below the delivered energy ends the session.
func (s *Station) ModifyRequest(number string, kwh float64) error {
	if err := s.queue.ModifyEnergy(number, kwh); err == nil || !errs.Is(err, errs.KindNotFound) {
		return err
	}
	p, charging, ok := s.locate(number)
	if !ok {
		return errs.NotFoundf("queue number %s not found", number)
	}
	if charging {
		bill, err := p.ModifyRequest(kwh)
		if err != nil {
			return err
		}
		if bill != nil {
			s.sched.SubmitBill(*bill, false)
		}
		return nil
	}
	return p.UpdateRequest(number, kwh)
}

// ChangeChargeMode moves a waiting vehicle to the other category under a
// fresh queue number. Vehicles already on a pile must cancel and rejoin.
func (s *Station) ChangeChargeMode(number, categoryCode string) (string, error) {
	cat, err := model.ParseCategory(categoryCode)
	if err != nil {
		return "", errs.Validationf("%v", err)
	}
	if _, _, onPile := s.locate(number); onPile {
		return "", errs.Statef("vehicle %s is already assigned to a pile", number)
	}
	return s.queue.ChangeChargeMode(number, cat)
}

// TogglePile starts or stops a pile.
func (s *Station) TogglePile(pileID, action string) error {
	p, ok := s.piles[pileID]
	if !ok {
		return errs.NotFoundf("pile %s not found", pileID)
	}
	switch action {
	case "start":
		return p.Start()
	case "stop":
		return p.Stop()
	default:
		return errs.Validationf("unknown pile action %q", action)
	}
}

// SetFault forces a pile into the fault state and reschedules its queue
// using the given strategy code ("priority" or "time_order").
func (s *Station) SetFault(pileID, strategyCode string) error {
	strategy, err := scheduler.ParseStrategy(strategyCode)
	if err != nil {
		return err
	}
	return s.sched.HandlePileFault(pileID, strategy)
}

// Repair returns a faulted pile to service.
func (s *Station) Repair(pileID string) error {
	return s.sched.HandlePileRepair(pileID)
}

// SetTimeSpeed accelerates the station clock.
func (s *Station) SetTimeSpeed(mult float64) error { return s.sched.SetTimeSpeed(mult) }

// SetSimulatedTime jumps the station clock to an absolute instant.
func (s *Station) SetSimulatedTime(ts time.Time) { s.sched.SetSimulatedTime(ts) }

// ResetRealTime returns the station clock to wall time.
func (s *Station) ResetRealTime() { s.sched.ResetRealTime() }

// QueueSnapshot returns the waiting-area view.
func (s *Station) QueueSnapshot() waiting.Snapshot { return s.queue.Snapshot() }

// PileInfos returns the status of every pile in id order.
func (s *Station) PileInfos() []model.PileInfo {
	out := make([]model.PileInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.piles[id].Info())
	}
	return out
}

// AdminStats aggregates lifetime counters across piles.
type AdminStats struct {
	Piles          []model.PileInfo `json:"piles"`
	TotalSessions  int              `json:"total_sessions"`
	TotalEnergyKWh float64          `json:"total_energy_kwh"`
	TotalEarnings  float64          `json:"total_earnings"`
}

// Stats returns the admin aggregate view.
func (s *Station) Stats() AdminStats {
	stats := AdminStats{Piles: s.PileInfos()}
	for _, info := range stats.Piles {
		stats.TotalSessions += info.Stats.Sessions
		stats.TotalEnergyKWh += info.Stats.EnergyKWh
		stats.TotalEarnings += info.Stats.Earnings
	}
	stats.TotalEnergyKWh = model.Round2(stats.TotalEnergyKWh)
	stats.TotalEarnings = model.Round2(stats.TotalEarnings)
	return stats
}

// VehicleBattery looks up a vehicle's battery capacity for display.
func (s *Station) VehicleBattery(carID string) (float64, bool) {
	if s.directory == nil {
		return 0, false
	}
	return s.directory.BatteryCapacityKWh(carID)
}

// locate finds the pile holding the given queue number, reporting whether
// the vehicle is the one currently charging there.
func (s *Station) locate(number string) (*pile.Pile, bool, bool) {
	for _, id := range s.order {
		snap := s.piles[id].Snapshot()
		for i, e := range snap.Queue {
			if e.Number == number {
				return s.piles[id], snap.Charging && i == 0, true
			}
		}
	}
	return nil, false, false
}
