// Package pile implements the per-pile charging state machine: a two-slot
// on-pile queue, connect/disconnect with segmented time-of-use billing,
// auto-completion polling and fault handling.
package pile

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evstation/core/clock"
	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/logger"
	"github.com/kilianp07/evstation/core/model"
)

// DefaultServiceFeeRate is the service charge applied on top of the charging
// cost. The billing logic historically carried two fee formulas; the station
// uses the proportional one.
const DefaultServiceFeeRate = 0.10

// Config describes one pile.
type Config struct {
	ID             string
	Category       model.Category
	PowerKW        float64
	ServiceFeeRate float64
	Tariff         *Tariff
}

// Pile is one charging stall. All exported methods are safe for concurrent
// use; internal state is guarded by a single mutex and no method blocks on
// I/O while holding it.
type Pile struct {
	id         string
	category   model.Category
	power      float64
	serviceFee float64
	tariff     Tariff
	clk        clock.Clock
	log        logger.Logger

	mu        sync.Mutex
	status    model.PileStatus
	connected *model.QueueEntry
	startTime time.Time
	queue     *boundedQueue
	stats     model.PileStats
}

// New builds an idle pile. A zero PowerKW falls back to the category default.
func New(cfg Config, clk clock.Clock, log logger.Logger) (*Pile, error) {
	if cfg.ID == "" {
		return nil, errs.Validationf("pile id is required")
	}
	if cfg.PowerKW < 0 {
		return nil, errs.Validationf("pile %s: power must be positive", cfg.ID)
	}
	power := cfg.PowerKW
	if power == 0 {
		power = cfg.Category.DefaultPowerKW()
	}
	fee := cfg.ServiceFeeRate
	if fee == 0 {
		fee = DefaultServiceFeeRate
	}
	tariff := DefaultTariff()
	if cfg.Tariff != nil {
		tariff = *cfg.Tariff
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Pile{
		id:         cfg.ID,
		category:   cfg.Category,
		power:      power,
		serviceFee: fee,
		tariff:     tariff,
		clk:        clk,
		log:        log,
		status:     model.Idle,
		queue:      newBoundedQueue(QueueCapacity),
	}, nil
}

// ID returns the pile identifier.
func (p *Pile) ID() string { return p.id }

// Category returns the pile's charging category.
func (p *Pile) Category() model.Category { return p.category }

// PowerKW returns the rated power.
func (p *Pile) PowerKW() float64 { return p.power }

// Status returns the current status.
func (p *Pile) Status() model.PileStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// JoinQueue admits a vehicle onto the pile. If the pile is idle the head of
// the queue is connected immediately.
func (p *Pile) JoinQueue(entry model.QueueEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.status.AcceptsVehicles() {
		return errs.Statef("pile %s is %s and does not accept vehicles", p.id, p.status)
	}
	if p.queue.Contains(entry.Vehicle.CarID) {
		return errs.Admissionf("vehicle %s is already on pile %s", entry.Vehicle.CarID, p.id)
	}
	if !p.queue.Push(entry) {
		return errs.Admissionf("pile %s queue is full", p.id)
	}
	if p.status == model.Idle {
		if head, ok := p.queue.Head(); ok {
			if err := p.connectLocked(head); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConnectVehicle starts charging the vehicle with the given queue number.
// Only the head of the queue may connect, and only while the pile is idle.
func (p *Pile) ConnectVehicle(number string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	head, ok := p.queue.Head()
	if !ok || head.Number != number {
		return errs.Statef("vehicle %s is not at the head of pile %s", number, p.id)
	}
	return p.connectLocked(head)
}

func (p *Pile) connectLocked(entry model.QueueEntry) error {
	if !p.status.CanTransition(model.Charging) {
		return errs.Statef("pile %s cannot start charging while %s", p.id, p.status)
	}
	e := entry
	p.connected = &e
	p.status = model.Charging
	p.startTime = p.clk.Now()
	p.log.Debugw("vehicle connected", map[string]any{
		"pile": p.id, "vehicle": e.Vehicle.CarID, "queue_number": e.Number,
	})
	return nil
}

// Disconnect ends the current session and emits its bill. When auto is true
// the session end is derived analytically from the requested energy so the
// billed amount matches the request exactly; otherwise the clock is read.
func (p *Pile) Disconnect(auto bool) (model.Bill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnectLocked(auto, true)
}

func (p *Pile) disconnectLocked(auto, reconnect bool) (model.Bill, error) {
	if p.status != model.Charging {
		return model.Bill{}, errs.Statef("pile %s is not charging", p.id)
	}
	if p.connected == nil || p.startTime.IsZero() {
		return model.Bill{}, errs.Statef("pile %s has no recorded session", p.id)
	}

	start := p.startTime
	var end time.Time
	if auto {
		end = start.Add(p.chargeDuration(p.connected.Vehicle.EnergyKWh))
	} else {
		end = p.clk.Now()
	}
	if end.Before(start) {
		end = start
	}

	energy, cost := p.tariff.SessionCost(p.power, start, end)
	bill := p.buildBill(*p.connected, start, end, energy, cost)

	p.stats.Sessions++
	p.stats.DurationMin += bill.DurationMin
	p.stats.EnergyKWh += bill.EnergyKWh
	p.stats.Earnings += bill.TotalCost

	veh := *p.connected
	p.connected = nil
	p.status = model.Idle
	p.startTime = time.Time{}
	p.queue.Remove(veh.Number)

	if reconnect {
		if head, ok := p.queue.Head(); ok {
			if err := p.connectLocked(head); err != nil {
				p.log.Errorf("pile %s: reconnect after disconnect: %v", p.id, err)
			}
		}
	}
	return bill, nil
}

// CheckAutoComplete polls the session against the requested energy and
// disconnects when it has been delivered. It returns the bill if one was
// produced.
func (p *Pile) CheckAutoComplete() (*model.Bill, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != model.Charging || p.connected == nil {
		return nil, nil
	}
	delivered := p.deliveredLocked()
	if delivered+1e-9 < p.connected.Vehicle.EnergyKWh {
		return nil, nil
	}
	bill, err := p.disconnectLocked(true, true)
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// ModifyRequest amends the requested energy of the charging vehicle. Asking
// for no more than what was already delivered is treated as a stop request
// and ends the session immediately.
func (p *Pile) ModifyRequest(kwh float64) (*model.Bill, error) {
	if kwh <= 0 {
		return nil, errs.Validationf("requested energy must be positive, got %v", kwh)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != model.Charging || p.connected == nil {
		return nil, errs.Statef("pile %s is not charging", p.id)
	}
	if kwh <= p.deliveredLocked() {
		bill, err := p.disconnectLocked(false, true)
		if err != nil {
			return nil, err
		}
		return &bill, nil
	}
	p.connected.Vehicle.EnergyKWh = kwh
	p.queue.UpdateEnergy(p.connected.Number, kwh)
	return nil, nil
}

// UpdateRequest amends the requested energy of a queued, not yet charging
// vehicle.
func (p *Pile) UpdateRequest(number string, kwh float64) error {
	if kwh <= 0 {
		return errs.Validationf("requested energy must be positive, got %v", kwh)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected != nil && p.connected.Number == number {
		return errs.Statef("vehicle %s is charging on pile %s", number, p.id)
	}
	if !p.queue.UpdateEnergy(number, kwh) {
		return errs.NotFoundf("queue number %s not found on pile %s", number, p.id)
	}
	return nil
}

// LeaveQueue removes a not-yet-charging vehicle from the on-pile queue.
func (p *Pile) LeaveQueue(number string) (model.QueueEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected != nil && p.connected.Number == number {
		return model.QueueEntry{}, errs.Statef("vehicle %s is charging on pile %s", number, p.id)
	}
	e, ok := p.queue.Remove(number)
	if !ok {
		return model.QueueEntry{}, errs.NotFoundf("queue number %s not found on pile %s", number, p.id)
	}
	return e, nil
}

// SetFault forces the pile into the fault state. An in-flight session is
// billed against real elapsed time. The remaining queue is returned for
// external rescheduling and stays on the pile until ClearQueue is called.
func (p *Pile) SetFault() (*model.Bill, []model.QueueEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.status.CanTransition(model.Fault) {
		return nil, nil, errs.Statef("pile %s cannot fault while %s", p.id, p.status)
	}
	var bill *model.Bill
	if p.status == model.Charging {
		b, err := p.disconnectLocked(false, false)
		if err != nil {
			return nil, nil, err
		}
		bill = &b
	}
	p.status = model.Fault
	p.log.Warnf("pile %s entered fault state", p.id)
	return bill, p.queue.Entries(), nil
}

// ClearQueue drops every queued entry, returning them.
func (p *Pile) ClearQueue() []model.QueueEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Clear()
}

// Repair returns a faulted pile to idle. Rescheduling of traffic is the
// scheduler's responsibility; no vehicle is resumed here.
func (p *Pile) Repair() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != model.Fault {
		return errs.Statef("pile %s is not in fault state", p.id)
	}
	p.status = model.Idle
	p.log.Infof("pile %s repaired", p.id)
	return nil
}

// Start brings an offline pile back to idle.
func (p *Pile) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != model.Offline {
		return errs.Statef("pile %s cannot start while %s", p.id, p.status)
	}
	p.status = model.Idle
	return nil
}

// Stop takes an idle pile offline. A charging or faulted pile cannot be
// stopped.
func (p *Pile) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status != model.Idle {
		return errs.Statef("pile %s cannot stop while %s", p.id, p.status)
	}
	p.status = model.Offline
	return nil
}

// Snapshot returns the registry view used by allocation.
func (p *Pile) Snapshot() model.PileSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return model.PileSnapshot{
		ID:       p.id,
		Category: p.category,
		PowerKW:  p.power,
		Status:   p.status,
		Capacity: p.queue.capacity,
		Queue:    p.queue.Entries(),
		Charging: p.status == model.Charging,
	}
}

// Info returns the externally visible pile status.
func (p *Pile) Info() model.PileInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	info := model.PileInfo{
		ID:       p.id,
		Category: p.category,
		PowerKW:  p.power,
		Status:   p.status,
		Stats: model.PileStats{
			Sessions:    p.stats.Sessions,
			DurationMin: model.Round2(p.stats.DurationMin),
			EnergyKWh:   model.Round2(p.stats.EnergyKWh),
			Earnings:    model.Round2(p.stats.Earnings),
		},
	}
	if p.connected != nil {
		info.Connected = p.connected.Vehicle.CarID
	}
	for _, e := range p.queue.Entries() {
		info.Queue = append(info.Queue, e.Number)
	}
	return info
}

// deliveredLocked computes the energy delivered so far in the running session.
func (p *Pile) deliveredLocked() float64 {
	elapsed := p.clk.Now().Sub(p.startTime)
	if elapsed < 0 {
		return 0
	}
	return p.power * elapsed.Hours()
}

// chargeDuration is the analytic time needed to deliver the given energy.
func (p *Pile) chargeDuration(kwh float64) time.Duration {
	return time.Duration(kwh / p.power * float64(time.Hour))
}

func (p *Pile) buildBill(veh model.QueueEntry, start, end time.Time, energy, cost float64) model.Bill {
	charging := round2(cost)
	service := round2(cost * p.serviceFee)
	return model.Bill{
		ID:           uuid.NewString(),
		CreateTime:   p.clk.Now(),
		PileID:       p.id,
		VehicleID:    veh.Vehicle.CarID,
		Username:     veh.Vehicle.Username,
		EnergyKWh:    round2(energy),
		DurationMin:  round2(end.Sub(start).Minutes()),
		StartTime:    start,
		EndTime:      end,
		ChargingCost: charging,
		ServiceCost:  service,
		TotalCost:    round2(charging + service),
	}
}
