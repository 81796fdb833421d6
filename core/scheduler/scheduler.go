// Package scheduler runs the station's background loop. On every tick it
// pushes pile snapshots into the waiting area, allocates waiting vehicles to
// piles, and polls charging sessions for auto-completion. It is also the
// orchestration point for pile fault and repair events and the hand-off
// point between finalized bills and the persistence sink.
package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/clock"
	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/logger"
	"github.com/kilianp07/evstation/core/metrics"
	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/core/pile"
	"github.com/kilianp07/evstation/core/waiting"
	"github.com/kilianp07/evstation/internal/eventbus"
)

// DefaultTickInterval is the polling cadence when none is configured.
const DefaultTickInterval = 5 * time.Second

// Config parameterizes the scheduler loop.
type Config struct {
	TickInterval time.Duration
	BillBuffer   int
}

// Scheduler owns the background polling loop. Exactly one goroutine executes
// ticks; bills are handed to the sink by a separate worker so a slow
// persistence write never stalls a state transition or the tick cadence.
type Scheduler struct {
	cfg     Config
	queue   *waiting.Queue
	piles   map[string]*pile.Pile
	order   []string
	clk     *clock.Virtual
	sink    billing.Sink
	metrics metrics.StationSink
	bus     eventbus.EventBus
	log     logger.Logger

	bills    chan model.Bill
	stopCh   chan struct{}
	loopDone chan struct{}
	sinkDone chan struct{}

	mu      sync.Mutex
	running bool
}

// New wires a scheduler. At least one pile must be registered; anything else
// is a startup mis-wiring and aborts initialization.
func New(cfg Config, queue *waiting.Queue, piles []*pile.Pile, clk *clock.Virtual, sink billing.Sink, msink metrics.StationSink, bus eventbus.EventBus, log logger.Logger) (*Scheduler, error) {
	if queue == nil {
		return nil, errs.Validationf("scheduler: waiting queue is required")
	}
	if len(piles) == 0 {
		return nil, errs.Validationf("scheduler: at least one pile must be registered")
	}
	if clk == nil {
		clk = clock.NewVirtual()
	}
	if sink == nil {
		sink = billing.NopSink{}
	}
	if msink == nil {
		msink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.BillBuffer <= 0 {
		cfg.BillBuffer = 64
	}

	s := &Scheduler{
		cfg:     cfg,
		queue:   queue,
		piles:   make(map[string]*pile.Pile, len(piles)),
		clk:     clk,
		sink:    sink,
		metrics: msink,
		bus:     bus,
		log:     log,
	}
	for _, p := range piles {
		if _, dup := s.piles[p.ID()]; dup {
			return nil, errs.Validationf("scheduler: duplicate pile id %s", p.ID())
		}
		s.piles[p.ID()] = p
		s.order = append(s.order, p.ID())
	}
	sort.Strings(s.order)
	s.refreshSnapshots()
	return s, nil
}

// Clock returns the station clock.
func (s *Scheduler) Clock() *clock.Virtual { return s.clk }

// Start launches the tick loop and the bill persistence worker.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.bills = make(chan model.Bill, s.cfg.BillBuffer)
	s.stopCh = make(chan struct{})
	s.loopDone = make(chan struct{})
	s.sinkDone = make(chan struct{})
	go s.persistLoop()
	go s.tickLoop()
	s.log.Infof("scheduler started, tick interval %s", s.cfg.TickInterval)
}

// Stop halts the loop, waiting for the in-flight tick to finish and the bill
// queue to drain.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	<-s.loopDone
	close(s.bills)
	<-s.sinkDone
	s.log.Infof("scheduler stopped")
}

func (s *Scheduler) tickLoop() {
	defer close(s.loopDone)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Scheduler) persistLoop() {
	defer close(s.sinkDone)
	for bill := range s.bills {
		if err := s.sink.SaveBill(bill); err != nil {
			s.log.Errorf("save bill %s: %v", bill.ID, err)
		}
	}
}

// Tick executes one scheduling round. Every step is panic-safe: a failure in
// one pile or vehicle never halts scheduling for the rest of the station.
func (s *Scheduler) Tick() {
	started := time.Now()
	assigned := 0
	s.step("sync", func() {
		s.refreshSnapshots()
	})
	s.step("allocate", func() {
		assigned = s.allocate()
	})
	s.step("poll", func() {
		s.pollPiles()
	})
	if err := s.metrics.RecordTick(metrics.TickEvent{
		Duration: time.Since(started),
		Waiting:  s.queue.Size(),
		Assigned: assigned,
	}); err != nil {
		s.log.Debugf("tick metrics: %v", err)
	}
}

func (s *Scheduler) step(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("tick step %s panicked: %v", name, r)
		}
	}()
	fn()
}

func (s *Scheduler) refreshSnapshots() {
	for _, id := range s.order {
		snap := s.piles[id].Snapshot()
		s.queue.RegisterPile(snap)
		if err := s.metrics.RecordPileStatus(metrics.PileStatusEvent{PileID: id, Status: snap.Status}); err != nil {
			s.log.Debugf("pile status metrics: %v", err)
		}
	}
}

func (s *Scheduler) allocate() int {
	assigned := 0
	for _, alloc := range s.queue.ScheduleVehicles() {
		p, ok := s.piles[alloc.PileID]
		if !ok {
			s.log.Errorf("allocation targets unknown pile %s", alloc.PileID)
			s.requeue(alloc.Entry)
			continue
		}
		if err := p.JoinQueue(alloc.Entry); err != nil {
			s.log.Warnf("join %s onto pile %s: %v", alloc.Entry.Number, alloc.PileID, err)
			s.requeue(alloc.Entry)
			continue
		}
		// Re-register immediately so admissions between ticks see the
		// vehicle on its pile, not a stale pre-join snapshot.
		s.queue.RegisterPile(p.Snapshot())
		assigned++
		s.publish(eventbus.AllocationEvent{
			QueueNumber: alloc.Entry.Number,
			CarID:       alloc.Entry.Vehicle.CarID,
			PileID:      alloc.PileID,
		})
	}
	return assigned
}

func (s *Scheduler) pollPiles() {
	for _, id := range s.order {
		bill, err := s.piles[id].CheckAutoComplete()
		if err != nil {
			s.log.Errorf("auto-complete poll on pile %s: %v", id, err)
			continue
		}
		if bill != nil {
			s.SubmitBill(*bill, true)
		}
	}
}

// SubmitBill hands a finalized bill to the persistence worker and publishes
// it on the event bus. The send happens under the scheduler mutex so it can
// never race a Stop closing the channel; when the loop is stopped or the
// buffer is full the bill is saved synchronously instead.
func (s *Scheduler) SubmitBill(bill model.Bill, auto bool) {
	if err := s.metrics.RecordSession(bill); err != nil {
		s.log.Debugf("session metrics: %v", err)
	}
	s.publish(eventbus.BillEvent{Bill: bill, Auto: auto})
	s.mu.Lock()
	if s.running && s.bills != nil {
		select {
		case s.bills <- bill:
			s.mu.Unlock()
			return
		default:
			s.log.Warnf("bill buffer full, saving bill %s synchronously", bill.ID)
		}
	}
	s.mu.Unlock()
	if err := s.sink.SaveBill(bill); err != nil {
		s.log.Errorf("save bill %s: %v", bill.ID, err)
	}
}

func (s *Scheduler) requeue(entry model.QueueEntry) {
	if err := s.queue.Reinsert(entry); err != nil {
		s.log.Errorf("requeue %s: %v", entry.Number, err)
	}
}

func (s *Scheduler) publish(e eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// SetTimeSpeed accelerates the virtual clock.
func (s *Scheduler) SetTimeSpeed(mult float64) error { return s.clk.SetSpeed(mult) }

// SetSimulatedTime jumps the virtual clock to an absolute instant.
func (s *Scheduler) SetSimulatedTime(ts time.Time) { s.clk.SetTime(ts) }

// ResetRealTime returns the clock to wall time.
func (s *Scheduler) ResetRealTime() { s.clk.Reset() }
