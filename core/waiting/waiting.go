// Package waiting implements the station-wide waiting area: bounded
// admission, per-category FIFO lists with never-reused queue numbers, the
// vehicle-to-pile allocation heuristic and the fault/recovery rescheduling
// strategies.
package waiting

import (
	"sort"
	"strconv"
	"sync"

	"github.com/kilianp07/evstation/core/clock"
	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/logger"
	"github.com/kilianp07/evstation/core/model"
)

// DefaultCapacity is the number of waiting-area slots across both categories.
const DefaultCapacity = 6

// Allocation pairs an admitted vehicle with the pile chosen for it.
type Allocation struct {
	Entry  model.QueueEntry
	PileID string
}

// Move relocates a vehicle between on-pile queues during fault or recovery
// rescheduling. FromPileID is empty for vehicles drained from a faulted pile.
type Move struct {
	Entry      model.QueueEntry
	FromPileID string
	ToPileID   string
}

// Queue is the waiting area. A single mutex serializes admissions, removals
// and allocation so queue numbers stay strictly increasing and the capacity
// invariant holds under concurrent callers.
type Queue struct {
	mu          sync.Mutex
	capacity    int
	fast        []model.QueueEntry
	slow        []model.QueueEntry
	fastCounter int
	slowCounter int
	piles       map[string]model.PileSnapshot
	clk         clock.Clock
	log         logger.Logger
}

// New builds an empty waiting area. A non-positive capacity falls back to
// DefaultCapacity.
func New(capacity int, clk clock.Clock, log logger.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Queue{
		capacity:    capacity,
		fastCounter: 1,
		slowCounter: 1,
		piles:       make(map[string]model.PileSnapshot),
		clk:         clk,
		log:         log,
	}
}

// IsFull reports whether the combined fast and slow lists reached capacity.
func (q *Queue) IsFull() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sizeLocked() >= q.capacity
}

// Size returns the combined number of waiting entries.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sizeLocked()
}

func (q *Queue) sizeLocked() int { return len(q.fast) + len(q.slow) }

func (q *Queue) listFor(cat model.Category) *[]model.QueueEntry {
	if cat == model.Fast {
		return &q.fast
	}
	return &q.slow
}

// AddVehicle admits a request into the given category, minting a fresh queue
// number. The number counter advances even across removals and category
// changes and is never reused.
func (q *Queue) AddVehicle(cat model.Category, req model.VehicleRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", errs.Validationf("invalid request: %v", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sizeLocked() >= q.capacity {
		return "", errs.Admissionf("waiting area is full")
	}
	if q.containsCarLocked(req.CarID) {
		return "", errs.Admissionf("vehicle %s is already waiting", req.CarID)
	}
	for _, snap := range q.piles {
		for _, e := range snap.Queue {
			if e.Vehicle.CarID == req.CarID {
				return "", errs.Admissionf("vehicle %s is already queued on pile %s", req.CarID, snap.ID)
			}
		}
	}

	number := q.mintNumberLocked(cat)
	entry := model.QueueEntry{Number: number, Vehicle: req, JoinedAt: q.clk.Now()}
	list := q.listFor(cat)
	*list = append(*list, entry)
	q.log.Infof("vehicle %s admitted as %s", req.CarID, number)
	return number, nil
}

func (q *Queue) mintNumberLocked(cat model.Category) string {
	if cat == model.Fast {
		n := q.fastCounter
		q.fastCounter++
		return cat.Prefix() + strconv.Itoa(n)
	}
	n := q.slowCounter
	q.slowCounter++
	return cat.Prefix() + strconv.Itoa(n)
}

func (q *Queue) containsCarLocked(carID string) bool {
	for _, e := range q.fast {
		if e.Vehicle.CarID == carID {
			return true
		}
	}
	for _, e := range q.slow {
		if e.Vehicle.CarID == carID {
			return true
		}
	}
	return false
}

// RemoveVehicle drops the entry with the given queue number.
func (q *Queue) RemoveVehicle(number string) (model.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(number)
}

func (q *Queue) removeLocked(number string) (model.QueueEntry, error) {
	for _, list := range []*[]model.QueueEntry{&q.fast, &q.slow} {
		for i, e := range *list {
			if e.Number == number {
				*list = append((*list)[:i], (*list)[i+1:]...)
				return e, nil
			}
		}
	}
	return model.QueueEntry{}, errs.NotFoundf("queue number %s not found in waiting area", number)
}

// Find returns the waiting entry with the given number.
func (q *Queue) Find(number string) (model.QueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, list := range [][]model.QueueEntry{q.fast, q.slow} {
		for _, e := range list {
			if e.Number == number {
				return e, true
			}
		}
	}
	return model.QueueEntry{}, false
}

// ModifyEnergy amends the requested energy of a waiting entry.
func (q *Queue) ModifyEnergy(number string, kwh float64) error {
	if kwh <= 0 {
		return errs.Validationf("requested energy must be positive, got %v", kwh)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, list := range []*[]model.QueueEntry{&q.fast, &q.slow} {
		for i := range *list {
			if (*list)[i].Number == number {
				(*list)[i].Vehicle.EnergyKWh = kwh
				return nil
			}
		}
	}
	return errs.NotFoundf("queue number %s not found in waiting area", number)
}

// ChangeChargeMode moves an entry to the other category's tail under a
// freshly minted number. The old number is permanently retired.
func (q *Queue) ChangeChargeMode(number string, cat model.Category) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry, err := q.removeLocked(number)
	if err != nil {
		return "", err
	}
	fresh := q.mintNumberLocked(cat)
	entry.Number = fresh
	entry.JoinedAt = q.clk.Now()
	list := q.listFor(cat)
	*list = append(*list, entry)
	return fresh, nil
}

// Reinsert returns an entry to its category list keeping its original queue
// number, ordered by number so earlier arrivals stay ahead. Used when a
// physical join fails after the entry left the waiting area, and as the
// fallback for unplaced vehicles during fault rescheduling.
//
// Capacity bounds admissions only. An entry handed to Reinsert is already
// station state, so it is taken back even when the area is full; the
// overflow resolves as slots free up and losing the vehicle would be worse.
func (q *Queue) Reinsert(entry model.QueueEntry) error {
	cat, err := model.ParseCategory(entry.Number[:1])
	if err != nil {
		return errs.Validationf("malformed queue number %s", entry.Number)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	list := q.listFor(cat)
	*list = append(*list, entry)
	sort.SliceStable(*list, func(i, j int) bool {
		return model.NumberSuffix((*list)[i].Number) < model.NumberSuffix((*list)[j].Number)
	})
	return nil
}

// RegisterPile records the latest snapshot of a pile.
func (q *Queue) RegisterPile(snap model.PileSnapshot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.piles[snap.ID] = snap
}

