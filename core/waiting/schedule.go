package waiting

import (
	"sort"

	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/model"
)

// ScheduleVehicles runs one allocation round over both categories and
// returns the chosen (vehicle, pile) pairs. Assigned entries leave the
// waiting lists; the caller performs the physical joins.
//
// The strategy is a single-pass greedy: each candidate vehicle, in FIFO
// order, takes the unclaimed pile with the lowest projected total wait. This
// is deliberately not a full bipartite optimum; the greedy heuristic is the
// documented station behavior.
func (q *Queue) ScheduleVehicles() []Allocation {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Allocation
	out = append(out, q.scheduleCategoryLocked(model.Fast)...)
	out = append(out, q.scheduleCategoryLocked(model.Slow)...)
	return out
}

func (q *Queue) scheduleCategoryLocked(cat model.Category) []Allocation {
	piles := q.candidatePilesLocked(cat, "")
	if len(piles) == 0 {
		return nil
	}
	list := q.listFor(cat)
	n := len(*list)
	if n > len(piles) {
		n = len(piles)
	}
	if n == 0 {
		return nil
	}

	claimed := make(map[string]bool, n)
	var allocs []Allocation
	var unassigned []model.QueueEntry
	for _, entry := range (*list)[:n] {
		type option struct {
			pileID string
			wait   float64
		}
		options := make([]option, 0, len(piles))
		for _, snap := range piles {
			wait := (snap.QueuedEnergy() + entry.Vehicle.EnergyKWh) / snap.PowerKW
			options = append(options, option{pileID: snap.ID, wait: wait})
		}
		sort.Slice(options, func(i, j int) bool {
			if options[i].wait != options[j].wait {
				return options[i].wait < options[j].wait
			}
			return options[i].pileID < options[j].pileID
		})
		assigned := false
		for _, opt := range options {
			if claimed[opt.pileID] {
				continue
			}
			claimed[opt.pileID] = true
			allocs = append(allocs, Allocation{Entry: entry, PileID: opt.pileID})
			assigned = true
			break
		}
		if !assigned {
			unassigned = append(unassigned, entry)
		}
	}
	*list = append(unassigned, (*list)[n:]...)
	return allocs
}

// candidatePilesLocked returns the registered same-category piles that can
// take at least one more vehicle, sorted by id for deterministic allocation.
func (q *Queue) candidatePilesLocked(cat model.Category, exclude string) []model.PileSnapshot {
	var out []model.PileSnapshot
	for _, snap := range q.piles {
		if snap.ID == exclude || snap.Category != cat {
			continue
		}
		if !snap.Status.AcceptsVehicles() || snap.FreeSlots() == 0 {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// healthySiblingsLocked returns same-category piles other than pileID that
// are neither faulted nor offline, regardless of free slots.
func (q *Queue) healthySiblingsLocked(cat model.Category, pileID string) []model.PileSnapshot {
	var out []model.PileSnapshot
	for _, snap := range q.piles {
		if snap.ID == pileID || snap.Category != cat {
			continue
		}
		if !snap.Status.AcceptsVehicles() {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlanFaultPriority reschedules the vehicles drained from a faulted pile
// onto whichever healthy sibling currently has the shortest queue, without
// touching the main waiting area. Vehicles that fit nowhere are returned
// unplaced together with a scheduling error; they are never dropped.
func (q *Queue) PlanFaultPriority(faultPileID string, drained []model.QueueEntry) ([]Allocation, []model.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap, ok := q.piles[faultPileID]
	if !ok {
		return nil, drained, errs.NotFoundf("pile %s is not registered", faultPileID)
	}
	siblings := q.healthySiblingsLocked(snap.Category, faultPileID)
	if len(siblings) == 0 {
		return nil, drained, errs.Schedulingf("no healthy %s pile available for rescheduling", snap.Category)
	}

	lengths := make(map[string]int, len(siblings))
	for _, s := range siblings {
		lengths[s.ID] = len(s.Queue)
	}
	var allocs []Allocation
	var unplaced []model.QueueEntry
	for _, entry := range drained {
		target := shortestQueue(siblings, lengths, snap.Capacity)
		if target == "" {
			unplaced = append(unplaced, entry)
			continue
		}
		lengths[target]++
		allocs = append(allocs, Allocation{Entry: entry, PileID: target})
	}
	if len(unplaced) > 0 {
		return allocs, unplaced, errs.Schedulingf("%d vehicles could not be rescheduled from pile %s", len(unplaced), faultPileID)
	}
	return allocs, nil, nil
}

// PlanFaultTimeOrder pools the faulted pile's drained queue with every
// not-yet-charging vehicle queued on healthy siblings, orders the pool by
// queue number and redistributes it greedily across the siblings. The
// returned moves clear and refill the sibling queues in plan order.
func (q *Queue) PlanFaultTimeOrder(faultPileID string, drained []model.QueueEntry) ([]Move, []model.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap, ok := q.piles[faultPileID]
	if !ok {
		return nil, drained, errs.NotFoundf("pile %s is not registered", faultPileID)
	}
	siblings := q.healthySiblingsLocked(snap.Category, faultPileID)
	if len(siblings) == 0 {
		return nil, drained, errs.Schedulingf("no healthy %s pile available for rescheduling", snap.Category)
	}

	type sourced struct {
		entry model.QueueEntry
		from  string
	}
	pool := make([]sourced, 0, len(drained))
	for _, e := range drained {
		pool = append(pool, sourced{entry: e})
	}
	lengths := make(map[string]int, len(siblings))
	for _, s := range siblings {
		for _, e := range s.WaitingEntries() {
			pool = append(pool, sourced{entry: e, from: s.ID})
		}
		// Charging vehicles keep their slot.
		if s.Charging {
			lengths[s.ID] = 1
		} else {
			lengths[s.ID] = 0
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return model.NumberSuffix(pool[i].entry.Number) < model.NumberSuffix(pool[j].entry.Number)
	})

	var moves []Move
	var unplaced []model.QueueEntry
	for _, s := range pool {
		target := shortestQueue(siblings, lengths, snap.Capacity)
		if target == "" {
			unplaced = append(unplaced, s.entry)
			continue
		}
		lengths[target]++
		moves = append(moves, Move{Entry: s.entry, FromPileID: s.from, ToPileID: target})
	}
	if len(unplaced) > 0 {
		return moves, unplaced, errs.Schedulingf("%d vehicles could not be rescheduled from pile %s", len(unplaced), faultPileID)
	}
	return moves, nil, nil
}

// PlanRecovery redistributes waiting vehicles when a pile returns from
// fault. All not-yet-charging vehicles queued on same-category piles are
// pooled, ordered by queue number and spread across every same-category
// pile including the recovered one. With nothing waiting this is a no-op.
func (q *Queue) PlanRecovery(recoveredPileID string) ([]Move, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	snap, ok := q.piles[recoveredPileID]
	if !ok {
		return nil, errs.NotFoundf("pile %s is not registered", recoveredPileID)
	}

	type sourced struct {
		entry model.QueueEntry
		from  string
	}
	var pool []sourced
	var targets []model.PileSnapshot
	lengths := make(map[string]int)
	for _, s := range q.piles {
		if s.Category != snap.Category || !s.Status.AcceptsVehicles() {
			continue
		}
		targets = append(targets, s)
		if s.Charging {
			lengths[s.ID] = 1
		} else {
			lengths[s.ID] = 0
		}
		if s.ID == recoveredPileID {
			continue
		}
		for _, e := range s.WaitingEntries() {
			pool = append(pool, sourced{entry: e, from: s.ID})
		}
	}
	if len(pool) == 0 {
		return nil, nil
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].ID < targets[j].ID })
	sort.SliceStable(pool, func(i, j int) bool {
		return model.NumberSuffix(pool[i].entry.Number) < model.NumberSuffix(pool[j].entry.Number)
	})

	var moves []Move
	for _, s := range pool {
		target := shortestQueue(targets, lengths, snap.Capacity)
		if target == "" {
			// Cannot happen while the pool came from the same queues, but
			// guard against a stale registry.
			continue
		}
		lengths[target]++
		moves = append(moves, Move{Entry: s.entry, FromPileID: s.from, ToPileID: target})
	}
	return moves, nil
}

// shortestQueue picks the pile with the fewest projected occupants that
// still has room, breaking ties by pile id.
func shortestQueue(piles []model.PileSnapshot, lengths map[string]int, capacity int) string {
	if capacity <= 0 {
		capacity = 2
	}
	best := ""
	bestLen := capacity
	for _, s := range piles {
		if l := lengths[s.ID]; l < bestLen {
			best = s.ID
			bestLen = l
		}
	}
	return best
}
