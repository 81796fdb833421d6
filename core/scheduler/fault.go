package scheduler

import (
	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/core/waiting"
	"github.com/kilianp07/evstation/internal/eventbus"
)

// FaultStrategy selects how the queue of a faulted pile is redistributed.
type FaultStrategy int

const (
	// PriorityStrategy places drained vehicles on the shortest sibling
	// queue without disturbing the waiting area.
	PriorityStrategy FaultStrategy = iota
	// TimeOrderStrategy pools drained and sibling-queued vehicles and
	// reassigns them in queue-number order.
	TimeOrderStrategy
)

// ParseStrategy maps the API strategy codes.
func ParseStrategy(code string) (FaultStrategy, error) {
	switch code {
	case "priority":
		return PriorityStrategy, nil
	case "time_order", "timeorder":
		return TimeOrderStrategy, nil
	default:
		return 0, errs.Validationf("unknown fault strategy %q", code)
	}
}

func (f FaultStrategy) String() string {
	if f == PriorityStrategy {
		return "priority"
	}
	return "time_order"
}

// HandlePileFault forces the pile into fault, bills any in-flight vehicle
// and reschedules its queue across healthy same-category siblings using the
// chosen strategy. Vehicles that cannot be placed are pushed back into the
// waiting area; if even that fails they are surfaced in the returned error,
// never dropped silently.
func (s *Scheduler) HandlePileFault(pileID string, strategy FaultStrategy) error {
	p, ok := s.piles[pileID]
	if !ok {
		return errs.NotFoundf("pile %s not found", pileID)
	}
	bill, drained, err := p.SetFault()
	if err != nil {
		return err
	}
	p.ClearQueue()
	if bill != nil {
		s.SubmitBill(*bill, false)
	}
	s.publish(eventbus.PileFaultEvent{PileID: pileID, Strategy: strategy.String()})
	s.refreshSnapshots()

	var (
		unplaced []model.QueueEntry
		planErr  error
	)
	switch strategy {
	case TimeOrderStrategy:
		var moves []waiting.Move
		moves, unplaced, planErr = s.queue.PlanFaultTimeOrder(pileID, drained)
		unplaced = append(unplaced, s.executeMoves(moves)...)
	default:
		var allocs []waiting.Allocation
		allocs, unplaced, planErr = s.queue.PlanFaultPriority(pileID, drained)
		for _, alloc := range allocs {
			if err := s.piles[alloc.PileID].JoinQueue(alloc.Entry); err != nil {
				s.log.Warnf("fault reschedule %s onto pile %s: %v", alloc.Entry.Number, alloc.PileID, err)
				unplaced = append(unplaced, alloc.Entry)
				continue
			}
			s.queue.RegisterPile(s.piles[alloc.PileID].Snapshot())
		}
	}

	for _, entry := range unplaced {
		s.requeue(entry)
	}
	s.refreshSnapshots()
	return planErr
}

// HandlePileRepair returns the pile to service and rebalances waiting
// vehicles across the category, including the repaired pile.
func (s *Scheduler) HandlePileRepair(pileID string) error {
	p, ok := s.piles[pileID]
	if !ok {
		return errs.NotFoundf("pile %s not found", pileID)
	}
	if err := p.Repair(); err != nil {
		return err
	}
	s.publish(eventbus.PileRepairedEvent{PileID: pileID})
	s.refreshSnapshots()

	moves, err := s.queue.PlanRecovery(pileID)
	if err != nil {
		return err
	}
	for _, entry := range s.executeMoves(moves) {
		s.requeue(entry)
	}
	s.refreshSnapshots()
	return nil
}

// executeMoves relocates vehicles between on-pile queues: every moved entry
// is removed from its source first, then rejoined in plan order so the
// capacity invariant holds throughout. Entries that could not be moved are
// returned.
func (s *Scheduler) executeMoves(moves []waiting.Move) []model.QueueEntry {
	var failed []model.QueueEntry
	pending := make([]waiting.Move, 0, len(moves))
	for _, m := range moves {
		if m.FromPileID == "" {
			pending = append(pending, m)
			continue
		}
		src, ok := s.piles[m.FromPileID]
		if !ok {
			s.log.Errorf("move source pile %s not found", m.FromPileID)
			failed = append(failed, m.Entry)
			continue
		}
		if _, err := src.LeaveQueue(m.Entry.Number); err != nil {
			s.log.Warnf("move %s off pile %s: %v", m.Entry.Number, m.FromPileID, err)
			failed = append(failed, m.Entry)
			continue
		}
		s.queue.RegisterPile(src.Snapshot())
		pending = append(pending, m)
	}
	for _, m := range pending {
		dst, ok := s.piles[m.ToPileID]
		if !ok {
			s.log.Errorf("move target pile %s not found", m.ToPileID)
			failed = append(failed, m.Entry)
			continue
		}
		if err := dst.JoinQueue(m.Entry); err != nil {
			s.log.Warnf("move %s onto pile %s: %v", m.Entry.Number, m.ToPileID, err)
			failed = append(failed, m.Entry)
			continue
		}
		s.queue.RegisterPile(dst.Snapshot())
	}
	return failed
}
