package pile

import "github.com/kilianp07/evstation/core/model"

// QueueCapacity is the number of positions on a pile, the charging slot
// included.
const QueueCapacity = 2

// boundedQueue is a FIFO with an enforced capacity invariant. It is not
// safe for concurrent use; the owning pile serializes access.
type boundedQueue struct {
	capacity int
	entries  []model.QueueEntry
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{capacity: capacity}
}

func (q *boundedQueue) Len() int   { return len(q.entries) }
func (q *boundedQueue) Full() bool { return len(q.entries) >= q.capacity }

// Push appends the entry, refusing once the capacity is reached.
func (q *boundedQueue) Push(e model.QueueEntry) bool {
	if q.Full() {
		return false
	}
	q.entries = append(q.entries, e)
	return true
}

// Head returns the front entry without removing it.
func (q *boundedQueue) Head() (model.QueueEntry, bool) {
	if len(q.entries) == 0 {
		return model.QueueEntry{}, false
	}
	return q.entries[0], true
}

// Remove deletes the entry with the given queue number, preserving order.
func (q *boundedQueue) Remove(number string) (model.QueueEntry, bool) {
	for i, e := range q.entries {
		if e.Number == number {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return e, true
		}
	}
	return model.QueueEntry{}, false
}

// Contains reports whether a vehicle identity is already queued.
func (q *boundedQueue) Contains(carID string) bool {
	for _, e := range q.entries {
		if e.Vehicle.CarID == carID {
			return true
		}
	}
	return false
}

// UpdateEnergy amends the requested energy of a queued entry.
func (q *boundedQueue) UpdateEnergy(number string, kwh float64) bool {
	for i := range q.entries {
		if q.entries[i].Number == number {
			q.entries[i].Vehicle.EnergyKWh = kwh
			return true
		}
	}
	return false
}

// Entries returns a copy of the queue in order.
func (q *boundedQueue) Entries() []model.QueueEntry {
	return append([]model.QueueEntry(nil), q.entries...)
}

// Clear empties the queue and returns the removed entries.
func (q *boundedQueue) Clear() []model.QueueEntry {
	out := q.entries
	q.entries = nil
	return out
}
