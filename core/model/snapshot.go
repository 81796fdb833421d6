package model

// PileSnapshot is the point-in-time view of a pile that the scheduler pushes
// into the waiting area's registry on every tick. Allocation and rescheduling
// decisions are computed from snapshots only, never from live pile state.
type PileSnapshot struct {
	ID       string       `json:"pile_id"`
	Category Category     `json:"category"`
	PowerKW  float64      `json:"power_kw"`
	Status   PileStatus   `json:"status"`
	Capacity int          `json:"capacity"`
	Queue    []QueueEntry `json:"queue"`
	Charging bool         `json:"charging"`
}

// FreeSlots returns the number of open positions in the on-pile queue.
func (s PileSnapshot) FreeSlots() int {
	free := s.Capacity - len(s.Queue)
	if free < 0 {
		return 0
	}
	return free
}

// QueuedEnergy sums the requested energy of every vehicle on the pile,
// including the one currently charging.
func (s PileSnapshot) QueuedEnergy() float64 {
	var total float64
	for _, e := range s.Queue {
		total += e.Vehicle.EnergyKWh
	}
	return total
}

// WaitingEntries returns the queued vehicles that are not yet charging.
// When the pile is charging, the head of the queue is the connected vehicle.
func (s PileSnapshot) WaitingEntries() []QueueEntry {
	if s.Charging && len(s.Queue) > 0 {
		return append([]QueueEntry(nil), s.Queue[1:]...)
	}
	return append([]QueueEntry(nil), s.Queue...)
}

// PileStats accumulates lifetime counters for one pile.
type PileStats struct {
	Sessions    int     `json:"sessions"`
	DurationMin float64 `json:"duration_min"`
	EnergyKWh   float64 `json:"energy_kwh"`
	Earnings    float64 `json:"earnings"`
}

// PileInfo is the externally visible status of a pile, served to the API.
type PileInfo struct {
	ID        string     `json:"pile_id"`
	Category  Category   `json:"category"`
	PowerKW   float64    `json:"power_kw"`
	Status    PileStatus `json:"status"`
	Connected string     `json:"connected_vehicle,omitempty"`
	Queue     []string   `json:"queue_numbers"`
	Stats     PileStats  `json:"stats"`
}
