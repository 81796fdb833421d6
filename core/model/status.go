package model

// PileStatus is the lifecycle state of a charging pile.
type PileStatus int

const (
	Idle PileStatus = iota
	Charging
	Fault
	Offline
)

func (s PileStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case Charging:
		return "charging"
	case Fault:
		return "fault"
	case Offline:
		return "offline"
	}
	return "unknown"
}

// MarshalJSON encodes the status as its lowercase name.
func (s PileStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// transitions is the closed set of legal status changes. Fault is reachable
// from any non-offline state because a fault is forced, not requested.
var transitions = map[PileStatus][]PileStatus{
	Idle:     {Charging, Fault, Offline},
	Charging: {Idle, Fault},
	Fault:    {Idle},
	Offline:  {Idle},
}

// CanTransition reports whether moving from s to next is legal.
func (s PileStatus) CanTransition(next PileStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// AcceptsVehicles reports whether a pile in this status admits new joins.
func (s PileStatus) AcceptsVehicles() bool {
	return s == Idle || s == Charging
}
