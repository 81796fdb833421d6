package eventbus

import "github.com/kilianp07/evstation/core/model"

// BillEvent is published when a charging session is finalized.
type BillEvent struct {
	Bill model.Bill
	Auto bool
}

// AllocationEvent is published when a waiting vehicle is placed on a pile.
type AllocationEvent struct {
	QueueNumber string
	CarID       string
	PileID      string
}

// PileFaultEvent is published when a pile enters the fault state.
type PileFaultEvent struct {
	PileID   string
	Strategy string
}

// PileRepairedEvent is published when a pile returns to service.
type PileRepairedEvent struct {
	PileID string
}
