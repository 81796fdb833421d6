package model

import (
	"encoding/json"
	"testing"
)

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory("F"); err != nil || c != Fast {
		t.Fatalf("parse F: got %v, %v", c, err)
	}
	if c, err := ParseCategory("T"); err != nil || c != Slow {
		t.Fatalf("parse T: got %v, %v", c, err)
	}
	if _, err := ParseCategory("X"); err == nil {
		t.Fatal("expected error for unknown code")
	}
}

func TestCategoryJSON(t *testing.T) {
	b, err := json.Marshal(Slow)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"T"` {
		t.Fatalf("got %s, want \"T\"", b)
	}
	var c Category
	if err := json.Unmarshal([]byte(`"F"`), &c); err != nil || c != Fast {
		t.Fatalf("unmarshal: got %v, %v", c, err)
	}
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PileStatus
		ok       bool
	}{
		{Idle, Charging, true},
		{Idle, Offline, true},
		{Idle, Fault, true},
		{Charging, Idle, true},
		{Charging, Fault, true},
		{Charging, Offline, false},
		{Fault, Idle, true},
		{Fault, Charging, false},
		{Offline, Idle, true},
		{Offline, Charging, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestAcceptsVehicles(t *testing.T) {
	if !Idle.AcceptsVehicles() || !Charging.AcceptsVehicles() {
		t.Fatal("idle and charging piles must accept vehicles")
	}
	if Fault.AcceptsVehicles() || Offline.AcceptsVehicles() {
		t.Fatal("faulted and offline piles must not accept vehicles")
	}
}

func TestNumberSuffix(t *testing.T) {
	cases := map[string]int{"F1": 1, "T42": 42, "F": 0, "": 0, "Fx": 0}
	for number, want := range cases {
		if got := NumberSuffix(number); got != want {
			t.Errorf("suffix of %q: got %d, want %d", number, got, want)
		}
	}
}

func TestVehicleRequestValidate(t *testing.T) {
	ok := VehicleRequest{CarID: "CAR-1", EnergyKWh: 10}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}
	if err := (VehicleRequest{EnergyKWh: 10}).Validate(); err == nil {
		t.Fatal("missing car id accepted")
	}
	if err := (VehicleRequest{CarID: "CAR-1"}).Validate(); err == nil {
		t.Fatal("zero energy accepted")
	}
}

func TestSnapshotWaitingEntries(t *testing.T) {
	snap := PileSnapshot{
		Capacity: 2,
		Charging: true,
		Queue: []QueueEntry{
			{Number: "F1"},
			{Number: "F2"},
		},
	}
	waiting := snap.WaitingEntries()
	if len(waiting) != 1 || waiting[0].Number != "F2" {
		t.Fatalf("got %v, want only F2", waiting)
	}
	if snap.FreeSlots() != 0 {
		t.Fatalf("free slots: got %d, want 0", snap.FreeSlots())
	}
}
