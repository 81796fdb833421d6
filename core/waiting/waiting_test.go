package waiting

import (
	"fmt"
	"testing"

	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/model"
)

func req(car string, kwh float64) model.VehicleRequest {
	return model.VehicleRequest{CarID: car, UserID: "u-" + car, Username: car, EnergyKWh: kwh}
}

func TestAddVehicleCapacity(t *testing.T) {
	q := New(6, nil, nil)
	for i := 0; i < 6; i++ {
		cat := model.Fast
		if i%2 == 1 {
			cat = model.Slow
		}
		if _, err := q.AddVehicle(cat, req(fmt.Sprintf("CAR-%d", i), 10)); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}
	if !q.IsFull() {
		t.Fatal("waiting area should be full")
	}
	if _, err := q.AddVehicle(model.Fast, req("CAR-7", 10)); !errs.Is(err, errs.KindAdmission) {
		t.Fatalf("seventh vehicle: got %v, want admission error", err)
	}
}

func TestAddVehicleDuplicates(t *testing.T) {
	q := New(6, nil, nil)
	if _, err := q.AddVehicle(model.Fast, req("CAR-1", 10)); err != nil {
		t.Fatal(err)
	}
	if _, err := q.AddVehicle(model.Slow, req("CAR-1", 5)); !errs.Is(err, errs.KindAdmission) {
		t.Fatalf("duplicate in waiting: got %v", err)
	}

	// A vehicle already queued on a pile is rejected too.
	q.RegisterPile(model.PileSnapshot{
		ID: "A", Category: model.Fast, PowerKW: 30, Capacity: 2,
		Queue: []model.QueueEntry{{Number: "F9", Vehicle: req("CAR-2", 10)}},
	})
	if _, err := q.AddVehicle(model.Fast, req("CAR-2", 10)); !errs.Is(err, errs.KindAdmission) {
		t.Fatalf("duplicate on pile: got %v", err)
	}
}

func TestQueueNumbersMonotonic(t *testing.T) {
	q := New(6, nil, nil)
	n1, _ := q.AddVehicle(model.Fast, req("CAR-1", 10))
	n2, _ := q.AddVehicle(model.Fast, req("CAR-2", 10))
	if n1 != "F1" || n2 != "F2" {
		t.Fatalf("got %s, %s, want F1, F2", n1, n2)
	}
	if _, err := q.RemoveVehicle("F1"); err != nil {
		t.Fatal(err)
	}
	n3, _ := q.AddVehicle(model.Fast, req("CAR-3", 10))
	if n3 != "F3" {
		t.Fatalf("number reused: got %s, want F3", n3)
	}

	s1, _ := q.AddVehicle(model.Slow, req("CAR-4", 7))
	if s1 != "T1" {
		t.Fatalf("slow counter independent: got %s, want T1", s1)
	}
}

func TestChangeChargeMode(t *testing.T) {
	q := New(6, nil, nil)
	if _, err := q.AddVehicle(model.Fast, req("CAR-1", 10)); err != nil {
		t.Fatal(err)
	}
	if _, err := q.AddVehicle(model.Slow, req("CAR-2", 7)); err != nil {
		t.Fatal(err)
	}
	fresh, err := q.ChangeChargeMode("F1", model.Slow)
	if err != nil {
		t.Fatalf("change mode: %v", err)
	}
	if fresh != "T2" {
		t.Fatalf("fresh number: got %s, want T2", fresh)
	}
	if _, ok := q.Find("F1"); ok {
		t.Fatal("old number must be retired")
	}
	snap := q.Snapshot()
	if len(snap.Slow) != 2 || snap.Slow[1].Number != "T2" {
		t.Fatalf("moved entry must join the tail: %+v", snap.Slow)
	}

	if _, err := q.ChangeChargeMode("F99", model.Fast); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("unknown number: got %v", err)
	}
}

func TestModifyEnergy(t *testing.T) {
	q := New(6, nil, nil)
	if _, err := q.AddVehicle(model.Fast, req("CAR-1", 10)); err != nil {
		t.Fatal(err)
	}
	if err := q.ModifyEnergy("F1", 25); err != nil {
		t.Fatalf("modify: %v", err)
	}
	e, ok := q.Find("F1")
	if !ok || e.Vehicle.EnergyKWh != 25 {
		t.Fatalf("energy not updated: %+v", e)
	}
	if err := q.ModifyEnergy("F1", 0); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("zero energy: got %v", err)
	}
	if err := q.ModifyEnergy("F9", 5); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("unknown number: got %v", err)
	}
}

func TestReinsertKeepsOrder(t *testing.T) {
	q := New(6, nil, nil)
	if _, err := q.AddVehicle(model.Fast, req("CAR-1", 10)); err != nil {
		t.Fatal(err)
	}
	if _, err := q.AddVehicle(model.Fast, req("CAR-3", 10)); err != nil {
		t.Fatal(err)
	}
	// F2 left for a pile earlier and comes back; it belongs between F1 and F3.
	back := model.QueueEntry{Number: "F2", Vehicle: req("CAR-2", 10)}
	// Retire the number the way allocation would have.
	q.fastCounter = 4
	if err := q.Reinsert(back); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	snap := q.Snapshot()
	want := []string{"F1", "F2", "F3"}
	for i, n := range want {
		if snap.Fast[i].Number != n {
			t.Fatalf("order: got %v at %d, want %s", snap.Fast[i].Number, i, n)
		}
	}
}

func TestReinsertBypassesCapacity(t *testing.T) {
	q := New(3, nil, nil)
	for _, id := range []string{"CAR-1", "CAR-2", "CAR-3"} {
		if _, err := q.AddVehicle(model.Slow, req(id, 7)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := q.AddVehicle(model.Fast, req("CAR-4", 10)); !errs.Is(err, errs.KindAdmission) {
		t.Fatalf("admission over capacity: got %v", err)
	}

	// A vehicle drained off a faulted pile is existing station state and
	// must come back even though every slot is taken.
	back := model.QueueEntry{Number: "F7", Vehicle: req("CAR-D", 10)}
	if err := q.Reinsert(back); err != nil {
		t.Fatalf("reinsert into full area: %v", err)
	}
	if q.Size() != 4 {
		t.Fatalf("size: got %d, want 4", q.Size())
	}
	if _, ok := q.Find("F7"); !ok {
		t.Fatal("reinserted entry not found")
	}
}

func TestSnapshotWaitEstimates(t *testing.T) {
	q := New(6, nil, nil)
	if _, err := q.AddVehicle(model.Fast, req("CAR-1", 30)); err != nil {
		t.Fatal(err)
	}
	if _, err := q.AddVehicle(model.Fast, req("CAR-2", 15)); err != nil {
		t.Fatal(err)
	}
	snap := q.Snapshot()
	if snap.Total != 2 || snap.Capacity != 6 {
		t.Fatalf("snapshot totals: %+v", snap)
	}
	// 30 kWh at 30 kW is 60 min; the second waits for both requests.
	if snap.Fast[0].EstWaitMin != 60 {
		t.Errorf("first estimate: got %v, want 60", snap.Fast[0].EstWaitMin)
	}
	if snap.Fast[1].EstWaitMin != 90 {
		t.Errorf("second estimate: got %v, want 90", snap.Fast[1].EstWaitMin)
	}
}
