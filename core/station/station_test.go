package station

import (
	"context"
	"strconv"
	"testing"
	"time"

	corebilling "github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/clock"
	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/model"
)

func testConfig() Config {
	return Config{
		Piles: []PileSpec{
			{ID: "A", Category: model.Fast, PowerKW: 30},
			{ID: "B", Category: model.Fast, PowerKW: 30},
			{ID: "D", Category: model.Slow, PowerKW: 7},
		},
		WaitingCapacity: 6,
		TickInterval:    time.Hour,
	}
}

func newTestStation(t *testing.T) (*Station, *clock.Virtual, *corebilling.MemoryStore) {
	t.Helper()
	clk := clock.NewVirtual()
	clk.SetTime(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	store := corebilling.NewMemoryStore()
	st, err := New(testConfig(), Deps{
		Clock: clk,
		Sink:  corebilling.StoreSink{Store: store},
	})
	if err != nil {
		t.Fatalf("new station: %v", err)
	}
	return st, clk, store
}

func TestNewRequiresPiles(t *testing.T) {
	_, err := New(Config{}, Deps{})
	if !errs.Is(err, errs.KindValidation) {
		t.Fatalf("zero piles: got %v, want validation error", err)
	}
}

func TestNewRejectsDuplicatePiles(t *testing.T) {
	cfg := testConfig()
	cfg.Piles = append(cfg.Piles, PileSpec{ID: "A", Category: model.Fast, PowerKW: 30})
	if _, err := New(cfg, Deps{}); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("duplicate pile: got %v", err)
	}
}

func TestAddVehicleAndAllocate(t *testing.T) {
	st, _, _ := newTestStation(t)
	number, err := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-1", UserID: "u1", Username: "alice", EnergyKWh: 30})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if number != "F1" {
		t.Fatalf("queue number: got %s, want F1", number)
	}
	if _, err := st.AddVehicle("X", model.VehicleRequest{CarID: "CAR-2", EnergyKWh: 5}); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("bad category: got %v", err)
	}

	st.Tick()
	infos := st.PileInfos()
	if infos[0].Connected != "CAR-1" {
		t.Fatalf("expected CAR-1 charging on pile A, got %+v", infos[0])
	}
	if st.QueueSnapshot().Total != 0 {
		t.Fatal("waiting area should be empty after allocation")
	}
}

func TestAddVehicleRejectsCarChargingOnPile(t *testing.T) {
	st, _, _ := newTestStation(t)
	if _, err := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-1", EnergyKWh: 30}); err != nil {
		t.Fatal(err)
	}
	st.Tick()
	if got := st.PileInfos()[0].Connected; got != "CAR-1" {
		t.Fatalf("expected CAR-1 on pile A, got %s", got)
	}

	// The same identity must not re-enter the waiting area while it is on
	// a pile, even right after the allocation that moved it there.
	if _, err := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-1", EnergyKWh: 10}); !errs.Is(err, errs.KindAdmission) {
		t.Fatalf("readmitted charging vehicle: got %v, want admission error", err)
	}
	if _, err := st.AddVehicle("T", model.VehicleRequest{CarID: "CAR-1", EnergyKWh: 5}); !errs.Is(err, errs.KindAdmission) {
		t.Fatalf("readmitted via other category: got %v, want admission error", err)
	}
}

func TestFaultKeepsDrainedVehicleWhenWaitingFull(t *testing.T) {
	clk := clock.NewVirtual()
	clk.SetTime(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	st, err := New(Config{
		Piles: []PileSpec{
			{ID: "A", Category: model.Fast, PowerKW: 30},
			{ID: "D", Category: model.Slow, PowerKW: 7},
		},
		WaitingCapacity: 6,
		TickInterval:    time.Hour,
	}, Deps{Clock: clk})
	if err != nil {
		t.Fatal(err)
	}

	// CAR-0 charges on the only fast pile with CAR-Q queued behind it.
	if _, err := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-0", EnergyKWh: 30}); err != nil {
		t.Fatal(err)
	}
	st.Tick()
	nq, err := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-Q", EnergyKWh: 30})
	if err != nil {
		t.Fatal(err)
	}
	st.Tick()

	// Fill every waiting slot so the fault fallback has nowhere obvious
	// to put CAR-Q.
	for i := 0; i < 6; i++ {
		if _, err := st.AddVehicle("T", model.VehicleRequest{CarID: "CAR-W" + strconv.Itoa(i), EnergyKWh: 7}); err != nil {
			t.Fatalf("fill waiting %d: %v", i, err)
		}
	}

	if err := st.SetFault("A", "priority"); !errs.Is(err, errs.KindScheduling) {
		t.Fatalf("fault with no sibling: got %v, want scheduling error", err)
	}

	// CAR-Q has no healthy fast pile, so it must be back in the waiting
	// area past the admission capacity rather than gone.
	snap := st.QueueSnapshot()
	if snap.Total != 7 {
		t.Fatalf("waiting total: got %d, want 7", snap.Total)
	}
	found := false
	for _, e := range snap.Fast {
		if e.Number == nq {
			found = true
		}
	}
	if !found {
		t.Fatalf("drained vehicle %s missing from waiting area: %+v", nq, snap.Fast)
	}
}

func TestCancelEverywhere(t *testing.T) {
	st, clk, store := newTestStation(t)

	// Waiting-area cancel.
	n1, _ := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-1", EnergyKWh: 30})
	if err := st.Cancel(n1); err != nil {
		t.Fatalf("cancel waiting: %v", err)
	}

	// Charging cancel bills the partial session.
	n2, _ := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-2", EnergyKWh: 30})
	st.Tick()
	clk.SetTime(clk.Now().Add(30 * time.Minute))
	if err := st.Cancel(n2); err != nil {
		t.Fatalf("cancel charging: %v", err)
	}
	bills, err := store.Query(context.Background(), corebilling.Query{VehicleID: "CAR-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(bills) != 1 || bills[0].EnergyKWh != 15 {
		t.Fatalf("cancel bill: %+v", bills)
	}

	if err := st.Cancel("F99"); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("cancel unknown: got %v", err)
	}
}

func TestModifyRequestRouting(t *testing.T) {
	st, _, _ := newTestStation(t)

	// Waiting entry.
	n1, _ := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-1", EnergyKWh: 30})
	if err := st.ModifyRequest(n1, 20); err != nil {
		t.Fatalf("modify waiting: %v", err)
	}

	// Charging entry.
	st.Tick()
	if err := st.ModifyRequest(n1, 40); err != nil {
		t.Fatalf("modify charging: %v", err)
	}

	if err := st.ModifyRequest("F99", 10); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("modify unknown: got %v", err)
	}
	if err := st.ModifyRequest(n1, -5); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("modify negative: got %v", err)
	}
}

func TestChangeChargeModeOnlyWhileWaiting(t *testing.T) {
	st, _, _ := newTestStation(t)
	n1, _ := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-1", EnergyKWh: 30})
	fresh, err := st.ChangeChargeMode(n1, "T")
	if err != nil {
		t.Fatalf("change mode: %v", err)
	}
	if fresh != "T1" {
		t.Fatalf("fresh number: got %s, want T1", fresh)
	}

	st.Tick() // now charging on pile D
	if _, err := st.ChangeChargeMode(fresh, "F"); !errs.Is(err, errs.KindState) {
		t.Fatalf("mode change on pile: got %v, want state error", err)
	}
}

func TestTogglePile(t *testing.T) {
	st, _, _ := newTestStation(t)
	if err := st.TogglePile("A", "stop"); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := st.TogglePile("A", "start"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := st.TogglePile("A", "reboot"); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("unknown action: got %v", err)
	}
	if err := st.TogglePile("Z", "stop"); !errs.Is(err, errs.KindNotFound) {
		t.Fatalf("unknown pile: got %v", err)
	}
}

func TestFaultAndStats(t *testing.T) {
	st, clk, _ := newTestStation(t)
	if _, err := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-1", EnergyKWh: 30}); err != nil {
		t.Fatal(err)
	}
	st.Tick()
	clk.SetTime(clk.Now().Add(time.Hour))
	st.Tick() // auto-completes

	if err := st.SetFault("A", "bogus"); !errs.Is(err, errs.KindValidation) {
		t.Fatalf("bad strategy: got %v", err)
	}
	if err := st.SetFault("A", "priority"); err != nil {
		t.Fatalf("fault: %v", err)
	}
	if err := st.Repair("A"); err != nil {
		t.Fatalf("repair: %v", err)
	}

	stats := st.Stats()
	if stats.TotalSessions != 1 {
		t.Fatalf("sessions: got %d, want 1", stats.TotalSessions)
	}
	if stats.TotalEnergyKWh != 30 {
		t.Fatalf("energy: got %v, want 30", stats.TotalEnergyKWh)
	}
	// 30 kWh at peak 1.0 plus 10% service fee.
	if stats.TotalEarnings != 33 {
		t.Fatalf("earnings: got %v, want 33", stats.TotalEarnings)
	}
}

func TestVehicleBattery(t *testing.T) {
	clk := clock.NewVirtual()
	st, err := New(testConfig(), Deps{
		Clock:     clk,
		Directory: staticDir{"CAR-1": 60},
	})
	if err != nil {
		t.Fatal(err)
	}
	if kwh, ok := st.VehicleBattery("CAR-1"); !ok || kwh != 60 {
		t.Fatalf("battery: got %v, %v", kwh, ok)
	}
	if _, ok := st.VehicleBattery("CAR-2"); ok {
		t.Fatal("unknown car reported a battery")
	}
}

type staticDir map[string]float64

func (d staticDir) BatteryCapacityKWh(carID string) (float64, bool) {
	kwh, ok := d[carID]
	return kwh, ok
}
