package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	corebilling "github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/clock"
	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/core/station"
)

func testHandler(t *testing.T) (http.Handler, *station.Station) {
	t.Helper()
	clk := clock.NewVirtual()
	clk.SetTime(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	store := corebilling.NewMemoryStore()
	st, err := station.New(station.Config{
		Piles: []station.PileSpec{
			{ID: "A", Category: model.Fast, PowerKW: 30},
			{ID: "D", Category: model.Slow, PowerKW: 7},
		},
		WaitingCapacity: 6,
		TickInterval:    time.Hour,
	}, station.Deps{
		Clock: clk,
		Sink:  corebilling.StoreSink{Store: store},
	})
	if err != nil {
		t.Fatalf("station: %v", err)
	}
	return Handler(st, store, nil), st
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("{}")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode envelope: %v (%s)", method, path, err, w.Body.String())
	}
	return w, env
}

func TestAddVehicleEnvelope(t *testing.T) {
	h, _ := testHandler(t)
	w, env := doJSON(t, h, http.MethodPost, "/api/vehicles",
		`{"chargingMode":"F","carId":"CAR-1","userId":"u1","username":"alice","chargingAmount":30}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", w.Code, w.Body.String())
	}
	if env.Status != 1 {
		t.Fatalf("envelope status: got %d, want 1", env.Status)
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["queueNumber"] != "F1" {
		t.Fatalf("data: %v", env.Data)
	}
}

func TestAddVehicleValidation(t *testing.T) {
	h, _ := testHandler(t)
	w, env := doJSON(t, h, http.MethodPost, "/api/vehicles",
		`{"chargingMode":"F","carId":"","chargingAmount":30}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", w.Code)
	}
	if env.Status != 0 || env.Msg == "" {
		t.Fatalf("envelope: %+v", env)
	}

	w, _ = doJSON(t, h, http.MethodPost, "/api/vehicles", `{bad json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: got %d", w.Code)
	}
}

func TestCancelNotFound(t *testing.T) {
	h, _ := testHandler(t)
	w, _ := doJSON(t, h, http.MethodDelete, "/api/vehicles/F99", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", w.Code)
	}
}

func TestWaitingAreaFullConflict(t *testing.T) {
	h, _ := testHandler(t)
	for i := 0; i < 6; i++ {
		body := `{"chargingMode":"T","carId":"CAR-` + string(rune('A'+i)) + `","chargingAmount":7}`
		if w, _ := doJSON(t, h, http.MethodPost, "/api/vehicles", body); w.Code != http.StatusOK {
			t.Fatalf("admit %d: %d", i, w.Code)
		}
	}
	w, _ := doJSON(t, h, http.MethodPost, "/api/vehicles",
		`{"chargingMode":"T","carId":"CAR-X","chargingAmount":7}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("seventh vehicle: got %d, want 409", w.Code)
	}
}

func TestQueueAndPileReads(t *testing.T) {
	h, st := testHandler(t)
	if _, err := st.AddVehicle("F", model.VehicleRequest{CarID: "CAR-1", EnergyKWh: 30}); err != nil {
		t.Fatal(err)
	}
	w, env := doJSON(t, h, http.MethodGet, "/api/queue", "")
	if w.Code != http.StatusOK || env.Status != 1 {
		t.Fatalf("queue read: %d %+v", w.Code, env)
	}
	w, env = doJSON(t, h, http.MethodGet, "/api/piles", "")
	if w.Code != http.StatusOK || env.Status != 1 {
		t.Fatalf("pile read: %d %+v", w.Code, env)
	}
	w, env = doJSON(t, h, http.MethodGet, "/api/piles/stats", "")
	if w.Code != http.StatusOK || env.Status != 1 {
		t.Fatalf("stats read: %d %+v", w.Code, env)
	}
}

func TestPileOperations(t *testing.T) {
	h, _ := testHandler(t)
	if w, _ := doJSON(t, h, http.MethodPost, "/api/piles/A/toggle", `{"action":"stop"}`); w.Code != http.StatusOK {
		t.Fatalf("stop: %d", w.Code)
	}
	if w, _ := doJSON(t, h, http.MethodPost, "/api/piles/A/toggle", `{"action":"start"}`); w.Code != http.StatusOK {
		t.Fatalf("start: %d", w.Code)
	}
	if w, _ := doJSON(t, h, http.MethodPost, "/api/piles/A/fault", `{"strategy":"priority"}`); w.Code != http.StatusOK {
		t.Fatalf("fault: %d", w.Code)
	}
	if w, _ := doJSON(t, h, http.MethodPost, "/api/piles/A/repair", ""); w.Code != http.StatusOK {
		t.Fatalf("repair: %d", w.Code)
	}
	if w, _ := doJSON(t, h, http.MethodPost, "/api/piles/Z/repair", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown pile: want 404")
	}
}

func TestTimeControls(t *testing.T) {
	h, st := testHandler(t)
	if w, _ := doJSON(t, h, http.MethodPost, "/api/time/speed", `{"multiplier":60}`); w.Code != http.StatusOK {
		t.Fatalf("speed: %d", w.Code)
	}
	if w, _ := doJSON(t, h, http.MethodPost, "/api/time/speed", `{"multiplier":0}`); w.Code != http.StatusBadRequest {
		t.Fatalf("zero speed accepted")
	}
	if w, _ := doJSON(t, h, http.MethodPost, "/api/time/set", `{"time":"2026-03-02T23:30:00Z"}`); w.Code != http.StatusOK {
		t.Fatalf("set time failed")
	}
	if got := st.Clock().Now().Hour(); got != 23 {
		t.Fatalf("clock hour: got %d, want 23", got)
	}
	if w, _ := doJSON(t, h, http.MethodPost, "/api/time/set", `{"time":"yesterday"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad time accepted")
	}
	if w, _ := doJSON(t, h, http.MethodPost, "/api/time/reset", ""); w.Code != http.StatusOK {
		t.Fatalf("reset failed")
	}
}

func TestListBills(t *testing.T) {
	h, _ := testHandler(t)
	w, env := doJSON(t, h, http.MethodGet, "/api/bills?pileId=A", "")
	if w.Code != http.StatusOK || env.Status != 1 {
		t.Fatalf("bills: %d %+v", w.Code, env)
	}
}
