// Package api exposes the station over HTTP. Handlers stay thin: decode the
// request, call the station, encode the uniform result envelope.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	corebilling "github.com/kilianp07/evstation/core/billing"
	"github.com/kilianp07/evstation/core/errs"
	"github.com/kilianp07/evstation/core/logger"
	"github.com/kilianp07/evstation/core/model"
	"github.com/kilianp07/evstation/core/station"
)

// envelope is the uniform response body: status 1 on success, 0 on failure.
type envelope struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
	Data   any    `json:"data,omitempty"`
}

// Handler routes the station API.
func Handler(st *station.Station, store corebilling.Store, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop{}
	}
	h := &handlers{st: st, store: store, log: log}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/vehicles", h.addVehicle)
	mux.HandleFunc("DELETE /api/vehicles/{number}", h.cancel)
	mux.HandleFunc("PUT /api/vehicles/{number}/amount", h.modifyAmount)
	mux.HandleFunc("PUT /api/vehicles/{number}/mode", h.changeMode)
	mux.HandleFunc("GET /api/queue", h.queueStatus)
	mux.HandleFunc("GET /api/piles", h.pileStatus)
	mux.HandleFunc("GET /api/piles/stats", h.pileStats)
	mux.HandleFunc("POST /api/piles/{id}/toggle", h.togglePile)
	mux.HandleFunc("POST /api/piles/{id}/fault", h.faultPile)
	mux.HandleFunc("POST /api/piles/{id}/repair", h.repairPile)
	mux.HandleFunc("GET /api/bills", h.listBills)
	mux.HandleFunc("POST /api/time/speed", h.timeSpeed)
	mux.HandleFunc("POST /api/time/set", h.timeSet)
	mux.HandleFunc("POST /api/time/reset", h.timeReset)
	mux.HandleFunc("GET /api/cars/{carId}", h.carInfo)

	return mux
}

type handlers struct {
	st    *station.Station
	store corebilling.Store
	log   logger.Logger
}

func (h *handlers) addVehicle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChargingMode   string  `json:"chargingMode"`
		CarID          string  `json:"carId"`
		UserID         string  `json:"userId"`
		Username       string  `json:"username"`
		ChargingAmount float64 `json:"chargingAmount"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	number, err := h.st.AddVehicle(body.ChargingMode, model.VehicleRequest{
		CarID:     body.CarID,
		UserID:    body.UserID,
		Username:  body.Username,
		EnergyKWh: body.ChargingAmount,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, map[string]string{"queueNumber": number})
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.st.Cancel(r.PathValue("number")); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, nil)
}

func (h *handlers) modifyAmount(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChargingAmount float64 `json:"chargingAmount"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.st.ModifyRequest(r.PathValue("number"), body.ChargingAmount); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, nil)
}

func (h *handlers) changeMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ChargingMode string `json:"chargingMode"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	number, err := h.st.ChangeChargeMode(r.PathValue("number"), body.ChargingMode)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, map[string]string{"queueNumber": number})
}

func (h *handlers) queueStatus(w http.ResponseWriter, _ *http.Request) {
	h.ok(w, h.st.QueueSnapshot())
}

func (h *handlers) pileStatus(w http.ResponseWriter, _ *http.Request) {
	h.ok(w, h.st.PileInfos())
}

func (h *handlers) pileStats(w http.ResponseWriter, _ *http.Request) {
	h.ok(w, h.st.Stats())
}

func (h *handlers) togglePile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.st.TogglePile(r.PathValue("id"), body.Action); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, nil)
}

func (h *handlers) faultPile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Strategy string `json:"strategy"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if body.Strategy == "" {
		body.Strategy = "priority"
	}
	if err := h.st.SetFault(r.PathValue("id"), body.Strategy); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, nil)
}

func (h *handlers) repairPile(w http.ResponseWriter, r *http.Request) {
	if err := h.st.Repair(r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, nil)
}

func (h *handlers) listBills(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, envelope{Msg: "bill store not configured"})
		return
	}
	q := corebilling.Query{
		PileID:    r.URL.Query().Get("pileId"),
		VehicleID: r.URL.Query().Get("vehicleId"),
	}
	if s := r.URL.Query().Get("start"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.Start = t
		}
	}
	if s := r.URL.Query().Get("end"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			q.End = t
		}
	}
	bills, err := h.store.Query(r.Context(), q)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, bills)
}

func (h *handlers) timeSpeed(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Multiplier float64 `json:"multiplier"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	if err := h.st.SetTimeSpeed(body.Multiplier); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, nil)
}

func (h *handlers) timeSet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Time string `json:"time"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	ts, err := time.Parse(time.RFC3339, body.Time)
	if err != nil {
		h.fail(w, errs.Validationf("invalid time %q: %v", body.Time, err))
		return
	}
	h.st.SetSimulatedTime(ts)
	h.ok(w, nil)
}

func (h *handlers) timeReset(w http.ResponseWriter, _ *http.Request) {
	h.st.ResetRealTime()
	h.ok(w, nil)
}

func (h *handlers) carInfo(w http.ResponseWriter, r *http.Request) {
	carID := r.PathValue("carId")
	kwh, ok := h.st.VehicleBattery(carID)
	if !ok {
		h.fail(w, errs.NotFoundf("car %s not found", carID))
		return
	}
	h.ok(w, map[string]any{"carId": carID, "batteryCapacity": kwh})
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeJSON(w, http.StatusBadRequest, envelope{Msg: "invalid request body"})
		return false
	}
	return true
}

func (h *handlers) ok(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, envelope{Status: 1, Msg: "ok", Data: data})
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindValidation:
		code = http.StatusBadRequest
	case errs.KindNotFound:
		code = http.StatusNotFound
	case errs.KindAdmission, errs.KindState:
		code = http.StatusConflict
	case errs.KindScheduling:
		code = http.StatusConflict
	}
	if code == http.StatusInternalServerError {
		h.log.Errorf("api: %v", err)
	}
	h.writeJSON(w, code, envelope{Msg: err.Error()})
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Errorf("api: encode response: %v", err)
	}
}
