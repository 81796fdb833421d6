package model

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// VehicleRequest identifies a vehicle asking for energy. The identity fields
// are immutable; EnergyKWh may be amended while the request is queued or
// charging.
type VehicleRequest struct {
	CarID     string  `json:"car_id"`
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	EnergyKWh float64 `json:"energy_kwh"`
}

// Validate checks that the request is well formed.
func (r VehicleRequest) Validate() error {
	if r.CarID == "" {
		return fmt.Errorf("car id is required")
	}
	if r.EnergyKWh <= 0 {
		return fmt.Errorf("requested energy must be positive")
	}
	return nil
}

// QueueEntry is one admitted vehicle holding a queue number. An entry lives in
// exactly one place at a time: the waiting area or a single pile's queue.
type QueueEntry struct {
	Number   string         `json:"queue_number"`
	Vehicle  VehicleRequest `json:"vehicle"`
	JoinedAt time.Time      `json:"joined_at"`
}

// NumberSuffix returns the numeric part of a queue number such as "F12".
// Numbers are minted by the waiting area, so a malformed suffix maps to 0.
func NumberSuffix(number string) int {
	if len(number) < 2 {
		return 0
	}
	n, err := strconv.Atoi(number[1:])
	if err != nil {
		return 0
	}
	return n
}

// Round2 rounds monetary and energy values to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
