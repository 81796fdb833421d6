package model

import "time"

// Bill is the finalized record of one charging session. Monetary and energy
// fields are rounded to two decimal places and TotalCost is always the sum of
// the charging and service costs.
type Bill struct {
	ID           string    `json:"billId"`
	CreateTime   time.Time `json:"createTime"`
	PileID       string    `json:"pileId"`
	VehicleID    string    `json:"vehicleId"`
	Username     string    `json:"username"`
	EnergyKWh    float64   `json:"chargingAmount"`
	DurationMin  float64   `json:"chargingDuration"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	ChargingCost float64   `json:"chargingCost"`
	ServiceCost  float64   `json:"serviceCost"`
	TotalCost    float64   `json:"totalCost"`
}
