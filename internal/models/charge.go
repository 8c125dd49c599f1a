package models

import "time"

// ChargingSession 充电会话
// 同一车辆同一时刻最多一个 EndedAt 为空的会话
type ChargingSession struct {
	ID          int64      `json:"id" db:"id"`
	VehicleID   int64      `json:"vehicle_id" db:"vehicle_id"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	Location    string     `json:"location" db:"location"`
	ChargerID   string     `json:"charger_id" db:"charger_id"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	EnergyKWh   *float64   `json:"energy_kwh,omitempty" db:"energy_kwh"`
	DurationMin *float64   `json:"duration_min,omitempty" db:"duration_min"`
	Cost        *float64   `json:"cost,omitempty" db:"cost"`
	StartTxID   *string    `json:"start_tx_id,omitempty" db:"start_tx_id"` // 开始充电的账本交易
	EndTxID     *string    `json:"end_tx_id,omitempty" db:"end_tx_id"`     // 结束充电的账本交易
}

// IsOpen 是否仍在充电
func (s *ChargingSession) IsOpen() bool {
	return s.EndedAt == nil
}

// ChargingAnalytics 充电统计
type ChargingAnalytics struct {
	VehicleID               int64            `json:"vehicle_id"`
	TotalSessions           int              `json:"total_sessions"`
	CompletedSessions       int              `json:"completed_sessions"`
	TotalEnergyKWh          float64          `json:"total_energy_kwh"`
	TotalCost               float64          `json:"total_cost"`
	AverageEnergyPerSession float64          `json:"average_energy_per_session"`
	AverageCostPerKWh       float64          `json:"average_cost_per_kwh"`
	LastSession             *ChargingSession `json:"last_session,omitempty"`
}
