package models

import "time"

// 电池数据来源
const (
	SourceIoT    = "iot"
	SourceManual = "manual"
)

// BatteryReading 电池遥测记录
type BatteryReading struct {
	ID            int64     `json:"id" db:"id"`
	VehicleID     int64     `json:"vehicle_id" db:"vehicle_id"`
	StateOfCharge float64   `json:"state_of_charge" db:"state_of_charge"` // %
	StateOfHealth float64   `json:"state_of_health" db:"state_of_health"` // %
	Temperature   float64   `json:"temperature" db:"temperature"`         // ℃
	CycleCount    int       `json:"cycle_count" db:"cycle_count"`
	Source        string    `json:"source" db:"source"`
	RecordedAt    time.Time `json:"recorded_at" db:"recorded_at"`
	TxID          *string   `json:"tx_id,omitempty" db:"tx_id"`
}

// BatteryAnalytics 电池健康统计
type BatteryAnalytics struct {
	VehicleID                int64           `json:"vehicle_id"`
	Latest                   *BatteryReading `json:"latest"`
	AverageStateOfHealth     float64         `json:"average_state_of_health"`
	AverageTemperature       float64         `json:"average_temperature"`
	PredictedCyclesRemaining int             `json:"predicted_cycles_remaining"`
	RiskLevel                string          `json:"risk_level"` // low, medium, high
}

// 告警级别
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert 车辆告警
type Alert struct {
	ID        int64     `json:"id" db:"id"`
	VehicleID int64     `json:"vehicle_id" db:"vehicle_id"`
	Type      string    `json:"type" db:"type"`
	Severity  string    `json:"severity" db:"severity"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	TxID      *string   `json:"tx_id,omitempty" db:"tx_id"`
}

// OEMRecord 主机厂推送的数据
type OEMRecord struct {
	ID        int64     `json:"id" db:"id"`
	VehicleID int64     `json:"vehicle_id" db:"vehicle_id"`
	Provider  string    `json:"provider" db:"provider"`
	Data      Payload   `json:"data" db:"data"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	TxID      *string   `json:"tx_id,omitempty" db:"tx_id"`
}
