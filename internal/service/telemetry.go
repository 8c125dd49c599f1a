package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

const (
	// analyticsWindow 电池统计使用的最近读数条数
	analyticsWindow = 50
	// ratedCycleLife 额定循环寿命
	ratedCycleLife = 1000
)

// BatteryReadingInput 电池读数参数
type BatteryReadingInput struct {
	VehicleID     int64
	StateOfCharge float64
	StateOfHealth float64
	Temperature   float64
	CycleCount    int
	Source        string
}

// AlertInput 告警参数
type AlertInput struct {
	VehicleID int64
	Type      string
	Severity  string
	Message   string
}

// TelemetryService 电池遥测、告警与主机厂数据记录
type TelemetryService struct {
	vehicles  VehicleStore
	telemetry TelemetryStore
	ledger    *Ledger
	logger    *zap.Logger

	now func() time.Time
}

// NewTelemetryService 创建遥测服务
func NewTelemetryService(vehicles VehicleStore, telemetry TelemetryStore, ledger *Ledger, logger *zap.Logger) *TelemetryService {
	return &TelemetryService{
		vehicles:  vehicles,
		telemetry: telemetry,
		ledger:    ledger,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *TelemetryService) requireVehicle(ctx context.Context, op string, vehicleID int64) error {
	_, err := s.vehicles.GetVehicle(ctx, vehicleID)
	if errors.Is(err, apperr.ErrNotFound) {
		return reject(op, apperr.NotFound("vehicle not found", "vehicleId", vehicleID))
	}
	if err != nil {
		return storageFailure(s.logger, op, err, "vehicleId", vehicleID)
	}
	return nil
}

func percentInRange(v float64) bool {
	return v >= 0 && v <= 100
}

// RecordBatteryReading 记录电池读数并写入 battery 账本条目
func (s *TelemetryService) RecordBatteryReading(ctx context.Context, in BatteryReadingInput) (*models.BatteryReading, error) {
	const op = "record_battery_reading"

	if !percentInRange(in.StateOfCharge) || !percentInRange(in.StateOfHealth) {
		return nil, reject(op, apperr.InvalidArgument("state of charge and state of health must be within [0, 100]",
			"vehicleId", in.VehicleID, "stateOfCharge", in.StateOfCharge, "stateOfHealth", in.StateOfHealth))
	}
	if math.IsNaN(in.Temperature) || math.IsInf(in.Temperature, 0) {
		return nil, reject(op, apperr.InvalidArgument("temperature must be a finite number", "vehicleId", in.VehicleID))
	}
	if in.CycleCount < 0 {
		return nil, reject(op, apperr.InvalidArgument("cycle count must be non-negative", "vehicleId", in.VehicleID))
	}
	source := strings.ToLower(strings.TrimSpace(in.Source))
	if source == "" {
		source = models.SourceIoT
	}
	if source != models.SourceIoT && source != models.SourceManual {
		return nil, reject(op, apperr.InvalidArgument("source must be iot or manual", "source", in.Source))
	}
	if err := s.requireVehicle(ctx, op, in.VehicleID); err != nil {
		return nil, err
	}

	reading := &models.BatteryReading{
		VehicleID:     in.VehicleID,
		StateOfCharge: in.StateOfCharge,
		StateOfHealth: in.StateOfHealth,
		Temperature:   in.Temperature,
		CycleCount:    in.CycleCount,
		Source:        source,
		RecordedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.telemetry.CreateReading(ctx, reading); err != nil {
		return nil, storageFailure(s.logger, op, err, "vehicleId", in.VehicleID)
	}

	entry, err := s.ledger.Append(ctx, models.TxBattery, models.Payload{
		"vehicleId":     reading.VehicleID,
		"readingId":     reading.ID,
		"stateOfCharge": reading.StateOfCharge,
		"stateOfHealth": reading.StateOfHealth,
		"temperature":   reading.Temperature,
		"cycleCount":    reading.CycleCount,
		"source":        reading.Source,
		"recordedAt":    reading.RecordedAt,
	})
	if err != nil {
		return nil, ledgerFailure(s.logger, op, err, "vehicleId", in.VehicleID, "readingId", reading.ID)
	}

	if err := s.telemetry.SetReadingTx(ctx, reading.ID, entry.TxID); err != nil {
		return nil, storageFailure(s.logger, op, err, "readingId", reading.ID, "txId", entry.TxID)
	}
	reading.TxID = &entry.TxID

	s.logger.Info("Battery reading recorded",
		zap.Int64("vehicle_id", reading.VehicleID),
		zap.Int64("reading_id", reading.ID),
		zap.String("tx_id", entry.TxID),
	)
	return reading, nil
}

// RecordAlert 记录告警并写入 alert 账本条目
func (s *TelemetryService) RecordAlert(ctx context.Context, in AlertInput) (*models.Alert, error) {
	const op = "record_alert"

	alert := &models.Alert{
		VehicleID: in.VehicleID,
		Type:      strings.TrimSpace(in.Type),
		Severity:  strings.ToLower(strings.TrimSpace(in.Severity)),
		Message:   strings.TrimSpace(in.Message),
	}
	if alert.Type == "" || alert.Message == "" {
		return nil, reject(op, apperr.InvalidArgument("alert type and message are required", "vehicleId", in.VehicleID))
	}
	switch alert.Severity {
	case "":
		alert.Severity = models.SeverityLow
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh:
	default:
		return nil, reject(op, apperr.InvalidArgument("severity must be low, medium or high", "severity", in.Severity))
	}
	if err := s.requireVehicle(ctx, op, in.VehicleID); err != nil {
		return nil, err
	}

	alert.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	if err := s.telemetry.CreateAlert(ctx, alert); err != nil {
		return nil, storageFailure(s.logger, op, err, "vehicleId", in.VehicleID)
	}

	entry, err := s.ledger.Append(ctx, models.TxAlert, models.Payload{
		"vehicleId": alert.VehicleID,
		"alertId":   alert.ID,
		"type":      alert.Type,
		"severity":  alert.Severity,
		"message":   alert.Message,
	})
	if err != nil {
		return nil, ledgerFailure(s.logger, op, err, "vehicleId", in.VehicleID, "alertId", alert.ID)
	}

	if err := s.telemetry.SetAlertTx(ctx, alert.ID, entry.TxID); err != nil {
		return nil, storageFailure(s.logger, op, err, "alertId", alert.ID, "txId", entry.TxID)
	}
	alert.TxID = &entry.TxID

	s.logger.Info("Alert recorded",
		zap.Int64("vehicle_id", alert.VehicleID),
		zap.Int64("alert_id", alert.ID),
		zap.String("severity", alert.Severity),
		zap.String("tx_id", entry.TxID),
	)
	return alert, nil
}

// RecordOEMData 记录主机厂推送的数据并写入 oem 账本条目
func (s *TelemetryService) RecordOEMData(ctx context.Context, vehicleID int64, provider string, data models.Payload) (*models.OEMRecord, error) {
	const op = "record_oem_data"

	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, reject(op, apperr.InvalidArgument("provider is required", "vehicleId", vehicleID))
	}
	normalized, err := models.NormalizePayload(data)
	if err != nil {
		return nil, reject(op, apperr.InvalidArgument("oem data is not serializable", "vehicleId", vehicleID))
	}
	if err := s.requireVehicle(ctx, op, vehicleID); err != nil {
		return nil, err
	}

	record := &models.OEMRecord{
		VehicleID: vehicleID,
		Provider:  provider,
		Data:      normalized,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.telemetry.CreateOEMRecord(ctx, record); err != nil {
		return nil, storageFailure(s.logger, op, err, "vehicleId", vehicleID)
	}

	entry, err := s.ledger.Append(ctx, models.TxOEM, models.Payload{
		"vehicleId": vehicleID,
		"recordId":  record.ID,
		"provider":  provider,
		"data":      normalized,
	})
	if err != nil {
		return nil, ledgerFailure(s.logger, op, err, "vehicleId", vehicleID, "recordId", record.ID)
	}

	if err := s.telemetry.SetOEMRecordTx(ctx, record.ID, entry.TxID); err != nil {
		return nil, storageFailure(s.logger, op, err, "recordId", record.ID, "txId", entry.TxID)
	}
	record.TxID = &entry.TxID

	s.logger.Info("OEM data recorded",
		zap.Int64("vehicle_id", vehicleID),
		zap.String("provider", provider),
		zap.String("tx_id", entry.TxID),
	)
	return record, nil
}

// BatteryHistory 电池读数，最新在前；limit <= 0 表示全部
func (s *TelemetryService) BatteryHistory(ctx context.Context, vehicleID int64, limit int) ([]*models.BatteryReading, error) {
	if err := s.requireVehicle(ctx, "battery_history", vehicleID); err != nil {
		return nil, err
	}
	readings, err := s.telemetry.ListReadings(ctx, vehicleID, limit)
	if err != nil {
		return nil, storageFailure(s.logger, "battery_history", err, "vehicleId", vehicleID)
	}
	return readings, nil
}

// LatestReading 最新电池读数
func (s *TelemetryService) LatestReading(ctx context.Context, vehicleID int64) (*models.BatteryReading, error) {
	readings, err := s.BatteryHistory(ctx, vehicleID, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, apperr.NotFound("no battery readings", "vehicleId", vehicleID)
	}
	return readings[0], nil
}

// BatteryAnalytics 基于最近读数的电池健康统计
func (s *TelemetryService) BatteryAnalytics(ctx context.Context, vehicleID int64) (*models.BatteryAnalytics, error) {
	readings, err := s.BatteryHistory(ctx, vehicleID, analyticsWindow)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, apperr.NotFound("no battery readings", "vehicleId", vehicleID)
	}

	var sumSoH, sumTemp float64
	for _, r := range readings {
		sumSoH += r.StateOfHealth
		sumTemp += r.Temperature
	}
	n := float64(len(readings))
	latest := readings[0]

	return &models.BatteryAnalytics{
		VehicleID:                vehicleID,
		Latest:                   latest,
		AverageStateOfHealth:     sumSoH / n,
		AverageTemperature:       sumTemp / n,
		PredictedCyclesRemaining: predictCyclesRemaining(latest.StateOfHealth, latest.CycleCount),
		RiskLevel:                riskLevel(latest.StateOfHealth),
	}, nil
}

func predictCyclesRemaining(soh float64, cycles int) int {
	remaining := math.Round(soh/100*ratedCycleLife - float64(cycles))
	return int(math.Max(0, remaining))
}

func riskLevel(soh float64) string {
	switch {
	case soh < 60:
		return models.SeverityHigh
	case soh < 75:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Alerts 车辆告警，最新在前
func (s *TelemetryService) Alerts(ctx context.Context, vehicleID int64) ([]*models.Alert, error) {
	if err := s.requireVehicle(ctx, "list_alerts", vehicleID); err != nil {
		return nil, err
	}
	alerts, err := s.telemetry.ListAlerts(ctx, vehicleID)
	if err != nil {
		return nil, storageFailure(s.logger, "list_alerts", err, "vehicleId", vehicleID)
	}
	return alerts, nil
}

// OEMRecords 主机厂数据，最新在前
func (s *TelemetryService) OEMRecords(ctx context.Context, vehicleID int64) ([]*models.OEMRecord, error) {
	if err := s.requireVehicle(ctx, "list_oem_records", vehicleID); err != nil {
		return nil, err
	}
	records, err := s.telemetry.ListOEMRecords(ctx, vehicleID)
	if err != nil {
		return nil, storageFailure(s.logger, "list_oem_records", err, "vehicleId", vehicleID)
	}
	return records, nil
}
