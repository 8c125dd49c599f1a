package repository

import (
	"context"
	"fmt"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// TelemetryRepository 电池读数、告警与主机厂数据仓库
type TelemetryRepository struct {
	db *DB
}

// NewTelemetryRepository 创建遥测仓库
func NewTelemetryRepository(db *DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// setTx 回填关联的账本交易 ID
func (r *TelemetryRepository) setTx(ctx context.Context, table string, id int64, txID string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE `+table+` SET tx_id = $1 WHERE id = $2`, txID, id)
	if err != nil {
		return fmt.Errorf("set %s tx: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// CreateReading 保存电池读数
func (r *TelemetryRepository) CreateReading(ctx context.Context, br *models.BatteryReading) error {
	query := `
		INSERT INTO battery_readings (vehicle_id, state_of_charge, state_of_health, temperature, cycle_count, source, recorded_at, tx_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		br.VehicleID,
		br.StateOfCharge,
		br.StateOfHealth,
		br.Temperature,
		br.CycleCount,
		br.Source,
		br.RecordedAt,
		br.TxID,
	).Scan(&br.ID)
	if err != nil {
		return fmt.Errorf("insert battery reading: %w", err)
	}
	return nil
}

// SetReadingTx 关联账本交易
func (r *TelemetryRepository) SetReadingTx(ctx context.Context, id int64, txID string) error {
	return r.setTx(ctx, "battery_readings", id, txID)
}

// ListReadings 车辆电池读数，最新在前；limit <= 0 表示全部
func (r *TelemetryRepository) ListReadings(ctx context.Context, vehicleID int64, limit int) ([]*models.BatteryReading, error) {
	query := `
		SELECT id, vehicle_id, state_of_charge, state_of_health, temperature, cycle_count, source, recorded_at, tx_id
		FROM battery_readings WHERE vehicle_id = $1
		ORDER BY recorded_at DESC, id DESC
	`
	args := []any{vehicleID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list battery readings: %w", err)
	}
	defer rows.Close()

	readings := []*models.BatteryReading{}
	for rows.Next() {
		br := &models.BatteryReading{}
		err := rows.Scan(
			&br.ID,
			&br.VehicleID,
			&br.StateOfCharge,
			&br.StateOfHealth,
			&br.Temperature,
			&br.CycleCount,
			&br.Source,
			&br.RecordedAt,
			&br.TxID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan battery reading: %w", err)
		}
		readings = append(readings, br)
	}
	return readings, rows.Err()
}

// CreateAlert 保存告警
func (r *TelemetryRepository) CreateAlert(ctx context.Context, a *models.Alert) error {
	query := `
		INSERT INTO alerts (vehicle_id, type, severity, message, created_at, tx_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		a.VehicleID,
		a.Type,
		a.Severity,
		a.Message,
		a.CreatedAt,
		a.TxID,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// SetAlertTx 关联账本交易
func (r *TelemetryRepository) SetAlertTx(ctx context.Context, id int64, txID string) error {
	return r.setTx(ctx, "alerts", id, txID)
}

// ListAlerts 车辆告警，最新在前
func (r *TelemetryRepository) ListAlerts(ctx context.Context, vehicleID int64) ([]*models.Alert, error) {
	query := `
		SELECT id, vehicle_id, type, severity, message, created_at, tx_id
		FROM alerts WHERE vehicle_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		a := &models.Alert{}
		if err := rows.Scan(&a.ID, &a.VehicleID, &a.Type, &a.Severity, &a.Message, &a.CreatedAt, &a.TxID); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CreateOEMRecord 保存主机厂数据
func (r *TelemetryRepository) CreateOEMRecord(ctx context.Context, rec *models.OEMRecord) error {
	query := `
		INSERT INTO oem_records (vehicle_id, provider, data, created_at, tx_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		rec.VehicleID,
		rec.Provider,
		rec.Data,
		rec.CreatedAt,
		rec.TxID,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert oem record: %w", err)
	}
	return nil
}

// SetOEMRecordTx 关联账本交易
func (r *TelemetryRepository) SetOEMRecordTx(ctx context.Context, id int64, txID string) error {
	return r.setTx(ctx, "oem_records", id, txID)
}

// ListOEMRecords 车辆主机厂数据，最新在前
func (r *TelemetryRepository) ListOEMRecords(ctx context.Context, vehicleID int64) ([]*models.OEMRecord, error) {
	query := `
		SELECT id, vehicle_id, provider, data, created_at, tx_id
		FROM oem_records WHERE vehicle_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list oem records: %w", err)
	}
	defer rows.Close()

	records := []*models.OEMRecord{}
	for rows.Next() {
		rec := &models.OEMRecord{}
		if err := rows.Scan(&rec.ID, &rec.VehicleID, &rec.Provider, &rec.Data, &rec.CreatedAt, &rec.TxID); err != nil {
			return nil, fmt.Errorf("scan oem record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
