package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// ChargeRepository 充电会话数据仓库
type ChargeRepository struct {
	db *DB
}

// NewChargeRepository 创建充电仓库
func NewChargeRepository(db *DB) *ChargeRepository {
	return &ChargeRepository{db: db}
}

const sessionColumns = `id, vehicle_id, started_at, location, charger_id, ended_at, energy_kwh, duration_min, cost, start_tx_id, end_tx_id`

func scanSession(row interface{ Scan(...any) error }) (*models.ChargingSession, error) {
	cs := &models.ChargingSession{}
	err := row.Scan(
		&cs.ID,
		&cs.VehicleID,
		&cs.StartedAt,
		&cs.Location,
		&cs.ChargerID,
		&cs.EndedAt,
		&cs.EnergyKWh,
		&cs.DurationMin,
		&cs.Cost,
		&cs.StartTxID,
		&cs.EndTxID,
	)
	return cs, err
}

// OpenSession 创建进行中会话
// 依赖部分唯一索引 uq_charging_sessions_open，并发开始时只有一个插入成功
func (r *ChargeRepository) OpenSession(ctx context.Context, cs *models.ChargingSession) error {
	query := `
		INSERT INTO charging_sessions (vehicle_id, started_at, location, charger_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vehicle_id) WHERE ended_at IS NULL DO NOTHING
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		cs.VehicleID,
		cs.StartedAt,
		cs.Location,
		cs.ChargerID,
	).Scan(&cs.ID)
	if isNoRows(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert charging session: %w", err)
	}
	cs.EndedAt = nil
	return nil
}

// CloseSession 关闭进行中会话，并发结束时只有一个能命中
func (r *ChargeRepository) CloseSession(ctx context.Context, vehicleID int64, endedAt time.Time) (*models.ChargingSession, error) {
	query := `
		UPDATE charging_sessions SET ended_at = $2
		WHERE vehicle_id = $1 AND ended_at IS NULL
		RETURNING ` + sessionColumns
	cs, err := scanSession(r.db.Pool.QueryRow(ctx, query, vehicleID, endedAt))
	if isNoRows(err) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("close charging session: %w", err)
	}
	return cs, nil
}

// CompleteSession 写入结束派生字段
func (r *ChargeRepository) CompleteSession(ctx context.Context, cs *models.ChargingSession) error {
	query := `
		UPDATE charging_sessions SET
			energy_kwh = $1,
			duration_min = $2,
			cost = $3,
			end_tx_id = $4
		WHERE id = $5
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		cs.EnergyKWh,
		cs.DurationMin,
		cs.Cost,
		cs.EndTxID,
		cs.ID,
	)
	if err != nil {
		return fmt.Errorf("complete charging session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetSessionStartTx 关联开始充电的账本交易
func (r *ChargeRepository) SetSessionStartTx(ctx context.Context, sessionID int64, txID string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE charging_sessions SET start_tx_id = $1 WHERE id = $2`, txID, sessionID)
	if err != nil {
		return fmt.Errorf("set session start tx: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// GetActiveSession 获取进行中的会话
func (r *ChargeRepository) GetActiveSession(ctx context.Context, vehicleID int64) (*models.ChargingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM charging_sessions WHERE vehicle_id = $1 AND ended_at IS NULL`
	cs, err := scanSession(r.db.Pool.QueryRow(ctx, query, vehicleID))
	if isNoRows(err) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return cs, nil
}

// ListSessions 车辆充电记录，按开始时间倒序
func (r *ChargeRepository) ListSessions(ctx context.Context, vehicleID int64) ([]*models.ChargingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM charging_sessions WHERE vehicle_id = $1 ORDER BY started_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list charging sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.ChargingSession{}
	for rows.Next() {
		cs, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan charging session: %w", err)
		}
		sessions = append(sessions, cs)
	}
	return sessions, rows.Err()
}
