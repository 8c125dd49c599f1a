package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// OwnershipRepository 所有权转让数据仓库
type OwnershipRepository struct {
	db *DB
}

// NewOwnershipRepository 创建转让仓库
func NewOwnershipRepository(db *DB) *OwnershipRepository {
	return &OwnershipRepository{db: db}
}

// CreateTransfer 保存转让记录
func (r *OwnershipRepository) CreateTransfer(ctx context.Context, t *models.OwnershipTransfer) error {
	query := `
		INSERT INTO ownership_transfers (vehicle_id, previous_owner, new_owner, transferred_at, tx_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		t.VehicleID,
		t.PreviousOwner,
		t.NewOwner,
		t.TransferredAt,
		t.TxID,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert ownership transfer: %w", err)
	}
	return nil
}

// ListTransfers 车辆转让历史，按时间倒序
func (r *OwnershipRepository) ListTransfers(ctx context.Context, vehicleID int64) ([]*models.OwnershipTransfer, error) {
	query := `
		SELECT id, vehicle_id, previous_owner, new_owner, transferred_at, tx_id
		FROM ownership_transfers WHERE vehicle_id = $1
		ORDER BY transferred_at DESC, id DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("list ownership transfers: %w", err)
	}
	defer rows.Close()

	transfers := []*models.OwnershipTransfer{}
	for rows.Next() {
		t := &models.OwnershipTransfer{}
		if err := rows.Scan(&t.ID, &t.VehicleID, &t.PreviousOwner, &t.NewOwner, &t.TransferredAt, &t.TxID); err != nil {
			return nil, fmt.Errorf("scan ownership transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

const requestColumns = `id, vehicle_id, from_owner, to_owner, notes, status, created_at, resolved_at, transfer_id`

func scanRequest(row interface{ Scan(...any) error }) (*models.TransferRequest, error) {
	req := &models.TransferRequest{}
	err := row.Scan(
		&req.ID,
		&req.VehicleID,
		&req.FromOwner,
		&req.ToOwner,
		&req.Notes,
		&req.Status,
		&req.CreatedAt,
		&req.ResolvedAt,
		&req.TransferID,
	)
	return req, err
}

// CreateRequest 保存转让请求
func (r *OwnershipRepository) CreateRequest(ctx context.Context, req *models.TransferRequest) error {
	query := `
		INSERT INTO transfer_requests (vehicle_id, from_owner, to_owner, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		req.VehicleID,
		req.FromOwner,
		req.ToOwner,
		req.Notes,
		req.Status,
		req.CreatedAt,
	).Scan(&req.ID)
	if err != nil {
		return fmt.Errorf("insert transfer request: %w", err)
	}
	return nil
}

// GetRequest 获取转让请求
func (r *OwnershipRepository) GetRequest(ctx context.Context, id int64) (*models.TransferRequest, error) {
	req, err := scanRequest(r.db.Pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM transfer_requests WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer request: %w", err)
	}
	return req, nil
}

// UpdateRequestStatus 比较并交换请求状态
func (r *OwnershipRepository) UpdateRequestStatus(ctx context.Context, id int64, expected, next string, resolvedAt *time.Time, transferID *int64) error {
	query := `
		UPDATE transfer_requests SET
			status = $3,
			resolved_at = COALESCE($4, resolved_at),
			transfer_id = COALESCE($5, transfer_id)
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Pool.Exec(ctx, query, id, expected, next, resolvedAt, transferID)
	if err != nil {
		return fmt.Errorf("update transfer request: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transfer_requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check transfer request exists: %w", err)
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return apperr.ErrConflict
}

// ListPendingRequests 用户作为转出方或接收方的待处理请求
func (r *OwnershipRepository) ListPendingRequests(ctx context.Context, userID int64) ([]*models.TransferRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM transfer_requests
		WHERE status = $1 AND (from_owner = $2 OR to_owner = $2)
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.Pool.Query(ctx, query, models.RequestPending, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	requests := []*models.TransferRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
