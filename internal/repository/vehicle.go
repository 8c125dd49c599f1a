package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// VehicleRepository 车辆与用户数据仓库
type VehicleRepository struct {
	db *DB
}

// NewVehicleRepository 创建车辆仓库
func NewVehicleRepository(db *DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

const vehicleColumns = `id, brand, model, vin, owner_id, status, created_at, updated_at`

func scanVehicle(row interface{ Scan(...any) error }) (*models.Vehicle, error) {
	v := &models.Vehicle{}
	err := row.Scan(
		&v.ID,
		&v.Brand,
		&v.Model,
		&v.VIN,
		&v.OwnerID,
		&v.Status,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	return v, err
}

// CreateVehicle 登记车辆，VIN 重复时返回 apperr.ErrConflict
func (r *VehicleRepository) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	query := `
		INSERT INTO vehicles (brand, model, vin, owner_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (vin) DO NOTHING
		RETURNING id
	`
	now := time.Now()
	err := r.db.Pool.QueryRow(ctx, query,
		v.Brand,
		v.Model,
		v.VIN,
		v.OwnerID,
		string(v.Status),
		now,
		now,
	).Scan(&v.ID)
	if isNoRows(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert vehicle: %w", err)
	}

	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

// GetVehicle 通过 ID 获取车辆
func (r *VehicleRepository) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	v, err := scanVehicle(r.db.Pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vehicle: %w", err)
	}
	return v, nil
}

// ListVehicles 获取车辆列表，brand 为空时返回全部
func (r *VehicleRepository) ListVehicles(ctx context.Context, brand string) ([]*models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE ($1 = '' OR LOWER(brand) = LOWER($1)) ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, query, brand)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	vehicles := []*models.Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

// GetOwner 获取当前车主
func (r *VehicleRepository) GetOwner(ctx context.Context, vehicleID int64) (int64, error) {
	var ownerID int64
	err := r.db.Pool.QueryRow(ctx, `SELECT owner_id FROM vehicles WHERE id = $1`, vehicleID).Scan(&ownerID)
	if isNoRows(err) {
		return 0, apperr.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get vehicle owner: %w", err)
	}
	return ownerID, nil
}

// ReassignOwner 比较并交换车主，单条 UPDATE 保证原子性
func (r *VehicleRepository) ReassignOwner(ctx context.Context, vehicleID, expected, newOwner int64) error {
	query := `
		UPDATE vehicles SET owner_id = $3, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2
	`
	tag, err := r.db.Pool.Exec(ctx, query, vehicleID, expected, newOwner)
	if err != nil {
		return fmt.Errorf("reassign owner: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, vehicleID)
	}
	return nil
}

// UpdateStatus 比较并交换车辆状态
func (r *VehicleRepository) UpdateStatus(ctx context.Context, vehicleID int64, expected, next models.VehicleStatus) error {
	query := `
		UPDATE vehicles SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.db.Pool.Exec(ctx, query, vehicleID, string(expected), string(next))
	if err != nil {
		return fmt.Errorf("update vehicle status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, vehicleID)
	}
	return nil
}

// missOrConflict CAS 未命中时区分车辆不存在和值已变化
func (r *VehicleRepository) missOrConflict(ctx context.Context, vehicleID int64) error {
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM vehicles WHERE id = $1)`, vehicleID).Scan(&exists); err != nil {
		return fmt.Errorf("check vehicle exists: %w", err)
	}
	if !exists {
		return apperr.ErrNotFound
	}
	return apperr.ErrConflict
}

// CreateUser 创建用户，邮箱（忽略大小写）重复时返回 apperr.ErrConflict
func (r *VehicleRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (name, email, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	now := time.Now()
	err := r.db.Pool.QueryRow(ctx, query, u.Name, u.Email, now).Scan(&u.ID)
	if isUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = now
	return nil
}

// GetUser 通过 ID 获取用户
func (r *VehicleRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}
	err := r.db.Pool.QueryRow(ctx, `SELECT id, name, email, created_at FROM users WHERE id = $1`, id).Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.CreatedAt,
	)
	if isNoRows(err) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserExists 用户是否存在
func (r *VehicleRepository) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}
