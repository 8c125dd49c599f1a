package memory

import (
	"context"
	"strings"
	"time"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// CreateVehicle 登记车辆，VIN 唯一
func (s *Store) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vins[v.VIN]; ok {
		return apperr.ErrConflict
	}

	now := time.Now()
	v.ID = s.nextID()
	v.CreatedAt = now
	v.UpdatedAt = now
	stored := *v
	s.vehicles[v.ID] = &stored
	s.vins[v.VIN] = v.ID
	return nil
}

// GetVehicle 通过 ID 获取车辆
func (s *Store) GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := *v
	return &out, nil
}

// ListVehicles 获取车辆列表，brand 为空时返回全部
func (s *Store) ListVehicles(ctx context.Context, brand string) ([]*models.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vehicles := make([]*models.Vehicle, 0, len(s.vehicles))
	for id := int64(1); id <= s.seq; id++ {
		v, ok := s.vehicles[id]
		if !ok {
			continue
		}
		if brand != "" && !strings.EqualFold(v.Brand, brand) {
			continue
		}
		out := *v
		vehicles = append(vehicles, &out)
	}
	return vehicles, nil
}

// GetOwner 获取当前车主
func (s *Store) GetOwner(ctx context.Context, vehicleID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	return v.OwnerID, nil
}

// ReassignOwner 比较并交换车主
func (s *Store) ReassignOwner(ctx context.Context, vehicleID, expected, newOwner int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return apperr.ErrNotFound
	}
	if v.OwnerID != expected {
		return apperr.ErrConflict
	}
	v.OwnerID = newOwner
	v.UpdatedAt = time.Now()
	return nil
}

// UpdateStatus 比较并交换车辆状态
func (s *Store) UpdateStatus(ctx context.Context, vehicleID int64, expected, next models.VehicleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return apperr.ErrNotFound
	}
	if v.Status != expected {
		return apperr.ErrConflict
	}
	v.Status = next
	v.UpdatedAt = time.Now()
	return nil
}

// CreateUser 创建用户，邮箱唯一
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.emails[email]; ok {
		return apperr.ErrConflict
	}
	u.ID = s.nextID()
	u.CreatedAt = time.Now()
	stored := *u
	s.users[u.ID] = &stored
	s.emails[email] = u.ID
	return nil
}

// GetUser 获取用户
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := *u
	return &out, nil
}

// UserExists 用户是否存在
func (s *Store) UserExists(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[id]
	return ok, nil
}
