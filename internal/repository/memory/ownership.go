package memory

import (
	"context"
	"sort"
	"time"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

func copyRequest(r *models.TransferRequest) *models.TransferRequest {
	out := *r
	if r.ResolvedAt != nil {
		t := *r.ResolvedAt
		out.ResolvedAt = &t
	}
	if r.TransferID != nil {
		id := *r.TransferID
		out.TransferID = &id
	}
	return &out
}

// CreateTransfer 保存转让记录
func (s *Store) CreateTransfer(ctx context.Context, t *models.OwnershipTransfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t.ID = s.nextID()
	stored := *t
	s.transfers = append(s.transfers, &stored)
	return nil
}

// ListTransfers 车辆转让历史，按时间倒序
func (s *Store) ListTransfers(ctx context.Context, vehicleID int64) ([]*models.OwnershipTransfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.OwnershipTransfer
	for i := len(s.transfers) - 1; i >= 0; i-- {
		if t := s.transfers[i]; t.VehicleID == vehicleID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransferredAt.After(out[j].TransferredAt)
	})
	return out, nil
}

// CreateRequest 保存转让请求
func (s *Store) CreateRequest(ctx context.Context, r *models.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID()
	s.requests[r.ID] = copyRequest(r)
	return nil
}

// GetRequest 获取转让请求
func (s *Store) GetRequest(ctx context.Context, id int64) (*models.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.requests[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copyRequest(r), nil
}

// UpdateRequestStatus 比较并交换请求状态
func (s *Store) UpdateRequestStatus(ctx context.Context, id int64, expected, next string, resolvedAt *time.Time, transferID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if r.Status != expected {
		return apperr.ErrConflict
	}
	r.Status = next
	if resolvedAt != nil {
		t := *resolvedAt
		r.ResolvedAt = &t
	}
	if transferID != nil {
		tid := *transferID
		r.TransferID = &tid
	}
	return nil
}

// ListPendingRequests 用户作为转出方或接收方的待处理请求
func (s *Store) ListPendingRequests(ctx context.Context, userID int64) ([]*models.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TransferRequest
	for _, r := range s.requests {
		if r.Status != models.RequestPending {
			continue
		}
		if r.FromOwner == userID || r.ToOwner == userID {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
