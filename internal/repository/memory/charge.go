package memory

import (
	"context"
	"sort"
	"time"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

func copySession(cs *models.ChargingSession) *models.ChargingSession {
	out := *cs
	if cs.EndedAt != nil {
		t := *cs.EndedAt
		out.EndedAt = &t
	}
	out.EnergyKWh = copyFloat(cs.EnergyKWh)
	out.DurationMin = copyFloat(cs.DurationMin)
	out.Cost = copyFloat(cs.Cost)
	out.StartTxID = copyString(cs.StartTxID)
	out.EndTxID = copyString(cs.EndTxID)
	return &out
}

// OpenSession 创建进行中会话；车辆已有进行中会话时冲突
func (s *Store) OpenSession(ctx context.Context, cs *models.ChargingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.openByCar[cs.VehicleID]; ok {
		return apperr.ErrConflict
	}
	cs.ID = s.nextID()
	cs.EndedAt = nil
	s.sessions[cs.ID] = copySession(cs)
	s.openByCar[cs.VehicleID] = cs.ID
	return nil
}

// CloseSession 关闭进行中会话
func (s *Store) CloseSession(ctx context.Context, vehicleID int64, endedAt time.Time) (*models.ChargingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.openByCar[vehicleID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cs := s.sessions[id]
	cs.EndedAt = &endedAt
	delete(s.openByCar, vehicleID)
	return copySession(cs), nil
}

// CompleteSession 写入结束派生字段
func (s *Store) CompleteSession(ctx context.Context, cs *models.ChargingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[cs.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	stored.EnergyKWh = copyFloat(cs.EnergyKWh)
	stored.DurationMin = copyFloat(cs.DurationMin)
	stored.Cost = copyFloat(cs.Cost)
	stored.EndTxID = copyString(cs.EndTxID)
	return nil
}

// SetSessionStartTx 关联开始充电的账本交易
func (s *Store) SetSessionStartTx(ctx context.Context, sessionID int64, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[sessionID]
	if !ok {
		return apperr.ErrNotFound
	}
	stored.StartTxID = &txID
	return nil
}

// GetActiveSession 获取进行中的会话
func (s *Store) GetActiveSession(ctx context.Context, vehicleID int64) (*models.ChargingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openByCar[vehicleID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return copySession(s.sessions[id]), nil
}

// ListSessions 车辆充电记录，按开始时间倒序
func (s *Store) ListSessions(ctx context.Context, vehicleID int64) ([]*models.ChargingSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sessions []*models.ChargingSession
	for _, cs := range s.sessions {
		if cs.VehicleID == vehicleID {
			sessions = append(sessions, copySession(cs))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].StartedAt.Equal(sessions[j].StartedAt) {
			return sessions[i].StartedAt.After(sessions[j].StartedAt)
		}
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

// OpenSessionCount 车辆进行中会话数量（测试断言用）
func (s *Store) OpenSessionCount(vehicleID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, cs := range s.sessions {
		if cs.VehicleID == vehicleID && cs.EndedAt == nil {
			n++
		}
	}
	return n
}
