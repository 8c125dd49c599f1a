package memory

import (
	"context"
	"fmt"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// CreateReading 保存电池读数
func (s *Store) CreateReading(ctx context.Context, r *models.BatteryReading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID()
	stored := *r
	stored.TxID = copyString(r.TxID)
	s.readings = append(s.readings, &stored)
	return nil
}

// SetReadingTx 关联账本交易
func (s *Store) SetReadingTx(ctx context.Context, id int64, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.readings {
		if r.ID == id {
			r.TxID = &txID
			return nil
		}
	}
	return apperr.ErrNotFound
}

// ListReadings 车辆电池读数，最新在前；limit <= 0 表示全部
func (s *Store) ListReadings(ctx context.Context, vehicleID int64, limit int) ([]*models.BatteryReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.BatteryReading
	for i := len(s.readings) - 1; i >= 0; i-- {
		r := s.readings[i]
		if r.VehicleID != vehicleID {
			continue
		}
		c := *r
		c.TxID = copyString(r.TxID)
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CreateAlert 保存告警
func (s *Store) CreateAlert(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextID()
	stored := *a
	stored.TxID = copyString(a.TxID)
	s.alerts = append(s.alerts, &stored)
	return nil
}

// SetAlertTx 关联账本交易
func (s *Store) SetAlertTx(ctx context.Context, id int64, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.alerts {
		if a.ID == id {
			a.TxID = &txID
			return nil
		}
	}
	return apperr.ErrNotFound
}

// ListAlerts 车辆告警，最新在前
func (s *Store) ListAlerts(ctx context.Context, vehicleID int64) ([]*models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if a.VehicleID != vehicleID {
			continue
		}
		c := *a
		c.TxID = copyString(a.TxID)
		out = append(out, &c)
	}
	return out, nil
}

// CreateOEMRecord 保存主机厂数据
func (s *Store) CreateOEMRecord(ctx context.Context, r *models.OEMRecord) error {
	data, err := models.NormalizePayload(r.Data)
	if err != nil {
		return fmt.Errorf("encode oem data: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.nextID()
	stored := *r
	stored.Data = data
	stored.TxID = copyString(r.TxID)
	s.oemRecords = append(s.oemRecords, &stored)
	return nil
}

// SetOEMRecordTx 关联账本交易
func (s *Store) SetOEMRecordTx(ctx context.Context, id int64, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.oemRecords {
		if r.ID == id {
			r.TxID = &txID
			return nil
		}
	}
	return apperr.ErrNotFound
}

// ListOEMRecords 车辆主机厂数据，最新在前
func (s *Store) ListOEMRecords(ctx context.Context, vehicleID int64) ([]*models.OEMRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.OEMRecord
	for i := len(s.oemRecords) - 1; i >= 0; i-- {
		r := s.oemRecords[i]
		if r.VehicleID != vehicleID {
			continue
		}
		c := *r
		// 返回副本，避免调用方修改存储中的数据
		if data, err := models.NormalizePayload(r.Data); err == nil {
			c.Data = data
		}
		c.TxID = copyString(r.TxID)
		out = append(out, &c)
	}
	return out, nil
}
