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

// StartChargingInput 开始充电参数
type StartChargingInput struct {
	VehicleID int64
	Location  string
	ChargerID string
}

// ChargingService 充电会话管理
// 每辆车的进行中会话由 SessionStore 的唯一约束保证至多一个
type ChargingService struct {
	vehicles VehicleStore
	sessions SessionStore
	ledger   *Ledger
	logger   *zap.Logger

	now func() time.Time
}

// NewChargingService 创建充电服务
func NewChargingService(vehicles VehicleStore, sessions SessionStore, ledger *Ledger, logger *zap.Logger) *ChargingService {
	return &ChargingService{
		vehicles: vehicles,
		sessions: sessions,
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ChargingService) requireVehicle(ctx context.Context, op string, vehicleID int64) error {
	_, err := s.vehicles.GetVehicle(ctx, vehicleID)
	if errors.Is(err, apperr.ErrNotFound) {
		return reject(op, apperr.NotFound("vehicle not found", "vehicleId", vehicleID))
	}
	if err != nil {
		return storageFailure(s.logger, op, err, "vehicleId", vehicleID)
	}
	return nil
}

// Start 开始充电
func (s *ChargingService) Start(ctx context.Context, in StartChargingInput) (*models.ChargingSession, error) {
	const op = "start_charging"

	if err := s.requireVehicle(ctx, op, in.VehicleID); err != nil {
		return nil, err
	}

	session := &models.ChargingSession{
		VehicleID: in.VehicleID,
		StartedAt: s.now().UTC().Truncate(time.Microsecond),
		Location:  strings.TrimSpace(in.Location),
		ChargerID: strings.TrimSpace(in.ChargerID),
	}
	if err := s.sessions.OpenSession(ctx, session); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, reject(op, apperr.AlreadyCharging("vehicle already has an open charging session", "vehicleId", in.VehicleID))
		}
		return nil, storageFailure(s.logger, op, err, "vehicleId", in.VehicleID)
	}

	payload := models.Payload{
		"action":    "start",
		"vehicleId": session.VehicleID,
		"sessionId": session.ID,
		"startedAt": session.StartedAt,
		"location":  session.Location,
	}
	if session.ChargerID != "" {
		payload["chargerId"] = session.ChargerID
	}
	entry, err := s.ledger.Append(ctx, models.TxCharging, payload)
	if err != nil {
		return nil, ledgerFailure(s.logger, op, err, "vehicleId", in.VehicleID, "sessionId", session.ID)
	}

	if err := s.sessions.SetSessionStartTx(ctx, session.ID, entry.TxID); err != nil {
		return nil, storageFailure(s.logger, op, err, "sessionId", session.ID, "txId", entry.TxID)
	}
	session.StartTxID = &entry.TxID

	s.logger.Info("Charging started",
		zap.Int64("vehicle_id", session.VehicleID),
		zap.Int64("session_id", session.ID),
		zap.String("tx_id", entry.TxID),
	)
	return session, nil
}

// End 结束充电，时长由服务端根据时间戳计算
func (s *ChargingService) End(ctx context.Context, vehicleID int64, energyDelivered, cost float64) (*models.ChargingSession, error) {
	const op = "end_charging"

	if !validAmount(energyDelivered) || !validAmount(cost) {
		return nil, reject(op, apperr.InvalidArgument("energy delivered and cost must be non-negative",
			"vehicleId", vehicleID, "energyDelivered", energyDelivered, "cost", cost))
	}

	endedAt := s.now().UTC().Truncate(time.Microsecond)
	session, err := s.sessions.CloseSession(ctx, vehicleID, endedAt)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, reject(op, apperr.NoActiveSession("vehicle has no open charging session", "vehicleId", vehicleID))
		}
		return nil, storageFailure(s.logger, op, err, "vehicleId", vehicleID)
	}

	duration := math.Max(0, endedAt.Sub(session.StartedAt).Minutes())
	session.EnergyKWh = &energyDelivered
	session.DurationMin = &duration
	session.Cost = &cost

	entry, err := s.ledger.Append(ctx, models.TxCharging, models.Payload{
		"action":          "end",
		"vehicleId":       vehicleID,
		"sessionId":       session.ID,
		"energyDelivered": energyDelivered,
		"durationMinutes": duration,
		"cost":            cost,
	})
	if err != nil {
		// 派生字段仍然写回，只缺账本引用
		if cerr := s.sessions.CompleteSession(ctx, session); cerr != nil {
			s.logger.Error("Failed to record charging session totals",
				zap.Int64("vehicle_id", vehicleID),
				zap.Int64("session_id", session.ID),
				zap.Error(cerr),
			)
			return nil, errors.Join(
				ledgerFailure(s.logger, op, err, "vehicleId", vehicleID, "sessionId", session.ID),
				storageFailure(s.logger, op, cerr, "vehicleId", vehicleID, "sessionId", session.ID),
			)
		}
		return nil, ledgerFailure(s.logger, op, err, "vehicleId", vehicleID, "sessionId", session.ID)
	}
	session.EndTxID = &entry.TxID

	if err := s.sessions.CompleteSession(ctx, session); err != nil {
		return nil, storageFailure(s.logger, op, err, "sessionId", session.ID, "txId", entry.TxID)
	}

	s.logger.Info("Charging ended",
		zap.Int64("vehicle_id", vehicleID),
		zap.Int64("session_id", session.ID),
		zap.Float64("energy_kwh", energyDelivered),
		zap.Float64("duration_min", duration),
		zap.String("tx_id", entry.TxID),
	)
	return session, nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// History 车辆充电记录，最新在前
func (s *ChargingService) History(ctx context.Context, vehicleID int64) ([]*models.ChargingSession, error) {
	if err := s.requireVehicle(ctx, "charging_history", vehicleID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListSessions(ctx, vehicleID)
	if err != nil {
		return nil, storageFailure(s.logger, "charging_history", err, "vehicleId", vehicleID)
	}
	return sessions, nil
}

// Active 进行中的会话
func (s *ChargingService) Active(ctx context.Context, vehicleID int64) (*models.ChargingSession, error) {
	if err := s.requireVehicle(ctx, "active_session", vehicleID); err != nil {
		return nil, err
	}
	session, err := s.sessions.GetActiveSession(ctx, vehicleID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("no open charging session", "vehicleId", vehicleID)
	}
	if err != nil {
		return nil, storageFailure(s.logger, "active_session", err, "vehicleId", vehicleID)
	}
	return session, nil
}

// Analytics 充电统计
func (s *ChargingService) Analytics(ctx context.Context, vehicleID int64) (*models.ChargingAnalytics, error) {
	sessions, err := s.History(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	a := &models.ChargingAnalytics{VehicleID: vehicleID, TotalSessions: len(sessions)}
	for _, cs := range sessions {
		if cs.IsOpen() || cs.EnergyKWh == nil {
			continue
		}
		a.CompletedSessions++
		a.TotalEnergyKWh += *cs.EnergyKWh
		if cs.Cost != nil {
			a.TotalCost += *cs.Cost
		}
	}
	if a.CompletedSessions > 0 {
		a.AverageEnergyPerSession = a.TotalEnergyKWh / float64(a.CompletedSessions)
	}
	if a.TotalEnergyKWh > 0 {
		a.AverageCostPerKWh = a.TotalCost / a.TotalEnergyKWh
	}
	if len(sessions) > 0 {
		a.LastSession = sessions[0]
	}
	return a, nil
}
