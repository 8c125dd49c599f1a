package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
	"github.com/langchou/voltledger/internal/state"
)

// maxVINLength 车架号最大长度
const maxVINLength = 17

// RegisterVehicleInput 车辆登记参数
type RegisterVehicleInput struct {
	Brand   string
	Model   string
	VIN     string
	OwnerID int64
}

// VehicleService 车辆登记表与用户目录
type VehicleService struct {
	vehicles VehicleStore
	users    UserStore
	ledger   *Ledger
	logger   *zap.Logger
}

// NewVehicleService 创建车辆服务
func NewVehicleService(vehicles VehicleStore, users UserStore, ledger *Ledger, logger *zap.Logger) *VehicleService {
	return &VehicleService{
		vehicles: vehicles,
		users:    users,
		ledger:   ledger,
		logger:   logger,
	}
}

// Register 登记车辆并写入 ownership 账本条目
func (s *VehicleService) Register(ctx context.Context, in RegisterVehicleInput) (*models.Vehicle, error) {
	const op = "register_vehicle"

	v := &models.Vehicle{
		Brand:   strings.TrimSpace(in.Brand),
		Model:   strings.TrimSpace(in.Model),
		VIN:     strings.ToUpper(strings.TrimSpace(in.VIN)),
		OwnerID: in.OwnerID,
		Status:  models.VehicleActive,
	}
	if v.Brand == "" || v.Model == "" {
		return nil, reject(op, apperr.InvalidArgument("brand and model are required"))
	}
	if v.VIN == "" || len(v.VIN) > maxVINLength {
		return nil, reject(op, apperr.InvalidArgument("vin must be 1-17 characters", "vin", v.VIN))
	}

	exists, err := s.users.UserExists(ctx, in.OwnerID)
	if err != nil {
		return nil, storageFailure(s.logger, op, err, "ownerId", in.OwnerID)
	}
	if !exists {
		return nil, reject(op, apperr.InvalidArgument("owner does not exist", "ownerId", in.OwnerID))
	}

	if err := s.vehicles.CreateVehicle(ctx, v); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, reject(op, apperr.Conflict("vin already registered", "vin", v.VIN))
		}
		return nil, storageFailure(s.logger, op, err, "vin", v.VIN)
	}

	entry, err := s.ledger.Append(ctx, models.TxOwnership, models.Payload{
		"action":    "vehicle_registered",
		"vehicleId": v.ID,
		"ownerId":   v.OwnerID,
		"vin":       v.VIN,
	})
	if err != nil {
		return nil, ledgerFailure(s.logger, op, err, "vehicleId", v.ID)
	}

	s.logger.Info("Vehicle registered",
		zap.Int64("vehicle_id", v.ID),
		zap.String("vin", v.VIN),
		zap.Int64("owner_id", v.OwnerID),
		zap.String("tx_id", entry.TxID),
	)
	return v, nil
}

// Get 获取车辆
func (s *VehicleService) Get(ctx context.Context, id int64) (*models.Vehicle, error) {
	v, err := s.vehicles.GetVehicle(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("vehicle not found", "vehicleId", id)
	}
	if err != nil {
		return nil, storageFailure(s.logger, "get_vehicle", err, "vehicleId", id)
	}
	return v, nil
}

// List 车辆列表，brand 为空时返回全部
func (s *VehicleService) List(ctx context.Context, brand string) ([]*models.Vehicle, error) {
	vehicles, err := s.vehicles.ListVehicles(ctx, strings.TrimSpace(brand))
	if err != nil {
		return nil, storageFailure(s.logger, "list_vehicles", err)
	}
	return vehicles, nil
}

// Activate 启用车辆
func (s *VehicleService) Activate(ctx context.Context, id int64) (*models.Vehicle, error) {
	return s.changeStatus(ctx, id, state.EventActivate)
}

// Deactivate 停用车辆
func (s *VehicleService) Deactivate(ctx context.Context, id int64) (*models.Vehicle, error) {
	return s.changeStatus(ctx, id, state.EventDeactivate)
}

func (s *VehicleService) changeStatus(ctx context.Context, id int64, event string) (*models.Vehicle, error) {
	op := event + "_vehicle"

	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := state.NewVehicleStatusMachine(v.Status).Trigger(event)
	if err != nil {
		return nil, reject(op, apperr.Conflict("vehicle is already "+string(v.Status), "vehicleId", id))
	}

	err = s.vehicles.UpdateStatus(ctx, id, v.Status, models.VehicleStatus(next))
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil, apperr.NotFound("vehicle not found", "vehicleId", id)
	case errors.Is(err, apperr.ErrConflict):
		return nil, reject(op, apperr.Conflict("vehicle status changed concurrently", "vehicleId", id))
	case err != nil:
		return nil, storageFailure(s.logger, op, err, "vehicleId", id)
	}

	s.logger.Info("Vehicle status changed",
		zap.Int64("vehicle_id", id),
		zap.String("from", string(v.Status)),
		zap.String("to", next),
	)
	return s.Get(ctx, id)
}

// CreateUser 创建用户
func (s *VehicleService) CreateUser(ctx context.Context, name, email string) (*models.User, error) {
	const op = "create_user"

	u := &models.User{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	if u.Name == "" || !strings.Contains(u.Email, "@") {
		return nil, reject(op, apperr.InvalidArgument("name and a valid email are required"))
	}

	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, reject(op, apperr.Conflict("email already registered", "email", u.Email))
		}
		return nil, storageFailure(s.logger, op, err)
	}

	s.logger.Info("User created", zap.Int64("user_id", u.ID))
	return u, nil
}

// GetUser 获取用户
func (s *VehicleService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("user not found", "userId", id)
	}
	if err != nil {
		return nil, storageFailure(s.logger, "get_user", err, "userId", id)
	}
	return u, nil
}
