package service

import (
	"context"
	"time"

	"github.com/langchou/voltledger/internal/models"
)

// 存储接口：repository（Postgres）与 repository/memory 各自实现。
// 语义性结果返回 apperr.ErrNotFound / apperr.ErrConflict，其余错误视为存储故障。

// LedgerStore 只追加的账本存储，没有更新和删除
type LedgerStore interface {
	// InsertEntry 插入条目；TxID 已存在时返回 apperr.ErrConflict 且不写入
	InsertEntry(ctx context.Context, entry *models.LedgerEntry) error
	GetEntry(ctx context.Context, txID string) (*models.LedgerEntry, error)
	// ListEntries 按 created_at DESC, tx_id DESC 排序；limit <= 0 表示不分页
	ListEntries(ctx context.Context, filter models.LedgerFilter, limit, offset int) ([]*models.LedgerEntry, int64, error)
	CountEntriesByType(ctx context.Context) (map[models.TxType]int64, error)
}

// VehicleStore 车辆登记表
type VehicleStore interface {
	// CreateVehicle VIN 重复时返回 apperr.ErrConflict
	CreateVehicle(ctx context.Context, v *models.Vehicle) error
	GetVehicle(ctx context.Context, id int64) (*models.Vehicle, error)
	ListVehicles(ctx context.Context, brand string) ([]*models.Vehicle, error)
	GetOwner(ctx context.Context, vehicleID int64) (int64, error)
	// ReassignOwner 原子 CAS：仅当当前车主仍为 expected 时写入 newOwner，否则 apperr.ErrConflict
	ReassignOwner(ctx context.Context, vehicleID, expected, newOwner int64) error
	// UpdateStatus 原子 CAS：仅当当前状态仍为 expected 时写入
	UpdateStatus(ctx context.Context, vehicleID int64, expected, next models.VehicleStatus) error
}

// UserStore 用户目录
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
}

// SessionStore 充电会话跟踪器
type SessionStore interface {
	// OpenSession 原子地为车辆创建唯一的进行中会话；已有进行中会话时返回 apperr.ErrConflict
	OpenSession(ctx context.Context, s *models.ChargingSession) error
	// CloseSession 原子地关闭进行中会话并返回；不存在时返回 apperr.ErrNotFound
	CloseSession(ctx context.Context, vehicleID int64, endedAt time.Time) (*models.ChargingSession, error)
	// CompleteSession 写入结束时的派生字段
	CompleteSession(ctx context.Context, s *models.ChargingSession) error
	SetSessionStartTx(ctx context.Context, sessionID int64, txID string) error
	GetActiveSession(ctx context.Context, vehicleID int64) (*models.ChargingSession, error)
	ListSessions(ctx context.Context, vehicleID int64) ([]*models.ChargingSession, error)
}

// TransferStore 所有权转让记录与转让请求
type TransferStore interface {
	CreateTransfer(ctx context.Context, t *models.OwnershipTransfer) error
	ListTransfers(ctx context.Context, vehicleID int64) ([]*models.OwnershipTransfer, error)
	CreateRequest(ctx context.Context, r *models.TransferRequest) error
	GetRequest(ctx context.Context, id int64) (*models.TransferRequest, error)
	// UpdateRequestStatus 原子 CAS：仅当当前状态仍为 expected 时写入
	UpdateRequestStatus(ctx context.Context, id int64, expected, next string, resolvedAt *time.Time, transferID *int64) error
	ListPendingRequests(ctx context.Context, userID int64) ([]*models.TransferRequest, error)
}

// TelemetryStore 电池遥测、告警与主机厂数据
type TelemetryStore interface {
	CreateReading(ctx context.Context, r *models.BatteryReading) error
	SetReadingTx(ctx context.Context, id int64, txID string) error
	ListReadings(ctx context.Context, vehicleID int64, limit int) ([]*models.BatteryReading, error)

	CreateAlert(ctx context.Context, a *models.Alert) error
	SetAlertTx(ctx context.Context, id int64, txID string) error
	ListAlerts(ctx context.Context, vehicleID int64) ([]*models.Alert, error)

	CreateOEMRecord(ctx context.Context, r *models.OEMRecord) error
	SetOEMRecordTx(ctx context.Context, id int64, txID string) error
	ListOEMRecords(ctx context.Context, vehicleID int64) ([]*models.OEMRecord, error)
}

// Store 全部存储能力的组合
type Store interface {
	LedgerStore
	VehicleStore
	UserStore
	SessionStore
	TransferStore
	TelemetryStore
}
