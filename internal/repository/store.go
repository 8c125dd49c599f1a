package repository

import "github.com/langchou/voltledger/internal/service"

var _ service.Store = (*Store)(nil)

// Store 基于 PostgreSQL 的完整存储
type Store struct {
	*LedgerRepository
	*VehicleRepository
	*ChargeRepository
	*OwnershipRepository
	*TelemetryRepository
}

// NewStore 创建存储
func NewStore(db *DB) *Store {
	return &Store{
		LedgerRepository:    NewLedgerRepository(db),
		VehicleRepository:   NewVehicleRepository(db),
		ChargeRepository:    NewChargeRepository(db),
		OwnershipRepository: NewOwnershipRepository(db),
		TelemetryRepository: NewTelemetryRepository(db),
	}
}
