package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB 数据库连接池封装
type DB struct {
	Pool *pgxpool.Pool
}

// PoolOptions 连接池配置
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

// New 创建数据库连接
func New(ctx context.Context, databaseURL string, opts PoolOptions) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	// 连接池配置
	config.MaxConns = 10
	config.MinConns = 2
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 && opts.MinConns <= config.MaxConns {
		config.MinConns = opts.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// 测试连接
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close 关闭连接池
func (db *DB) Close() {
	db.Pool.Close()
}

// Migrate 执行数据库迁移
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationCreateUsers,
		migrationCreateVehicles,
		migrationCreateLedgerEntries,
		migrationLedgerAppendOnly,
		migrationCreateChargingSessions,
		migrationCreateOwnershipTransfers,
		migrationCreateTransferRequests,
		migrationCreateBatteryReadings,
		migrationCreateAlerts,
		migrationCreateOEMRecords,
	}

	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// isNoRows 查询无结果
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isUniqueViolation 唯一约束冲突
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// 数据库迁移 SQL
const migrationCreateUsers = `
CREATE TABLE IF NOT EXISTS users (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_users_email ON users(LOWER(email));
`

const migrationCreateVehicles = `
CREATE TABLE IF NOT EXISTS vehicles (
    id BIGSERIAL PRIMARY KEY,
    brand VARCHAR(100) NOT NULL,
    model VARCHAR(100) NOT NULL,
    vin VARCHAR(17) NOT NULL UNIQUE,
    owner_id BIGINT NOT NULL REFERENCES users(id),
    status VARCHAR(16) NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_vehicles_owner_id ON vehicles(owner_id);
CREATE INDEX IF NOT EXISTS idx_vehicles_brand ON vehicles(brand);
`

const migrationCreateLedgerEntries = `
CREATE TABLE IF NOT EXISTS ledger_entries (
    tx_id VARCHAR(64) PRIMARY KEY,
    type VARCHAR(16) NOT NULL CHECK (type IN ('battery', 'charging', 'ownership', 'alert', 'oem')),
    status VARCHAR(16) NOT NULL DEFAULT 'confirmed' CHECK (status IN ('pending', 'confirmed', 'failed')),
    payload JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_created ON ledger_entries(created_at DESC, tx_id DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_type_created ON ledger_entries(type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_vehicle ON ledger_entries((payload->>'vehicleId'));
`

// 账本只允许追加：拒绝任何 UPDATE / DELETE
const migrationLedgerAppendOnly = `
CREATE OR REPLACE FUNCTION ledger_entries_append_only() RETURNS trigger AS $$
BEGIN
    RAISE EXCEPTION 'ledger_entries is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_ledger_entries_append_only ON ledger_entries;
CREATE TRIGGER trg_ledger_entries_append_only
    BEFORE UPDATE OR DELETE ON ledger_entries
    FOR EACH ROW EXECUTE FUNCTION ledger_entries_append_only();
`

// 部分唯一索引保证每辆车最多一个进行中的会话
const migrationCreateChargingSessions = `
CREATE TABLE IF NOT EXISTS charging_sessions (
    id BIGSERIAL PRIMARY KEY,
    vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    location VARCHAR(255) NOT NULL,
    charger_id VARCHAR(100) NOT NULL,
    ended_at TIMESTAMP WITH TIME ZONE,
    energy_kwh DOUBLE PRECISION CHECK (energy_kwh >= 0),
    duration_min DOUBLE PRECISION CHECK (duration_min >= 0),
    cost DOUBLE PRECISION CHECK (cost >= 0),
    start_tx_id VARCHAR(64),
    end_tx_id VARCHAR(64)
);
CREATE INDEX IF NOT EXISTS idx_charging_sessions_vehicle_started ON charging_sessions(vehicle_id, started_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS uq_charging_sessions_open ON charging_sessions(vehicle_id) WHERE ended_at IS NULL;
`

const migrationCreateOwnershipTransfers = `
CREATE TABLE IF NOT EXISTS ownership_transfers (
    id BIGSERIAL PRIMARY KEY,
    vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
    previous_owner BIGINT NOT NULL REFERENCES users(id),
    new_owner BIGINT NOT NULL REFERENCES users(id),
    transferred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    tx_id VARCHAR(64) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ownership_transfers_vehicle ON ownership_transfers(vehicle_id, transferred_at DESC);
`

const migrationCreateTransferRequests = `
CREATE TABLE IF NOT EXISTS transfer_requests (
    id BIGSERIAL PRIMARY KEY,
    vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
    from_owner BIGINT NOT NULL REFERENCES users(id),
    to_owner BIGINT NOT NULL REFERENCES users(id),
    notes TEXT NOT NULL DEFAULT '',
    status VARCHAR(16) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    resolved_at TIMESTAMP WITH TIME ZONE,
    transfer_id BIGINT REFERENCES ownership_transfers(id)
);
CREATE INDEX IF NOT EXISTS idx_transfer_requests_pending ON transfer_requests(status, from_owner, to_owner);
`

const migrationCreateBatteryReadings = `
CREATE TABLE IF NOT EXISTS battery_readings (
    id BIGSERIAL PRIMARY KEY,
    vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
    state_of_charge DOUBLE PRECISION NOT NULL CHECK (state_of_charge BETWEEN 0 AND 100),
    state_of_health DOUBLE PRECISION NOT NULL CHECK (state_of_health BETWEEN 0 AND 100),
    temperature DOUBLE PRECISION NOT NULL,
    cycle_count INT NOT NULL,
    source VARCHAR(16) NOT NULL,
    recorded_at TIMESTAMP WITH TIME ZONE NOT NULL,
    tx_id VARCHAR(64)
);
CREATE INDEX IF NOT EXISTS idx_battery_readings_vehicle ON battery_readings(vehicle_id, recorded_at DESC);
`

const migrationCreateAlerts = `
CREATE TABLE IF NOT EXISTS alerts (
    id BIGSERIAL PRIMARY KEY,
    vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
    type VARCHAR(100) NOT NULL,
    severity VARCHAR(16) NOT NULL,
    message TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    tx_id VARCHAR(64)
);
CREATE INDEX IF NOT EXISTS idx_alerts_vehicle ON alerts(vehicle_id, created_at DESC);
`

const migrationCreateOEMRecords = `
CREATE TABLE IF NOT EXISTS oem_records (
    id BIGSERIAL PRIMARY KEY,
    vehicle_id BIGINT NOT NULL REFERENCES vehicles(id),
    provider VARCHAR(100) NOT NULL,
    data JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    tx_id VARCHAR(64)
);
CREATE INDEX IF NOT EXISTS idx_oem_records_vehicle ON oem_records(vehicle_id, created_at DESC);
`
