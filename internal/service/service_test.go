package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
	"github.com/langchou/voltledger/internal/repository/memory"
)

var _ Store = (*memory.Store)(nil)

// fakeClock 每次读取前进一秒，保证时间戳严格递增
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// failingLedgerStore 插入总是失败的账本存储
type failingLedgerStore struct {
	LedgerStore
}

func (failingLedgerStore) InsertEntry(ctx context.Context, e *models.LedgerEntry) error {
	return errors.New("connection reset by peer")
}

type testEnv struct {
	store  *memory.Store
	clock  *fakeClock
	ledger *Ledger

	vehicles  *VehicleService
	ownership *OwnershipService
	charging  *ChargingService
	telemetry *TelemetryService
	query     *QueryService

	alice, bob, carol *models.User
	vehicle           *models.Vehicle
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithLedgerStore(t, nil)
}

// newTestEnvWithLedgerStore 可替换账本存储；nil 表示使用内存存储
func newTestEnvWithLedgerStore(t *testing.T, ledgerStore LedgerStore) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	store := memory.New()
	clock := newFakeClock()

	// 种子数据使用正常账本
	base := NewLedger(store, logger)
	base.now = clock.Now
	seed := NewVehicleService(store, store, base, logger)

	ctx := context.Background()
	alice, err := seed.CreateUser(ctx, "Alice", "alice@example.com")
	require.NoError(t, err)
	bob, err := seed.CreateUser(ctx, "Bob", "bob@example.com")
	require.NoError(t, err)
	carol, err := seed.CreateUser(ctx, "Carol", "carol@example.com")
	require.NoError(t, err)
	vehicle, err := seed.Register(ctx, RegisterVehicleInput{Brand: "Tesla", Model: "Model 3", VIN: "5yj3e1ea7kf000001", OwnerID: alice.ID})
	require.NoError(t, err)

	ledger := base
	if ledgerStore != nil {
		ledger = NewLedger(ledgerStore, logger)
		ledger.now = clock.Now
	}

	env := &testEnv{
		store:     store,
		clock:     clock,
		ledger:    ledger,
		vehicles:  NewVehicleService(store, store, ledger, logger),
		ownership: NewOwnershipService(store, store, store, ledger, logger),
		charging:  NewChargingService(store, store, ledger, logger),
		telemetry: NewTelemetryService(store, store, ledger, logger),
		query:     NewQueryService(store, logger, 20, 100),
		alice:     alice,
		bob:       bob,
		carol:     carol,
		vehicle:   vehicle,
	}
	env.ownership.now = clock.Now
	env.charging.now = clock.Now
	env.telemetry.now = clock.Now
	return env
}

// ledgerCount 当前账本条目总数
func (e *testEnv) ledgerCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := e.store.ListEntries(context.Background(), models.LedgerFilter{}, 0, 0)
	require.NoError(t, err)
	return total
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}
