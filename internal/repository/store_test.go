package repository

import (
	"context"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

// 需要真实 PostgreSQL：TEST_DATABASE_URL=postgres://... go test ./internal/repository/
func setupStore(t *testing.T) (*Store, *DB) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, url, PoolOptions{MaxConns: 8})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE ledger_entries, oem_records, alerts, battery_readings,
		transfer_requests, ownership_transfers, charging_sessions, vehicles, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return NewStore(db), db
}

func seedVehicle(t *testing.T, s *Store) (*models.Vehicle, *models.User, *models.User) {
	t.Helper()
	ctx := context.Background()
	alice := &models.User{Name: "alice", Email: "alice@example.com"}
	bob := &models.User{Name: "bob", Email: "bob@example.com"}
	require.NoError(t, s.CreateUser(ctx, alice))
	require.NoError(t, s.CreateUser(ctx, bob))

	v := &models.Vehicle{Brand: "Tesla", Model: "Model 3", VIN: "5YJ3E1EA7KF000001", OwnerID: alice.ID, Status: models.VehicleActive}
	require.NoError(t, s.CreateVehicle(ctx, v))
	return v, alice, bob
}

func TestPostgresVehicleAndUsers(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	v, alice, bob := seedVehicle(t, s)

	dup := &models.Vehicle{Brand: "BYD", Model: "Han", VIN: v.VIN, OwnerID: alice.ID, Status: models.VehicleActive}
	assert.ErrorIs(t, s.CreateVehicle(ctx, dup), apperr.ErrConflict)
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Name: "x", Email: "ALICE@example.com"}), apperr.ErrConflict)

	list, err := s.ListVehicles(ctx, "tesla")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, s.ReassignOwner(ctx, v.ID, bob.ID, alice.ID), apperr.ErrConflict)
	assert.ErrorIs(t, s.ReassignOwner(ctx, 9999, alice.ID, bob.ID), apperr.ErrNotFound)
	require.NoError(t, s.ReassignOwner(ctx, v.ID, alice.ID, bob.ID))

	owner, err := s.GetOwner(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, owner)

	require.NoError(t, s.UpdateStatus(ctx, v.ID, models.VehicleActive, models.VehicleInactive))
	assert.ErrorIs(t, s.UpdateStatus(ctx, v.ID, models.VehicleActive, models.VehicleInactive), apperr.ErrConflict)

	ok, err := s.UserExists(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresConcurrentReassignSingleWinner(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	v, alice, bob := seedVehicle(t, s)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ReassignOwner(ctx, v.ID, alice.ID, bob.ID); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestPostgresSessionLifecycle(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	v, _, _ := seedVehicle(t, s)

	var opened int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs := &models.ChargingSession{VehicleID: v.ID, StartedAt: time.Now(), Location: "Shanghai", ChargerID: "SC-01"}
			if err := s.OpenSession(ctx, cs); err == nil {
				atomic.AddInt32(&opened, 1)
			}
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, opened)

	active, err := s.GetActiveSession(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, s.SetSessionStartTx(ctx, active.ID, "tx-start"))

	closed, err := s.CloseSession(ctx, v.ID, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, closed.EndedAt)
	require.NotNil(t, closed.StartTxID)
	assert.Equal(t, "tx-start", *closed.StartTxID)

	_, err = s.CloseSession(ctx, v.ID, time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	energy, dur, cost, txID := 42.5, 30.0, 12.0, "tx-end"
	closed.EnergyKWh, closed.DurationMin, closed.Cost, closed.EndTxID = &energy, &dur, &cost, &txID
	require.NoError(t, s.CompleteSession(ctx, closed))

	sessions, err := s.ListSessions(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 42.5, *sessions[0].EnergyKWh)
}

func TestPostgresLedgerAppendOnly(t *testing.T) {
	s, db := setupStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	e := &models.LedgerEntry{
		TxID:      "tx-1",
		Type:      models.TxCharging,
		Status:    models.TxConfirmed,
		Payload:   models.Payload{"action": "start", "vehicleId": 7},
		CreatedAt: now,
	}
	require.NoError(t, s.InsertEntry(ctx, e))
	assert.ErrorIs(t, s.InsertEntry(ctx, e), apperr.ErrConflict)

	older := &models.LedgerEntry{
		TxID:      "tx-0",
		Type:      models.TxAlert,
		Status:    models.TxConfirmed,
		Payload:   models.Payload{"vehicleId": 8},
		CreatedAt: now.Add(-time.Minute),
	}
	require.NoError(t, s.InsertEntry(ctx, older))

	got, err := s.GetEntry(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "start", got.Payload["action"])
	assert.True(t, got.CreatedAt.Equal(now))

	entries, total, err := s.ListEntries(ctx, models.VehicleFilter(7), 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "tx-1", entries[0].TxID)

	entries, total, err = s.ListEntries(ctx, models.LedgerFilter{}, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "tx-0", entries[0].TxID)

	entries, total, err = s.ListEntries(ctx, models.LedgerFilter{}, 20, math.MaxInt)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Empty(t, entries)

	counts, err := s.CountEntriesByType(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.TxCharging])

	_, err = db.Pool.Exec(ctx, `UPDATE ledger_entries SET status = 'failed' WHERE tx_id = 'tx-1'`)
	assert.Error(t, err)
	_, err = db.Pool.Exec(ctx, `DELETE FROM ledger_entries WHERE tx_id = 'tx-1'`)
	assert.Error(t, err)
}

func TestPostgresTransferRequests(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()
	v, alice, bob := seedVehicle(t, s)

	req := &models.TransferRequest{VehicleID: v.ID, FromOwner: alice.ID, ToOwner: bob.ID, Status: models.RequestPending, CreatedAt: time.Now()}
	require.NoError(t, s.CreateRequest(ctx, req))

	pending, err := s.ListPendingRequests(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.UpdateRequestStatus(ctx, req.ID, models.RequestPending, models.RequestApproved, nil, nil))
	assert.ErrorIs(t, s.UpdateRequestStatus(ctx, req.ID, models.RequestPending, models.RequestRejected, nil, nil), apperr.ErrConflict)
	assert.ErrorIs(t, s.UpdateRequestStatus(ctx, 9999, models.RequestPending, models.RequestRejected, nil, nil), apperr.ErrNotFound)

	tr := &models.OwnershipTransfer{VehicleID: v.ID, PreviousOwner: alice.ID, NewOwner: bob.ID, TransferredAt: time.Now(), TxID: "tx-own"}
	require.NoError(t, s.CreateTransfer(ctx, tr))

	resolved := time.Now()
	require.NoError(t, s.UpdateRequestStatus(ctx, req.ID, models.RequestApproved, models.RequestCompleted, &resolved, &tr.ID))
	got, err := s.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestCompleted, got.Status)
	require.NotNil(t, got.TransferID)
	assert.Equal(t, tr.ID, *got.TransferID)
}
