package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
)

func seedVehicle(t *testing.T, s *Store, owner int64) *models.Vehicle {
	t.Helper()
	v := &models.Vehicle{Brand: "Tesla", Model: "Model 3", VIN: "5YJ3E1EA7KF000001", OwnerID: owner, Status: models.VehicleActive}
	require.NoError(t, s.CreateVehicle(context.Background(), v))
	return v
}

func TestCreateVehicleRejectsDuplicateVIN(t *testing.T) {
	s := New()
	seedVehicle(t, s, 1)

	err := s.CreateVehicle(context.Background(), &models.Vehicle{VIN: "5YJ3E1EA7KF000001"})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestReassignOwnerCAS(t *testing.T) {
	ctx := context.Background()
	s := New()
	v := seedVehicle(t, s, 1)

	require.NoError(t, s.ReassignOwner(ctx, v.ID, 1, 2))
	owner, err := s.GetOwner(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), owner)

	// 期望值过期
	err = s.ReassignOwner(ctx, v.ID, 1, 3)
	assert.True(t, errors.Is(err, apperr.ErrConflict))
	owner, _ = s.GetOwner(ctx, v.ID)
	assert.Equal(t, int64(2), owner)

	err = s.ReassignOwner(ctx, 999, 1, 3)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestReassignOwnerConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := New()
	v := seedVehicle(t, s, 1)

	var wins int32
	var wg sync.WaitGroup
	for i := int64(2); i < 22; i++ {
		wg.Add(1)
		go func(newOwner int64) {
			defer wg.Done()
			if err := s.ReassignOwner(ctx, v.ID, 1, newOwner); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestOpenSessionUniquePerVehicle(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cs := &models.ChargingSession{VehicleID: 7, StartedAt: time.Now(), Location: "depot", ChargerID: "c1"}
			err := s.OpenSession(ctx, cs)
			if err == nil {
				atomic.AddInt32(&wins, 1)
				return
			}
			assert.True(t, errors.Is(err, apperr.ErrConflict))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, 1, s.OpenSessionCount(7))

	// 其它车辆不受影响
	require.NoError(t, s.OpenSession(ctx, &models.ChargingSession{VehicleID: 8, StartedAt: time.Now()}))
}

func TestCloseSessionOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.OpenSession(ctx, &models.ChargingSession{VehicleID: 7, StartedAt: time.Now()}))

	closed, err := s.CloseSession(ctx, 7, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, closed.EndedAt)

	_, err = s.CloseSession(ctx, 7, time.Now())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, 0, s.OpenSessionCount(7))

	// 关闭后可以重新开始
	require.NoError(t, s.OpenSession(ctx, &models.ChargingSession{VehicleID: 7, StartedAt: time.Now()}))
}

func TestLedgerInsertIsImmutable(t *testing.T) {
	ctx := context.Background()
	s := New()
	payload := models.Payload{"vehicleId": 1}
	entry := &models.LedgerEntry{TxID: "tx-1", Type: models.TxAlert, Status: models.TxConfirmed, Payload: payload, CreatedAt: time.Now()}
	require.NoError(t, s.InsertEntry(ctx, entry))

	// 调用方修改原 map 不影响存储
	payload["vehicleId"] = 2
	got, err := s.GetEntry(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), got.Payload["vehicleId"])

	got.Payload["vehicleId"] = "tampered"
	again, err := s.GetEntry(ctx, "tx-1")
	require.NoError(t, err)
	assert.NotEqual(t, "tampered", again.Payload["vehicleId"])

	err = s.InsertEntry(ctx, &models.LedgerEntry{TxID: "tx-1", Type: models.TxBattery})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestListEntriesOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	insert := func(id string, typ models.TxType, vehicle int, at time.Time) {
		require.NoError(t, s.InsertEntry(ctx, &models.LedgerEntry{
			TxID: id, Type: typ, Status: models.TxConfirmed,
			Payload: models.Payload{"vehicleId": vehicle}, CreatedAt: at,
		}))
	}
	insert("a", models.TxCharging, 1, base)
	insert("b", models.TxCharging, 2, base)
	insert("c", models.TxAlert, 1, base.Add(time.Second))

	all, total, err := s.ListEntries(ctx, models.LedgerFilter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].TxID, all[1].TxID, all[2].TxID})

	byVehicle, total, err := s.ListEntries(ctx, models.VehicleFilter(1), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "c", byVehicle[0].TxID)

	page, total, err := s.ListEntries(ctx, models.LedgerFilter{Type: models.TxCharging}, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].TxID)

	empty, _, err := s.ListEntries(ctx, models.LedgerFilter{}, 10, 50)
	require.NoError(t, err)
	assert.Empty(t, empty)

	counts, err := s.CountEntriesByType(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[models.TxCharging])
	assert.Equal(t, int64(1), counts[models.TxAlert])
}

func TestTransferRequestStatusCAS(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := &models.TransferRequest{VehicleID: 1, FromOwner: 1, ToOwner: 2, Status: models.RequestPending, CreatedAt: time.Now()}
	require.NoError(t, s.CreateRequest(ctx, r))

	require.NoError(t, s.UpdateRequestStatus(ctx, r.ID, models.RequestPending, models.RequestApproved, nil, nil))
	err := s.UpdateRequestStatus(ctx, r.ID, models.RequestPending, models.RequestRejected, nil, nil)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	pending, err := s.ListPendingRequests(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
