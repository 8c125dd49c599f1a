package service

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
	"github.com/langchou/voltledger/internal/repository/memory"
)

// seedLedger 写入 n 条条目，vehicleId 在 1 和 2 之间交替
func seedLedger(t *testing.T, n int) (*memory.Store, *QueryService) {
	t.Helper()
	store := memory.New()
	l := NewLedger(store, zap.NewNop())
	clock := newFakeClock()
	l.now = clock.Now

	types := []models.TxType{models.TxBattery, models.TxCharging, models.TxAlert}
	for i := 0; i < n; i++ {
		_, err := l.Append(context.Background(), types[i%len(types)], models.Payload{"vehicleId": int64(i%2 + 1), "seq": i})
		require.NoError(t, err)
	}
	return store, NewQueryService(store, zap.NewNop(), 20, 100)
}

func TestListTransactionsPaginationLaw(t *testing.T) {
	ctx := context.Background()
	store, q := seedLedger(t, 23)

	all, total, err := store.ListEntries(ctx, models.LedgerFilter{}, 0, 0)
	require.NoError(t, err)
	require.EqualValues(t, 23, total)

	for _, size := range []int{1, 5, 7, 23, 50} {
		var collected []*models.LedgerEntry
		first, err := q.ListTransactions(ctx, 1, size, "")
		require.NoError(t, err)
		for page := 1; page <= first.TotalPages; page++ {
			p, err := q.ListTransactions(ctx, page, size, "")
			require.NoError(t, err)
			assert.EqualValues(t, 23, p.Total)
			collected = append(collected, p.Entries...)
		}
		require.Len(t, collected, len(all), "page size %d", size)
		for i := range all {
			assert.Equal(t, all[i].TxID, collected[i].TxID, "page size %d index %d", size, i)
		}
	}

	// 最新在前
	assert.Equal(t, json.Number("22"), all[0].Payload["seq"])
}

func TestListTransactionsClamping(t *testing.T) {
	ctx := context.Background()
	_, q := seedLedger(t, 30)

	p, err := q.ListTransactions(ctx, 0, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.PageSize)
	assert.Len(t, p.Entries, 30)
	assert.Equal(t, 1, p.TotalPages)

	p, err = q.ListTransactions(ctx, 2, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 20, p.PageSize)
	assert.Len(t, p.Entries, 10)
	assert.Equal(t, 2, p.TotalPages)

	p, err = q.ListTransactions(ctx, 9, 10, "")
	require.NoError(t, err)
	assert.Empty(t, p.Entries)
}

func TestListTransactionsPagePastEnd(t *testing.T) {
	ctx := context.Background()
	_, q := seedLedger(t, 5)

	for _, page := range []int{2, math.MaxInt/20 + 2, math.MaxInt} {
		p, err := q.ListTransactions(ctx, page, 20, "")
		require.NoError(t, err)
		assert.Equal(t, page, p.Page)
		assert.Empty(t, p.Entries, "page %d", page)
		assert.EqualValues(t, 5, p.Total)
		assert.Equal(t, 1, p.TotalPages)
	}
}

func TestPageOffset(t *testing.T) {
	assert.Equal(t, 0, pageOffset(1, 20))
	assert.Equal(t, 40, pageOffset(3, 20))
	assert.Equal(t, math.MaxInt, pageOffset(math.MaxInt/20+2, 20))
	assert.Equal(t, math.MaxInt, pageOffset(math.MaxInt, 100))
}

func TestListTransactionsTypeFilter(t *testing.T) {
	ctx := context.Background()
	_, q := seedLedger(t, 9)

	p, err := q.ListTransactions(ctx, 1, 10, "Charging")
	require.NoError(t, err)
	assert.EqualValues(t, 3, p.Total)
	for _, e := range p.Entries {
		assert.Equal(t, models.TxCharging, e.Type)
	}

	_, err = q.ListTransactions(ctx, 1, 10, "nft")
	requireKind(t, err, apperr.KindInvalidArgument)
}

func TestListByVehicleAndCounts(t *testing.T) {
	ctx := context.Background()
	_, q := seedLedger(t, 9)

	entries, err := q.ListByVehicle(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.After(entries[i-1].CreatedAt))
	}

	none, err := q.ListByVehicle(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)

	counts, err := q.CountsByType(ctx)
	require.NoError(t, err)
	assert.Len(t, counts, len(models.TxTypes))
	assert.EqualValues(t, 3, counts[models.TxBattery])
	assert.EqualValues(t, 0, counts[models.TxOwnership])
	assert.EqualValues(t, 0, counts[models.TxOEM])
}

func TestGetTransactionNotFound(t *testing.T) {
	_, q := seedLedger(t, 1)
	_, err := q.GetTransaction(context.Background(), "missing")
	requireKind(t, err, apperr.KindNotFound)
}

func TestNewQueryServiceDefaults(t *testing.T) {
	q := NewQueryService(memory.New(), zap.NewNop(), 500, 50)
	assert.Equal(t, 20, q.defaultPageSize)
	assert.Equal(t, 50, q.maxPageSize)
}
