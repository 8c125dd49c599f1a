package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
	"github.com/langchou/voltledger/internal/models"
	"github.com/langchou/voltledger/internal/repository/memory"
)

type recordingNotifier struct {
	mu      sync.Mutex
	entries []*models.LedgerEntry
}

func (n *recordingNotifier) PublishEntry(e *models.LedgerEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, e)
}

func TestLedgerAppendRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLedger(store, zap.NewNop())
	notifier := &recordingNotifier{}
	l.SetNotifier(notifier)

	entry, err := l.Append(ctx, models.TxCharging, models.Payload{
		"action":    "start",
		"vehicleId": int64(7),
		"meta":      map[string]any{"kw": 11.5},
	})
	require.NoError(t, err)
	assert.Equal(t, models.TxConfirmed, entry.Status)
	assert.Len(t, entry.TxID, 36)

	got, err := store.GetEntry(ctx, entry.TxID)
	require.NoError(t, err)
	assert.Equal(t, entry.Payload, got.Payload)
	assert.Equal(t, models.TxConfirmed, got.Status)
	assert.Equal(t, json.Number("7"), got.Payload["vehicleId"])

	require.Len(t, notifier.entries, 1)
	assert.Equal(t, entry.TxID, notifier.entries[0].TxID)
}

func TestLedgerAppendRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLedger(store, zap.NewNop())

	ids := []string{"dup", "dup", "fresh"}
	l.newTxID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := l.Append(ctx, models.TxAlert, models.Payload{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "dup", first.TxID)

	second, err := l.Append(ctx, models.TxAlert, models.Payload{"n": 2})
	require.NoError(t, err)
	assert.Equal(t, "fresh", second.TxID)

	// 冲突时原条目不变
	got, err := store.GetEntry(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), got.Payload["n"])
}

func TestLedgerAppendGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLedger(store, zap.NewNop())
	l.newTxID = func() string { return "same" }

	_, err := l.Append(ctx, models.TxOEM, nil)
	require.NoError(t, err)

	_, err = l.Append(ctx, models.TxOEM, nil)
	require.Error(t, err)

	_, total, err := store.ListEntries(ctx, models.LedgerFilter{}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestLedgerAppendRejectsUnknownType(t *testing.T) {
	l := NewLedger(memory.New(), zap.NewNop())
	_, err := l.Append(context.Background(), models.TxType("mint"), nil)
	requireKind(t, err, apperr.KindInvalidArgument)
}

func TestLedgerAppendUniqueIDsUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := NewLedger(store, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Append(ctx, models.TxBattery, models.Payload{"i": i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, total, err := store.ListEntries(ctx, models.LedgerFilter{}, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 50, total)
	seen := make(map[string]bool)
	for _, e := range entries {
		assert.False(t, seen[e.TxID])
		seen[e.TxID] = true
	}
}
