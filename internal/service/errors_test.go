package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/voltledger/internal/apperr"
)

func TestStorageFailureAddsContextToSentinel(t *testing.T) {
	err := storageFailure(zap.NewNop(), "end_charging", apperr.ErrNotFound, "sessionId", int64(9))

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, "end_charging: not found", apperr.PublicMessage(err))
	assert.Equal(t, map[string]any{"sessionId": int64(9)}, apperr.PublicFields(err))
}

func TestStorageFailureKeepsClassifiedError(t *testing.T) {
	orig := apperr.Conflict("ownership changed concurrently, retry", "vehicleId", int64(1))
	err := storageFailure(zap.NewNop(), "transfer_ownership", orig, "vehicleId", int64(1))
	assert.Same(t, orig, err)
}

func TestStorageFailureWrapsUnclassified(t *testing.T) {
	cause := fmt.Errorf("query vehicles: %w", errors.New("connection refused"))
	err := storageFailure(zap.NewNop(), "list_vehicles", cause)

	requireKind(t, err, apperr.KindStorage)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "list_vehicles: storage failure", apperr.PublicMessage(err))
}
