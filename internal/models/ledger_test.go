package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePayloadKeepsNumbersExact(t *testing.T) {
	p, err := NormalizePayload(Payload{
		"vehicleId":       int64(9007199254740993),
		"energyDelivered": 12.5,
		"nested":          map[string]any{"a": []int{1, 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, json.Number("9007199254740993"), p["vehicleId"])
	assert.Equal(t, json.Number("12.5"), p["energyDelivered"])
	assert.Equal(t, map[string]any{"a": []any{json.Number("1"), json.Number("2")}}, p["nested"])
}

func TestPayloadScanValue(t *testing.T) {
	v, err := Payload{"action": "start", "sessionId": 3}.Value()
	require.NoError(t, err)

	var p Payload
	require.NoError(t, p.Scan(v))
	assert.Equal(t, Payload{"action": "start", "sessionId": json.Number("3")}, p)

	require.NoError(t, p.Scan([]byte(`{"x":true}`)))
	assert.Equal(t, Payload{"x": true}, p)

	assert.Error(t, p.Scan(42))
}

func TestLedgerFilterMatches(t *testing.T) {
	p, err := NormalizePayload(Payload{"vehicleId": int64(5)})
	require.NoError(t, err)
	e := &LedgerEntry{Type: TxCharging, Payload: p}

	assert.True(t, LedgerFilter{}.Matches(e))
	assert.True(t, VehicleFilter(5).Matches(e))
	assert.False(t, VehicleFilter(6).Matches(e))
	assert.True(t, LedgerFilter{Type: TxCharging, PayloadKey: "vehicleId", PayloadValue: "5"}.Matches(e))
	assert.False(t, LedgerFilter{Type: TxAlert}.Matches(e))
	assert.False(t, LedgerFilter{PayloadKey: "missing", PayloadValue: ""}.Matches(e))
}

func TestTxTypeValid(t *testing.T) {
	for _, tt := range TxTypes {
		assert.True(t, tt.Valid())
	}
	assert.False(t, TxType("passport").Valid())
}
