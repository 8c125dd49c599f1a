package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langchou/voltledger/internal/models"
)

func TestVehicleStatusMachine(t *testing.T) {
	m := NewVehicleStatusMachine(models.VehicleActive)
	assert.True(t, m.Can(EventDeactivate))
	assert.False(t, m.Can(EventActivate))

	next, err := m.Trigger(EventDeactivate)
	require.NoError(t, err)
	assert.Equal(t, string(models.VehicleInactive), next)

	_, err = NewVehicleStatusMachine(models.VehicleInactive).Trigger(EventDeactivate)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestTransferRequestMachine(t *testing.T) {
	cases := []struct {
		from    string
		event   string
		want    string
		wantErr bool
	}{
		{models.RequestPending, EventApprove, models.RequestApproved, false},
		{models.RequestPending, EventReject, models.RequestRejected, false},
		{models.RequestPending, EventCancel, models.RequestCancelled, false},
		{models.RequestApproved, EventComplete, models.RequestCompleted, false},
		{models.RequestApproved, EventFail, models.RequestFailed, false},
		{models.RequestApproved, EventApprove, "", true},
		{models.RequestCompleted, EventCancel, "", true},
		{models.RequestRejected, EventApprove, "", true},
		{models.RequestPending, EventComplete, "", true},
	}

	for _, tc := range cases {
		t.Run(tc.from+"/"+tc.event, func(t *testing.T) {
			got, err := NewTransferRequestMachine(tc.from).Trigger(tc.event)
			if tc.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
