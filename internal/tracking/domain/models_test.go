package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeforeSaveEncodesInfoAndContract(t *testing.T) {
	tracking := &ConsumptionTracking{
		TrackingNumber: "t-1",
		TrackingType:   TrackingTypePrepaid,
		Info: &PrepaidTrackingInfo{
			ContractNumber: "P-1",
			PowerRecharged: decimal.RequireFromString("12.5"),
		},
	}

	require.NoError(t, tracking.BeforeSave(nil))
	assert.Equal(t, "P-1", tracking.ContractNumber)

	tracking.Info = nil
	require.NoError(t, tracking.AfterFind(nil))
	info, ok := tracking.Prepaid()
	require.True(t, ok)
	assert.True(t, info.PowerRecharged.Equal(decimal.RequireFromString("12.5")))
}

func TestBeforeSaveRejectsMismatchedVariant(t *testing.T) {
	tracking := &ConsumptionTracking{
		TrackingType: TrackingTypePostpaid,
		Info:         &PrepaidTrackingInfo{ContractNumber: "P-1"},
	}
	assert.Error(t, tracking.BeforeSave(nil))
}

func TestDecodeInfoUnknownType(t *testing.T) {
	_, err := DecodeInfo("hybrid", []byte(`{}`))
	assert.Error(t, err)
}
