package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	DealerID string `json:"dealer_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
	Kind     string `json:"kind,omitempty" validate:"omitempty,oneof=dealer product"`
	Date     string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

func TestValidateRequest(t *testing.T) {
	require.NoError(t, ValidateRequest(sampleRequest{DealerID: "d-1", Quantity: 1}))

	tests := []struct {
		name   string
		req    sampleRequest
		field  string
		reason string
	}{
		{"missing dealer", sampleRequest{Quantity: 1}, "dealer_id", "is required"},
		{"zero quantity", sampleRequest{DealerID: "d-1"}, "quantity", "must be > 0"},
		{"bad kind", sampleRequest{DealerID: "d-1", Quantity: 1, Kind: "rep"}, "kind", "must be one of [dealer product]"},
		{"bad date", sampleRequest{DealerID: "d-1", Quantity: 1, Date: "03/10/2026"}, "date", "must be a YYYY-MM-DD date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			require.Error(t, err)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Equal(t, tt.reason, ve.Reason)
		})
	}
}
