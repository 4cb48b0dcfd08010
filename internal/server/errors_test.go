package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	dunningdomain "github.com/smallbiznis/utilitybilling/internal/dunning/domain"
	invoicedomain "github.com/smallbiznis/utilitybilling/internal/invoice/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorConflictsHideCause(t *testing.T) {
	driverErr := errors.New(`ERROR: duplicate key value violates unique constraint "ux_invoices_tracking" (SQLSTATE 23505)`)

	cases := map[string]struct {
		err     error
		message string
	}{
		"already invoiced": {
			err:     fmt.Errorf("insert postpaid invoices: %w", fmt.Errorf("%w: %v", invoicedomain.ErrAlreadyInvoiced, driverErr)),
			message: "tracking already invoiced",
		},
		"concurrent update": {
			err:     fmt.Errorf("advance dunning: %w", invoicedomain.ErrConcurrentUpdate),
			message: "invoice was modified concurrently",
		},
		"dunning limit": {
			err:     dunningdomain.ErrDunningLimitReached,
			message: "dunning limit reached",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, http.StatusConflict, status)
			assert.Equal(t, "conflict", payload.Type)
			assert.Equal(t, tc.message, payload.Message)
			assert.NotContains(t, payload.Message, "ux_invoices_tracking")
		})
	}
}
