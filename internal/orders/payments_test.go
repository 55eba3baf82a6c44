package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
	"github.com/sells-group/fieldops/internal/store/storetest"
)

func withInvoices() *store.Fixtures {
	f := storetest.Base()
	f.Invoices = []model.Invoice{
		{ID: "inv-1", InvoiceNumber: "INV-2026-0001", OrderID: "o-1", DealerID: "d-1",
			InvoiceDate: "2026-01-10", DueDate: "2026-02-09", Total: decimal.NewFromInt(10000), AmountPaid: decimal.NewFromInt(4000)},
		{ID: "inv-2", InvoiceNumber: "INV-2026-0002", OrderID: "o-2", DealerID: "d-1",
			InvoiceDate: "2026-03-01", DueDate: "2026-03-31", Total: decimal.NewFromInt(5000), AmountPaid: decimal.Zero},
		{ID: "inv-3", InvoiceNumber: "INV-2026-0003", OrderID: "o-3", DealerID: "d-1",
			InvoiceDate: "2026-01-01", DueDate: "2026-01-31", Total: decimal.NewFromInt(2000), AmountPaid: decimal.NewFromInt(2000)},
	}
	return f
}

func TestRecordPayment(t *testing.T) {
	svc, st := newTestService(t, withInvoices())
	ctx := context.Background()

	r, err := svc.RecordPayment(ctx, PaymentRequest{InvoiceID: "inv-2", Amount: decimal.NewFromInt(2000), CollectedBy: "sp-1"})
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePartial, r.Status)
	assert.Equal(t, "3000", r.Outstanding.String())
	assert.Equal(t, "Payment of Rs.2,000.00 recorded against INV-2026-0002. Outstanding: Rs.3,000.00", r.Message)

	r, err = svc.RecordPayment(ctx, PaymentRequest{InvoiceID: "inv-2", Amount: decimal.NewFromInt(3000), Mode: "UPI"})
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, r.Status)
	assert.True(t, r.Outstanding.IsZero())

	inv, err := st.GetInvoice(ctx, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, today, inv.PaidDate)
}

func TestRecordPayment_OverpaymentAccepted(t *testing.T) {
	svc, _ := newTestService(t, withInvoices())

	r, err := svc.RecordPayment(context.Background(), PaymentRequest{InvoiceID: "inv-1", Amount: decimal.NewFromInt(7000)})
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, r.Status)
	assert.Equal(t, "11000", r.AmountPaid.String())
	assert.True(t, r.Outstanding.IsZero())
}

func TestRecordPayment_Errors(t *testing.T) {
	svc, _ := newTestService(t, withInvoices())
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentRequest{Amount: decimal.NewFromInt(1)})
	assert.True(t, model.IsValidation(err))

	_, err = svc.RecordPayment(ctx, PaymentRequest{InvoiceID: "inv-1", Amount: decimal.NewFromInt(-5)})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "amount", ve.Field)

	_, err = svc.RecordPayment(ctx, PaymentRequest{InvoiceID: "inv-404", Amount: decimal.NewFromInt(1)})
	assert.True(t, model.IsNotFound(err))
}

func TestPaymentStatus(t *testing.T) {
	svc, _ := newTestService(t, withInvoices())

	sum, err := svc.PaymentStatus(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, "11000", sum.Outstanding.String())
	assert.Equal(t, "6000", sum.OverdueAmount.String())
	assert.Equal(t, 34, sum.MaxDaysOverdue, "2026-02-09 to 2026-03-15")
	assert.Equal(t, 2, sum.OpenInvoices)
	assert.Equal(t, 1, sum.OverdueInvoices)
	assert.InDelta(t, 2.2, sum.CreditUtilization, 1e-9)
	require.Len(t, sum.Invoices, 2)
	assert.Equal(t, model.InvoiceOverdue, sum.Invoices[0].Status)
	assert.Equal(t, model.InvoiceUnpaid, sum.Invoices[1].Status)
}

func TestPaymentStatus_Errors(t *testing.T) {
	svc, _ := newTestService(t, withInvoices())
	ctx := context.Background()

	_, err := svc.PaymentStatus(ctx, "")
	assert.True(t, model.IsValidation(err))
	_, err = svc.PaymentStatus(ctx, "d-404")
	assert.True(t, model.IsNotFound(err))
}
