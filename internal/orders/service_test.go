package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
	"github.com/sells-group/fieldops/internal/store/storetest"
)

const today = "2026-03-15"

func newTestService(t *testing.T, f *store.Fixtures) (*Service, store.Store) {
	t.Helper()
	st := storetest.Seeded(t, f)
	return NewService(st, config.Defaults().Orders, model.FixedClock(today)), st
}

func TestPrice(t *testing.T) {
	sub, tax, total := Price(decimal.NewFromInt(100), 10, 18)
	assert.Equal(t, "1000", sub.String())
	assert.Equal(t, "180", tax.String())
	assert.Equal(t, "1180", total.String())

	sub, tax, total = Price(decimal.RequireFromString("333.33"), 3, 18)
	assert.Equal(t, "999.99", sub.String())
	assert.Equal(t, "180", tax.String(), "179.9982 rounds to 180.00")
	assert.Equal(t, "1179.99", total.String())
}

func TestCreate(t *testing.T) {
	svc, st := newTestService(t, storetest.Base())
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 10})
	require.NoError(t, err)

	assert.Equal(t, "ORD-2026-0001", out.OrderNumber)
	assert.Equal(t, "INV-2026-0001", out.InvoiceNumber)
	assert.Equal(t, "1180", out.Total.String())
	assert.Equal(t, "180", out.Tax.String())
	assert.Equal(t, model.OrderConfirmed, out.Status)
	assert.Equal(t, "2026-04-14", out.DueDate, "30 credit days")
	assert.Equal(t, "Order ORD-2026-0001 created: 10 units of OPC 53. Total: Rs.1,180.00", out.Message)

	order, err := st.GetOrder(ctx, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "sp-1", order.SalesPersonID, "defaults to the dealer's rep")
	assert.Equal(t, "2026-03-17", order.RequestedDeliveryDate)
	assert.Equal(t, "2026-03-18", order.PromisedDeliveryDate)
	assert.Equal(t, SourceField, order.Source)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 10, order.Items[0].Quantity)

	inv, err := st.GetInvoice(ctx, out.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceUnpaid, inv.Status)
	assert.True(t, inv.Total.Equal(out.Total))

	dealer, err := st.GetDealer(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, today, dealer.LastOrderDate)

	second, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 1, SalesPersonID: "sp-9"})
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-0002", second.OrderNumber)
}

func TestCreate_ZeroRatedTax(t *testing.T) {
	cfg := config.Defaults().Orders
	cfg.TaxRatePercent = 0
	svc := NewService(storetest.Seeded(t, storetest.Base()), cfg, model.FixedClock(today))

	out, err := svc.Create(context.Background(), CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 10})
	require.NoError(t, err)
	assert.True(t, out.Tax.IsZero())
	assert.Equal(t, "1000", out.Total.String())
}

func TestGet(t *testing.T) {
	svc, _ := newTestService(t, storetest.Base())
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 2})
	require.NoError(t, err)

	order, err := svc.Get(ctx, out.OrderID)
	require.NoError(t, err)
	assert.Equal(t, out.OrderNumber, order.OrderNumber)

	_, err = svc.Get(ctx, "")
	assert.True(t, model.IsValidation(err))

	_, err = svc.Get(ctx, "o-404")
	assert.True(t, model.IsNotFound(err))
}

func TestCreate_LinksCommitment(t *testing.T) {
	f := storetest.Base()
	f.Commitments = append(f.Commitments, storetest.Commitment("c-1", 20, 0, "2026-03-16"))
	svc, st := newTestService(t, f)
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 5, CommitmentID: "c-1"})
	require.NoError(t, err)

	c, err := st.GetCommitment(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, out.OrderID, c.ConvertedOrderID)
	assert.Equal(t, 0, c.ConvertedQuantity, "linking does not consume")
}

func TestCreate_Errors(t *testing.T) {
	svc, _ := newTestService(t, storetest.Base())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", ProductID: "p-1"})
	assert.True(t, model.IsValidation(err))

	_, err = svc.Create(ctx, CreateRequest{ProductID: "p-1", Quantity: 1})
	assert.True(t, model.IsValidation(err))

	_, err = svc.Create(ctx, CreateRequest{DealerID: "d-404", ProductID: "p-1", Quantity: 1})
	assert.True(t, model.IsNotFound(err))

	_, err = svc.Create(ctx, CreateRequest{DealerID: "d-1", ProductID: "p-404", Quantity: 1})
	assert.True(t, model.IsNotFound(err))

	_, err = svc.Create(ctx, CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 1, CommitmentID: "c-404"})
	assert.True(t, model.IsNotFound(err))
}
