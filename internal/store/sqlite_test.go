package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// newSeededSQLiteStore loads testdata/fixtures.yaml.
func newSeededSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s := newTestSQLiteStore(t)
	f, err := LoadFixtures(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.ImportFixtures(context.Background(), f))
	return s
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Ping(context.Background()))
}

func TestSQLite_Dealers(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	d, err := s.GetDealer(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "Sharma Traders", d.Name)
	assert.True(t, decimal.RequireFromString("200000").Equal(d.CreditLimit))
	require.NotNil(t, d.Latitude)
	assert.InDelta(t, 18.5204, *d.Latitude, 1e-9)
	assert.Equal(t, model.DealerActive, d.Status)

	d2, err := s.GetDealer(ctx, "d-2")
	require.NoError(t, err)
	assert.Nil(t, d2.Latitude)
	assert.Empty(t, d2.LastOrderDate)

	_, err = s.GetDealer(ctx, "nope")
	assert.True(t, model.IsNotFound(err))

	active, err := s.ListDealers(ctx, model.DealerFilter{SalesPersonID: "sp-rep-1", Status: model.DealerActive})
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "d-2", active[0].ID, "ordered by name")

	all, err := s.ListDealers(ctx, model.DealerFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLite_ProductsAndPeople(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	p, err := s.GetProduct(ctx, "p-2")
	require.NoError(t, err)
	assert.Equal(t, "62.5", p.DealerPrice.String())

	products, err := s.ListProducts(ctx, model.ProductActive)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	_, err = s.GetProduct(ctx, "p-404")
	assert.True(t, model.IsNotFound(err))

	mgr, err := s.FindManager(ctx)
	require.NoError(t, err)
	require.NotNil(t, mgr)
	assert.Equal(t, "555001", mgr.TelegramChatID)

	rep, err := s.GetSalesPerson(ctx, "sp-rep-1")
	require.NoError(t, err)
	assert.Equal(t, model.RoleRep, rep.Role)
	assert.True(t, rep.Active)
}

func TestSQLite_FindManager_None(t *testing.T) {
	s := newTestSQLiteStore(t)
	mgr, err := s.FindManager(context.Background())
	require.NoError(t, err)
	assert.Nil(t, mgr)
}

func TestSQLite_CreateVisit_TouchesDealer(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	v := &model.Visit{
		DealerID:         "d-1",
		SalesPersonID:    "sp-rep-1",
		VisitDate:        "2026-03-14",
		Purpose:          model.PurposeCollection,
		Outcome:          model.VisitSuccessful,
		CollectionAmount: decimal.RequireFromString("2500"),
	}
	require.NoError(t, s.CreateVisit(ctx, v))
	assert.NotEmpty(t, v.ID)

	d, err := s.GetDealer(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", d.LastVisitDate)

	// An older visit never moves last_visit_date back.
	require.NoError(t, s.CreateVisit(ctx, &model.Visit{DealerID: "d-1", SalesPersonID: "sp-rep-1", VisitDate: "2026-02-01"}))
	d, err = s.GetDealer(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", d.LastVisitDate)

	visits, err := s.ListRecentVisits(ctx, "d-1", 2)
	require.NoError(t, err)
	require.Len(t, visits, 2)
	assert.Equal(t, "2026-03-14", visits[0].VisitDate)
	assert.True(t, visits[0].CollectionAmount.Equal(decimal.NewFromInt(2500)))

	err = s.CreateVisit(ctx, &model.Visit{DealerID: "ghost", SalesPersonID: "sp-rep-1", VisitDate: "2026-03-14"})
	assert.True(t, model.IsNotFound(err))
	_, err = s.GetVisit(ctx, "missing")
	assert.True(t, model.IsNotFound(err))
}

func TestSQLite_Commitments(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	open, err := s.ListOpenCommitments(ctx, "d-1", "p-1")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "c-1", open[0].ID)
	assert.Equal(t, model.CommitmentPartial, open[1].Status)

	c := &model.Commitment{
		DealerID:          "d-2",
		ProductID:         "p-2",
		QuantityPromised:  40,
		CommitmentDate:    "2026-03-15",
		ExpectedOrderDate: "2026-03-22",
		Confidence:        0.8,
		Status:            model.CommitmentPending,
	}
	require.NoError(t, s.CreateCommitment(ctx, c))
	got, err := s.GetCommitment(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, got.QuantityPromised)

	bad := &model.Commitment{DealerID: "d-2", ProductID: "p-2", QuantityPromised: 0, Status: model.CommitmentPending}
	assert.True(t, model.IsValidation(s.CreateCommitment(ctx, bad)))

	n, err := s.ExpireCommitments(ctx, "2026-03-12")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only untouched PENDING commitments expire")
	got, err = s.GetCommitment(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, model.CommitmentExpired, got.Status)
}

func TestSQLite_CancelCommitment(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.CancelCommitment(ctx, "c-1"))
	got, err := s.GetCommitment(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, model.CommitmentCancelled, got.Status)

	assert.True(t, model.IsValidation(s.CancelCommitment(ctx, "c-2")))
	assert.True(t, model.IsNotFound(s.CancelCommitment(ctx, "c-404")))
}

func TestSQLite_WithTx_ConversionCAS(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx Tx) error {
		open, err := tx.LockOpenCommitments(ctx, "d-1", "p-1")
		require.NoError(t, err)
		require.Len(t, open, 2)

		require.NoError(t, tx.UpdateCommitmentConversion(ctx, "c-1", 0, 100, model.CommitmentConverted, "2026-03-15"))
		err = tx.UpdateCommitmentConversion(ctx, "c-2", 0, 30, model.CommitmentPartial, "")
		assert.True(t, model.IsConflict(err), "stale expected quantity must conflict")
		return nil
	})
	require.NoError(t, err)

	c1, err := s.GetCommitment(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 100, c1.ConvertedQuantity)
	assert.Equal(t, model.CommitmentConverted, c1.Status)
	assert.Equal(t, "2026-03-15", c1.ConversionDate)
}

func TestSQLite_WithTx_RollbackOnError(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx Tx) error {
		require.NoError(t, tx.UpdateCommitmentConversion(ctx, "c-1", 0, 10, model.CommitmentPartial, ""))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	c1, err := s.GetCommitment(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 0, c1.ConvertedQuantity)
	assert.Equal(t, model.CommitmentPending, c1.Status)
}

func TestSQLite_ConsumptionLog(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	result := &model.ConsumptionResult{
		DealerID:      "d-1",
		ProductID:     "p-1",
		OrderQuantity: 40,
		ConsumedTotal: 40,
		FullyMatched:  true,
		Details: []model.ConsumptionDetail{
			{CommitmentID: "c-1", Consumed: 40, Converted: 40, Status: model.CommitmentPartial, Kind: model.ConsumptionBackward},
		},
	}

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		got, err := tx.GetConsumption(ctx, "order-1")
		require.NoError(t, err)
		assert.Nil(t, got)
		return tx.SaveConsumption(ctx, "order-1", result)
	}))

	require.NoError(t, s.WithTx(ctx, func(tx Tx) error {
		got, err := tx.GetConsumption(ctx, "order-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, 40, got.ConsumedTotal)
		require.Len(t, got.Details, 1)
		assert.Equal(t, model.ConsumptionBackward, got.Details[0].Kind)

		assert.True(t, model.IsConflict(tx.SaveConsumption(ctx, "order-1", result)))
		return nil
	}))
}

func TestSQLite_CreateOrder(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	no := &model.NewOrder{
		Order: model.Order{
			DealerID:     "d-2",
			CommitmentID: "c-1",
			OrderDate:    "2026-03-15",
			Status:       model.OrderConfirmed,
			Subtotal:     decimal.RequireFromString("3800"),
			Tax:          decimal.RequireFromString("684"),
			Total:        decimal.RequireFromString("4484"),
			Source:       "FIELD",
		},
		Item: model.OrderItem{ProductID: "p-1", Quantity: 10, UnitPrice: decimal.RequireFromString("380"), LineTotal: decimal.RequireFromString("3800")},
		Invoice: model.Invoice{
			InvoiceDate: "2026-03-15",
			DueDate:     "2026-03-30",
			Total:       decimal.RequireFromString("4484"),
			Status:      model.InvoiceUnpaid,
		},
	}
	require.NoError(t, s.CreateOrder(ctx, no, "ORD"))
	assert.Equal(t, "ORD-2026-0002", no.Order.OrderNumber, "fixture already holds 0001")
	assert.Equal(t, "INV-2026-0003", no.Invoice.InvoiceNumber)

	got, err := s.GetOrder(ctx, no.Order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 10, got.Items[0].Quantity)
	assert.True(t, got.Total.Equal(decimal.NewFromInt(4484)))

	d, err := s.GetDealer(ctx, "d-2")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", d.LastOrderDate)

	c, err := s.GetCommitment(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, no.Order.ID, c.ConvertedOrderID)

	orders, err := s.ListOrders(ctx, "d-2", 5)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	invoices, err := s.ListOpenInvoices(ctx, "d-2")
	require.NoError(t, err)
	require.Len(t, invoices, 1)
	assert.Equal(t, no.Order.ID, invoices[0].OrderID)
}

func TestSQLite_CreateOrder_UnknownDealerRollsBack(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	no := &model.NewOrder{
		Order:   model.Order{DealerID: "ghost", OrderDate: "2026-03-15", Status: model.OrderConfirmed},
		Item:    model.OrderItem{ProductID: "p-1", Quantity: 1},
		Invoice: model.Invoice{InvoiceDate: "2026-03-15", DueDate: "2026-03-15", Status: model.InvoiceUnpaid},
	}
	err := s.CreateOrder(ctx, no, "ORD")
	assert.True(t, model.IsNotFound(err))
	assert.Empty(t, no.Order.OrderNumber)

	_, err = s.GetOrder(ctx, no.Order.ID)
	assert.True(t, model.IsNotFound(err))
}

func TestSQLite_RecordPayment(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	inv, err := s.RecordPayment(ctx, &model.Payment{InvoiceID: "inv-1", Amount: decimal.RequireFromString("484"), PaymentDate: "2026-03-15"})
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePartial, inv.Status)
	assert.True(t, inv.Outstanding().Equal(decimal.NewFromInt(3000)))

	_, err = s.RecordPayment(ctx, &model.Payment{InvoiceID: "inv-1", Amount: decimal.Zero, PaymentDate: "2026-03-15"})
	assert.True(t, model.IsValidation(err))

	inv, err = s.RecordPayment(ctx, &model.Payment{InvoiceID: "inv-1", Amount: decimal.RequireFromString("3000"), PaymentDate: "2026-03-16"})
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, inv.Status)
	assert.Equal(t, "2026-03-16", inv.PaidDate)

	stored, err := s.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.Equal(decimal.NewFromInt(4484)))

	_, err = s.RecordPayment(ctx, &model.Payment{InvoiceID: "inv-404", Amount: decimal.NewFromInt(1), PaymentDate: "2026-03-16"})
	assert.True(t, model.IsNotFound(err))
}

func TestSQLite_InventoryPosition(t *testing.T) {
	s := newSeededSQLiteStore(t)

	pos, err := s.InventoryPosition(context.Background(), "p-1", "2026-03-22")
	require.NoError(t, err)
	assert.Equal(t, 500, pos.OnHand)
	assert.Equal(t, 50, pos.Reserved)
	assert.Equal(t, 10, pos.PendingOrders)
	assert.Equal(t, 200, pos.Incoming)

	empty, err := s.InventoryPosition(context.Background(), "p-2", "2026-03-22")
	require.NoError(t, err)
	assert.Zero(t, empty.OnHand)
}

func TestSQLite_HealthInputsAndSnapshots(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	in, err := s.HealthInputs(ctx, "d-1", "2025-09-15", "2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, "Sharma Traders", in.DealerName)
	assert.Equal(t, "2026-02-20", in.LastOrderDate)
	assert.Equal(t, 1, in.OrderCount)
	assert.Equal(t, 2, in.InvoiceCount)
	assert.Equal(t, 1, in.OnTimeInvoices)
	assert.Equal(t, 3, in.CommitmentCount)
	assert.Equal(t, 1, in.ConvertedCommits)

	_, err = s.HealthInputs(ctx, "ghost", "2025-09-15", "2026-03-15")
	assert.True(t, model.IsNotFound(err))

	none, err := s.LatestHealthSnapshot(ctx, "d-1")
	require.NoError(t, err)
	assert.Nil(t, none)

	rate := 0.5
	for _, day := range []string{"2026-03-01", "2026-03-14"} {
		require.NoError(t, s.SaveHealthSnapshot(ctx, &model.HealthSnapshot{
			DealerID:          "d-1",
			CalculatedDate:    day,
			Score:             62.5,
			Status:            model.HealthAtRisk,
			PaymentOnTimeRate: &rate,
			Reasons:           []string{"Payment delays"},
		}))
	}
	latest, err := s.LatestHealthSnapshot(ctx, "d-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-03-14", latest.CalculatedDate)
	assert.Equal(t, []string{"Payment delays"}, latest.Reasons)
	assert.Nil(t, latest.CommitmentRate)
	assert.Equal(t, model.SourcePrecomputed, latest.Source)
}

func TestSQLite_PlanningCandidates(t *testing.T) {
	s := newSeededSQLiteStore(t)
	ctx := context.Background()

	score := 42.0
	require.NoError(t, s.SaveHealthSnapshot(ctx, &model.HealthSnapshot{
		DealerID: "d-1", CalculatedDate: "2026-03-14", Score: score, Status: model.HealthCritical, DaysSinceLastOrder: 22,
	}))

	cands, err := s.PlanningCandidates(ctx, "sp-rep-1", "2026-03-15", "2026-03-18")
	require.NoError(t, err)
	require.Len(t, cands, 2, "inactive dealers are excluded")

	byID := map[string]model.PlanningCandidate{}
	for _, c := range cands {
		byID[c.Dealer.ID] = c
	}

	d1 := byID["d-1"]
	require.NotNil(t, d1.HealthScore)
	assert.InDelta(t, 42.0, *d1.HealthScore, 1e-9)
	require.NotNil(t, d1.SnapshotDaysSinceOrder)
	assert.Equal(t, 22, *d1.SnapshotDaysSinceOrder)
	assert.True(t, d1.OverdueAmount.Equal(decimal.NewFromInt(3484)), d1.OverdueAmount.String())
	assert.Equal(t, 8, d1.DaysOverdue)
	assert.Equal(t, 1, d1.ExpiringCommitments, "only c-2 falls inside the window")

	d2 := byID["d-2"]
	assert.Nil(t, d2.HealthScore)
	assert.True(t, d2.OverdueAmount.IsZero())
	assert.Zero(t, d2.DaysOverdue)
}

func TestSQLite_Alerts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	a := &model.Alert{
		Type:       "PAYMENT_OVERDUE",
		Priority:   model.PriorityHigh,
		EntityType: "dealer",
		EntityID:   "d-1",
		Title:      "Payment Overdue",
		Message:    "Rs.3484 overdue",
		Status:     model.AlertActive,
	}
	require.NoError(t, s.CreateAlert(ctx, a))
	require.NoError(t, s.MarkAlertNotified(ctx, a.ID))
	assert.True(t, model.IsNotFound(s.MarkAlertNotified(ctx, "missing")))

	alerts, err := s.ListActiveAlerts(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].NotificationSent)
	assert.Equal(t, "PAYMENT_OVERDUE", alerts[0].Type)
}

func TestSQLite_ImportFixturesIsRepeatable(t *testing.T) {
	s := newSeededSQLiteStore(t)
	f, err := LoadFixtures(filepath.Join("testdata", "fixtures.yaml"))
	require.NoError(t, err)
	require.NoError(t, s.ImportFixtures(context.Background(), f))

	dealers, err := s.ListDealers(context.Background(), model.DealerFilter{})
	require.NoError(t, err)
	assert.Len(t, dealers, 3)
}
