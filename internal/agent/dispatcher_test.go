package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/alerts"
	"github.com/sells-group/fieldops/internal/commitment"
	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/orders"
	"github.com/sells-group/fieldops/internal/resilience"
	"github.com/sells-group/fieldops/internal/resolve"
	"github.com/sells-group/fieldops/internal/store"
	"github.com/sells-group/fieldops/internal/store/storetest"
)

const today = "2026-03-15"

func newTestDispatcher(t *testing.T, f *store.Fixtures) *Dispatcher {
	t.Helper()
	st := storetest.Seeded(t, f)
	return NewDispatcher(NewServices(st, config.Defaults(), nil, model.FixedClock(today)))
}

func fixtures() *store.Fixtures {
	f := storetest.Base()
	f.Commitments = []model.Commitment{storetest.Commitment("c-1", 24, 0, "2026-03-12")}
	f.Inventory = []model.InventoryRow{{ProductID: "p-1", WarehouseID: "w-1", OnHand: 100, Reserved: 10}}
	return f
}

func TestFunctions(t *testing.T) {
	d := newTestDispatcher(t, storetest.Base())
	names := d.Functions()
	for _, fn := range []string{
		"resolve_entity", "get_dealer_health_score", "suggest_visit_plan", "get_pending_commitments",
		"consume_commitment", "check_inventory", "create_order", "create_visit_record",
		"create_commitment", "generate_alert", "send_manager_alert", "get_active_alerts", "get_order",
	} {
		assert.Contains(t, names, fn)
	}
	assert.IsIncreasing(t, names)
}

func TestCall_UnknownFunction(t *testing.T) {
	d := newTestDispatcher(t, storetest.Base())

	resp := d.Call(context.Background(), "delete_everything", nil)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, KindValidation, resp.Error.Kind)
	assert.Equal(t, "function", resp.Error.Field)
}

func TestCall_ConsumeCommitment(t *testing.T) {
	d := newTestDispatcher(t, fixtures())

	resp := d.Call(context.Background(), "consume_commitment", Params{
		"dealer_id": "d-1", "product_id": "p-1", "order_quantity": "30",
	})
	require.True(t, resp.Success, "%+v", resp.Error)
	res, ok := resp.Result.(*model.ConsumptionResult)
	require.True(t, ok)
	assert.Equal(t, 24, res.ConsumedTotal)
	assert.Equal(t, 6, res.UnmatchedTotal)
	require.Len(t, res.Details, 1)
	assert.Equal(t, model.CommitmentConverted, res.Details[0].Status)
}

func TestCall_ConsumeIdempotent(t *testing.T) {
	d := newTestDispatcher(t, fixtures())
	ctx := context.Background()
	params := Params{"dealer_id": "d-1", "product_id": "p-1", "order_quantity": 10.0, "order_id": "o-77"}

	first := d.Call(ctx, "consume_commitment", params)
	require.True(t, first.Success)
	second := d.Call(ctx, "consume_commitment", params)
	require.True(t, second.Success)

	res := second.Result.(*model.ConsumptionResult)
	assert.True(t, res.Replayed)
	assert.Equal(t, 10, res.ConsumedTotal)

	pending := d.Call(ctx, "get_pending_commitments", Params{"dealer_id": "d-1"})
	require.True(t, pending.Success)
	pipe := pending.Result.(*commitment.Pipeline)
	require.Len(t, pipe.Commitments, 1)
	assert.Equal(t, 10, pipe.Commitments[0].ConvertedQuantity, "replay does not consume twice")
}

func TestCall_ValidationErrors(t *testing.T) {
	d := newTestDispatcher(t, fixtures())
	ctx := context.Background()

	resp := d.Call(ctx, "consume_commitment", Params{"dealer_id": "d-1", "product_id": "p-1"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, KindValidation, resp.Error.Kind)
	assert.Equal(t, "order_quantity", resp.Error.Field)

	resp = d.Call(ctx, "check_inventory", Params{"product_id": "p-1", "quantity": "lots"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, KindValidation, resp.Error.Kind)
	assert.Equal(t, "quantity", resp.Error.Field)

	resp = d.Call(ctx, "get_dealer_profile", Params{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, "dealer_id", resp.Error.Field)
}

func TestCall_NotFound(t *testing.T) {
	d := newTestDispatcher(t, fixtures())

	resp := d.Call(context.Background(), "get_dealer_health_score", Params{"dealer_id": "d-404"})
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, KindNotFound, resp.Error.Kind)
	assert.Equal(t, "dealer", resp.Error.Entity)
	assert.Equal(t, "d-404", resp.Error.ID)
}

func TestCall_CheckInventory(t *testing.T) {
	d := newTestDispatcher(t, fixtures())
	ctx := context.Background()

	first := d.Call(ctx, "check_inventory", Params{"product_id": "p-1", "quantity": "120"})
	require.True(t, first.Success)
	a := first.Result.(*model.Availability)
	assert.Equal(t, 90, a.ATP)
	assert.Equal(t, 30, a.Shortfall)
	assert.False(t, a.CanFulfill)

	second := d.Call(ctx, "check_inventory", Params{"product_id": "p-1", "quantity": "120"})
	assert.Equal(t, a.ATP, second.Result.(*model.Availability).ATP)
}

func TestCall_OrderFlow(t *testing.T) {
	d := newTestDispatcher(t, fixtures())
	ctx := context.Background()

	resp := d.Call(ctx, "create_order", Params{"dealer_id": "d-1", "product_id": "p-1", "quantity": "5", "sales_person_id": "sp-1"})
	require.True(t, resp.Success, "%+v", resp.Error)
	created := resp.Result.(*orders.Created)
	assert.Equal(t, "590", created.Total.String())

	one := d.Call(ctx, "get_order", Params{"order_id": created.OrderID})
	require.True(t, one.Success, "%+v", one.Error)
	assert.Equal(t, created.OrderNumber, one.Result.(*model.Order).OrderNumber)

	hist := d.Call(ctx, "get_order_history", Params{"dealer_id": "d-1"})
	require.True(t, hist.Success)
	assert.Len(t, hist.Result.(orderHistory).Orders, 1)

	pay := d.Call(ctx, "record_payment", Params{"invoice_id": created.InvoiceID, "amount": "1,000"})
	require.True(t, pay.Success, "%+v", pay.Error)
	assert.Equal(t, model.InvoicePaid, pay.Result.(*orders.Receipt).Status)

	status := d.Call(ctx, "get_payment_status", Params{"dealer_id": "d-1"})
	require.True(t, status.Success)
	assert.True(t, status.Result.(*model.PaymentSummary).Outstanding.IsZero())
}

func TestCall_ResolveAndCommit(t *testing.T) {
	d := newTestDispatcher(t, fixtures())
	ctx := context.Background()

	resp := d.Call(ctx, "resolve_entity", Params{"entity_type": "dealer", "entity_name": "sharma traders", "scope": "sp-1"})
	require.True(t, resp.Success)
	res := resp.Result.(*resolve.Resolution)
	assert.Equal(t, "d-1", res.ID)

	visit := d.Call(ctx, "create_visit_record", Params{"dealer_id": res.ID, "purpose": "ORDER", "raw_notes": "will order next week"})
	require.True(t, visit.Success, "%+v", visit.Error)

	c := d.Call(ctx, "create_commitment", Params{
		"dealer_id": res.ID, "product_id": "p-1", "quantity_promised": "40",
		"expected_order_date": "2026-03-20", "confidence_score": "0.9",
	})
	require.True(t, c.Success, "%+v", c.Error)
	assert.Equal(t, "Commitment recorded: 40 x OPC 53 expected by 2026-03-20", c.Result.(*commitment.Created).Message)

	plan := d.Call(ctx, "suggest_visit_plan", Params{"sales_person_id": "sp-1", "max_dealers": "3"})
	require.True(t, plan.Success, "%+v", plan.Error)

	exp := d.Call(ctx, "expire_commitments", Params{"grace_days": "0"})
	require.True(t, exp.Success)
	assert.Equal(t, 1, exp.Result.(expired).Expired, "c-1 expected 2026-03-12")
}

func TestCall_Alerts(t *testing.T) {
	d := newTestDispatcher(t, fixtures())
	ctx := context.Background()

	resp := d.Call(ctx, "send_manager_alert", Params{"alert_type": "PAYMENT_OVERDUE", "dealer_id": "d-1", "priority": "HIGH"})
	require.True(t, resp.Success)
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"delivery_status":"skipped"`)

	active := d.Call(ctx, "get_active_alerts", Params{"assigned_to": "sp-mgr"})
	require.True(t, active.Success, "%+v", active.Error)
	list := active.Result.(*alerts.ActiveList)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "PAYMENT_OVERDUE", list.Alerts[0].Type)

	missing := d.Call(ctx, "get_active_alerts", Params{"assigned_to": "sp-404"})
	require.False(t, missing.Success)
	assert.Equal(t, KindNotFound, missing.Error.Kind)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"validation", eris.Wrap(model.NewValidationError("x", "bad"), "wrapped"), KindValidation},
		{"not found", model.NewNotFound("product", "p-9"), KindNotFound},
		{"conflict", resilience.NewTransientError(eris.Wrap(model.ErrConflict, "retries exhausted"), 0), KindConflict},
		{"transient", resilience.NewTransientError(errors.New("502"), 502), KindUnavailable},
		{"timeout", fmt.Errorf("store: %w", context.DeadlineExceeded), KindUnavailable},
		{"other", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, Classify(tt.err).Kind)
		})
	}
	assert.True(t, Classify(model.ErrConflict).Retryable)
	assert.Equal(t, "internal error", Classify(errors.New("secret dsn")).Message)
}
