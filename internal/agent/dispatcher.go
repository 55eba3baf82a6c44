// Package agent exposes the domain services as named functions that an
// orchestrating agent can call with a loose parameter bag.
package agent

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/alerts"
	"github.com/sells-group/fieldops/internal/commitment"
	"github.com/sells-group/fieldops/internal/inventory"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/orders"
	"github.com/sells-group/fieldops/internal/planner"
	"github.com/sells-group/fieldops/internal/resilience"
	"github.com/sells-group/fieldops/internal/resolve"
	"github.com/sells-group/fieldops/internal/visits"
)

// Error kinds reported to callers.
const (
	KindValidation  = "validation"
	KindNotFound    = "not_found"
	KindConflict    = "conflict"
	KindUnavailable = "unavailable"
	KindInternal    = "internal"
)

// Response is the outcome of one function call.
type Response struct {
	Success  bool   `json:"success"`
	Function string `json:"function"`
	Result   any    `json:"result,omitempty"`
	Error    *Error `json:"error,omitempty"`
}

// Error is a classified failure. Retryable is set for conflicts and
// unavailable dependencies.
type Error struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Entity    string `json:"entity,omitempty"`
	ID        string `json:"id,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

type handler func(ctx context.Context, p Params) (any, error)

// Dispatcher routes function calls to services.
type Dispatcher struct {
	svc      *Services
	handlers map[string]handler
}

// NewDispatcher registers every function against svc.
func NewDispatcher(svc *Services) *Dispatcher {
	d := &Dispatcher{svc: svc}
	d.handlers = map[string]handler{
		"resolve_entity":          d.resolveEntity,
		"get_dealer_profile":      d.dealerProfile,
		"get_dealer_health_score": d.healthScore,
		"suggest_visit_plan":      d.visitPlan,
		"get_pending_commitments": d.pendingCommitments,
		"consume_commitment":      d.consumeCommitment,
		"expire_commitments":      d.expireCommitments,
		"check_inventory":         d.checkInventory,
		"create_order":            d.createOrder,
		"get_order":               d.getOrder,
		"get_order_history":       d.orderHistory,
		"get_payment_status":      d.paymentStatus,
		"record_payment":          d.recordPayment,
		"create_visit_record":     d.createVisit,
		"get_recent_visits":       d.recentVisits,
		"create_commitment":       d.createCommitment,
		"generate_alert":          d.generateAlert,
		"send_manager_alert":      d.sendManagerAlert,
		"get_active_alerts":       d.activeAlerts,
	}
	return d
}

// Functions lists the registered function names in order.
func (d *Dispatcher) Functions() []string {
	names := make([]string, 0, len(d.handlers))
	for n := range d.handlers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Call runs one function. It never returns a Go error; failures are
// classified into the response.
func (d *Dispatcher) Call(ctx context.Context, function string, p Params) Response {
	h, ok := d.handlers[function]
	if !ok {
		return Response{Function: function, Error: &Error{
			Kind:    KindValidation,
			Field:   "function",
			Message: "Unknown function: " + function,
		}}
	}
	if p == nil {
		p = Params{}
	}

	result, err := h(ctx, p)
	if err != nil {
		e := Classify(err)
		log := zap.L().With(zap.String("function", function), zap.String("kind", e.Kind))
		if e.Kind == KindInternal || e.Kind == KindUnavailable {
			log.Error("agent: call failed", zap.Error(err))
		} else {
			log.Info("agent: call rejected", zap.String("message", e.Message))
		}
		return Response{Function: function, Error: e}
	}
	return Response{Success: true, Function: function, Result: result}
}

// Classify maps an error onto the caller-facing taxonomy.
func Classify(err error) *Error {
	var ve *model.ValidationError
	var nf *model.NotFoundError
	switch {
	case errors.As(err, &ve):
		return &Error{Kind: KindValidation, Field: ve.Field, Message: ve.Error()}
	case errors.As(err, &nf):
		return &Error{Kind: KindNotFound, Entity: nf.Entity, ID: nf.ID, Message: nf.Error()}
	case model.IsConflict(err):
		return &Error{Kind: KindConflict, Message: "concurrent update; re-read state and retry", Retryable: true}
	case resilience.IsTransient(err):
		return &Error{Kind: KindUnavailable, Message: "temporarily unavailable; retry later", Retryable: true}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindUnavailable, Message: "request timed out; outcome unknown, re-query before retrying", Retryable: true}
	default:
		return &Error{Kind: KindInternal, Message: "internal error"}
	}
}

func required(p Params, key string) (string, error) {
	v := p.String(key)
	if v == "" {
		return "", model.NewValidationError(key, "is required")
	}
	return v, nil
}

func (d *Dispatcher) resolveEntity(ctx context.Context, p Params) (any, error) {
	return d.svc.Resolver.Resolve(ctx, resolve.Request{
		EntityType:    p.String("entity_type"),
		Name:          p.String("entity_name"),
		SalesPersonID: p.First("sales_person_id", "scope"),
	})
}

func (d *Dispatcher) dealerProfile(ctx context.Context, p Params) (any, error) {
	id, err := required(p, "dealer_id")
	if err != nil {
		return nil, err
	}
	return d.svc.Store.GetDealer(ctx, id)
}

func (d *Dispatcher) healthScore(ctx context.Context, p Params) (any, error) {
	id := p.String("dealer_id")
	if p.Bool("live") {
		if id == "" {
			return nil, model.NewValidationError("dealer_id", "is required")
		}
		return d.svc.Health.Live(ctx, id)
	}
	return d.svc.Health.Score(ctx, id)
}

func (d *Dispatcher) visitPlan(ctx context.Context, p Params) (any, error) {
	n, err := p.Int("max_dealers", 0)
	if err != nil {
		return nil, err
	}
	return d.svc.Planner.Plan(ctx, planner.PlanRequest{SalesPersonID: p.String("sales_person_id"), MaxDealers: n})
}

func (d *Dispatcher) pendingCommitments(ctx context.Context, p Params) (any, error) {
	return d.svc.Commitments.Pending(ctx, p.String("dealer_id"), p.String("product_id"))
}

func (d *Dispatcher) consumeCommitment(ctx context.Context, p Params) (any, error) {
	qty, err := p.Int("order_quantity", 0)
	if err != nil {
		return nil, err
	}
	return d.svc.Engine.Consume(ctx, commitment.ConsumeRequest{
		DealerID:       p.String("dealer_id"),
		ProductID:      p.String("product_id"),
		OrderQuantity:  qty,
		IdempotencyKey: p.First("idempotency_key", "order_id"),
	})
}

type expired struct {
	Expired int `json:"expired"`
}

func (d *Dispatcher) expireCommitments(ctx context.Context, p Params) (any, error) {
	grace, err := p.Int("grace_days", -1)
	if err != nil {
		return nil, err
	}
	n, err := d.svc.Commitments.ExpireOverdue(ctx, grace)
	if err != nil {
		return nil, err
	}
	return expired{Expired: n}, nil
}

func (d *Dispatcher) checkInventory(ctx context.Context, p Params) (any, error) {
	qty, err := p.Int("quantity", 0)
	if err != nil {
		return nil, err
	}
	return d.svc.Inventory.Check(ctx, inventory.CheckRequest{ProductID: p.String("product_id"), Quantity: qty})
}

func (d *Dispatcher) createOrder(ctx context.Context, p Params) (any, error) {
	qty, err := p.Int("quantity", 0)
	if err != nil {
		return nil, err
	}
	return d.svc.Orders.Create(ctx, orders.CreateRequest{
		DealerID:      p.String("dealer_id"),
		ProductID:     p.String("product_id"),
		Quantity:      qty,
		SalesPersonID: p.String("sales_person_id"),
		CommitmentID:  p.String("commitment_id"),
		Notes:         p.String("notes"),
	})
}

type orderHistory struct {
	DealerID string        `json:"dealer_id"`
	Orders   []model.Order `json:"recent_orders"`
}

func (d *Dispatcher) orderHistory(ctx context.Context, p Params) (any, error) {
	id, err := required(p, "dealer_id")
	if err != nil {
		return nil, err
	}
	limit, err := p.Int("limit", 5)
	if err != nil {
		return nil, err
	}
	if _, err := d.svc.Store.GetDealer(ctx, id); err != nil {
		return nil, err
	}
	list, err := d.svc.Store.ListOrders(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Order{}
	}
	return orderHistory{DealerID: id, Orders: list}, nil
}

func (d *Dispatcher) getOrder(ctx context.Context, p Params) (any, error) {
	return d.svc.Orders.Get(ctx, p.String("order_id"))
}

func (d *Dispatcher) paymentStatus(ctx context.Context, p Params) (any, error) {
	return d.svc.Orders.PaymentStatus(ctx, p.String("dealer_id"))
}

func (d *Dispatcher) recordPayment(ctx context.Context, p Params) (any, error) {
	amount, err := p.Decimal("amount")
	if err != nil {
		return nil, err
	}
	return d.svc.Orders.RecordPayment(ctx, orders.PaymentRequest{
		InvoiceID:   p.String("invoice_id"),
		Amount:      amount,
		Mode:        p.First("payment_mode", "mode"),
		CollectedBy: p.First("collected_by", "sales_person_id"),
		Reference:   p.String("reference"),
	})
}

func (d *Dispatcher) createVisit(ctx context.Context, p Params) (any, error) {
	collected, err := p.Decimal("collection_amount")
	if err != nil {
		return nil, err
	}
	return d.svc.Visits.Create(ctx, visits.CreateRequest{
		DealerID:         p.String("dealer_id"),
		SalesPersonID:    p.String("sales_person_id"),
		VisitDate:        p.String("visit_date"),
		Purpose:          p.String("purpose"),
		CollectionAmount: collected,
		NextAction:       p.String("next_action"),
		RawNotes:         p.First("raw_notes", "notes"),
	})
}

type recentVisits struct {
	DealerID string        `json:"dealer_id"`
	Visits   []model.Visit `json:"recent_visits"`
}

func (d *Dispatcher) recentVisits(ctx context.Context, p Params) (any, error) {
	limit, err := p.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	id := p.String("dealer_id")
	list, err := d.svc.Visits.Recent(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	return recentVisits{DealerID: id, Visits: list}, nil
}

func (d *Dispatcher) createCommitment(ctx context.Context, p Params) (any, error) {
	qty, err := p.Int("quantity_promised", 0)
	if err != nil {
		return nil, err
	}
	if qty == 0 {
		if qty, err = p.Int("quantity", 0); err != nil {
			return nil, err
		}
	}
	confidence, err := p.Float("confidence_score", 0)
	if err != nil {
		return nil, err
	}
	return d.svc.Commitments.Create(ctx, commitment.CreateRequest{
		VisitID:       p.String("visit_id"),
		DealerID:      p.String("dealer_id"),
		ProductID:     p.String("product_id"),
		Quantity:      qty,
		ExpectedDate:  p.First("expected_order_date", "expected_date"),
		Confidence:    confidence,
		SalesPersonID: p.String("sales_person_id"),
		Notes:         p.String("notes"),
	})
}

func alertRequest(p Params) alerts.Request {
	return alerts.Request{
		AlertType:  p.String("alert_type"),
		Priority:   p.String("priority"),
		EntityType: p.String("entity_type"),
		EntityID:   p.First("entity_id", "dealer_id"),
		Message:    p.String("message"),
	}
}

func (d *Dispatcher) generateAlert(ctx context.Context, p Params) (any, error) {
	return d.svc.Alerts.Generate(ctx, alertRequest(p))
}

func (d *Dispatcher) sendManagerAlert(ctx context.Context, p Params) (any, error) {
	return d.svc.Alerts.SendManagerAlert(ctx, alertRequest(p))
}

func (d *Dispatcher) activeAlerts(ctx context.Context, p Params) (any, error) {
	limit, err := p.Int("limit", 0)
	if err != nil {
		return nil, err
	}
	return d.svc.Alerts.Active(ctx, p.String("assigned_to"), limit)
}
