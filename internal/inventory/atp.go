// Package inventory answers available-to-promise questions from live stock.
package inventory

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
)

// IncomingWindowDays is how far ahead expected deliveries count toward a
// shortfall.
const IncomingWindowDays = 7

// CheckRequest is one ATP question.
type CheckRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// Calculator computes ATP on every call. It never writes.
type Calculator struct {
	store store.Store
	clock model.Clock
}

// NewCalculator creates an ATP calculator.
func NewCalculator(st store.Store, clock model.Clock) *Calculator {
	return &Calculator{store: st, clock: clock}
}

// Check reports whether the requested quantity can be promised now, and if
// not, by how much it falls short and whether stock arriving within the
// incoming window would cover it.
func (c *Calculator) Check(ctx context.Context, req CheckRequest) (*model.Availability, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}

	product, err := c.store.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	until, err := model.AddDays(c.clock.Today(), IncomingWindowDays)
	if err != nil {
		return nil, err
	}
	pos, err := c.store.InventoryPosition(ctx, product.ID, until)
	if err != nil {
		return nil, eris.Wrapf(err, "inventory: position %s", product.ID)
	}

	a := Evaluate(pos, req.Quantity)
	a.ProductName = product.DisplayName()
	a.ReorderLevel = product.ReorderLevel
	a.BelowReorder = a.ATP < product.ReorderLevel

	zap.L().Debug("inventory: atp checked",
		zap.String("product_id", product.ID),
		zap.Int("requested", req.Quantity),
		zap.Int("atp", a.ATP),
		zap.Bool("can_fulfill", a.CanFulfill),
	)
	return a, nil
}

// Evaluate derives availability from a stock position.
func Evaluate(pos *model.InventoryPosition, requested int) *model.Availability {
	atp := pos.OnHand - pos.Reserved - pos.PendingOrders
	a := &model.Availability{
		ProductID:            pos.ProductID,
		Requested:            requested,
		OnHand:               pos.OnHand,
		Reserved:             pos.Reserved,
		PendingOrders:        pos.PendingOrders,
		ATP:                  atp,
		IncomingWithinWindow: pos.Incoming,
		CanFulfill:           atp >= requested,
	}
	if a.CanFulfill {
		a.CanFulfillWithIncoming = true
		return a
	}
	a.Shortfall = requested - atp
	a.CanFulfillWithIncoming = atp+pos.Incoming >= requested
	return a
}
