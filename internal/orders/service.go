// Package orders books dealer orders with their invoices and tracks the
// payments collected against them.
package orders

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/resilience"
	"github.com/sells-group/fieldops/internal/store"
)

// SourceField marks orders booked by a rep in the field.
const SourceField = "FIELD"

// Service creates orders and records payments.
type Service struct {
	store store.Store
	cfg   config.OrdersConfig
	clock model.Clock
}

// NewService creates an order service, filling unset scheduling defaults.
// The tax rate is taken as configured; zero means zero-rated.
func NewService(st store.Store, cfg config.OrdersConfig, clock model.Clock) *Service {
	if cfg.RequestedDeliveryDays <= 0 {
		cfg.RequestedDeliveryDays = 2
	}
	if cfg.PromisedDeliveryDays <= 0 {
		cfg.PromisedDeliveryDays = 3
	}
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "ORD"
	}
	return &Service{store: st, cfg: cfg, clock: clock}
}

// Get returns one order with its line items.
func (s *Service) Get(ctx context.Context, id string) (*model.Order, error) {
	if id == "" {
		return nil, model.NewValidationError("order_id", "is required")
	}
	return s.store.GetOrder(ctx, id)
}

// CreateRequest is a single-line order. SalesPersonID defaults to the
// dealer's rep.
type CreateRequest struct {
	DealerID      string `json:"dealer_id" validate:"required"`
	ProductID     string `json:"product_id" validate:"required"`
	Quantity      int    `json:"quantity" validate:"gt=0"`
	SalesPersonID string `json:"sales_person_id,omitempty"`
	CommitmentID  string `json:"commitment_id,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// Created summarises a booked order.
type Created struct {
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	InvoiceID     string            `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	Product       string            `json:"product"`
	Quantity      int               `json:"quantity"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Tax           decimal.Decimal   `json:"tax_amount"`
	Total         decimal.Decimal   `json:"total_amount"`
	Status        model.OrderStatus `json:"status"`
	DueDate       string            `json:"due_date"`
	Message       string            `json:"message"`
}

// Price returns subtotal, tax and total for qty units at unitPrice. Tax is
// rounded to paise before it is added.
func Price(unitPrice decimal.Decimal, qty int, taxPercent float64) (subtotal, tax, total decimal.Decimal) {
	subtotal = unitPrice.Mul(decimal.NewFromInt(int64(qty)))
	tax = subtotal.Mul(decimal.NewFromFloat(taxPercent)).Div(decimal.NewFromInt(100)).Round(2)
	total = subtotal.Add(tax).Round(2)
	return subtotal, tax, total
}

// Create books a confirmed order, its line item and the invoice due after
// the dealer's credit days. The dealer's last order date moves to today.
// A commitment id only links the order; consumption is a separate call.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Created, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}

	dealer, err := s.store.GetDealer(ctx, req.DealerID)
	if err != nil {
		return nil, err
	}
	product, err := s.store.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.CommitmentID != "" {
		if _, err := s.store.GetCommitment(ctx, req.CommitmentID); err != nil {
			return nil, err
		}
	}

	rep := req.SalesPersonID
	if rep == "" {
		rep = dealer.SalesPersonID
	}

	today := s.clock.Today()
	requested, err := model.AddDays(today, s.cfg.RequestedDeliveryDays)
	if err != nil {
		return nil, err
	}
	promised, err := model.AddDays(today, s.cfg.PromisedDeliveryDays)
	if err != nil {
		return nil, err
	}
	due, err := model.AddDays(today, dealer.CreditDays)
	if err != nil {
		return nil, err
	}

	subtotal, tax, total := Price(product.DealerPrice, req.Quantity, s.cfg.TaxRatePercent)

	no := &model.NewOrder{
		Order: model.Order{
			DealerID:              dealer.ID,
			SalesPersonID:         rep,
			CommitmentID:          req.CommitmentID,
			OrderDate:             today,
			RequestedDeliveryDate: requested,
			PromisedDeliveryDate:  promised,
			Status:                model.OrderConfirmed,
			Subtotal:              subtotal,
			Tax:                   tax,
			Total:                 total,
			Source:                SourceField,
			Notes:                 req.Notes,
		},
		Item: model.OrderItem{
			ProductID: product.ID,
			Quantity:  req.Quantity,
			UnitPrice: product.DealerPrice,
			LineTotal: total,
		},
		Invoice: model.Invoice{
			InvoiceDate: today,
			DueDate:     due,
			Total:       total,
			AmountPaid:  decimal.Zero,
			Status:      model.InvoiceUnpaid,
		},
	}

	// Two orders racing for the same sequence number collide on the unique
	// index; the loser renumbers from a fresh count.
	err = resilience.Do(ctx, resilience.Policy{
		Attempts:   3,
		BaseDelay:  20 * time.Millisecond,
		MaxDelay:   200 * time.Millisecond,
		Multiplier: 2,
		Jitter:     0.2,
		Retryable:  model.IsConflict,
		OnRetry:    resilience.LogRetry("orders.create", zap.String("dealer_id", dealer.ID)),
	}, func(ctx context.Context) error {
		no.Order.ID, no.Item.ID, no.Invoice.ID = "", "", ""
		return s.store.CreateOrder(ctx, no, s.cfg.NumberPrefix)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "orders: create for dealer %s", dealer.ID)
	}

	name := product.DisplayName()
	out := &Created{
		OrderID:       no.Order.ID,
		OrderNumber:   no.Order.OrderNumber,
		InvoiceID:     no.Invoice.ID,
		InvoiceNumber: no.Invoice.InvoiceNumber,
		Product:       name,
		Quantity:      req.Quantity,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         total,
		Status:        no.Order.Status,
		DueDate:       due,
		Message: printer.Sprintf("Order %s created: %d units of %s. Total: Rs.%.2f",
			no.Order.OrderNumber, req.Quantity, name, total.InexactFloat64()),
	}

	zap.L().Info("orders: created",
		zap.String("order_id", out.OrderID),
		zap.String("order_number", out.OrderNumber),
		zap.String("dealer_id", dealer.ID),
		zap.String("product_id", product.ID),
		zap.Int("quantity", req.Quantity),
		zap.String("total", total.StringFixed(2)),
	)
	return out, nil
}

var printer = message.NewPrinter(language.English)
