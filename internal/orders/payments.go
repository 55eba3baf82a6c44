package orders

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/model"
)

// DefaultPaymentMode applies when a payment names no mode.
const DefaultPaymentMode = "CASH"

// PaymentRequest records money collected against one invoice.
type PaymentRequest struct {
	InvoiceID   string          `json:"invoice_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Mode        string          `json:"payment_mode,omitempty"`
	CollectedBy string          `json:"collected_by,omitempty"`
	Reference   string          `json:"reference,omitempty"`
}

// Receipt is the invoice position after a payment.
type Receipt struct {
	PaymentID     string              `json:"payment_id"`
	InvoiceID     string              `json:"invoice_id"`
	InvoiceNumber string              `json:"invoice_number"`
	Amount        decimal.Decimal     `json:"amount"`
	AmountPaid    decimal.Decimal     `json:"amount_paid"`
	Outstanding   decimal.Decimal     `json:"outstanding"`
	Status        model.InvoiceStatus `json:"status"`
	Message       string              `json:"message"`
}

// RecordPayment adds a payment to an invoice. Amounts beyond the balance are
// accepted and leave the invoice PAID.
func (s *Service) RecordPayment(ctx context.Context, req PaymentRequest) (*Receipt, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, model.NewValidationError("amount", "must be > 0")
	}

	before, err := s.store.GetInvoice(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = DefaultPaymentMode
	}
	p := &model.Payment{
		ID:          uuid.New().String(),
		InvoiceID:   before.ID,
		DealerID:    before.DealerID,
		Amount:      req.Amount,
		Mode:        mode,
		PaymentDate: s.clock.Today(),
		CollectedBy: req.CollectedBy,
		Reference:   req.Reference,
	}
	inv, err := s.store.RecordPayment(ctx, p)
	if err != nil {
		return nil, eris.Wrapf(err, "orders: record payment on %s", req.InvoiceID)
	}

	if excess := req.Amount.Sub(before.Outstanding()); excess.IsPositive() {
		zap.L().Warn("orders: payment exceeds outstanding balance",
			zap.String("invoice_id", inv.ID),
			zap.String("dealer_id", inv.DealerID),
			zap.String("excess", excess.StringFixed(2)),
		)
	}

	zap.L().Info("orders: payment recorded",
		zap.String("payment_id", p.ID),
		zap.String("invoice_id", inv.ID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.String("status", string(inv.Status)),
	)

	return &Receipt{
		PaymentID:     p.ID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Amount:        req.Amount,
		AmountPaid:    inv.AmountPaid,
		Outstanding:   inv.Outstanding(),
		Status:        inv.Status,
		Message: printer.Sprintf("Payment of Rs.%.2f recorded against %s. Outstanding: Rs.%.2f",
			req.Amount.InexactFloat64(), inv.InvoiceNumber, inv.Outstanding().InexactFloat64()),
	}, nil
}

// PaymentStatus summarises a dealer's open receivables as of today.
func (s *Service) PaymentStatus(ctx context.Context, dealerID string) (*model.PaymentSummary, error) {
	if dealerID == "" {
		return nil, model.NewValidationError("dealer_id", "is required")
	}
	dealer, err := s.store.GetDealer(ctx, dealerID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.store.ListOpenInvoices(ctx, dealerID)
	if err != nil {
		return nil, eris.Wrap(err, "orders: list open invoices")
	}

	today := s.clock.Today()
	sum := &model.PaymentSummary{
		DealerID:      dealer.ID,
		Outstanding:   decimal.Zero,
		OverdueAmount: decimal.Zero,
		CreditLimit:   dealer.CreditLimit,
		Invoices:      make([]model.Invoice, 0, len(invoices)),
	}
	for _, inv := range invoices {
		out := inv.Outstanding()
		sum.Outstanding = sum.Outstanding.Add(out)
		sum.OpenInvoices++

		inv.Status = inv.EffectiveStatus(today)
		if inv.Status == model.InvoiceOverdue {
			sum.OverdueAmount = sum.OverdueAmount.Add(out)
			sum.OverdueInvoices++
			days, err := model.DaysBetween(inv.DueDate, today)
			if err != nil {
				return nil, err
			}
			sum.MaxDaysOverdue = max(sum.MaxDaysOverdue, days)
		}
		sum.Invoices = append(sum.Invoices, inv)
	}

	if dealer.CreditLimit.IsPositive() {
		pct := sum.Outstanding.Div(dealer.CreditLimit).Mul(decimal.NewFromInt(100)).InexactFloat64()
		sum.CreditUtilization = math.Round(pct*10) / 10
	}
	return sum, nil
}
