package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderDraft      OrderStatus = "DRAFT"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderDispatched OrderStatus = "DISPATCHED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// OpenOrderStatuses hold stock that is not yet shipped and count against ATP.
var OpenOrderStatuses = []OrderStatus{OrderDraft, OrderConfirmed, OrderProcessing}

// Order is a dealer purchase order.
type Order struct {
	ID                    string          `json:"id" yaml:"id"`
	OrderNumber           string          `json:"order_number" yaml:"order_number"`
	DealerID              string          `json:"dealer_id" yaml:"dealer_id"`
	SalesPersonID         string          `json:"sales_person_id" yaml:"sales_person_id"`
	CommitmentID          string          `json:"commitment_id,omitempty" yaml:"commitment_id"`
	OrderDate             string          `json:"order_date" yaml:"order_date"`
	RequestedDeliveryDate string          `json:"requested_delivery_date,omitempty" yaml:"requested_delivery_date"`
	PromisedDeliveryDate  string          `json:"promised_delivery_date,omitempty" yaml:"promised_delivery_date"`
	Status                OrderStatus     `json:"status" yaml:"status"`
	Subtotal              decimal.Decimal `json:"subtotal" yaml:"subtotal"`
	Tax                   decimal.Decimal `json:"tax_amount" yaml:"tax_amount"`
	Total                 decimal.Decimal `json:"total_amount" yaml:"total_amount"`
	Source                string          `json:"order_source" yaml:"order_source"`
	Notes                 string          `json:"notes,omitempty" yaml:"notes"`
	Items                 []OrderItem     `json:"items,omitempty" yaml:"items"`
	CreatedAt             time.Time       `json:"created_at" yaml:"-"`
}

// OrderItem is one product line on an order.
type OrderItem struct {
	ID        string          `json:"id" yaml:"id"`
	OrderID   string          `json:"order_id" yaml:"order_id"`
	ProductID string          `json:"product_id" yaml:"product_id"`
	Quantity  int             `json:"quantity_ordered" yaml:"quantity_ordered"`
	UnitPrice decimal.Decimal `json:"unit_price" yaml:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total" yaml:"line_total"`
}

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "UNPAID"
	InvoicePartial InvoiceStatus = "PARTIAL"
	InvoicePaid    InvoiceStatus = "PAID"
	InvoiceOverdue InvoiceStatus = "OVERDUE"
)

// InvoiceStatusFor derives the stored status from amounts.
func InvoiceStatusFor(total, paid decimal.Decimal) InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return InvoicePaid
	case paid.IsPositive():
		return InvoicePartial
	default:
		return InvoiceUnpaid
	}
}

// Invoice bills one order; due date follows the dealer's credit days.
type Invoice struct {
	ID            string          `json:"id" yaml:"id"`
	InvoiceNumber string          `json:"invoice_number" yaml:"invoice_number"`
	OrderID       string          `json:"order_id" yaml:"order_id"`
	DealerID      string          `json:"dealer_id" yaml:"dealer_id"`
	InvoiceDate   string          `json:"invoice_date" yaml:"invoice_date"`
	DueDate       string          `json:"due_date" yaml:"due_date"`
	Total         decimal.Decimal `json:"total_amount" yaml:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid" yaml:"amount_paid"`
	Status        InvoiceStatus   `json:"status" yaml:"status"`
	PaidDate      string          `json:"paid_date,omitempty" yaml:"paid_date"`
}

// Outstanding is the unpaid balance, never negative.
func (i *Invoice) Outstanding() decimal.Decimal {
	o := i.Total.Sub(i.AmountPaid)
	if o.IsNegative() {
		return decimal.Zero
	}
	return o
}

// EffectiveStatus reports OVERDUE for unpaid invoices past due.
func (i *Invoice) EffectiveStatus(today string) InvoiceStatus {
	if i.Status != InvoicePaid && i.DueDate < today {
		return InvoiceOverdue
	}
	return i.Status
}

// Payment is money collected against an invoice.
type Payment struct {
	ID          string          `json:"id" yaml:"id"`
	InvoiceID   string          `json:"invoice_id" yaml:"invoice_id"`
	DealerID    string          `json:"dealer_id" yaml:"dealer_id"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Mode        string          `json:"payment_mode" yaml:"payment_mode"`
	PaymentDate string          `json:"payment_date" yaml:"payment_date"`
	CollectedBy string          `json:"collected_by,omitempty" yaml:"collected_by"`
	Reference   string          `json:"reference,omitempty" yaml:"reference"`
}

// PaymentSummary is a dealer's receivables position.
type PaymentSummary struct {
	DealerID          string          `json:"dealer_id"`
	Outstanding       decimal.Decimal `json:"total_outstanding"`
	OverdueAmount     decimal.Decimal `json:"overdue_amount"`
	MaxDaysOverdue    int             `json:"max_days_overdue"`
	OpenInvoices      int             `json:"open_invoices"`
	OverdueInvoices   int             `json:"overdue_invoices"`
	CreditLimit       decimal.Decimal `json:"credit_limit"`
	CreditUtilization float64         `json:"credit_utilization_pct"`
	Invoices          []Invoice       `json:"invoices,omitempty"`
}

// NewOrder bundles what the store needs to persist an order in one
// transaction.
type NewOrder struct {
	Order   Order
	Item    OrderItem
	Invoice Invoice
}
