package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldops/internal/model"
)

// scanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Column lists shared by both dialects. Dates are TEXT (YYYY-MM-DD) and
// unknown optional dates are stored as ''.
const (
	dealerColumns = `id, code, name, category, city, phone, credit_limit, credit_days,
		latitude, longitude, sales_person_id, status, last_order_date, last_visit_date, created_at`

	dealerColumnsQualified = `d.id, d.code, d.name, d.category, d.city, d.phone, d.credit_limit, d.credit_days,
		d.latitude, d.longitude, d.sales_person_id, d.status, d.last_order_date, d.last_visit_date, d.created_at`

	productColumns = `id, code, name, short_name, category, dealer_price, mrp, reorder_level, status`

	salesPersonColumns = `id, code, name, role, territory, phone, telegram_chat_id, active`

	visitColumns = `id, dealer_id, sales_person_id, visit_date, purpose, outcome, notes, raw_notes,
		order_taken, collection_amount, follow_up_required, next_visit_date, duration_minutes, created_at`

	commitmentColumns = `id, visit_id, dealer_id, sales_person_id, product_id, product_description,
		quantity_promised, converted_quantity, commitment_date, expected_order_date, expected_delivery_date,
		confidence, status, converted_order_id, conversion_date, notes, created_at, updated_at`

	orderColumns = `id, order_number, dealer_id, sales_person_id, commitment_id, order_date,
		requested_delivery_date, promised_delivery_date, status, subtotal, tax_amount, total_amount,
		order_source, notes, created_at`

	invoiceColumns = `id, invoice_number, order_id, dealer_id, invoice_date, due_date, total_amount,
		amount_paid, status, paid_date`

	healthColumns = `id, dealer_id, calculated_date, health_score, health_status, order_recency_score,
		order_frequency_score, payment_score, commitment_fulfillment_score, days_since_last_order,
		orders_in_window, payment_on_time_rate, commitment_conversion_rate, attention_reasons, created_at`

	alertColumns = `id, alert_type, priority, entity_type, entity_id, title, message, action_required,
		assigned_to, status, notification_sent, created_at`
)

func scanDealer(row scanner) (*model.Dealer, error) {
	var d model.Dealer
	err := row.Scan(&d.ID, &d.Code, &d.Name, &d.Category, &d.City, &d.Phone, &d.CreditLimit, &d.CreditDays,
		&d.Latitude, &d.Longitude, &d.SalesPersonID, &d.Status, &d.LastOrderDate, &d.LastVisitDate, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanProduct(row scanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.ShortName, &p.Category, &p.DealerPrice, &p.MRP, &p.ReorderLevel, &p.Status)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSalesPerson(row scanner) (*model.SalesPerson, error) {
	var sp model.SalesPerson
	err := row.Scan(&sp.ID, &sp.Code, &sp.Name, &sp.Role, &sp.Territory, &sp.Phone, &sp.TelegramChatID, &sp.Active)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

func scanVisit(row scanner) (*model.Visit, error) {
	var v model.Visit
	err := row.Scan(&v.ID, &v.DealerID, &v.SalesPersonID, &v.VisitDate, &v.Purpose, &v.Outcome, &v.Notes, &v.RawNotes,
		&v.OrderTaken, &v.CollectionAmount, &v.FollowUpRequired, &v.NextVisitDate, &v.DurationMinutes, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanCommitment(row scanner) (*model.Commitment, error) {
	var c model.Commitment
	err := row.Scan(&c.ID, &c.VisitID, &c.DealerID, &c.SalesPersonID, &c.ProductID, &c.ProductDescription,
		&c.QuantityPromised, &c.ConvertedQuantity, &c.CommitmentDate, &c.ExpectedOrderDate, &c.ExpectedDeliveryDate,
		&c.Confidence, &c.Status, &c.ConvertedOrderID, &c.ConversionDate, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanOrder(row scanner) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.DealerID, &o.SalesPersonID, &o.CommitmentID, &o.OrderDate,
		&o.RequestedDeliveryDate, &o.PromisedDeliveryDate, &o.Status, &o.Subtotal, &o.Tax, &o.Total,
		&o.Source, &o.Notes, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanInvoice(row scanner) (*model.Invoice, error) {
	var i model.Invoice
	err := row.Scan(&i.ID, &i.InvoiceNumber, &i.OrderID, &i.DealerID, &i.InvoiceDate, &i.DueDate, &i.Total,
		&i.AmountPaid, &i.Status, &i.PaidDate)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func scanHealthSnapshot(row scanner) (*model.HealthSnapshot, error) {
	var h model.HealthSnapshot
	var reasons []byte
	err := row.Scan(&h.ID, &h.DealerID, &h.CalculatedDate, &h.Score, &h.Status, &h.Components.Recency,
		&h.Components.Frequency, &h.Components.Payment, &h.Components.Fulfillment, &h.DaysSinceLastOrder,
		&h.OrdersInWindow, &h.PaymentOnTimeRate, &h.CommitmentRate, &reasons, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		if err := json.Unmarshal(reasons, &h.Reasons); err != nil {
			return nil, eris.Wrapf(err, "store: unmarshal reasons for dealer %s", h.DealerID)
		}
	}
	h.Source = model.SourcePrecomputed
	return &h, nil
}

func scanAlert(row scanner) (*model.Alert, error) {
	var a model.Alert
	err := row.Scan(&a.ID, &a.Type, &a.Priority, &a.EntityType, &a.EntityID, &a.Title, &a.Message, &a.ActionRequired,
		&a.AssignedTo, &a.Status, &a.NotificationSent, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func marshalReasons(reasons []string) ([]byte, error) {
	if reasons == nil {
		reasons = []string{}
	}
	b, err := json.Marshal(reasons)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal reasons")
	}
	return b, nil
}

// orderNumber formats the yearly sequence, e.g. ORD-2026-0042.
func orderNumber(prefix, year string, seq int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, year, seq)
}

// splitColumns turns a column list constant into names.
func splitColumns(cols string) []string {
	parts := strings.Split(cols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
