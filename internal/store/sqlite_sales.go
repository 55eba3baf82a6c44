package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/fieldops/internal/model"
)

// --- Orders ---

func (s *SQLiteStore) CreateOrder(ctx context.Context, no *model.NewOrder, numberPrefix string) error {
	o := &no.Order
	if len(o.OrderDate) < 4 {
		return model.NewValidationError("order_date", "required")
	}
	year := o.OrderDate[:4]
	fillOrderIDs(no)

	err := s.immediate(ctx, func(q sqliteQuerier) error {
		var orders, invoices int
		if err := q.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM orders WHERE order_number LIKE ?),
			        (SELECT COUNT(*) FROM invoices WHERE invoice_number LIKE ?)`,
			numberPrefix+"-"+year+"-%", invoicePrefix+"-"+year+"-%",
		).Scan(&orders, &invoices); err != nil {
			return eris.Wrap(err, "sqlite: count orders")
		}
		assignNumbers(no, numberPrefix, year, orders+1, invoices+1)

		if _, err := q.ExecContext(ctx,
			`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.OrderNumber, o.DealerID, o.SalesPersonID, o.CommitmentID, o.OrderDate,
			o.RequestedDeliveryDate, o.PromisedDeliveryDate, string(o.Status), o.Subtotal, o.Tax, o.Total,
			o.Source, o.Notes, o.CreatedAt,
		); err != nil {
			if isSQLiteUnique(err) {
				return eris.Wrapf(model.ErrConflict, "sqlite: order number %s taken", o.OrderNumber)
			}
			return eris.Wrap(err, "sqlite: insert order")
		}

		it := &no.Item
		if _, err := q.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity_ordered, unit_price, line_total) VALUES (?, ?, ?, ?, ?, ?)`,
			it.ID, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.LineTotal,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert order item")
		}

		inv := &no.Invoice
		if _, err := q.ExecContext(ctx,
			`INSERT INTO invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, inv.InvoiceNumber, inv.OrderID, inv.DealerID, inv.InvoiceDate, inv.DueDate, inv.Total,
			inv.AmountPaid, string(inv.Status), inv.PaidDate,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert invoice")
		}

		res, err := q.ExecContext(ctx,
			`UPDATE dealers SET last_order_date = MAX(last_order_date, ?) WHERE id = ?`, o.OrderDate, o.DealerID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: touch dealer %s", o.DealerID)
		}
		if err := checkRowsAffected(res, "dealer", o.DealerID); err != nil {
			return err
		}

		if o.CommitmentID != "" {
			res, err := q.ExecContext(ctx,
				`UPDATE commitments SET converted_order_id = ?, updated_at = ? WHERE id = ?`,
				o.ID, time.Now().UTC(), o.CommitmentID,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: link commitment %s", o.CommitmentID)
			}
			return checkRowsAffected(res, "commitment", o.CommitmentID)
		}
		return nil
	})
	if err != nil {
		o.OrderNumber = ""
	}
	return err
}

// fillOrderIDs assigns ids and links the item and invoice to the order.
func fillOrderIDs(no *model.NewOrder) {
	if no.Order.ID == "" {
		no.Order.ID = uuid.New().String()
	}
	if no.Item.ID == "" {
		no.Item.ID = uuid.New().String()
	}
	if no.Invoice.ID == "" {
		no.Invoice.ID = uuid.New().String()
	}
	no.Order.CreatedAt = time.Now().UTC()
	no.Item.OrderID = no.Order.ID
	no.Invoice.OrderID = no.Order.ID
	no.Invoice.DealerID = no.Order.DealerID
	no.Order.Items = []model.OrderItem{no.Item}
}

// invoicePrefix numbers invoices independently of orders.
const invoicePrefix = "INV"

func assignNumbers(no *model.NewOrder, prefix, year string, orderSeq, invoiceSeq int) {
	no.Order.OrderNumber = orderNumber(prefix, year, orderSeq)
	no.Invoice.InvoiceNumber = orderNumber(invoicePrefix, year, invoiceSeq)
}

func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("order", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get order %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity_ordered, unit_price, line_total
		 FROM order_items WHERE order_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list items for order %s", id)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order item")
		}
		o.Items = append(o.Items, it)
	}
	return o, eris.Wrap(rows.Err(), "sqlite: iterate order items")
}

func (s *SQLiteStore) ListOrders(ctx context.Context, dealerID string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE dealer_id = ? ORDER BY order_date DESC, created_at DESC LIMIT ?`,
		dealerID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list orders")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate orders")
}

// --- Receivables ---

func (s *SQLiteStore) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	return getSQLiteInvoice(ctx, s.db, id)
}

func getSQLiteInvoice(ctx context.Context, q sqliteQuerier, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(q.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("invoice", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get invoice %s", id)
	}
	return inv, nil
}

func (s *SQLiteStore) ListOpenInvoices(ctx context.Context, dealerID string) ([]model.Invoice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE dealer_id = ? AND status <> 'PAID' ORDER BY due_date, invoice_number`,
		dealerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list open invoices")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan invoice")
		}
		out = append(out, *inv)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate invoices")
}

func (s *SQLiteStore) RecordPayment(ctx context.Context, p *model.Payment) (*model.Invoice, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	var updated *model.Invoice
	err := s.immediate(ctx, func(q sqliteQuerier) error {
		inv, err := getSQLiteInvoice(ctx, q, p.InvoiceID)
		if err != nil {
			return err
		}
		if err := applyPayment(inv, p); err != nil {
			return err
		}

		if _, err := q.ExecContext(ctx,
			`INSERT INTO payments (id, invoice_id, dealer_id, amount, payment_mode, payment_date, collected_by, reference)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.InvoiceID, p.DealerID, p.Amount, p.Mode, p.PaymentDate, p.CollectedBy, p.Reference,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert payment")
		}
		if _, err := q.ExecContext(ctx,
			`UPDATE invoices SET amount_paid = ?, status = ?, paid_date = ? WHERE id = ?`,
			inv.AmountPaid, string(inv.Status), inv.PaidDate, inv.ID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: update invoice %s", inv.ID)
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyPayment folds p into inv. Amounts above the outstanding balance are
// accepted; the invoice simply ends PAID.
func applyPayment(inv *model.Invoice, p *model.Payment) error {
	if !p.Amount.IsPositive() {
		return model.NewValidationError("amount", "must be positive")
	}
	if p.DealerID == "" {
		p.DealerID = inv.DealerID
	}
	inv.AmountPaid = inv.AmountPaid.Add(p.Amount)
	inv.Status = model.InvoiceStatusFor(inv.Total, inv.AmountPaid)
	if inv.Status == model.InvoicePaid {
		inv.PaidDate = p.PaymentDate
	}
	return nil
}

// --- Inventory ---

const sqliteInventoryPosition = `
SELECT
	(SELECT COALESCE(SUM(quantity_on_hand), 0) FROM inventory WHERE product_id = ?),
	(SELECT COALESCE(SUM(quantity_reserved), 0) FROM inventory WHERE product_id = ?),
	(SELECT COALESCE(SUM(oi.quantity_ordered), 0)
	   FROM order_items oi JOIN orders o ON o.id = oi.order_id
	  WHERE oi.product_id = ? AND o.status IN ('DRAFT', 'CONFIRMED', 'PROCESSING')),
	(SELECT COALESCE(SUM(quantity), 0) FROM incoming_stock
	  WHERE product_id = ? AND status = 'EXPECTED' AND expected_date <= ?)`

func (s *SQLiteStore) InventoryPosition(ctx context.Context, productID, incomingUntil string) (*model.InventoryPosition, error) {
	pos := &model.InventoryPosition{ProductID: productID}
	err := s.db.QueryRowContext(ctx, sqliteInventoryPosition,
		productID, productID, productID, productID, incomingUntil,
	).Scan(&pos.OnHand, &pos.Reserved, &pos.PendingOrders, &pos.Incoming)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: inventory position %s", productID)
	}
	return pos, nil
}

// --- Health ---

const sqliteHealthInputs = `
SELECT d.name,
	(SELECT COALESCE(MAX(order_date), '') FROM orders
	  WHERE dealer_id = d.id AND status <> 'CANCELLED' AND order_date <= ?),
	(SELECT COUNT(*) FROM orders
	  WHERE dealer_id = d.id AND status <> 'CANCELLED' AND order_date >= ? AND order_date <= ?),
	(SELECT COUNT(*) FROM invoices WHERE dealer_id = d.id AND invoice_date >= ?),
	(SELECT COUNT(*) FROM invoices
	  WHERE dealer_id = d.id AND invoice_date >= ? AND status = 'PAID' AND paid_date <> '' AND paid_date <= due_date),
	(SELECT COUNT(*) FROM commitments WHERE dealer_id = d.id AND commitment_date >= ?),
	(SELECT COUNT(*) FROM commitments WHERE dealer_id = d.id AND commitment_date >= ? AND status = 'CONVERTED')
FROM dealers d WHERE d.id = ?`

func (s *SQLiteStore) HealthInputs(ctx context.Context, dealerID, since, today string) (*model.HealthInputs, error) {
	in := &model.HealthInputs{DealerID: dealerID, Since: since, Today: today}
	err := s.db.QueryRowContext(ctx, sqliteHealthInputs,
		today, since, today, since, since, since, since, dealerID,
	).Scan(&in.DealerName, &in.LastOrderDate, &in.OrderCount, &in.InvoiceCount, &in.OnTimeInvoices,
		&in.CommitmentCount, &in.ConvertedCommits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("dealer", dealerID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: health inputs %s", dealerID)
	}
	return in, nil
}

func (s *SQLiteStore) LatestHealthSnapshot(ctx context.Context, dealerID string) (*model.HealthSnapshot, error) {
	h, err := scanHealthSnapshot(s.db.QueryRowContext(ctx,
		`SELECT `+healthColumns+` FROM dealer_health_scores WHERE dealer_id = ?
		 ORDER BY calculated_date DESC, created_at DESC LIMIT 1`, dealerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest health %s", dealerID)
	}
	return h, nil
}

func (s *SQLiteStore) SaveHealthSnapshot(ctx context.Context, h *model.HealthSnapshot) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.CreatedAt = time.Now().UTC()
	reasons, err := marshalReasons(h.Reasons)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO dealer_health_scores (`+healthColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.DealerID, h.CalculatedDate, h.Score, string(h.Status), h.Components.Recency,
		h.Components.Frequency, h.Components.Payment, h.Components.Fulfillment, h.DaysSinceLastOrder,
		h.OrdersInWindow, h.PaymentOnTimeRate, h.CommitmentRate, string(reasons), h.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: save health %s", h.DealerID)
}

// --- Planning ---

const sqlitePlanningCandidates = `
SELECT ` + dealerColumnsQualified + `,
	(SELECT h.health_score FROM dealer_health_scores h WHERE h.dealer_id = d.id
	  ORDER BY h.calculated_date DESC, h.created_at DESC LIMIT 1),
	(SELECT h.days_since_last_order FROM dealer_health_scores h WHERE h.dealer_id = d.id
	  ORDER BY h.calculated_date DESC, h.created_at DESC LIMIT 1),
	(SELECT COALESCE(SUM(i.total_amount - i.amount_paid), 0) FROM invoices i
	  WHERE i.dealer_id = d.id AND i.status <> 'PAID' AND i.due_date < ?),
	(SELECT COALESCE(MIN(i.due_date), '') FROM invoices i
	  WHERE i.dealer_id = d.id AND i.status <> 'PAID' AND i.due_date < ?),
	(SELECT COUNT(*) FROM commitments c
	  WHERE c.dealer_id = d.id AND c.status IN ('PENDING', 'PARTIAL')
	    AND c.expected_order_date >= ? AND c.expected_order_date <= ?)
FROM dealers d
WHERE d.sales_person_id = ? AND d.status = 'ACTIVE'
ORDER BY d.name, d.id`

func (s *SQLiteStore) PlanningCandidates(ctx context.Context, salesPersonID, today, expiringUntil string) ([]model.PlanningCandidate, error) {
	rows, err := s.db.QueryContext(ctx, sqlitePlanningCandidates,
		today, today, today, expiringUntil, salesPersonID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: planning candidates")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.PlanningCandidate
	for rows.Next() {
		c, err := scanPlanningCandidate(rows, today)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan planning candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate planning candidates")
}

// --- Alerts ---

func (s *SQLiteStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, string(a.Priority), a.EntityType, a.EntityID, a.Title, a.Message, a.ActionRequired,
		a.AssignedTo, a.Status, a.NotificationSent, a.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert alert")
}

func (s *SQLiteStore) MarkAlertNotified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET notification_sent = 1 WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark alert %s", id)
	}
	return checkRowsAffected(res, "alert", id)
}

func (s *SQLiteStore) ListActiveAlerts(ctx context.Context, assignedTo string, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE status = 'ACTIVE' AND (? = '' OR assigned_to = ?)
		 ORDER BY CASE priority WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END, created_at DESC, id LIMIT ?`,
		assignedTo, assignedTo, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list alerts")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alert")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate alerts")
}

// --- Fixtures ---

// ImportFixtures replaces fixture rows by primary key in one transaction.
func (s *SQLiteStore) ImportFixtures(ctx context.Context, f *Fixtures) error {
	now := time.Now().UTC()
	return s.immediate(ctx, func(q sqliteQuerier) error {
		exec := func(what, query string, args ...any) error {
			if _, err := q.ExecContext(ctx, query, args...); err != nil {
				return eris.Wrapf(err, "sqlite: import %s", what)
			}
			return nil
		}

		for _, sp := range f.SalesPersons {
			if err := exec("sales person", `INSERT OR REPLACE INTO sales_persons (`+salesPersonColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				sp.ID, sp.Code, sp.Name, string(sp.Role), sp.Territory, sp.Phone, sp.TelegramChatID, sp.Active); err != nil {
				return err
			}
		}
		for _, d := range f.Dealers {
			if err := exec("dealer", `INSERT OR REPLACE INTO dealers (`+dealerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				d.ID, d.Code, d.Name, d.Category, d.City, d.Phone, d.CreditLimit, d.CreditDays, d.Latitude, d.Longitude,
				d.SalesPersonID, string(d.Status), d.LastOrderDate, d.LastVisitDate, now); err != nil {
				return err
			}
		}
		for _, p := range f.Products {
			if err := exec("product", `INSERT OR REPLACE INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.Code, p.Name, p.ShortName, p.Category, p.DealerPrice, p.MRP, p.ReorderLevel, string(p.Status)); err != nil {
				return err
			}
		}
		for _, r := range f.Inventory {
			if err := exec("inventory", `INSERT OR REPLACE INTO inventory (product_id, warehouse_id, quantity_on_hand, quantity_reserved) VALUES (?, ?, ?, ?)`,
				r.ProductID, r.WarehouseID, r.OnHand, r.Reserved); err != nil {
				return err
			}
		}
		for _, in := range f.IncomingStock {
			if err := exec("incoming stock", `INSERT OR REPLACE INTO incoming_stock (id, product_id, warehouse_id, quantity, expected_date, status) VALUES (?, ?, ?, ?, ?, ?)`,
				in.ID, in.ProductID, in.WarehouseID, in.Quantity, in.ExpectedDate, incomingStatus(in.Status)); err != nil {
				return err
			}
		}
		for _, v := range f.Visits {
			if err := exec("visit", `INSERT OR REPLACE INTO visits (`+visitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				v.ID, v.DealerID, v.SalesPersonID, v.VisitDate, v.Purpose, v.Outcome, v.Notes, v.RawNotes,
				v.OrderTaken, v.CollectionAmount, v.FollowUpRequired, v.NextVisitDate, v.DurationMinutes, now); err != nil {
				return err
			}
		}
		for i, c := range f.Commitments {
			// Stagger created_at so fixture order breaks expected-date ties.
			created := now.Add(time.Duration(i) * time.Millisecond)
			if err := exec("commitment", `INSERT OR REPLACE INTO commitments (`+commitmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, c.VisitID, c.DealerID, c.SalesPersonID, c.ProductID, c.ProductDescription,
				c.QuantityPromised, c.ConvertedQuantity, c.CommitmentDate, c.ExpectedOrderDate, c.ExpectedDeliveryDate,
				c.Confidence, string(c.Status), c.ConvertedOrderID, c.ConversionDate, c.Notes, created, created); err != nil {
				return err
			}
		}
		for _, o := range f.Orders {
			if err := exec("order", `INSERT OR REPLACE INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				o.ID, o.OrderNumber, o.DealerID, o.SalesPersonID, o.CommitmentID, o.OrderDate,
				o.RequestedDeliveryDate, o.PromisedDeliveryDate, string(o.Status), o.Subtotal, o.Tax, o.Total,
				o.Source, o.Notes, now); err != nil {
				return err
			}
			for _, it := range o.Items {
				if err := exec("order item", `INSERT OR REPLACE INTO order_items (id, order_id, product_id, quantity_ordered, unit_price, line_total) VALUES (?, ?, ?, ?, ?, ?)`,
					itemID(o, it), o.ID, it.ProductID, it.Quantity, it.UnitPrice, it.LineTotal); err != nil {
					return err
				}
			}
		}
		for _, inv := range f.Invoices {
			if err := exec("invoice", `INSERT OR REPLACE INTO invoices (`+invoiceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				inv.ID, inv.InvoiceNumber, inv.OrderID, inv.DealerID, inv.InvoiceDate, inv.DueDate, inv.Total,
				inv.AmountPaid, string(inv.Status), inv.PaidDate); err != nil {
				return err
			}
		}
		for _, p := range f.Payments {
			if err := exec("payment", `INSERT OR REPLACE INTO payments (id, invoice_id, dealer_id, amount, payment_mode, payment_date, collected_by, reference) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.InvoiceID, p.DealerID, p.Amount, p.Mode, p.PaymentDate, p.CollectedBy, p.Reference); err != nil {
				return err
			}
		}
		return nil
	})
}

func incomingStatus(s string) string {
	if s == "" {
		return "EXPECTED"
	}
	return s
}

func itemID(o model.Order, it model.OrderItem) string {
	if it.ID != "" {
		return it.ID
	}
	return o.ID + ":" + it.ProductID
}

// overdueDays is today minus the oldest overdue due date, or 0.
func overdueDays(oldestDue, today string) int {
	if oldestDue == "" {
		return 0
	}
	days, err := model.DaysBetween(oldestDue, today)
	if err != nil || days < 0 {
		return 0
	}
	return days
}

func scanPlanningCandidate(row scanner, today string) (*model.PlanningCandidate, error) {
	var (
		c         model.PlanningCandidate
		d         = &c.Dealer
		health    *float64
		sinceDays *int
		overdue   decimal.Decimal
		oldestDue string
	)
	err := row.Scan(&d.ID, &d.Code, &d.Name, &d.Category, &d.City, &d.Phone, &d.CreditLimit, &d.CreditDays,
		&d.Latitude, &d.Longitude, &d.SalesPersonID, &d.Status, &d.LastOrderDate, &d.LastVisitDate, &d.CreatedAt,
		&health, &sinceDays, &overdue, &oldestDue, &c.ExpiringCommitments)
	if err != nil {
		return nil, err
	}
	c.HealthScore = health
	c.SnapshotDaysSinceOrder = sinceDays
	c.OverdueAmount = overdue
	c.DaysOverdue = overdueDays(oldestDue, today)
	return &c, nil
}
