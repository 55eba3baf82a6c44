package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/db"
	"github.com/sells-group/fieldops/internal/model"
)

// --- Orders ---

func (s *PostgresStore) CreateOrder(ctx context.Context, no *model.NewOrder, numberPrefix string) error {
	o := &no.Order
	if len(o.OrderDate) < 4 {
		return model.NewValidationError("order_date", "required")
	}
	year := o.OrderDate[:4]
	fillOrderIDs(no)

	err := s.inTx(ctx, func(q pgQuerier) error {
		// Serialise numbering per prefix and year.
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, numberPrefix+"-"+year); err != nil {
			return eris.Wrap(err, "postgres: lock order sequence")
		}
		var orders, invoices int
		if err := q.QueryRow(ctx,
			`SELECT (SELECT COUNT(*) FROM orders WHERE order_number LIKE $1),
			        (SELECT COUNT(*) FROM invoices WHERE invoice_number LIKE $2)`,
			numberPrefix+"-"+year+"-%", invoicePrefix+"-"+year+"-%",
		).Scan(&orders, &invoices); err != nil {
			return eris.Wrap(err, "postgres: count orders")
		}
		assignNumbers(no, numberPrefix, year, orders+1, invoices+1)

		if _, err := q.Exec(ctx,
			`INSERT INTO orders (`+orderColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			o.ID, o.OrderNumber, o.DealerID, o.SalesPersonID, o.CommitmentID, o.OrderDate,
			o.RequestedDeliveryDate, o.PromisedDeliveryDate, string(o.Status), o.Subtotal, o.Tax, o.Total,
			o.Source, o.Notes, o.CreatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return eris.Wrapf(model.ErrConflict, "postgres: order number %s taken", o.OrderNumber)
			}
			return eris.Wrap(err, "postgres: insert order")
		}

		it := &no.Item
		if _, err := q.Exec(ctx,
			`INSERT INTO order_items (id, order_id, product_id, quantity_ordered, unit_price, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice, it.LineTotal,
		); err != nil {
			return eris.Wrap(err, "postgres: insert order item")
		}

		inv := &no.Invoice
		if _, err := q.Exec(ctx,
			`INSERT INTO invoices (`+invoiceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			inv.ID, inv.InvoiceNumber, inv.OrderID, inv.DealerID, inv.InvoiceDate, inv.DueDate, inv.Total,
			inv.AmountPaid, string(inv.Status), inv.PaidDate,
		); err != nil {
			return eris.Wrap(err, "postgres: insert invoice")
		}

		tag, err := q.Exec(ctx,
			`UPDATE dealers SET last_order_date = GREATEST(last_order_date, $1) WHERE id = $2`, o.OrderDate, o.DealerID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: touch dealer %s", o.DealerID)
		}
		if err := notFoundIfNone(tag, "dealer", o.DealerID); err != nil {
			return err
		}

		if o.CommitmentID != "" {
			tag, err := q.Exec(ctx,
				`UPDATE commitments SET converted_order_id = $1, updated_at = $2 WHERE id = $3`,
				o.ID, time.Now().UTC(), o.CommitmentID,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: link commitment %s", o.CommitmentID)
			}
			return notFoundIfNone(tag, "commitment", o.CommitmentID)
		}
		return nil
	})
	if err != nil {
		o.OrderNumber = ""
	}
	return err
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFound("order", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get order %s", id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, product_id, quantity_ordered, unit_price, line_total
		 FROM order_items WHERE order_id = $1 ORDER BY id`, id,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list items for order %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order item")
		}
		o.Items = append(o.Items, it)
	}
	return o, eris.Wrap(rows.Err(), "postgres: list order items iterate")
}

func (s *PostgresStore) ListOrders(ctx context.Context, dealerID string, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE dealer_id = $1 ORDER BY order_date DESC, created_at DESC LIMIT $2`,
		dealerID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list orders")
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan order")
		}
		out = append(out, *o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list orders iterate")
}

// --- Receivables ---

func (s *PostgresStore) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	return pgInvoice(ctx, s.pool, id, false)
}

func pgInvoice(ctx context.Context, q pgQuerier, id string, lock bool) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(q.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFound("invoice", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get invoice %s", id)
	}
	return inv, nil
}

func (s *PostgresStore) ListOpenInvoices(ctx context.Context, dealerID string) ([]model.Invoice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE dealer_id = $1 AND status <> 'PAID' ORDER BY due_date, invoice_number`,
		dealerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list open invoices")
	}
	defer rows.Close()

	var out []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan invoice")
		}
		out = append(out, *inv)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list open invoices iterate")
}

func (s *PostgresStore) RecordPayment(ctx context.Context, p *model.Payment) (*model.Invoice, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	var updated *model.Invoice
	err := s.inTx(ctx, func(q pgQuerier) error {
		inv, err := pgInvoice(ctx, q, p.InvoiceID, true)
		if err != nil {
			return err
		}
		if err := applyPayment(inv, p); err != nil {
			return err
		}

		if _, err := q.Exec(ctx,
			`INSERT INTO payments (id, invoice_id, dealer_id, amount, payment_mode, payment_date, collected_by, reference)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.InvoiceID, p.DealerID, p.Amount, p.Mode, p.PaymentDate, p.CollectedBy, p.Reference,
		); err != nil {
			return eris.Wrap(err, "postgres: insert payment")
		}
		if _, err := q.Exec(ctx,
			`UPDATE invoices SET amount_paid = $1, status = $2, paid_date = $3 WHERE id = $4`,
			inv.AmountPaid, string(inv.Status), inv.PaidDate, inv.ID,
		); err != nil {
			return eris.Wrapf(err, "postgres: update invoice %s", inv.ID)
		}
		updated = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// --- Inventory ---

const pgInventoryPosition = `
SELECT
	(SELECT COALESCE(SUM(quantity_on_hand), 0)::bigint FROM inventory WHERE product_id = $1),
	(SELECT COALESCE(SUM(quantity_reserved), 0)::bigint FROM inventory WHERE product_id = $1),
	(SELECT COALESCE(SUM(oi.quantity_ordered), 0)::bigint
	   FROM order_items oi JOIN orders o ON o.id = oi.order_id
	  WHERE oi.product_id = $1 AND o.status IN ('DRAFT', 'CONFIRMED', 'PROCESSING')),
	(SELECT COALESCE(SUM(quantity), 0)::bigint FROM incoming_stock
	  WHERE product_id = $1 AND status = 'EXPECTED' AND expected_date <= $2)`

func (s *PostgresStore) InventoryPosition(ctx context.Context, productID, incomingUntil string) (*model.InventoryPosition, error) {
	pos := &model.InventoryPosition{ProductID: productID}
	err := s.pool.QueryRow(ctx, pgInventoryPosition, productID, incomingUntil).
		Scan(&pos.OnHand, &pos.Reserved, &pos.PendingOrders, &pos.Incoming)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: inventory position %s", productID)
	}
	return pos, nil
}

// --- Health ---

const pgHealthInputs = `
SELECT d.name,
	(SELECT COALESCE(MAX(order_date), '') FROM orders
	  WHERE dealer_id = d.id AND status <> 'CANCELLED' AND order_date <= $3),
	(SELECT COUNT(*) FROM orders
	  WHERE dealer_id = d.id AND status <> 'CANCELLED' AND order_date >= $2 AND order_date <= $3),
	(SELECT COUNT(*) FROM invoices WHERE dealer_id = d.id AND invoice_date >= $2),
	(SELECT COUNT(*) FROM invoices
	  WHERE dealer_id = d.id AND invoice_date >= $2 AND status = 'PAID' AND paid_date <> '' AND paid_date <= due_date),
	(SELECT COUNT(*) FROM commitments WHERE dealer_id = d.id AND commitment_date >= $2),
	(SELECT COUNT(*) FROM commitments WHERE dealer_id = d.id AND commitment_date >= $2 AND status = 'CONVERTED')
FROM dealers d WHERE d.id = $1`

func (s *PostgresStore) HealthInputs(ctx context.Context, dealerID, since, today string) (*model.HealthInputs, error) {
	in := &model.HealthInputs{DealerID: dealerID, Since: since, Today: today}
	err := s.pool.QueryRow(ctx, pgHealthInputs, dealerID, since, today).
		Scan(&in.DealerName, &in.LastOrderDate, &in.OrderCount, &in.InvoiceCount, &in.OnTimeInvoices,
			&in.CommitmentCount, &in.ConvertedCommits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFound("dealer", dealerID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: health inputs %s", dealerID)
	}
	return in, nil
}

func (s *PostgresStore) LatestHealthSnapshot(ctx context.Context, dealerID string) (*model.HealthSnapshot, error) {
	h, err := scanHealthSnapshot(s.pool.QueryRow(ctx,
		`SELECT `+healthColumns+` FROM dealer_health_scores WHERE dealer_id = $1
		 ORDER BY calculated_date DESC, created_at DESC LIMIT 1`, dealerID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest health %s", dealerID)
	}
	return h, nil
}

func (s *PostgresStore) SaveHealthSnapshot(ctx context.Context, h *model.HealthSnapshot) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	h.CreatedAt = time.Now().UTC()
	reasons, err := marshalReasons(h.Reasons)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO dealer_health_scores (`+healthColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		h.ID, h.DealerID, h.CalculatedDate, h.Score, string(h.Status), h.Components.Recency,
		h.Components.Frequency, h.Components.Payment, h.Components.Fulfillment, h.DaysSinceLastOrder,
		h.OrdersInWindow, h.PaymentOnTimeRate, h.CommitmentRate, string(reasons), h.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save health %s", h.DealerID)
}

// --- Planning ---

const pgPlanningCandidates = `
SELECT ` + dealerColumnsQualified + `,
	hs.health_score,
	hs.days_since_last_order,
	(SELECT COALESCE(SUM(i.total_amount - i.amount_paid), 0) FROM invoices i
	  WHERE i.dealer_id = d.id AND i.status <> 'PAID' AND i.due_date < $2),
	(SELECT COALESCE(MIN(i.due_date), '') FROM invoices i
	  WHERE i.dealer_id = d.id AND i.status <> 'PAID' AND i.due_date < $2),
	(SELECT COUNT(*) FROM commitments c
	  WHERE c.dealer_id = d.id AND c.status IN ('PENDING', 'PARTIAL')
	    AND c.expected_order_date >= $2 AND c.expected_order_date <= $3)
FROM dealers d
LEFT JOIN LATERAL (
	SELECT h.health_score, h.days_since_last_order FROM dealer_health_scores h
	 WHERE h.dealer_id = d.id ORDER BY h.calculated_date DESC, h.created_at DESC LIMIT 1
) hs ON true
WHERE d.sales_person_id = $1 AND d.status = 'ACTIVE'
ORDER BY d.name, d.id`

func (s *PostgresStore) PlanningCandidates(ctx context.Context, salesPersonID, today, expiringUntil string) ([]model.PlanningCandidate, error) {
	rows, err := s.pool.Query(ctx, pgPlanningCandidates, salesPersonID, today, expiringUntil)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: planning candidates")
	}
	defer rows.Close()

	var out []model.PlanningCandidate
	for rows.Next() {
		c, err := scanPlanningCandidate(rows, today)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan planning candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: planning candidates iterate")
}

// --- Alerts ---

func (s *PostgresStore) CreateAlert(ctx context.Context, a *model.Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		a.ID, a.Type, a.Priority, a.EntityType, a.EntityID, a.Title, a.Message, a.ActionRequired,
		a.AssignedTo, a.Status, a.NotificationSent, a.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert alert")
}

func (s *PostgresStore) MarkAlertNotified(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE alerts SET notification_sent = true WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark alert %s", id)
	}
	return notFoundIfNone(tag, "alert", id)
}

func (s *PostgresStore) ListActiveAlerts(ctx context.Context, assignedTo string, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE status = 'ACTIVE' AND ($1 = '' OR assigned_to = $1)
		 ORDER BY CASE priority WHEN 'CRITICAL' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END, created_at DESC, id LIMIT $2`,
		assignedTo, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list alerts")
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan alert")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list alerts iterate")
}

// --- Fixtures ---

// numeric converts a decimal for the COPY protocol, which needs a native
// numeric encoding.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// tableLoad is one bulk upsert of fixture rows.
type tableLoad struct {
	cfg  db.UpsertConfig
	rows [][]any
}

// fixtureLoads builds one load per table, parents first.
func fixtureLoads(f *Fixtures, now time.Time) []tableLoad {
	var loads []tableLoad

	sp := tableLoad{cfg: db.UpsertConfig{Table: "sales_persons", Columns: splitColumns(salesPersonColumns), ConflictKeys: []string{"id"}}}
	for _, p := range f.SalesPersons {
		sp.rows = append(sp.rows, []any{p.ID, p.Code, p.Name, string(p.Role), p.Territory, p.Phone, p.TelegramChatID, p.Active})
	}
	loads = append(loads, sp)

	dl := tableLoad{cfg: db.UpsertConfig{Table: "dealers", Columns: splitColumns(dealerColumns), ConflictKeys: []string{"id"}}}
	for _, d := range f.Dealers {
		dl.rows = append(dl.rows, []any{d.ID, d.Code, d.Name, d.Category, d.City, d.Phone, numeric(d.CreditLimit), d.CreditDays,
			d.Latitude, d.Longitude, d.SalesPersonID, string(d.Status), d.LastOrderDate, d.LastVisitDate, now})
	}
	loads = append(loads, dl)

	pr := tableLoad{cfg: db.UpsertConfig{Table: "products", Columns: splitColumns(productColumns), ConflictKeys: []string{"id"}}}
	for _, p := range f.Products {
		pr.rows = append(pr.rows, []any{p.ID, p.Code, p.Name, p.ShortName, p.Category, numeric(p.DealerPrice), numeric(p.MRP),
			p.ReorderLevel, string(p.Status)})
	}
	loads = append(loads, pr)

	inv := tableLoad{cfg: db.UpsertConfig{
		Table:        "inventory",
		Columns:      []string{"product_id", "warehouse_id", "quantity_on_hand", "quantity_reserved"},
		ConflictKeys: []string{"product_id", "warehouse_id"},
	}}
	for _, r := range f.Inventory {
		inv.rows = append(inv.rows, []any{r.ProductID, r.WarehouseID, r.OnHand, r.Reserved})
	}
	loads = append(loads, inv)

	inc := tableLoad{cfg: db.UpsertConfig{
		Table:        "incoming_stock",
		Columns:      []string{"id", "product_id", "warehouse_id", "quantity", "expected_date", "status"},
		ConflictKeys: []string{"id"},
	}}
	for _, r := range f.IncomingStock {
		inc.rows = append(inc.rows, []any{r.ID, r.ProductID, r.WarehouseID, r.Quantity, r.ExpectedDate, incomingStatus(r.Status)})
	}
	loads = append(loads, inc)

	vs := tableLoad{cfg: db.UpsertConfig{Table: "visits", Columns: splitColumns(visitColumns), ConflictKeys: []string{"id"}}}
	for _, v := range f.Visits {
		vs.rows = append(vs.rows, []any{v.ID, v.DealerID, v.SalesPersonID, v.VisitDate, v.Purpose, v.Outcome, v.Notes, v.RawNotes,
			v.OrderTaken, numeric(v.CollectionAmount), v.FollowUpRequired, v.NextVisitDate, v.DurationMinutes, now})
	}
	loads = append(loads, vs)

	cm := tableLoad{cfg: db.UpsertConfig{Table: "commitments", Columns: splitColumns(commitmentColumns), ConflictKeys: []string{"id"}}}
	for i, c := range f.Commitments {
		created := now.Add(time.Duration(i) * time.Millisecond)
		cm.rows = append(cm.rows, []any{c.ID, c.VisitID, c.DealerID, c.SalesPersonID, c.ProductID, c.ProductDescription,
			c.QuantityPromised, c.ConvertedQuantity, c.CommitmentDate, c.ExpectedOrderDate, c.ExpectedDeliveryDate,
			c.Confidence, string(c.Status), c.ConvertedOrderID, c.ConversionDate, c.Notes, created, created})
	}
	loads = append(loads, cm)

	or := tableLoad{cfg: db.UpsertConfig{Table: "orders", Columns: splitColumns(orderColumns), ConflictKeys: []string{"id"}}}
	items := tableLoad{cfg: db.UpsertConfig{
		Table:        "order_items",
		Columns:      []string{"id", "order_id", "product_id", "quantity_ordered", "unit_price", "line_total"},
		ConflictKeys: []string{"id"},
	}}
	for _, o := range f.Orders {
		or.rows = append(or.rows, []any{o.ID, o.OrderNumber, o.DealerID, o.SalesPersonID, o.CommitmentID, o.OrderDate,
			o.RequestedDeliveryDate, o.PromisedDeliveryDate, string(o.Status), numeric(o.Subtotal), numeric(o.Tax),
			numeric(o.Total), o.Source, o.Notes, now})
		for _, it := range o.Items {
			items.rows = append(items.rows, []any{itemID(o, it), o.ID, it.ProductID, it.Quantity, numeric(it.UnitPrice), numeric(it.LineTotal)})
		}
	}
	loads = append(loads, or, items)

	iv := tableLoad{cfg: db.UpsertConfig{Table: "invoices", Columns: splitColumns(invoiceColumns), ConflictKeys: []string{"id"}}}
	for _, i := range f.Invoices {
		iv.rows = append(iv.rows, []any{i.ID, i.InvoiceNumber, i.OrderID, i.DealerID, i.InvoiceDate, i.DueDate, numeric(i.Total),
			numeric(i.AmountPaid), string(i.Status), i.PaidDate})
	}
	loads = append(loads, iv)

	pm := tableLoad{cfg: db.UpsertConfig{
		Table:        "payments",
		Columns:      []string{"id", "invoice_id", "dealer_id", "amount", "payment_mode", "payment_date", "collected_by", "reference"},
		ConflictKeys: []string{"id"},
	}}
	for _, p := range f.Payments {
		pm.rows = append(pm.rows, []any{p.ID, p.InvoiceID, p.DealerID, numeric(p.Amount), p.Mode, p.PaymentDate, p.CollectedBy, p.Reference})
	}
	loads = append(loads, pm)

	return loads
}

// ImportFixtures bulk-loads fixtures table by table with COPY + merge.
func (s *PostgresStore) ImportFixtures(ctx context.Context, f *Fixtures) error {
	for _, l := range fixtureLoads(f, time.Now().UTC()) {
		n, err := db.BulkUpsert(ctx, s.pool, l.cfg, l.rows)
		if err != nil {
			return eris.Wrapf(err, "postgres: import %s", l.cfg.Table)
		}
		if n > 0 {
			zap.L().Debug("postgres: imported fixtures", zap.String("table", l.cfg.Table), zap.Int64("rows", n))
		}
	}
	return nil
}
