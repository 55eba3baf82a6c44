package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fieldops/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Writers serialise on
// the database write lock (BEGIN IMMEDIATE).
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied to every pooled connection through the DSN.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// NewSQLite opens a SQLite database at the given path.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	params := make([]string, len(sqlitePragmas))
	for i, p := range sqlitePragmas {
		params[i] = "_pragma=" + p
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}

	db, err := sql.Open("sqlite", dsn+sep+strings.Join(params, "&"))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sales_persons (
	id               TEXT PRIMARY KEY,
	code             TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL,
	role             TEXT NOT NULL DEFAULT 'REP',
	territory        TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	telegram_chat_id TEXT NOT NULL DEFAULT '',
	active           INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS dealers (
	id              TEXT PRIMARY KEY,
	code            TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	credit_limit    NUMERIC NOT NULL DEFAULT 0,
	credit_days     INTEGER NOT NULL DEFAULT 30,
	latitude        REAL,
	longitude       REAL,
	sales_person_id TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'ACTIVE',
	last_order_date TEXT NOT NULL DEFAULT '',
	last_visit_date TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	code          TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	short_name    TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	dealer_price  NUMERIC NOT NULL DEFAULT 0,
	mrp           NUMERIC NOT NULL DEFAULT 0,
	reorder_level INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'ACTIVE'
);

CREATE TABLE IF NOT EXISTS inventory (
	product_id        TEXT NOT NULL,
	warehouse_id      TEXT NOT NULL,
	quantity_on_hand  INTEGER NOT NULL DEFAULT 0,
	quantity_reserved INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (product_id, warehouse_id)
);

CREATE TABLE IF NOT EXISTS incoming_stock (
	id            TEXT PRIMARY KEY,
	product_id    TEXT NOT NULL,
	warehouse_id  TEXT NOT NULL DEFAULT '',
	quantity      INTEGER NOT NULL,
	expected_date TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'EXPECTED'
);

CREATE TABLE IF NOT EXISTS visits (
	id                 TEXT PRIMARY KEY,
	dealer_id          TEXT NOT NULL,
	sales_person_id    TEXT NOT NULL,
	visit_date         TEXT NOT NULL,
	purpose            TEXT NOT NULL DEFAULT '',
	outcome            TEXT NOT NULL DEFAULT '',
	notes              TEXT NOT NULL DEFAULT '',
	raw_notes          TEXT NOT NULL DEFAULT '',
	order_taken        INTEGER NOT NULL DEFAULT 0,
	collection_amount  NUMERIC NOT NULL DEFAULT 0,
	follow_up_required INTEGER NOT NULL DEFAULT 0,
	next_visit_date    TEXT NOT NULL DEFAULT '',
	duration_minutes   INTEGER NOT NULL DEFAULT 0,
	created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS commitments (
	id                     TEXT PRIMARY KEY,
	visit_id               TEXT NOT NULL DEFAULT '',
	dealer_id              TEXT NOT NULL,
	sales_person_id        TEXT NOT NULL DEFAULT '',
	product_id             TEXT NOT NULL,
	product_description    TEXT NOT NULL DEFAULT '',
	quantity_promised      INTEGER NOT NULL CHECK (quantity_promised > 0),
	converted_quantity     INTEGER NOT NULL DEFAULT 0,
	commitment_date        TEXT NOT NULL,
	expected_order_date    TEXT NOT NULL,
	expected_delivery_date TEXT NOT NULL DEFAULT '',
	confidence             REAL NOT NULL DEFAULT 0.8,
	status                 TEXT NOT NULL DEFAULT 'PENDING',
	converted_order_id     TEXT NOT NULL DEFAULT '',
	conversion_date        TEXT NOT NULL DEFAULT '',
	notes                  TEXT NOT NULL DEFAULT '',
	created_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at             DATETIME NOT NULL DEFAULT (datetime('now')),
	CHECK (converted_quantity >= 0 AND converted_quantity <= quantity_promised)
);

CREATE TABLE IF NOT EXISTS orders (
	id                      TEXT PRIMARY KEY,
	order_number            TEXT NOT NULL UNIQUE,
	dealer_id               TEXT NOT NULL,
	sales_person_id         TEXT NOT NULL DEFAULT '',
	commitment_id           TEXT NOT NULL DEFAULT '',
	order_date              TEXT NOT NULL,
	requested_delivery_date TEXT NOT NULL DEFAULT '',
	promised_delivery_date  TEXT NOT NULL DEFAULT '',
	status                  TEXT NOT NULL DEFAULT 'CONFIRMED',
	subtotal                NUMERIC NOT NULL DEFAULT 0,
	tax_amount              NUMERIC NOT NULL DEFAULT 0,
	total_amount            NUMERIC NOT NULL DEFAULT 0,
	order_source            TEXT NOT NULL DEFAULT 'FIELD',
	notes                   TEXT NOT NULL DEFAULT '',
	created_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS order_items (
	id               TEXT PRIMARY KEY,
	order_id         TEXT NOT NULL,
	product_id       TEXT NOT NULL,
	quantity_ordered INTEGER NOT NULL,
	unit_price       NUMERIC NOT NULL DEFAULT 0,
	line_total       NUMERIC NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS invoices (
	id             TEXT PRIMARY KEY,
	invoice_number TEXT NOT NULL UNIQUE,
	order_id       TEXT NOT NULL DEFAULT '',
	dealer_id      TEXT NOT NULL,
	invoice_date   TEXT NOT NULL,
	due_date       TEXT NOT NULL,
	total_amount   NUMERIC NOT NULL,
	amount_paid    NUMERIC NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'UNPAID',
	paid_date      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS payments (
	id           TEXT PRIMARY KEY,
	invoice_id   TEXT NOT NULL,
	dealer_id    TEXT NOT NULL,
	amount       NUMERIC NOT NULL,
	payment_mode TEXT NOT NULL DEFAULT '',
	payment_date TEXT NOT NULL,
	collected_by TEXT NOT NULL DEFAULT '',
	reference    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dealer_health_scores (
	id                           TEXT PRIMARY KEY,
	dealer_id                    TEXT NOT NULL,
	calculated_date              TEXT NOT NULL,
	health_score                 REAL NOT NULL,
	health_status                TEXT NOT NULL,
	order_recency_score          REAL NOT NULL,
	order_frequency_score        REAL NOT NULL,
	payment_score                REAL NOT NULL,
	commitment_fulfillment_score REAL NOT NULL,
	days_since_last_order        INTEGER NOT NULL,
	orders_in_window             INTEGER NOT NULL DEFAULT 0,
	payment_on_time_rate         REAL,
	commitment_conversion_rate   REAL,
	attention_reasons            TEXT NOT NULL DEFAULT '[]',
	created_at                   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS alerts (
	id                TEXT PRIMARY KEY,
	alert_type        TEXT NOT NULL,
	priority          TEXT NOT NULL,
	entity_type       TEXT NOT NULL,
	entity_id         TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL,
	message           TEXT NOT NULL,
	action_required   TEXT NOT NULL DEFAULT '',
	assigned_to       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'ACTIVE',
	notification_sent INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS consumption_log (
	idempotency_key TEXT PRIMARY KEY,
	dealer_id       TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	order_quantity  INTEGER NOT NULL,
	result          TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dealers_sales_person ON dealers(sales_person_id, status);
CREATE INDEX IF NOT EXISTS idx_commitments_pair ON commitments(dealer_id, product_id, status, expected_order_date);
CREATE INDEX IF NOT EXISTS idx_orders_dealer ON orders(dealer_id, order_date);
CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id);
CREATE INDEX IF NOT EXISTS idx_invoices_dealer ON invoices(dealer_id, status, due_date);
CREATE INDEX IF NOT EXISTS idx_health_dealer ON dealer_health_scores(dealer_id, calculated_date);
CREATE INDEX IF NOT EXISTS idx_visits_dealer ON visits(dealer_id, visit_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteQuerier is satisfied by *sql.DB and *sql.Conn.
type sqliteQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// immediate runs fn on one connection inside BEGIN IMMEDIATE ... COMMIT.
// Rollback uses a context that survives caller cancellation so the
// transaction never outlives the call.
func (s *SQLiteStore) immediate(ctx context.Context, fn func(q sqliteQuerier) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return eris.Wrap(err, "sqlite: acquire conn")
	}
	defer conn.Close() //nolint:errcheck

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		if isSQLiteBusy(err) {
			return eris.Wrap(model.ErrConflict, "sqlite: begin: database busy")
		}
		return eris.Wrap(err, "sqlite: begin")
	}

	done := false
	defer func() {
		if !done {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		}
	}()

	if err := fn(conn); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return eris.Wrap(err, "sqlite: commit")
	}
	done = true
	return nil
}

func isSQLiteBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func isSQLiteUnique(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return model.NewNotFound(entity, id)
	}
	return nil
}

// --- Reference data ---

func (s *SQLiteStore) GetDealer(ctx context.Context, id string) (*model.Dealer, error) {
	d, err := scanDealer(s.db.QueryRowContext(ctx, `SELECT `+dealerColumns+` FROM dealers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("dealer", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get dealer %s", id)
	}
	return d, nil
}

func (s *SQLiteStore) ListDealers(ctx context.Context, filter model.DealerFilter) ([]model.Dealer, error) {
	query := `SELECT ` + dealerColumns + ` FROM dealers WHERE 1 = 1`
	var args []any
	if filter.SalesPersonID != "" {
		query += ` AND sales_person_id = ?`
		args = append(args, filter.SalesPersonID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY name, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dealers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Dealer
	for rows.Next() {
		d, err := scanDealer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dealer")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate dealers")
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("product", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context, status model.ProductStatus) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY name, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate products")
}

func (s *SQLiteStore) GetSalesPerson(ctx context.Context, id string) (*model.SalesPerson, error) {
	sp, err := scanSalesPerson(s.db.QueryRowContext(ctx, `SELECT `+salesPersonColumns+` FROM sales_persons WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("sales_person", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sales person %s", id)
	}
	return sp, nil
}

func (s *SQLiteStore) FindManager(ctx context.Context) (*model.SalesPerson, error) {
	sp, err := scanSalesPerson(s.db.QueryRowContext(ctx,
		`SELECT `+salesPersonColumns+` FROM sales_persons WHERE role = ? AND active = 1 ORDER BY name, id LIMIT 1`,
		string(model.RoleManager),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find manager")
	}
	return sp, nil
}

// --- Visits ---

func (s *SQLiteStore) CreateVisit(ctx context.Context, v *model.Visit) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = time.Now().UTC()

	return s.immediate(ctx, func(q sqliteQuerier) error {
		_, err := q.ExecContext(ctx,
			`INSERT INTO visits (`+visitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.ID, v.DealerID, v.SalesPersonID, v.VisitDate, v.Purpose, v.Outcome, v.Notes, v.RawNotes,
			v.OrderTaken, v.CollectionAmount, v.FollowUpRequired, v.NextVisitDate, v.DurationMinutes, v.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert visit")
		}
		res, err := q.ExecContext(ctx,
			`UPDATE dealers SET last_visit_date = MAX(last_visit_date, ?) WHERE id = ?`,
			v.VisitDate, v.DealerID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: touch dealer %s", v.DealerID)
		}
		return checkRowsAffected(res, "dealer", v.DealerID)
	})
}

func (s *SQLiteStore) GetVisit(ctx context.Context, id string) (*model.Visit, error) {
	v, err := scanVisit(s.db.QueryRowContext(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("visit", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get visit %s", id)
	}
	return v, nil
}

func (s *SQLiteStore) ListRecentVisits(ctx context.Context, dealerID string, limit int) ([]model.Visit, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE dealer_id = ? ORDER BY visit_date DESC, created_at DESC LIMIT ?`,
		dealerID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list visits")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan visit")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate visits")
}

// --- Commitments ---

func (s *SQLiteStore) CreateCommitment(ctx context.Context, c *model.Commitment) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commitments (`+commitmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.VisitID, c.DealerID, c.SalesPersonID, c.ProductID, c.ProductDescription,
		c.QuantityPromised, c.ConvertedQuantity, c.CommitmentDate, c.ExpectedOrderDate, c.ExpectedDeliveryDate,
		c.Confidence, string(c.Status), c.ConvertedOrderID, c.ConversionDate, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert commitment")
}

func (s *SQLiteStore) GetCommitment(ctx context.Context, id string) (*model.Commitment, error) {
	c, err := scanCommitment(s.db.QueryRowContext(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFound("commitment", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get commitment %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListOpenCommitments(ctx context.Context, dealerID, productID string) ([]model.Commitment, error) {
	return queryOpenCommitments(ctx, s.db, dealerID, productID)
}

func queryOpenCommitments(ctx context.Context, q sqliteQuerier, dealerID, productID string) ([]model.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments
		WHERE dealer_id = ? AND status IN ('PENDING', 'PARTIAL')`
	args := []any{dealerID}
	if productID != "" {
		query += ` AND product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY expected_order_date ASC, created_at ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list open commitments")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan commitment")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate commitments")
}

func (s *SQLiteStore) ExpireCommitments(ctx context.Context, before string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET status = 'EXPIRED', updated_at = ?
		 WHERE status = 'PENDING' AND converted_quantity = 0 AND expected_order_date < ?`,
		time.Now().UTC(), before,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: expire commitments")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) CancelCommitment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commitments SET status = 'CANCELLED', updated_at = ?
		 WHERE id = ? AND status = 'PENDING' AND converted_quantity = 0`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: cancel commitment %s", id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	c, err := s.GetCommitment(ctx, id)
	if err != nil {
		return err
	}
	return model.NewValidationError("status", "cannot cancel a "+string(c.Status)+" commitment")
}

// --- Consumption transaction ---

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.immediate(ctx, func(q sqliteQuerier) error {
		return fn(&sqliteTx{q: q})
	})
}

type sqliteTx struct {
	q sqliteQuerier
}

// LockOpenCommitments reads under the IMMEDIATE write lock already held by
// the transaction.
func (t *sqliteTx) LockOpenCommitments(ctx context.Context, dealerID, productID string) ([]model.Commitment, error) {
	return queryOpenCommitments(ctx, t.q, dealerID, productID)
}

func (t *sqliteTx) UpdateCommitmentConversion(ctx context.Context, id string, expected, converted int, status model.CommitmentStatus, conversionDate string) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE commitments
		 SET converted_quantity = ?, status = ?,
		     conversion_date = CASE WHEN ? = 'CONVERTED' THEN ? ELSE conversion_date END,
		     updated_at = ?
		 WHERE id = ? AND converted_quantity = ? AND status IN ('PENDING', 'PARTIAL')`,
		converted, string(status), string(status), conversionDate, time.Now().UTC(), id, expected,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update commitment %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrConflict, "sqlite: commitment %s changed concurrently", id)
	}
	return nil
}

func (t *sqliteTx) GetConsumption(ctx context.Context, key string) (*model.ConsumptionResult, error) {
	var raw []byte
	err := t.q.QueryRowContext(ctx, `SELECT result FROM consumption_log WHERE idempotency_key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get consumption %s", key)
	}
	var r model.ConsumptionResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal consumption %s", key)
	}
	return &r, nil
}

func (t *sqliteTx) SaveConsumption(ctx context.Context, key string, result *model.ConsumptionResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal consumption")
	}
	_, err = t.q.ExecContext(ctx,
		`INSERT INTO consumption_log (idempotency_key, dealer_id, product_id, order_quantity, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		key, result.DealerID, result.ProductID, result.OrderQuantity, string(raw), time.Now().UTC(),
	)
	if err != nil {
		if isSQLiteUnique(err) {
			return eris.Wrapf(model.ErrConflict, "sqlite: consumption %s already recorded", key)
		}
		return eris.Wrapf(err, "sqlite: save consumption %s", key)
	}
	return nil
}
