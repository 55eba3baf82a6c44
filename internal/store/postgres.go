package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldops/internal/db"
	"github.com/sells-group/fieldops/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sales_persons (
	id               TEXT PRIMARY KEY,
	code             TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL,
	role             TEXT NOT NULL DEFAULT 'REP',
	territory        TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	telegram_chat_id TEXT NOT NULL DEFAULT '',
	active           BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS dealers (
	id              TEXT PRIMARY KEY,
	code            TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	city            TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	credit_limit    NUMERIC(14,2) NOT NULL DEFAULT 0,
	credit_days     INTEGER NOT NULL DEFAULT 30,
	latitude        DOUBLE PRECISION,
	longitude       DOUBLE PRECISION,
	sales_person_id TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'ACTIVE',
	last_order_date TEXT NOT NULL DEFAULT '',
	last_visit_date TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS products (
	id            TEXT PRIMARY KEY,
	code          TEXT NOT NULL DEFAULT '',
	name          TEXT NOT NULL,
	short_name    TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	dealer_price  NUMERIC(14,2) NOT NULL DEFAULT 0,
	mrp           NUMERIC(14,2) NOT NULL DEFAULT 0,
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
	order_taken        BOOLEAN NOT NULL DEFAULT false,
	collection_amount  NUMERIC(14,2) NOT NULL DEFAULT 0,
	follow_up_required BOOLEAN NOT NULL DEFAULT false,
	next_visit_date    TEXT NOT NULL DEFAULT '',
	duration_minutes   INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
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
	confidence             DOUBLE PRECISION NOT NULL DEFAULT 0.8,
	status                 TEXT NOT NULL DEFAULT 'PENDING',
	converted_order_id     TEXT NOT NULL DEFAULT '',
	conversion_date        TEXT NOT NULL DEFAULT '',
	notes                  TEXT NOT NULL DEFAULT '',
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	subtotal                NUMERIC(14,2) NOT NULL DEFAULT 0,
	tax_amount              NUMERIC(14,2) NOT NULL DEFAULT 0,
	total_amount            NUMERIC(14,2) NOT NULL DEFAULT 0,
	order_source            TEXT NOT NULL DEFAULT 'FIELD',
	notes                   TEXT NOT NULL DEFAULT '',
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS order_items (
	id               TEXT PRIMARY KEY,
	order_id         TEXT NOT NULL REFERENCES orders(id),
	product_id       TEXT NOT NULL,
	quantity_ordered INTEGER NOT NULL,
	unit_price       NUMERIC(14,2) NOT NULL DEFAULT 0,
	line_total       NUMERIC(14,2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS invoices (
	id             TEXT PRIMARY KEY,
	invoice_number TEXT NOT NULL UNIQUE,
	order_id       TEXT NOT NULL DEFAULT '',
	dealer_id      TEXT NOT NULL,
	invoice_date   TEXT NOT NULL,
	due_date       TEXT NOT NULL,
	total_amount   NUMERIC(14,2) NOT NULL,
	amount_paid    NUMERIC(14,2) NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'UNPAID',
	paid_date      TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS payments (
	id           TEXT PRIMARY KEY,
	invoice_id   TEXT NOT NULL REFERENCES invoices(id),
	dealer_id    TEXT NOT NULL,
	amount       NUMERIC(14,2) NOT NULL,
	payment_mode TEXT NOT NULL DEFAULT '',
	payment_date TEXT NOT NULL,
	collected_by TEXT NOT NULL DEFAULT '',
	reference    TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS dealer_health_scores (
	id                           TEXT PRIMARY KEY,
	dealer_id                    TEXT NOT NULL,
	calculated_date              TEXT NOT NULL,
	health_score                 DOUBLE PRECISION NOT NULL,
	health_status                TEXT NOT NULL,
	order_recency_score          DOUBLE PRECISION NOT NULL,
	order_frequency_score        DOUBLE PRECISION NOT NULL,
	payment_score                DOUBLE PRECISION NOT NULL,
	commitment_fulfillment_score DOUBLE PRECISION NOT NULL,
	days_since_last_order        INTEGER NOT NULL,
	orders_in_window             INTEGER NOT NULL DEFAULT 0,
	payment_on_time_rate         DOUBLE PRECISION,
	commitment_conversion_rate   DOUBLE PRECISION,
	attention_reasons            JSONB NOT NULL DEFAULT '[]',
	created_at                   TIMESTAMPTZ NOT NULL DEFAULT now()
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
	notification_sent BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS consumption_log (
	idempotency_key TEXT PRIMARY KEY,
	dealer_id       TEXT NOT NULL,
	product_id      TEXT NOT NULL,
	order_quantity  INTEGER NOT NULL,
	result          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_dealers_sales_person ON dealers(sales_person_id, status);
CREATE INDEX IF NOT EXISTS idx_commitments_pair ON commitments(dealer_id, product_id, status, expected_order_date);
CREATE INDEX IF NOT EXISTS idx_orders_dealer ON orders(dealer_id, order_date);
CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id);
CREATE INDEX IF NOT EXISTS idx_invoices_dealer ON invoices(dealer_id, status, due_date);
CREATE INDEX IF NOT EXISTS idx_health_dealer ON dealer_health_scores(dealer_id, calculated_date DESC);
CREATE INDEX IF NOT EXISTS idx_visits_dealer ON visits(dealer_id, visit_date DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// pgQuerier is satisfied by db.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// inTx runs fn in a transaction on the pool.
func (s *PostgresStore) inTx(ctx context.Context, fn func(q pgQuerier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFoundIfNone(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return model.NewNotFound(entity, id)
	}
	return nil
}

// --- Reference data ---

func (s *PostgresStore) GetDealer(ctx context.Context, id string) (*model.Dealer, error) {
	d, err := scanDealer(s.pool.QueryRow(ctx, `SELECT `+dealerColumns+` FROM dealers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFound("dealer", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get dealer %s", id)
	}
	return d, nil
}

func (s *PostgresStore) ListDealers(ctx context.Context, filter model.DealerFilter) ([]model.Dealer, error) {
	query := `SELECT ` + dealerColumns + ` FROM dealers WHERE true`
	args := []any{}
	argIdx := 1

	if filter.SalesPersonID != "" {
		query += fmt.Sprintf(` AND sales_person_id = $%d`, argIdx)
		args = append(args, filter.SalesPersonID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY name, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dealers")
	}
	defer rows.Close()

	var out []model.Dealer
	for rows.Next() {
		d, err := scanDealer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan dealer")
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list dealers iterate")
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFound("product", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", id)
	}
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context, status model.ProductStatus) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY name, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var out []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list products iterate")
}

func (s *PostgresStore) GetSalesPerson(ctx context.Context, id string) (*model.SalesPerson, error) {
	sp, err := scanSalesPerson(s.pool.QueryRow(ctx, `SELECT `+salesPersonColumns+` FROM sales_persons WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFound("sales_person", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sales person %s", id)
	}
	return sp, nil
}

func (s *PostgresStore) FindManager(ctx context.Context) (*model.SalesPerson, error) {
	sp, err := scanSalesPerson(s.pool.QueryRow(ctx,
		`SELECT `+salesPersonColumns+` FROM sales_persons WHERE role = $1 AND active ORDER BY name, id LIMIT 1`,
		string(model.RoleManager),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find manager")
	}
	return sp, nil
}

// --- Visits ---

func (s *PostgresStore) CreateVisit(ctx context.Context, v *model.Visit) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	v.CreatedAt = time.Now().UTC()

	return s.inTx(ctx, func(q pgQuerier) error {
		_, err := q.Exec(ctx,
			`INSERT INTO visits (`+visitColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			v.ID, v.DealerID, v.SalesPersonID, v.VisitDate, v.Purpose, v.Outcome, v.Notes, v.RawNotes,
			v.OrderTaken, v.CollectionAmount, v.FollowUpRequired, v.NextVisitDate, v.DurationMinutes, v.CreatedAt,
		)
		if err != nil {
			return eris.Wrap(err, "postgres: insert visit")
		}
		tag, err := q.Exec(ctx,
			`UPDATE dealers SET last_visit_date = GREATEST(last_visit_date, $1) WHERE id = $2`,
			v.VisitDate, v.DealerID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: touch dealer %s", v.DealerID)
		}
		return notFoundIfNone(tag, "dealer", v.DealerID)
	})
}

func (s *PostgresStore) GetVisit(ctx context.Context, id string) (*model.Visit, error) {
	v, err := scanVisit(s.pool.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFound("visit", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get visit %s", id)
	}
	return v, nil
}

func (s *PostgresStore) ListRecentVisits(ctx context.Context, dealerID string, limit int) ([]model.Visit, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE dealer_id = $1 ORDER BY visit_date DESC, created_at DESC LIMIT $2`,
		dealerID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list visits")
	}
	defer rows.Close()

	var out []model.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan visit")
		}
		out = append(out, *v)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list visits iterate")
}

// --- Commitments ---

func (s *PostgresStore) CreateCommitment(ctx context.Context, c *model.Commitment) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO commitments (`+commitmentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.ID, c.VisitID, c.DealerID, c.SalesPersonID, c.ProductID, c.ProductDescription,
		c.QuantityPromised, c.ConvertedQuantity, c.CommitmentDate, c.ExpectedOrderDate, c.ExpectedDeliveryDate,
		c.Confidence, string(c.Status), c.ConvertedOrderID, c.ConversionDate, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert commitment")
}

func (s *PostgresStore) GetCommitment(ctx context.Context, id string) (*model.Commitment, error) {
	c, err := scanCommitment(s.pool.QueryRow(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.NewNotFound("commitment", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get commitment %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListOpenCommitments(ctx context.Context, dealerID, productID string) ([]model.Commitment, error) {
	return pgOpenCommitments(ctx, s.pool, dealerID, productID, false)
}

func pgOpenCommitments(ctx context.Context, q pgQuerier, dealerID, productID string, lock bool) ([]model.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments
		WHERE dealer_id = $1 AND status IN ('PENDING', 'PARTIAL')`
	args := []any{dealerID}
	if productID != "" {
		query += ` AND product_id = $2`
		args = append(args, productID)
	}
	query += ` ORDER BY expected_order_date ASC, created_at ASC, id ASC`
	if lock {
		query += ` FOR UPDATE`
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list open commitments")
	}
	defer rows.Close()

	var out []model.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan commitment")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list open commitments iterate")
}

func (s *PostgresStore) ExpireCommitments(ctx context.Context, before string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE commitments SET status = 'EXPIRED', updated_at = $1
		 WHERE status = 'PENDING' AND converted_quantity = 0 AND expected_order_date < $2`,
		time.Now().UTC(), before,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: expire commitments")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CancelCommitment(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE commitments SET status = 'CANCELLED', updated_at = $1
		 WHERE id = $2 AND status = 'PENDING' AND converted_quantity = 0`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: cancel commitment %s", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	c, err := s.GetCommitment(ctx, id)
	if err != nil {
		return err
	}
	return model.NewValidationError("status", "cannot cancel a "+string(c.Status)+" commitment")
}

// --- Consumption transaction ---

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.inTx(ctx, func(q pgQuerier) error {
		return fn(&pgTx{q: q})
	})
}

type pgTx struct {
	q pgQuerier
}

func (t *pgTx) LockOpenCommitments(ctx context.Context, dealerID, productID string) ([]model.Commitment, error) {
	return pgOpenCommitments(ctx, t.q, dealerID, productID, true)
}

func (t *pgTx) UpdateCommitmentConversion(ctx context.Context, id string, expected, converted int, status model.CommitmentStatus, conversionDate string) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE commitments
		 SET converted_quantity = $1, status = $2,
		     conversion_date = CASE WHEN $2 = 'CONVERTED' THEN $3 ELSE conversion_date END,
		     updated_at = $4
		 WHERE id = $5 AND converted_quantity = $6 AND status IN ('PENDING', 'PARTIAL')`,
		converted, string(status), conversionDate, time.Now().UTC(), id, expected,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update commitment %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrConflict, "postgres: commitment %s changed concurrently", id)
	}
	return nil
}

func (t *pgTx) GetConsumption(ctx context.Context, key string) (*model.ConsumptionResult, error) {
	var raw []byte
	err := t.q.QueryRow(ctx, `SELECT result FROM consumption_log WHERE idempotency_key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get consumption %s", key)
	}
	var r model.ConsumptionResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal consumption %s", key)
	}
	return &r, nil
}

func (t *pgTx) SaveConsumption(ctx context.Context, key string, result *model.ConsumptionResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal consumption")
	}
	_, err = t.q.Exec(ctx,
		`INSERT INTO consumption_log (idempotency_key, dealer_id, product_id, order_quantity, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key, result.DealerID, result.ProductID, result.OrderQuantity, string(raw), time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(model.ErrConflict, "postgres: consumption %s already recorded", key)
		}
		return eris.Wrapf(err, "postgres: save consumption %s", key)
	}
	return nil
}
