package store

import (
	"context"

	"github.com/sells-group/fieldops/internal/model"
)

// Store is the persistence interface for dealers, commitments, orders,
// receivables, inventory, health snapshots and alerts.
//
// Lookups of a single entity return a *model.NotFoundError when the id is
// unknown, except the "latest"/"find" helpers which return nil, nil.
type Store interface {
	// Reference data
	GetDealer(ctx context.Context, id string) (*model.Dealer, error)
	ListDealers(ctx context.Context, filter model.DealerFilter) ([]model.Dealer, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context, status model.ProductStatus) ([]model.Product, error)
	GetSalesPerson(ctx context.Context, id string) (*model.SalesPerson, error)
	FindManager(ctx context.Context) (*model.SalesPerson, error)

	// Visits
	CreateVisit(ctx context.Context, v *model.Visit) error
	GetVisit(ctx context.Context, id string) (*model.Visit, error)
	ListRecentVisits(ctx context.Context, dealerID string, limit int) ([]model.Visit, error)

	// Commitments
	CreateCommitment(ctx context.Context, c *model.Commitment) error
	GetCommitment(ctx context.Context, id string) (*model.Commitment, error)
	ListOpenCommitments(ctx context.Context, dealerID, productID string) ([]model.Commitment, error)
	ExpireCommitments(ctx context.Context, before string) (int, error)
	CancelCommitment(ctx context.Context, id string) error

	// Orders and receivables
	CreateOrder(ctx context.Context, o *model.NewOrder, numberPrefix string) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, dealerID string, limit int) ([]model.Order, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	ListOpenInvoices(ctx context.Context, dealerID string) ([]model.Invoice, error)
	RecordPayment(ctx context.Context, p *model.Payment) (*model.Invoice, error)

	// Inventory
	InventoryPosition(ctx context.Context, productID, incomingUntil string) (*model.InventoryPosition, error)

	// Health
	HealthInputs(ctx context.Context, dealerID, since, today string) (*model.HealthInputs, error)
	LatestHealthSnapshot(ctx context.Context, dealerID string) (*model.HealthSnapshot, error)
	SaveHealthSnapshot(ctx context.Context, s *model.HealthSnapshot) error

	// Planning
	PlanningCandidates(ctx context.Context, salesPersonID, today, expiringUntil string) ([]model.PlanningCandidate, error)

	// Alerts
	CreateAlert(ctx context.Context, a *model.Alert) error
	MarkAlertNotified(ctx context.Context, id string) error
	// ListActiveAlerts returns ACTIVE alerts, most urgent first, optionally
	// only those assigned to one sales person.
	ListActiveAlerts(ctx context.Context, assignedTo string, limit int) ([]model.Alert, error)

	// WithTx runs fn in one transaction that holds the commitment write
	// lock. It commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Lifecycle
	ImportFixtures(ctx context.Context, f *Fixtures) error
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the consumption unit of work.
type Tx interface {
	// LockOpenCommitments returns PENDING/PARTIAL commitments for the pair,
	// oldest expected date first, locked against concurrent consumers.
	LockOpenCommitments(ctx context.Context, dealerID, productID string) ([]model.Commitment, error)

	// UpdateCommitmentConversion sets converted_quantity from expected to
	// converted. It returns model.ErrConflict when the stored value is no
	// longer expected.
	UpdateCommitmentConversion(ctx context.Context, id string, expected, converted int, status model.CommitmentStatus, conversionDate string) error

	// GetConsumption returns a recorded consumption result, or nil.
	GetConsumption(ctx context.Context, key string) (*model.ConsumptionResult, error)

	// SaveConsumption records a result under an idempotency key. A duplicate
	// key returns model.ErrConflict.
	SaveConsumption(ctx context.Context, key string, result *model.ConsumptionResult) error
}
