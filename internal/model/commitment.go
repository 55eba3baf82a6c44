package model

import (
	"fmt"
	"time"
)

// CommitmentStatus is the lifecycle state of a dealer commitment.
type CommitmentStatus string

const (
	CommitmentPending   CommitmentStatus = "PENDING"
	CommitmentPartial   CommitmentStatus = "PARTIAL"
	CommitmentConverted CommitmentStatus = "CONVERTED"
	CommitmentExpired   CommitmentStatus = "EXPIRED"
	CommitmentCancelled CommitmentStatus = "CANCELLED"
)

// Open reports whether the commitment can still absorb order quantity.
func (s CommitmentStatus) Open() bool {
	return s == CommitmentPending || s == CommitmentPartial
}

// Commitment is a dealer's stated intent to order a product by a date.
type Commitment struct {
	ID                   string           `json:"id" yaml:"id"`
	VisitID              string           `json:"visit_id,omitempty" yaml:"visit_id"`
	DealerID             string           `json:"dealer_id" yaml:"dealer_id"`
	SalesPersonID        string           `json:"sales_person_id" yaml:"sales_person_id"`
	ProductID            string           `json:"product_id" yaml:"product_id"`
	ProductDescription   string           `json:"product_description,omitempty" yaml:"product_description"`
	QuantityPromised     int              `json:"quantity_promised" yaml:"quantity_promised"`
	ConvertedQuantity    int              `json:"converted_quantity" yaml:"converted_quantity"`
	CommitmentDate       string           `json:"commitment_date" yaml:"commitment_date"`
	ExpectedOrderDate    string           `json:"expected_order_date" yaml:"expected_order_date"`
	ExpectedDeliveryDate string           `json:"expected_delivery_date,omitempty" yaml:"expected_delivery_date"`
	Confidence           float64          `json:"confidence" yaml:"confidence"`
	Status               CommitmentStatus `json:"status" yaml:"status"`
	ConvertedOrderID     string           `json:"converted_order_id,omitempty" yaml:"converted_order_id"`
	ConversionDate       string           `json:"conversion_date,omitempty" yaml:"conversion_date"`
	Notes                string           `json:"notes,omitempty" yaml:"notes"`
	CreatedAt            time.Time        `json:"created_at" yaml:"-"`
	UpdatedAt            time.Time        `json:"updated_at" yaml:"-"`
}

// Remaining is the unconverted quantity.
func (c *Commitment) Remaining() int {
	r := c.QuantityPromised - c.ConvertedQuantity
	if r < 0 {
		return 0
	}
	return r
}

// StatusFor derives the status of an open commitment from its quantities.
func StatusFor(promised, converted int) CommitmentStatus {
	switch {
	case converted <= 0:
		return CommitmentPending
	case converted >= promised:
		return CommitmentConverted
	default:
		return CommitmentPartial
	}
}

// Validate checks the quantity bounds and that status agrees with them.
func (c *Commitment) Validate() error {
	if c.QuantityPromised <= 0 {
		return NewValidationError("quantity_promised", "must be > 0")
	}
	if c.ConvertedQuantity < 0 || c.ConvertedQuantity > c.QuantityPromised {
		return NewValidationError("converted_quantity",
			fmt.Sprintf("must be within [0, %d], got %d", c.QuantityPromised, c.ConvertedQuantity))
	}
	switch {
	case c.ConvertedQuantity == 0:
		if c.Status != CommitmentPending && c.Status != CommitmentExpired && c.Status != CommitmentCancelled {
			return NewValidationError("status", fmt.Sprintf("%s with nothing converted", c.Status))
		}
	case c.ConvertedQuantity < c.QuantityPromised:
		if c.Status != CommitmentPartial {
			return NewValidationError("status", fmt.Sprintf("%s with partial conversion", c.Status))
		}
	default:
		if c.Status != CommitmentConverted {
			return NewValidationError("status", fmt.Sprintf("%s with full conversion", c.Status))
		}
	}
	return nil
}

// Urgency labels used by pipeline views.
const (
	UrgencyOverdue   = "OVERDUE"
	UrgencyDueSoon   = "DUE_SOON"
	UrgencyFulfilled = "FULFILLED"
	UrgencyUpcoming  = "UPCOMING"
)

// UrgencyLabel classifies a commitment for display. dueSoonUntil is the last
// date (inclusive) counted as due soon, normally today+3.
func UrgencyLabel(status CommitmentStatus, expectedDate, today, dueSoonUntil string) string {
	switch {
	case status == CommitmentPending && expectedDate < today:
		return UrgencyOverdue
	case status == CommitmentPending && expectedDate <= dueSoonUntil:
		return UrgencyDueSoon
	case status == CommitmentConverted:
		return UrgencyFulfilled
	default:
		return UrgencyUpcoming
	}
}

// Consumption kinds.
const (
	ConsumptionBackward = "backward"
	ConsumptionForward  = "forward"
)

// ConsumptionDetail records how much one commitment absorbed from an order.
type ConsumptionDetail struct {
	CommitmentID string           `json:"commitment_id"`
	ExpectedDate string           `json:"expected_date"`
	Consumed     int              `json:"consumed_qty"`
	Converted    int              `json:"converted_quantity"`
	Status       CommitmentStatus `json:"status"`
	Kind         string           `json:"type"`
}

// ConsumptionResult is the outcome of matching one order against a dealer's
// open commitments.
type ConsumptionResult struct {
	DealerID       string              `json:"dealer_id"`
	ProductID      string              `json:"product_id"`
	OrderQuantity  int                 `json:"order_quantity"`
	ConsumedTotal  int                 `json:"consumed_from_commitments"`
	UnmatchedTotal int                 `json:"unmatched_quantity"`
	FullyMatched   bool                `json:"fully_matched"`
	Details        []ConsumptionDetail `json:"consumption_details"`
	IdempotencyKey string              `json:"idempotency_key,omitempty"`
	Replayed       bool                `json:"replayed,omitempty"`
	ConsumedAt     time.Time           `json:"consumed_at"`
}

// PendingCommitment is an open commitment annotated for the pipeline view.
type PendingCommitment struct {
	Commitment
	ProductName string `json:"product_name"`
	Remaining   int    `json:"remaining_qty"`
	Urgency     string `json:"urgency"`
}
