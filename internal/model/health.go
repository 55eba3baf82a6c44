package model

import "time"

// HealthStatus buckets an overall health score.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthAtRisk   HealthStatus = "AT_RISK"
	HealthCritical HealthStatus = "CRITICAL"
)

// Health snapshot sources.
const (
	SourcePrecomputed = "precomputed"
	SourceComputed    = "computed"
)

// HealthComponents holds the four 0-100 component scores.
type HealthComponents struct {
	Recency     float64 `json:"order_recency"`
	Frequency   float64 `json:"order_frequency"`
	Payment     float64 `json:"payment"`
	Fulfillment float64 `json:"commitment_fulfillment"`
}

// HealthSnapshot is one scoring of a dealer. Stored snapshots are append-only.
type HealthSnapshot struct {
	ID                 string           `json:"id,omitempty"`
	DealerID           string           `json:"dealer_id"`
	DealerName         string           `json:"dealer_name,omitempty"`
	CalculatedDate     string           `json:"calculated_date"`
	Score              float64          `json:"health_score"`
	Status             HealthStatus     `json:"health_status"`
	Components         HealthComponents `json:"components"`
	DaysSinceLastOrder int              `json:"days_since_last_order"`
	OrdersInWindow     int              `json:"orders_in_window"`
	PaymentOnTimeRate  *float64         `json:"payment_on_time_rate,omitempty"`
	CommitmentRate     *float64         `json:"commitment_conversion_rate,omitempty"`
	Reasons            []string         `json:"attention_reasons"`
	Source             string           `json:"source"`
	CreatedAt          time.Time        `json:"created_at"`
}

// HealthInputs is the raw activity a health score is computed from. The
// window starts at Since (inclusive).
type HealthInputs struct {
	DealerID         string
	DealerName       string
	Today            string
	Since            string
	LastOrderDate    string
	OrderCount       int
	InvoiceCount     int
	OnTimeInvoices   int
	CommitmentCount  int
	ConvertedCommits int
}
