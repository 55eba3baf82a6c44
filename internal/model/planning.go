package model

import "github.com/shopspring/decimal"

// Visit priority buckets.
const (
	PriorityBucketHigh   = "HIGH"
	PriorityBucketMedium = "MEDIUM"
	PriorityBucketLow    = "LOW"
)

// PlanningCandidate is everything the planner reads about one active dealer.
// Nil pointers mean the data does not exist.
type PlanningCandidate struct {
	Dealer                 Dealer
	HealthScore            *float64
	SnapshotDaysSinceOrder *int
	OverdueAmount          decimal.Decimal
	DaysOverdue            int
	ExpiringCommitments    int
}

// UrgencySignals are the five capped 0-100 inputs to a visit priority.
type UrgencySignals struct {
	Payment      float64 `json:"payment_urgency"`
	Order        float64 `json:"order_urgency"`
	VisitRecency float64 `json:"visit_recency_urgency"`
	Commitment   float64 `json:"commitment_urgency"`
	Relationship float64 `json:"relationship_risk"`
}

// VisitRecommendation is one ranked dealer in a visit plan.
type VisitRecommendation struct {
	DealerID            string          `json:"dealer_id"`
	DealerName          string          `json:"dealer_name"`
	City                string          `json:"city,omitempty"`
	PriorityScore       float64         `json:"priority_score"`
	Priority            string          `json:"priority"`
	SuggestedAction     string          `json:"suggested_action"`
	Reasons             []string        `json:"reasons"`
	Signals             UrgencySignals  `json:"signals"`
	HealthScore         float64         `json:"health_score"`
	OverdueAmount       decimal.Decimal `json:"overdue_amount"`
	DaysOverdue         int             `json:"days_overdue"`
	DaysSinceLastOrder  int             `json:"days_since_last_order"`
	DaysSinceLastVisit  int             `json:"days_since_last_visit"`
	ExpiringCommitments int             `json:"expiring_commitments"`
	Latitude            *float64        `json:"latitude,omitempty"`
	Longitude           *float64        `json:"longitude,omitempty"`
}

// VisitPlan is the ranked output for one rep.
type VisitPlan struct {
	SalesPersonID      string                `json:"sales_person_id"`
	PlanDate           string                `json:"plan_date"`
	TotalActiveDealers int                   `json:"total_active_dealers"`
	Recommendations    []VisitRecommendation `json:"recommended_visits"`
}
