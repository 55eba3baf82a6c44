package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Visit outcomes.
const (
	VisitSuccessful   = "SUCCESSFUL"
	VisitUnsuccessful = "UNSUCCESSFUL"
)

// Visit purposes recognised by outcome rules.
const (
	PurposeCollection = "COLLECTION"
	PurposeOrder      = "ORDER"
	PurposeRoutine    = "ROUTINE"
)

// Visit is a logged field visit by a rep to a dealer.
type Visit struct {
	ID               string          `json:"id" yaml:"id"`
	DealerID         string          `json:"dealer_id" yaml:"dealer_id"`
	SalesPersonID    string          `json:"sales_person_id" yaml:"sales_person_id"`
	VisitDate        string          `json:"visit_date" yaml:"visit_date"`
	Purpose          string          `json:"purpose" yaml:"purpose"`
	Outcome          string          `json:"outcome" yaml:"outcome"`
	Notes            string          `json:"notes,omitempty" yaml:"notes"`
	RawNotes         string          `json:"raw_notes,omitempty" yaml:"raw_notes"`
	OrderTaken       bool            `json:"order_taken" yaml:"order_taken"`
	CollectionAmount decimal.Decimal `json:"collection_amount" yaml:"collection_amount"`
	FollowUpRequired bool            `json:"follow_up_required" yaml:"follow_up_required"`
	NextVisitDate    string          `json:"next_visit_date,omitempty" yaml:"next_visit_date"`
	DurationMinutes  int             `json:"duration_minutes,omitempty" yaml:"duration_minutes"`
	CreatedAt        time.Time       `json:"created_at" yaml:"-"`
}
