// Package planner ranks a rep's dealers by how urgently they need a visit.
package planner

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
)

// Signals is the per-dealer activity a visit priority is computed from.
type Signals struct {
	OverdueAmount       decimal.Decimal
	DaysOverdue         int
	DaysSinceLastOrder  int
	DaysSinceLastVisit  int
	ExpiringCommitments int
	HealthScore         float64
}

const (
	highPriority   = 70.0
	mediumPriority = 40.0

	collectThreshold = 50.0
	reorderGapDays   = 30
	criticalHealth   = 50.0
	maxReasons       = 3
)

var printer = message.NewPrinter(language.English)

// DefaultConfig returns the standard planner weights and sentinels.
func DefaultConfig() config.PlannerConfig {
	return config.PlannerConfig{
		PaymentWeight:      0.30,
		OrderWeight:        0.25,
		VisitWeight:        0.15,
		CommitmentWeight:   0.15,
		RelationshipWeight: 0.15,
		NoOrderSentinel:    120,
		NoVisitSentinel:    60,
		DefaultHealth:      50,
		ExpiringDays:       3,
		MaxDealers:         5,
	}
}

// Urgencies computes the five capped urgency signals.
func Urgencies(s Signals) model.UrgencySignals {
	overdue := s.OverdueAmount.InexactFloat64()
	return model.UrgencySignals{
		Payment:      math.Min(100, float64(s.DaysOverdue)*3+overdue/10000),
		Order:        clamp(float64(s.DaysSinceLastOrder) * 2.5),
		VisitRecency: clamp(float64(s.DaysSinceLastVisit) * 3),
		Commitment:   math.Min(100, float64(s.ExpiringCommitments)*25),
		Relationship: math.Min(100, math.Max(0, 100-s.HealthScore)),
	}
}

func clamp(v float64) float64 {
	return math.Min(100, math.Max(0, v))
}

// PriorityScore weights the urgency signals into one 0-100 score.
func PriorityScore(u model.UrgencySignals, cfg config.PlannerConfig) float64 {
	return u.Payment*cfg.PaymentWeight +
		u.Order*cfg.OrderWeight +
		u.VisitRecency*cfg.VisitWeight +
		u.Commitment*cfg.CommitmentWeight +
		u.Relationship*cfg.RelationshipWeight
}

// Bucket maps a priority score to HIGH, MEDIUM or LOW.
func Bucket(score float64) string {
	switch {
	case score >= highPriority:
		return model.PriorityBucketHigh
	case score >= mediumPriority:
		return model.PriorityBucketMedium
	default:
		return model.PriorityBucketLow
	}
}

// Score builds a recommendation for one dealer. Identity fields are left to
// the caller.
func Score(s Signals, cfg config.PlannerConfig) model.VisitRecommendation {
	u := Urgencies(s)
	score := PriorityScore(u, cfg)
	bucket := Bucket(score)

	return model.VisitRecommendation{
		PriorityScore:       score,
		Priority:            bucket,
		SuggestedAction:     suggestedAction(bucket, u, s),
		Reasons:             reasons(s),
		Signals:             u,
		HealthScore:         s.HealthScore,
		OverdueAmount:       s.OverdueAmount,
		DaysOverdue:         s.DaysOverdue,
		DaysSinceLastOrder:  s.DaysSinceLastOrder,
		DaysSinceLastVisit:  s.DaysSinceLastVisit,
		ExpiringCommitments: s.ExpiringCommitments,
	}
}

func suggestedAction(bucket string, u model.UrgencySignals, s Signals) string {
	switch bucket {
	case model.PriorityBucketHigh:
		switch {
		case u.Payment >= collectThreshold:
			return "Collect overdue payment Rs." + rupees(s.OverdueAmount)
		case s.ExpiringCommitments > 0:
			return fmt.Sprintf("Close %d expiring commitment(s)", s.ExpiringCommitments)
		default:
			return "Urgent attention needed"
		}
	case model.PriorityBucketMedium:
		if s.DaysSinceLastOrder > reorderGapDays {
			return fmt.Sprintf("No order in %d days - check reorder", s.DaysSinceLastOrder)
		}
		return "Regular follow-up"
	default:
		return "Relationship maintenance"
	}
}

func reasons(s Signals) []string {
	out := []string{}
	if s.OverdueAmount.IsPositive() {
		out = append(out, fmt.Sprintf("Rs.%s overdue (%dd)", rupees(s.OverdueAmount), s.DaysOverdue))
	}
	if s.DaysSinceLastOrder > reorderGapDays {
		out = append(out, fmt.Sprintf("No order in %d days", s.DaysSinceLastOrder))
	}
	if s.ExpiringCommitments > 0 {
		out = append(out, fmt.Sprintf("%d commitment(s) expiring soon", s.ExpiringCommitments))
	}
	if s.HealthScore < criticalHealth {
		out = append(out, fmt.Sprintf("Health score critical (%.0f)", s.HealthScore))
	}
	if len(out) > maxReasons {
		out = out[:maxReasons]
	}
	return out
}

// rupees renders a whole-rupee amount with thousands separators.
func rupees(d decimal.Decimal) string {
	return printer.Sprintf("%d", d.Round(0).IntPart())
}
