package planner

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/sells-group/fieldops/internal/model"
)

func TestScore_WorkedExample(t *testing.T) {
	rec := Score(Signals{
		OverdueAmount:      decimal.NewFromInt(20000),
		DaysOverdue:        10,
		DaysSinceLastOrder: 5,
		DaysSinceLastVisit: 2,
		HealthScore:        80,
	}, DefaultConfig())

	assert.InDelta(t, 32, rec.Signals.Payment, 1e-9)
	assert.InDelta(t, 12.5, rec.Signals.Order, 1e-9)
	assert.InDelta(t, 6, rec.Signals.VisitRecency, 1e-9)
	assert.InDelta(t, 0, rec.Signals.Commitment, 1e-9)
	assert.InDelta(t, 20, rec.Signals.Relationship, 1e-9)
	assert.InDelta(t, 16.625, rec.PriorityScore, 1e-9)
	assert.Equal(t, model.PriorityBucketLow, rec.Priority)
	assert.Equal(t, "Relationship maintenance", rec.SuggestedAction)
	assert.Equal(t, []string{"Rs.20,000 overdue (10d)"}, rec.Reasons)
}

func TestUrgencies_Capped(t *testing.T) {
	u := Urgencies(Signals{
		OverdueAmount:       decimal.NewFromInt(5_000_000),
		DaysOverdue:         90,
		DaysSinceLastOrder:  400,
		DaysSinceLastVisit:  400,
		ExpiringCommitments: 9,
		HealthScore:         -20,
	})
	assert.Equal(t, model.UrgencySignals{Payment: 100, Order: 100, VisitRecency: 100, Commitment: 100, Relationship: 100}, u)

	u = Urgencies(Signals{HealthScore: 130})
	assert.Zero(t, u.Relationship)

	u = Urgencies(Signals{DaysSinceLastOrder: -4, DaysSinceLastVisit: -2, HealthScore: 100})
	assert.Zero(t, u.Order)
	assert.Zero(t, u.VisitRecency)
}

func TestBucket(t *testing.T) {
	assert.Equal(t, model.PriorityBucketHigh, Bucket(70))
	assert.Equal(t, model.PriorityBucketMedium, Bucket(69.99))
	assert.Equal(t, model.PriorityBucketMedium, Bucket(40))
	assert.Equal(t, model.PriorityBucketLow, Bucket(39.99))
}

func TestScore_SuggestedActions(t *testing.T) {
	orderOnly := DefaultConfig()
	orderOnly.PaymentWeight, orderOnly.OrderWeight, orderOnly.VisitWeight = 0, 1, 0
	orderOnly.CommitmentWeight, orderOnly.RelationshipWeight = 0, 0

	tests := []struct {
		name   string
		sig    Signals
		bucket string
		action string
	}{
		{
			name: "high collects payment",
			sig: Signals{OverdueAmount: decimal.NewFromInt(150000), DaysOverdue: 40, DaysSinceLastOrder: 100,
				DaysSinceLastVisit: 40, HealthScore: 20},
			bucket: model.PriorityBucketHigh,
			action: "Collect overdue payment Rs.150,000",
		},
		{
			name:   "high closes commitments",
			sig:    Signals{DaysOverdue: 1, DaysSinceLastOrder: 100, DaysSinceLastVisit: 60, ExpiringCommitments: 4, HealthScore: 0},
			bucket: model.PriorityBucketHigh,
			action: "Close 4 expiring commitment(s)",
		},
		{
			name:   "medium reorder check",
			sig:    Signals{DaysOverdue: 10, DaysSinceLastOrder: 40, DaysSinceLastVisit: 10, HealthScore: 50},
			bucket: model.PriorityBucketMedium,
			action: "No order in 40 days - check reorder",
		},
		{
			name:   "medium follow-up",
			sig:    Signals{DaysOverdue: 40, DaysSinceLastOrder: 20, HealthScore: 80},
			bucket: model.PriorityBucketMedium,
			action: "Regular follow-up",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Score(tt.sig, DefaultConfig())
			assert.Equal(t, tt.bucket, rec.Priority, "score %.3f", rec.PriorityScore)
			assert.Equal(t, tt.action, rec.SuggestedAction)
		})
	}

	rec := Score(Signals{DaysSinceLastOrder: 60, HealthScore: 90}, orderOnly)
	assert.Equal(t, model.PriorityBucketHigh, rec.Priority)
	assert.Equal(t, "Urgent attention needed", rec.SuggestedAction)
}

func TestScore_ReasonsCapped(t *testing.T) {
	rec := Score(Signals{
		OverdueAmount:       decimal.NewFromInt(1234),
		DaysOverdue:         3,
		DaysSinceLastOrder:  45,
		ExpiringCommitments: 2,
		HealthScore:         30,
	}, DefaultConfig())

	assert.Equal(t, []string{
		"Rs.1,234 overdue (3d)",
		"No order in 45 days",
		"2 commitment(s) expiring soon",
	}, rec.Reasons)

	assert.Equal(t, []string{"Health score critical (30)"}, Score(Signals{HealthScore: 30}, DefaultConfig()).Reasons)
	assert.NotNil(t, Score(Signals{HealthScore: 90}, DefaultConfig()).Reasons)
}

func TestRank_TiesByDealerID(t *testing.T) {
	recs := []model.VisitRecommendation{
		{DealerID: "d-9", PriorityScore: 50},
		{DealerID: "d-2", PriorityScore: 80},
		{DealerID: "d-3", PriorityScore: 50},
		{DealerID: "d-1", PriorityScore: 50},
	}
	Rank(recs)

	var ids []string
	for _, r := range recs {
		ids = append(ids, r.DealerID)
	}
	assert.Equal(t, []string{"d-2", "d-1", "d-3", "d-9"}, ids)
}
