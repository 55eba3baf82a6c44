package health

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
)

// NoOrderDays is recorded as days since last order for dealers that have
// never ordered.
const NoOrderDays = 999

// neutralScore is used for payment and fulfillment when there is nothing to
// measure, so new dealers are not penalised.
const neutralScore = 50.0

const (
	orderGapDays       = 30
	lowFrequencyOrders = 3
	weakComponent      = 70.0
)

// WindowStart returns the first date of the trailing scoring window.
func WindowStart(today string, months int) (string, error) {
	t, err := model.ParseDate(today)
	if err != nil {
		return "", err
	}
	return model.FormatDate(t.AddDate(0, -months, 0)), nil
}

// Compute scores a dealer from raw window activity. It does not touch the
// store and returns the same snapshot for the same inputs.
func Compute(in *model.HealthInputs, cfg config.HealthConfig) (*model.HealthSnapshot, error) {
	daysSince := NoOrderDays
	if in.LastOrderDate != "" {
		d, err := model.DaysBetween(in.LastOrderDate, in.Today)
		if err != nil {
			return nil, eris.Wrapf(err, "health: days since last order for %s", in.DealerID)
		}
		daysSince = d
	}

	components := model.HealthComponents{
		Recency:   scoreRecency(in.OrderCount, daysSince),
		Frequency: scoreFrequency(in.OrderCount, cfg.ExpectedOrders),
	}
	var paymentRate, commitRate *float64
	components.Payment, paymentRate = scoreRatio(in.OnTimeInvoices, in.InvoiceCount)
	components.Fulfillment, commitRate = scoreRatio(in.ConvertedCommits, in.CommitmentCount)

	overall := components.Recency*cfg.RecencyWeight +
		components.Frequency*cfg.FrequencyWeight +
		components.Payment*cfg.PaymentWeight +
		components.Fulfillment*cfg.FulfillmentWeight
	overall = math.Round(overall*100) / 100

	snap := &model.HealthSnapshot{
		DealerID:           in.DealerID,
		DealerName:         in.DealerName,
		CalculatedDate:     in.Today,
		Score:              overall,
		Status:             statusFor(overall, cfg),
		Components:         components,
		DaysSinceLastOrder: daysSince,
		OrdersInWindow:     in.OrderCount,
		PaymentOnTimeRate:  paymentRate,
		CommitmentRate:     commitRate,
		Reasons:            []string{},
		Source:             model.SourceComputed,
	}
	if snap.Status != model.HealthHealthy {
		snap.Reasons = attentionReasons(in, components, daysSince, cfg.MaxReasons)
	}
	return snap, nil
}

// scoreRecency decays two points per day since the last order. No orders in
// the window scores zero.
func scoreRecency(orders, daysSince int) float64 {
	if orders == 0 {
		return 0
	}
	return math.Max(0, 100-float64(daysSince)*2)
}

func scoreFrequency(orders, expected int) float64 {
	if expected <= 0 {
		expected = 6
	}
	return math.Min(100, float64(orders)/float64(expected)*100)
}

// scoreRatio returns hits/total as 0-100 and the raw rate, or the neutral
// score and nil when total is zero.
func scoreRatio(hits, total int) (float64, *float64) {
	if total == 0 {
		return neutralScore, nil
	}
	rate := float64(hits) / float64(total)
	return rate * 100, &rate
}

func statusFor(score float64, cfg config.HealthConfig) model.HealthStatus {
	switch {
	case score >= cfg.HealthyThreshold:
		return model.HealthHealthy
	case score >= cfg.AtRiskThreshold:
		return model.HealthAtRisk
	default:
		return model.HealthCritical
	}
}

// attentionReasons lists underperforming areas: order gap, then frequency,
// then payment, then fulfillment.
func attentionReasons(in *model.HealthInputs, c model.HealthComponents, daysSince, limit int) []string {
	var reasons []string
	switch {
	case in.OrderCount == 0:
		reasons = append(reasons, "No recent orders")
	case daysSince > orderGapDays:
		reasons = append(reasons, fmt.Sprintf("No order in %d days", daysSince))
	}
	if in.OrderCount < lowFrequencyOrders {
		reasons = append(reasons, "Low order frequency")
	}
	if in.InvoiceCount > 0 && c.Payment < weakComponent {
		reasons = append(reasons, "Payment delays")
	}
	if in.CommitmentCount > 0 && c.Fulfillment < weakComponent {
		reasons = append(reasons, "Low commitment conversion")
	}

	if limit > 0 && len(reasons) > limit {
		reasons = reasons[:limit]
	}
	if reasons == nil {
		reasons = []string{}
	}
	return reasons
}
