// Package health scores dealer relationships from order, payment and
// commitment history over a trailing window.
package health

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldops/internal/config"
)

// DefaultConfig returns a config.HealthConfig with the standard weights.
// Weights sum to 1.
func DefaultConfig() config.HealthConfig {
	return config.HealthConfig{
		RecencyWeight:     0.25,
		FrequencyWeight:   0.25,
		PaymentWeight:     0.25,
		FulfillmentWeight: 0.25,

		WindowMonths:   6,
		ExpectedOrders: 6,

		HealthyThreshold: 70,
		AtRiskThreshold:  50,
		MaxReasons:       3,
	}
}

// WeightSum returns the sum of the component weights.
func WeightSum(c config.HealthConfig) float64 {
	return c.RecencyWeight + c.FrequencyWeight + c.PaymentWeight + c.FulfillmentWeight
}

// ValidateConfig checks that a HealthConfig is internally consistent.
func ValidateConfig(c config.HealthConfig) error {
	var errs []string

	weights := []struct {
		name string
		w    float64
	}{
		{"recency_weight", c.RecencyWeight},
		{"frequency_weight", c.FrequencyWeight},
		{"payment_weight", c.PaymentWeight},
		{"fulfillment_weight", c.FulfillmentWeight},
	}
	for _, w := range weights {
		if w.w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	// Allow floating-point slack.
	if sum := WeightSum(c); math.Abs(sum-1) > 0.001 {
		errs = append(errs, fmt.Sprintf("weights should sum to 1, got %.3f", sum))
	}

	if c.WindowMonths <= 0 {
		errs = append(errs, "window_months must be > 0")
	}
	if c.ExpectedOrders <= 0 {
		errs = append(errs, "expected_orders must be > 0")
	}
	if c.AtRiskThreshold > c.HealthyThreshold {
		errs = append(errs, "at_risk_threshold must be <= healthy_threshold")
	}
	if c.MaxReasons < 0 {
		errs = append(errs, "max_reasons must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("health: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
