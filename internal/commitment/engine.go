package commitment

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/resilience"
	"github.com/sells-group/fieldops/internal/store"
)

// ConsumeRequest asks the engine to match one order line against the
// dealer's open commitments for a product. IdempotencyKey is normally the
// order id; a repeated key replays the stored result.
type ConsumeRequest struct {
	DealerID       string `json:"dealer_id" validate:"required"`
	ProductID      string `json:"product_id" validate:"required"`
	OrderQuantity  int    `json:"order_quantity" validate:"gt=0"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Engine consumes commitments atomically.
type Engine struct {
	store store.Store
	cfg   config.ConsumptionConfig
	clock model.Clock
}

// NewEngine creates a consumption engine. A nil clock uses the wall clock.
func NewEngine(st store.Store, cfg config.ConsumptionConfig, clock model.Clock) *Engine {
	if cfg.ForwardWindowDays <= 0 {
		cfg.ForwardWindowDays = 7
	}
	return &Engine{store: st, cfg: cfg, clock: clock}
}

func (e *Engine) retryPolicy(req ConsumeRequest) resilience.Policy {
	return resilience.Policy{
		Attempts:   e.cfg.MaxAttempts,
		BaseDelay:  time.Duration(e.cfg.InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(e.cfg.MaxBackoffMs) * time.Millisecond,
		Multiplier: 2,
		Jitter:     0.2,
		Retryable:  model.IsConflict,
		OnRetry: resilience.LogRetry("commitment.consume",
			zap.String("dealer_id", req.DealerID),
			zap.String("product_id", req.ProductID),
		),
	}
}

// Consume matches the order quantity against open commitments, oldest
// expected date first, and persists the new converted quantities in one
// transaction. Lost races are retried from a fresh read; when the retries
// run out the error is transient and nothing has been written.
func (e *Engine) Consume(ctx context.Context, req ConsumeRequest) (*model.ConsumptionResult, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}

	today := e.clock.Today()
	forwardUntil, err := model.AddDays(today, e.cfg.ForwardWindowDays)
	if err != nil {
		return nil, eris.Wrap(err, "commitment: forward window")
	}

	result, err := resilience.DoVal(ctx, e.retryPolicy(req), func(ctx context.Context) (*model.ConsumptionResult, error) {
		return e.attempt(ctx, req, today, forwardUntil)
	})
	if err != nil {
		if model.IsConflict(err) {
			return nil, resilience.NewTransientError(
				eris.Wrapf(err, "commitment: consume %s/%s: retries exhausted", req.DealerID, req.ProductID), 0)
		}
		return nil, eris.Wrapf(err, "commitment: consume %s/%s", req.DealerID, req.ProductID)
	}

	zap.L().Info("commitment: consumed",
		zap.String("dealer_id", req.DealerID),
		zap.String("product_id", req.ProductID),
		zap.Int("order_quantity", req.OrderQuantity),
		zap.Int("consumed", result.ConsumedTotal),
		zap.Int("unmatched", result.UnmatchedTotal),
		zap.Bool("replayed", result.Replayed),
	)
	return result, nil
}

func (e *Engine) attempt(ctx context.Context, req ConsumeRequest, today, forwardUntil string) (*model.ConsumptionResult, error) {
	var result *model.ConsumptionResult

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if req.IdempotencyKey != "" {
			prior, err := tx.GetConsumption(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if prior != nil {
				if prior.DealerID != req.DealerID || prior.ProductID != req.ProductID || prior.OrderQuantity != req.OrderQuantity {
					return model.NewValidationError("idempotency_key", "already used for a different order line")
				}
				prior.Replayed = true
				result = prior
				return nil
			}
		}

		open, err := tx.LockOpenCommitments(ctx, req.DealerID, req.ProductID)
		if err != nil {
			return err
		}

		m := Walk(open, req.OrderQuantity, today, forwardUntil)
		for _, a := range m.Allocations {
			if err := tx.UpdateCommitmentConversion(ctx, a.Commitment.ID,
				a.Commitment.ConvertedQuantity, a.Converted, a.Status, today); err != nil {
				return err
			}
		}

		result = &model.ConsumptionResult{
			DealerID:       req.DealerID,
			ProductID:      req.ProductID,
			OrderQuantity:  req.OrderQuantity,
			ConsumedTotal:  m.Consumed,
			UnmatchedTotal: m.Unmatched,
			FullyMatched:   m.Unmatched == 0,
			Details:        m.Details(),
			IdempotencyKey: req.IdempotencyKey,
			ConsumedAt:     e.clock.Now(),
		}

		if req.IdempotencyKey != "" {
			return tx.SaveConsumption(ctx, req.IdempotencyKey, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
