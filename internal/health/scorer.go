package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
)

// Scorer serves dealer health, preferring the latest stored snapshot.
type Scorer struct {
	store       store.Store
	cfg         config.HealthConfig
	concurrency int
	clock       model.Clock
}

// NewScorer creates a Scorer. concurrency bounds Recompute.
func NewScorer(st store.Store, cfg config.HealthConfig, concurrency int, clock model.Clock) *Scorer {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Scorer{store: st, cfg: cfg, concurrency: concurrency, clock: clock}
}

// Score returns the dealer's latest stored snapshot when one exists (and is
// younger than the configured max age), otherwise a live computation. The
// live result is not stored.
func (s *Scorer) Score(ctx context.Context, dealerID string) (*model.HealthSnapshot, error) {
	if dealerID == "" {
		return nil, model.NewValidationError("dealer_id", "is required")
	}
	dealer, err := s.store.GetDealer(ctx, dealerID)
	if err != nil {
		return nil, err
	}

	cached, err := s.store.LatestHealthSnapshot(ctx, dealerID)
	if err != nil {
		return nil, eris.Wrapf(err, "health: load snapshot %s", dealerID)
	}
	if cached != nil && s.fresh(cached) {
		cached.DealerName = dealer.Name
		cached.Source = model.SourcePrecomputed
		return cached, nil
	}

	return s.Live(ctx, dealerID)
}

func (s *Scorer) fresh(snap *model.HealthSnapshot) bool {
	if s.cfg.CacheMaxAgeHours <= 0 {
		return true
	}
	maxAge := time.Duration(s.cfg.CacheMaxAgeHours) * time.Hour
	return s.clock.Now().Sub(snap.CreatedAt) <= maxAge
}

// Live computes a dealer's health from current data.
func (s *Scorer) Live(ctx context.Context, dealerID string) (*model.HealthSnapshot, error) {
	today := s.clock.Today()
	since, err := WindowStart(today, s.cfg.WindowMonths)
	if err != nil {
		return nil, err
	}

	in, err := s.store.HealthInputs(ctx, dealerID, since, today)
	if err != nil {
		return nil, err
	}

	snap, err := Compute(in, s.cfg)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("health: computed",
		zap.String("dealer_id", dealerID),
		zap.Float64("score", snap.Score),
		zap.String("status", string(snap.Status)),
	)
	return snap, nil
}

// RecomputeResult summarises a batch recompute.
type RecomputeResult struct {
	Snapshots []model.HealthSnapshot `json:"snapshots"`
	Failed    []string               `json:"failed,omitempty"`
}

// Recompute computes and stores a fresh snapshot for each dealer. With no
// ids it covers every active dealer. A failure for one dealer is logged and
// reported without stopping the others.
func (s *Scorer) Recompute(ctx context.Context, dealerIDs []string) (*RecomputeResult, error) {
	if len(dealerIDs) == 0 {
		dealers, err := s.store.ListDealers(ctx, model.DealerFilter{Status: model.DealerActive})
		if err != nil {
			return nil, eris.Wrap(err, "health: list dealers")
		}
		for _, d := range dealers {
			dealerIDs = append(dealerIDs, d.ID)
		}
	}

	snaps := make([]*model.HealthSnapshot, len(dealerIDs))
	failed := make([]bool, len(dealerIDs))
	var saved atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, id := range dealerIDs {
		g.Go(func() error {
			log := zap.L().With(zap.String("dealer_id", id))

			snap, err := s.Live(gctx, id)
			if err == nil {
				err = s.store.SaveHealthSnapshot(gctx, snap)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed[i] = true
				log.Error("health: recompute failed", zap.Error(err))
				return nil
			}

			snaps[i] = snap
			saved.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "health: recompute")
	}

	res := &RecomputeResult{Snapshots: make([]model.HealthSnapshot, 0, saved.Load())}
	for i, snap := range snaps {
		switch {
		case snap != nil:
			res.Snapshots = append(res.Snapshots, *snap)
		case failed[i]:
			res.Failed = append(res.Failed, dealerIDs[i])
		}
	}

	zap.L().Info("health: recompute complete",
		zap.Int("saved", len(res.Snapshots)),
		zap.Int("failed", len(res.Failed)),
	)
	return res, nil
}
