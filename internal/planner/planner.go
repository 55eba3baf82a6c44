package planner

import (
	"cmp"
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/health"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
)

// PlanRequest asks for today's visit plan for one rep. MaxDealers <= 0 uses
// the configured default.
type PlanRequest struct {
	SalesPersonID string `json:"sales_person_id" validate:"required"`
	MaxDealers    int    `json:"max_dealers,omitempty" validate:"gte=0"`
}

// Planner builds ranked visit plans.
type Planner struct {
	store store.Store
	cfg   config.PlannerConfig
	clock model.Clock
}

// New creates a Planner.
func New(st store.Store, cfg config.PlannerConfig, clock model.Clock) *Planner {
	return &Planner{store: st, cfg: cfg, clock: clock}
}

// Plan scores every active dealer owned by the rep and returns the top
// MaxDealers, highest priority first. Equal scores are ordered by dealer id.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*model.VisitPlan, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}
	if _, err := p.store.GetSalesPerson(ctx, req.SalesPersonID); err != nil {
		return nil, err
	}

	today := p.clock.Today()
	expiringUntil, err := model.AddDays(today, p.cfg.ExpiringDays)
	if err != nil {
		return nil, err
	}

	candidates, err := p.store.PlanningCandidates(ctx, req.SalesPersonID, today, expiringUntil)
	if err != nil {
		return nil, eris.Wrapf(err, "planner: candidates for %s", req.SalesPersonID)
	}

	recs := make([]model.VisitRecommendation, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		sig, err := p.signals(c, today)
		if err != nil {
			return nil, err
		}
		rec := Score(sig, p.cfg)
		rec.DealerID = c.Dealer.ID
		rec.DealerName = c.Dealer.Name
		rec.City = c.Dealer.City
		rec.Latitude = c.Dealer.Latitude
		rec.Longitude = c.Dealer.Longitude
		recs = append(recs, rec)
	}

	Rank(recs)

	limit := req.MaxDealers
	if limit <= 0 {
		limit = p.cfg.MaxDealers
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	zap.L().Info("planner: plan built",
		zap.String("sales_person_id", req.SalesPersonID),
		zap.Int("active_dealers", len(candidates)),
		zap.Int("recommended", len(recs)),
	)

	return &model.VisitPlan{
		SalesPersonID:      req.SalesPersonID,
		PlanDate:           today,
		TotalActiveDealers: len(candidates),
		Recommendations:    recs,
	}, nil
}

// Rank sorts recommendations by descending priority score, then dealer id.
func Rank(recs []model.VisitRecommendation) {
	slices.SortStableFunc(recs, func(a, b model.VisitRecommendation) int {
		if c := cmp.Compare(b.PriorityScore, a.PriorityScore); c != 0 {
			return c
		}
		return cmp.Compare(a.DealerID, b.DealerID)
	})
}

// signals fills gaps in a dealer's history with sentinel values so dealers
// that were never ordered from or visited rank as neglected. Dates after
// today count as zero days.
func (p *Planner) signals(c *model.PlanningCandidate, today string) (Signals, error) {
	s := Signals{
		OverdueAmount:       c.OverdueAmount,
		DaysOverdue:         c.DaysOverdue,
		ExpiringCommitments: c.ExpiringCommitments,
		HealthScore:         p.cfg.DefaultHealth,
	}
	if c.HealthScore != nil {
		s.HealthScore = *c.HealthScore
	}

	switch {
	case c.Dealer.LastOrderDate != "":
		d, err := model.DaysBetween(c.Dealer.LastOrderDate, today)
		if err != nil {
			return s, eris.Wrapf(err, "planner: last order for %s", c.Dealer.ID)
		}
		s.DaysSinceLastOrder = max(0, d)
	case c.SnapshotDaysSinceOrder != nil && *c.SnapshotDaysSinceOrder < health.NoOrderDays:
		s.DaysSinceLastOrder = *c.SnapshotDaysSinceOrder
	default:
		s.DaysSinceLastOrder = p.cfg.NoOrderSentinel
	}

	if c.Dealer.LastVisitDate != "" {
		d, err := model.DaysBetween(c.Dealer.LastVisitDate, today)
		if err != nil {
			return s, eris.Wrapf(err, "planner: last visit for %s", c.Dealer.ID)
		}
		s.DaysSinceLastVisit = max(0, d)
	} else {
		s.DaysSinceLastVisit = p.cfg.NoVisitSentinel
	}
	return s, nil
}
