package commitment

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
)

const (
	defaultExpectedDays = 7
	defaultConfidence   = 0.80
	deliveryAfterOrder  = 2
)

// Service handles commitment creation and the pending pipeline.
type Service struct {
	store store.Store
	cfg   config.ConsumptionConfig
	clock model.Clock
}

// NewService creates a commitment service.
func NewService(st store.Store, cfg config.ConsumptionConfig, clock model.Clock) *Service {
	if cfg.DueSoonDays <= 0 {
		cfg.DueSoonDays = 3
	}
	return &Service{store: st, cfg: cfg, clock: clock}
}

// Pipeline is the open commitments for a dealer with summary counts.
type Pipeline struct {
	DealerID     string                    `json:"dealer_id"`
	DealerName   string                    `json:"dealer_name"`
	Commitments  []model.PendingCommitment `json:"pending_commitments"`
	TotalPending int                       `json:"total_pending"`
	Overdue      int                       `json:"overdue_count"`
	DueSoon      int                       `json:"due_soon_count"`
	RemainingQty int                       `json:"total_remaining_qty"`
}

// Pending lists a dealer's open commitments, optionally for one product,
// sorted by expected order date with urgency labels.
func (s *Service) Pending(ctx context.Context, dealerID, productID string) (*Pipeline, error) {
	if dealerID == "" {
		return nil, model.NewValidationError("dealer_id", "is required")
	}
	dealer, err := s.store.GetDealer(ctx, dealerID)
	if err != nil {
		return nil, err
	}

	open, err := s.store.ListOpenCommitments(ctx, dealerID, productID)
	if err != nil {
		return nil, eris.Wrap(err, "commitment: list pending")
	}

	today := s.clock.Today()
	dueSoonUntil, err := model.AddDays(today, s.cfg.DueSoonDays)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	p := &Pipeline{DealerID: dealer.ID, DealerName: dealer.Name, Commitments: make([]model.PendingCommitment, 0, len(open))}
	for _, c := range open {
		name, ok := names[c.ProductID]
		if !ok {
			name = c.ProductDescription
			if prod, err := s.store.GetProduct(ctx, c.ProductID); err == nil {
				name = prod.DisplayName()
			} else if !model.IsNotFound(err) {
				return nil, err
			}
			names[c.ProductID] = name
		}

		label := model.UrgencyLabel(c.Status, c.ExpectedOrderDate, today, dueSoonUntil)
		switch label {
		case model.UrgencyOverdue:
			p.Overdue++
		case model.UrgencyDueSoon:
			p.DueSoon++
		}
		p.RemainingQty += c.Remaining()
		p.Commitments = append(p.Commitments, model.PendingCommitment{
			Commitment:  c,
			ProductName: name,
			Remaining:   c.Remaining(),
			Urgency:     label,
		})
	}
	p.TotalPending = len(p.Commitments)
	return p, nil
}

// CreateRequest holds the fields extracted from a visit conversation.
type CreateRequest struct {
	VisitID       string  `json:"visit_id,omitempty"`
	DealerID      string  `json:"dealer_id" validate:"required"`
	ProductID     string  `json:"product_id" validate:"required"`
	Quantity      int     `json:"quantity" validate:"gt=0"`
	ExpectedDate  string  `json:"expected_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Confidence    float64 `json:"confidence,omitempty" validate:"gte=0,lte=1"`
	SalesPersonID string  `json:"sales_person_id,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

// Created is the confirmation returned for a new commitment.
type Created struct {
	CommitmentID string `json:"commitment_id"`
	ExpectedDate string `json:"expected_date"`
	Message      string `json:"message"`
}

// Create records a PENDING commitment. The rep is taken from the visit when
// one is given, otherwise from the request or the dealer's assigned rep.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Created, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}

	dealer, err := s.store.GetDealer(ctx, req.DealerID)
	if err != nil {
		return nil, err
	}
	product, err := s.store.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	repID := req.SalesPersonID
	if req.VisitID != "" {
		visit, err := s.store.GetVisit(ctx, req.VisitID)
		if err != nil {
			return nil, err
		}
		repID = visit.SalesPersonID
	}
	if repID == "" {
		repID = dealer.SalesPersonID
	}

	today := s.clock.Today()
	expected := req.ExpectedDate
	if expected == "" {
		if expected, err = model.AddDays(today, defaultExpectedDays); err != nil {
			return nil, err
		}
	}
	delivery, err := model.AddDays(expected, deliveryAfterOrder)
	if err != nil {
		return nil, err
	}
	confidence := req.Confidence
	if confidence == 0 {
		confidence = defaultConfidence
	}

	c := &model.Commitment{
		VisitID:              req.VisitID,
		DealerID:             dealer.ID,
		SalesPersonID:        repID,
		ProductID:            product.ID,
		ProductDescription:   product.DisplayName(),
		QuantityPromised:     req.Quantity,
		CommitmentDate:       today,
		ExpectedOrderDate:    expected,
		ExpectedDeliveryDate: delivery,
		Confidence:           confidence,
		Status:               model.CommitmentPending,
		Notes:                req.Notes,
	}
	if err := s.store.CreateCommitment(ctx, c); err != nil {
		return nil, eris.Wrap(err, "commitment: create")
	}

	zap.L().Info("commitment: created",
		zap.String("commitment_id", c.ID),
		zap.String("dealer_id", c.DealerID),
		zap.String("product_id", c.ProductID),
		zap.Int("quantity", c.QuantityPromised),
	)

	return &Created{
		CommitmentID: c.ID,
		ExpectedDate: expected,
		Message:      confirmationMessage(c.QuantityPromised, c.ProductDescription, expected),
	}, nil
}

// ExpireOverdue moves PENDING commitments with nothing converted whose
// expected date is more than graceDays in the past to EXPIRED. A negative
// graceDays uses the configured grace.
func (s *Service) ExpireOverdue(ctx context.Context, graceDays int) (int, error) {
	if graceDays < 0 {
		graceDays = s.cfg.ExpireGraceDays
	}
	before, err := model.AddDays(s.clock.Today(), -graceDays)
	if err != nil {
		return 0, err
	}

	n, err := s.store.ExpireCommitments(ctx, before)
	if err != nil {
		return 0, eris.Wrap(err, "commitment: expire overdue")
	}
	zap.L().Info("commitment: expired overdue",
		zap.String("before", before),
		zap.Int("count", n),
	)
	return n, nil
}

// Cancel voids a PENDING commitment.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if id == "" {
		return model.NewValidationError("commitment_id", "is required")
	}
	if err := s.store.CancelCommitment(ctx, id); err != nil {
		return err
	}
	zap.L().Info("commitment: cancelled", zap.String("commitment_id", id))
	return nil
}

func confirmationMessage(qty int, product, expected string) string {
	return fmt.Sprintf("Commitment recorded: %d x %s expected by %s", qty, product, expected)
}
