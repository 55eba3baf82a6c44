// Package visits logs field visits and reads back a dealer's visit history.
package visits

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
)

const (
	nextVisitDays   = 7
	defaultDuration = 15
	recentLimit     = 5
)

// Service records visits.
type Service struct {
	store store.Store
	clock model.Clock
}

// NewService creates a visit service.
func NewService(st store.Store, clock model.Clock) *Service {
	return &Service{store: st, clock: clock}
}

// CreateRequest holds the fields extracted from a rep's visit report.
type CreateRequest struct {
	DealerID         string          `json:"dealer_id" validate:"required"`
	SalesPersonID    string          `json:"sales_person_id,omitempty"`
	VisitDate        string          `json:"visit_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Purpose          string          `json:"purpose,omitempty"`
	CollectionAmount decimal.Decimal `json:"collection_amount"`
	NextAction       string          `json:"next_action,omitempty"`
	RawNotes         string          `json:"raw_notes,omitempty"`
}

// Created confirms a logged visit.
type Created struct {
	VisitID          string          `json:"visit_id"`
	SalesPersonID    string          `json:"sales_person_id"`
	VisitDate        string          `json:"visit_date"`
	Outcome          string          `json:"outcome"`
	CollectionAmount decimal.Decimal `json:"collection_amount"`
	NextVisitDate    string          `json:"next_visit_date"`
	FollowUpRequired bool            `json:"follow_up_required"`
	Message          string          `json:"message"`
}

// Outcome classifies a visit: a collection visit that collected nothing is
// UNSUCCESSFUL, everything else SUCCESSFUL.
func Outcome(purpose string, collected decimal.Decimal) string {
	if !collected.IsPositive() && purpose == model.PurposeCollection {
		return model.VisitUnsuccessful
	}
	return model.VisitSuccessful
}

// Create logs a visit and moves the dealer's last visit date forward.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Created, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}
	if req.CollectionAmount.IsNegative() {
		return nil, model.NewValidationError("collection_amount", "must be >= 0")
	}

	dealer, err := s.store.GetDealer(ctx, req.DealerID)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	purpose := strings.ToUpper(strings.TrimSpace(req.Purpose))
	if purpose == "" {
		purpose = model.PurposeOrder
	}
	visitDate := req.VisitDate
	if visitDate == "" {
		visitDate = today
	}
	rep := req.SalesPersonID
	if rep == "" {
		rep = dealer.SalesPersonID
	}
	next, err := model.AddDays(today, nextVisitDays)
	if err != nil {
		return nil, err
	}

	outcome := Outcome(purpose, req.CollectionAmount)
	v := &model.Visit{
		DealerID:         dealer.ID,
		SalesPersonID:    rep,
		VisitDate:        visitDate,
		Purpose:          purpose,
		Outcome:          outcome,
		Notes:            req.NextAction,
		RawNotes:         req.RawNotes,
		OrderTaken:       purpose == model.PurposeOrder && outcome == model.VisitSuccessful,
		CollectionAmount: req.CollectionAmount,
		FollowUpRequired: purpose == model.PurposeCollection && req.CollectionAmount.IsZero(),
		NextVisitDate:    next,
		DurationMinutes:  defaultDuration,
	}
	if v.Notes == "" {
		v.Notes = "Schedule next visit"
	}
	if err := s.store.CreateVisit(ctx, v); err != nil {
		return nil, eris.Wrapf(err, "visits: create for dealer %s", dealer.ID)
	}

	zap.L().Info("visits: recorded",
		zap.String("visit_id", v.ID),
		zap.String("dealer_id", dealer.ID),
		zap.String("sales_person_id", rep),
		zap.String("outcome", outcome),
	)

	return &Created{
		VisitID:          v.ID,
		SalesPersonID:    rep,
		VisitDate:        visitDate,
		Outcome:          outcome,
		CollectionAmount: req.CollectionAmount,
		NextVisitDate:    next,
		FollowUpRequired: v.FollowUpRequired,
		Message:          "Visit recorded successfully. ID: " + v.ID[:8],
	}, nil
}

// Recent returns a dealer's latest visits, newest first.
func (s *Service) Recent(ctx context.Context, dealerID string, limit int) ([]model.Visit, error) {
	if dealerID == "" {
		return nil, model.NewValidationError("dealer_id", "is required")
	}
	if _, err := s.store.GetDealer(ctx, dealerID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = recentLimit
	}
	visits, err := s.store.ListRecentVisits(ctx, dealerID, limit)
	if err != nil {
		return nil, eris.Wrap(err, "visits: list recent")
	}
	if visits == nil {
		visits = []model.Visit{}
	}
	return visits, nil
}
