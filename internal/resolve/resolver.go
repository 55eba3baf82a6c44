package resolve

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
)

// Entity types the resolver understands.
const (
	EntityDealer  = "dealer"
	EntityProduct = "product"
)

// Request is one free-text lookup. SalesPersonID scopes dealer lookups to a
// single rep.
type Request struct {
	EntityType    string `json:"entity_type" validate:"required,oneof=dealer product"`
	Name          string `json:"entity_name" validate:"required"`
	SalesPersonID string `json:"sales_person_id,omitempty"`
}

// Candidate is one scored match.
type Candidate struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Resolution is the ranked answer. ID and Name are set only when the top
// candidate clears the confidence threshold.
type Resolution struct {
	EntityType string      `json:"entity_type"`
	Query      string      `json:"query"`
	Confident  bool        `json:"success"`
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"entity_name,omitempty"`
	Confidence float64     `json:"confidence"`
	Candidates []Candidate `json:"candidates"`
	Message    string      `json:"message,omitempty"`
}

// Resolver fuzzy-matches names against active dealers and products.
type Resolver struct {
	store store.Store
	cfg   config.ResolverConfig
}

// New creates a Resolver.
func New(st store.Store, cfg config.ResolverConfig) *Resolver {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.70
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 3
	}
	return &Resolver{store: st, cfg: cfg}
}

type entry struct {
	id    string
	name  string
	alias []string
}

// Resolve ranks in-scope records by similarity to the request name.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Resolution, error) {
	if err := model.ValidateRequest(req); err != nil {
		return nil, err
	}

	entries, err := r.entries(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &Resolution{EntityType: req.EntityType, Query: req.Name, Candidates: []Candidate{}}
	if len(entries) == 0 {
		res.Message = fmt.Sprintf("No active %ss found", req.EntityType)
		return res, nil
	}

	res.Candidates = rank(req.Name, entries, r.cfg.MaxCandidates)
	best := res.Candidates[0]
	res.Confidence = best.Score
	if best.Score >= r.cfg.Threshold {
		res.Confident = true
		res.ID = best.ID
		res.Name = best.Name
	} else {
		res.Message = fmt.Sprintf("No confident match for '%s'. Did you mean one of these?", req.Name)
	}

	zap.L().Debug("resolve: ranked",
		zap.String("entity_type", req.EntityType),
		zap.String("query", req.Name),
		zap.Float64("confidence", res.Confidence),
		zap.Bool("confident", res.Confident),
	)
	return res, nil
}

func (r *Resolver) entries(ctx context.Context, req Request) ([]entry, error) {
	switch req.EntityType {
	case EntityDealer:
		dealers, err := r.store.ListDealers(ctx, model.DealerFilter{
			SalesPersonID: req.SalesPersonID,
			Status:        model.DealerActive,
		})
		if err != nil {
			return nil, eris.Wrap(err, "resolve: list dealers")
		}
		out := make([]entry, 0, len(dealers))
		for _, d := range dealers {
			out = append(out, entry{id: d.ID, name: d.Name})
		}
		return out, nil

	case EntityProduct:
		products, err := r.store.ListProducts(ctx, model.ProductActive)
		if err != nil {
			return nil, eris.Wrap(err, "resolve: list products")
		}
		out := make([]entry, 0, len(products))
		for _, p := range products {
			out = append(out, entry{id: p.ID, name: p.Name, alias: []string{p.ShortName, p.Code}})
		}
		return out, nil
	}
	return nil, model.NewValidationError("entity_type", fmt.Sprintf("unknown entity type %q", req.EntityType))
}

// rank scores entries against query and returns the best limit, highest
// score first with ties broken by name then id. An entry scores the best of
// its name and aliases.
func rank(query string, entries []entry, limit int) []Candidate {
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		score := TokenSortRatio(query, e.name)
		for _, a := range e.alias {
			if a == "" {
				continue
			}
			score = max(score, TokenSortRatio(query, a))
		}
		out = append(out, Candidate{ID: e.id, Name: e.name, Score: score})
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
