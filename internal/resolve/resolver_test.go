package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store/storetest"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	f := storetest.Base()
	f.Dealers = append(f.Dealers,
		model.Dealer{ID: "d-2", Code: "DLR002", Name: "Sharma Hardware", SalesPersonID: "sp-1"},
		model.Dealer{ID: "d-3", Code: "DLR003", Name: "Patil Agencies", SalesPersonID: "sp-2"},
		model.Dealer{ID: "d-4", Code: "DLR004", Name: "Sharma Stores", SalesPersonID: "sp-1", Status: model.DealerInactive},
	)
	f.Products = append(f.Products,
		model.Product{ID: "p-2", Code: "STL-TMT12", Name: "TMT Steel Bar 12mm", ShortName: "TMT 12"},
		model.Product{ID: "p-3", Code: "OLD-1", Name: "PPC Cement Old", Status: model.ProductDiscontinued},
	)
	return New(storetest.Seeded(t, f), config.ResolverConfig{Threshold: 0.70, MaxCandidates: 3})
}

func TestResolver_ConfidentDealer(t *testing.T) {
	r := newTestResolver(t)

	res, err := r.Resolve(context.Background(), Request{EntityType: EntityDealer, Name: "traders sharma"})
	require.NoError(t, err)
	assert.True(t, res.Confident)
	assert.Equal(t, "d-1", res.ID)
	assert.Equal(t, "Sharma Traders", res.Name)
	assert.InDelta(t, 1, res.Confidence, 1e-9)
	assert.Len(t, res.Candidates, 3)
	assert.Empty(t, res.Message)
	for _, c := range res.Candidates {
		assert.NotEqual(t, "d-4", c.ID, "inactive dealers are never candidates")
	}
}

func TestResolver_AmbiguousAsksToDisambiguate(t *testing.T) {
	r := newTestResolver(t)

	res, err := r.Resolve(context.Background(), Request{EntityType: EntityDealer, Name: "Sharma"})
	require.NoError(t, err)
	assert.False(t, res.Confident)
	assert.Empty(t, res.ID)
	assert.InDelta(t, 6.0/14.0, res.Confidence, 1e-9)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "d-1", res.Candidates[0].ID)
	assert.Equal(t, "d-2", res.Candidates[1].ID)
	assert.Contains(t, res.Message, "No confident match for 'Sharma'")
}

func TestResolver_ScopedToRep(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	res, err := r.Resolve(ctx, Request{EntityType: EntityDealer, Name: "patil agency", SalesPersonID: "sp-2"})
	require.NoError(t, err)
	assert.True(t, res.Confident)
	assert.Equal(t, "d-3", res.ID)
	assert.Len(t, res.Candidates, 1)

	res, err = r.Resolve(ctx, Request{EntityType: EntityDealer, Name: "patil", SalesPersonID: "sp-404"})
	require.NoError(t, err)
	assert.False(t, res.Confident)
	assert.Empty(t, res.Candidates)
	assert.Equal(t, "No active dealers found", res.Message)
}

func TestResolver_ProductMatchesShortName(t *testing.T) {
	r := newTestResolver(t)

	res, err := r.Resolve(context.Background(), Request{EntityType: EntityProduct, Name: "opc 53"})
	require.NoError(t, err)
	assert.True(t, res.Confident)
	assert.Equal(t, "p-1", res.ID)
	assert.Equal(t, "OPC 53 Grade Cement", res.Name)
	assert.Len(t, res.Candidates, 2, "discontinued products are excluded")
}

func TestResolver_Validation(t *testing.T) {
	r := newTestResolver(t)
	ctx := context.Background()

	_, err := r.Resolve(ctx, Request{EntityType: "warehouse", Name: "pune"})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "entity_type", ve.Field)

	_, err = r.Resolve(ctx, Request{EntityType: EntityDealer})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "entity_name", ve.Field)
}
