package visits

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store/storetest"
)

const today = "2026-03-15"

func TestOutcome(t *testing.T) {
	assert.Equal(t, model.VisitUnsuccessful, Outcome(model.PurposeCollection, decimal.Zero))
	assert.Equal(t, model.VisitSuccessful, Outcome(model.PurposeCollection, decimal.NewFromInt(500)))
	assert.Equal(t, model.VisitSuccessful, Outcome(model.PurposeOrder, decimal.Zero))
	assert.Equal(t, model.VisitSuccessful, Outcome(model.PurposeRoutine, decimal.Zero))
}

func TestCreate(t *testing.T) {
	st := storetest.Seeded(t, storetest.Base())
	svc := NewService(st, model.FixedClock(today))
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", Purpose: "collection", RawNotes: "shop closed"})
	require.NoError(t, err)
	assert.Equal(t, model.VisitUnsuccessful, out.Outcome)
	assert.True(t, out.FollowUpRequired)
	assert.Equal(t, "sp-1", out.SalesPersonID)
	assert.Equal(t, today, out.VisitDate)
	assert.Equal(t, "2026-03-22", out.NextVisitDate)
	assert.Contains(t, out.Message, "Visit recorded successfully. ID: "+out.VisitID[:8])

	v, err := st.GetVisit(ctx, out.VisitID)
	require.NoError(t, err)
	assert.Equal(t, model.PurposeCollection, v.Purpose)
	assert.False(t, v.OrderTaken)
	assert.Equal(t, "Schedule next visit", v.Notes)
	assert.Equal(t, 15, v.DurationMinutes)

	dealer, err := st.GetDealer(ctx, "d-1")
	require.NoError(t, err)
	assert.Equal(t, today, dealer.LastVisitDate)
}

func TestCreate_OrderVisit(t *testing.T) {
	st := storetest.Seeded(t, storetest.Base())
	svc := NewService(st, model.FixedClock(today))
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", SalesPersonID: "sp-2", VisitDate: "2026-03-14",
		CollectionAmount: decimal.NewFromInt(2500)})
	require.NoError(t, err)
	assert.Equal(t, model.VisitSuccessful, out.Outcome)
	assert.False(t, out.FollowUpRequired)
	assert.Equal(t, "sp-2", out.SalesPersonID)

	v, err := st.GetVisit(ctx, out.VisitID)
	require.NoError(t, err)
	assert.Equal(t, model.PurposeOrder, v.Purpose)
	assert.True(t, v.OrderTaken)
	assert.Equal(t, "2026-03-14", v.VisitDate)
}

func TestCreate_Errors(t *testing.T) {
	svc := NewService(storetest.Seeded(t, storetest.Base()), model.FixedClock(today))
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateRequest{})
	assert.True(t, model.IsValidation(err))

	_, err = svc.Create(ctx, CreateRequest{DealerID: "d-1", VisitDate: "15/03/2026"})
	assert.True(t, model.IsValidation(err))

	_, err = svc.Create(ctx, CreateRequest{DealerID: "d-1", CollectionAmount: decimal.NewFromInt(-1)})
	assert.True(t, model.IsValidation(err))

	_, err = svc.Create(ctx, CreateRequest{DealerID: "d-404"})
	assert.True(t, model.IsNotFound(err))
}

func TestRecent(t *testing.T) {
	st := storetest.Seeded(t, storetest.Base())
	svc := NewService(st, model.FixedClock(today))
	ctx := context.Background()

	empty, err := svc.Recent(ctx, "d-1", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)

	for _, d := range []string{"2026-03-01", "2026-03-10", "2026-03-05"} {
		_, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", VisitDate: d})
		require.NoError(t, err)
	}

	got, err := svc.Recent(ctx, "d-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2026-03-10", got[0].VisitDate)
	assert.Equal(t, "2026-03-05", got[1].VisitDate)

	_, err = svc.Recent(ctx, "d-404", 0)
	assert.True(t, model.IsNotFound(err))
}
