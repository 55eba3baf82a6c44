package commitment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store/storetest"
)

func TestService_Pending(t *testing.T) {
	converted := storetest.Commitment("c-done", 5, 5, "2026-03-01")
	st := seededStore(t,
		storetest.Commitment("c-up", 10, 0, "2026-03-30"),
		storetest.Commitment("c-over", 10, 0, "2026-03-10"),
		storetest.Commitment("c-soon", 10, 0, "2026-03-17"),
		storetest.Commitment("c-part", 10, 4, "2026-03-12"),
		converted,
	)
	svc := NewService(st, testConfig(), model.FixedClock(today))

	p, err := svc.Pending(context.Background(), "d-1", "")
	require.NoError(t, err)

	assert.Equal(t, "Sharma Traders", p.DealerName)
	require.Len(t, p.Commitments, 4)

	var ids, labels []string
	for _, c := range p.Commitments {
		ids = append(ids, c.ID)
		labels = append(labels, c.Urgency)
		assert.Equal(t, "OPC 53", c.ProductName)
	}
	assert.Equal(t, []string{"c-over", "c-part", "c-soon", "c-up"}, ids)
	assert.Equal(t, []string{model.UrgencyOverdue, model.UrgencyUpcoming, model.UrgencyDueSoon, model.UrgencyUpcoming}, labels)
	assert.Equal(t, 4, p.TotalPending)
	assert.Equal(t, 1, p.Overdue)
	assert.Equal(t, 1, p.DueSoon)
	assert.Equal(t, 36, p.RemainingQty)
}

func TestService_PendingErrors(t *testing.T) {
	svc := NewService(seededStore(t), testConfig(), model.FixedClock(today))
	ctx := context.Background()

	_, err := svc.Pending(ctx, "", "")
	assert.True(t, model.IsValidation(err))

	_, err = svc.Pending(ctx, "d-404", "")
	assert.True(t, model.IsNotFound(err))

	p, err := svc.Pending(ctx, "d-1", "p-1")
	require.NoError(t, err)
	assert.Empty(t, p.Commitments)
}

func TestService_CreateDefaults(t *testing.T) {
	st := seededStore(t)
	svc := NewService(st, testConfig(), model.FixedClock(today))
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 50})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-22", out.ExpectedDate)
	assert.Equal(t, "Commitment recorded: 50 x OPC 53 expected by 2026-03-22", out.Message)

	c, err := st.GetCommitment(ctx, out.CommitmentID)
	require.NoError(t, err)
	assert.Equal(t, model.CommitmentPending, c.Status)
	assert.Equal(t, 0, c.ConvertedQuantity)
	assert.Equal(t, "sp-1", c.SalesPersonID)
	assert.Equal(t, today, c.CommitmentDate)
	assert.Equal(t, "2026-03-24", c.ExpectedDeliveryDate)
	assert.InDelta(t, 0.80, c.Confidence, 1e-9)
}

func TestService_CreateFromVisit(t *testing.T) {
	f := storetest.Base()
	f.SalesPersons = append(f.SalesPersons, model.SalesPerson{ID: "sp-2", Name: "Meera Iyer", Role: model.RoleRep, Active: true})
	f.Visits = []model.Visit{{ID: "v-1", DealerID: "d-1", SalesPersonID: "sp-2", VisitDate: "2026-03-15", Purpose: model.PurposeOrder, Outcome: model.VisitSuccessful}}
	st := storetest.Seeded(t, f)
	svc := NewService(st, testConfig(), model.FixedClock(today))
	ctx := context.Background()

	out, err := svc.Create(ctx, CreateRequest{VisitID: "v-1", DealerID: "d-1", ProductID: "p-1", Quantity: 20, ExpectedDate: "2026-04-01", Confidence: 0.6})
	require.NoError(t, err)

	c, err := st.GetCommitment(ctx, out.CommitmentID)
	require.NoError(t, err)
	assert.Equal(t, "sp-2", c.SalesPersonID)
	assert.Equal(t, "v-1", c.VisitID)
	assert.Equal(t, "2026-04-01", c.ExpectedOrderDate)
	assert.InDelta(t, 0.6, c.Confidence, 1e-9)

	_, err = svc.Create(ctx, CreateRequest{VisitID: "v-404", DealerID: "d-1", ProductID: "p-1", Quantity: 20})
	assert.True(t, model.IsNotFound(err))
}

func TestService_CreateRejects(t *testing.T) {
	svc := NewService(seededStore(t), testConfig(), model.FixedClock(today))
	ctx := context.Background()

	tests := []struct {
		name     string
		req      CreateRequest
		notFound bool
	}{
		{"zero quantity", CreateRequest{DealerID: "d-1", ProductID: "p-1"}, false},
		{"bad date", CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 1, ExpectedDate: "next week"}, false},
		{"confidence above one", CreateRequest{DealerID: "d-1", ProductID: "p-1", Quantity: 1, Confidence: 1.5}, false},
		{"unknown dealer", CreateRequest{DealerID: "d-404", ProductID: "p-1", Quantity: 1}, true},
		{"unknown product", CreateRequest{DealerID: "d-1", ProductID: "p-404", Quantity: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			require.Error(t, err)
			if tt.notFound {
				assert.True(t, model.IsNotFound(err))
			} else {
				assert.True(t, model.IsValidation(err))
			}
		})
	}
}

func TestService_ExpireOverdue(t *testing.T) {
	st := seededStore(t,
		storetest.Commitment("stale", 10, 0, "2026-01-20"),
		storetest.Commitment("stale-partial", 10, 3, "2026-01-20"),
		storetest.Commitment("recent", 10, 0, "2026-03-01"),
	)
	svc := NewService(st, testConfig(), model.FixedClock(today))
	ctx := context.Background()

	n, err := svc.ExpireOverdue(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for id, want := range map[string]model.CommitmentStatus{
		"stale":         model.CommitmentExpired,
		"stale-partial": model.CommitmentPartial,
		"recent":        model.CommitmentPending,
	} {
		c, err := st.GetCommitment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, c.Status, id)
	}

	n, err = svc.ExpireOverdue(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "zero grace expires everything past due")
}

func TestService_Cancel(t *testing.T) {
	st := seededStore(t,
		storetest.Commitment("c-1", 10, 0, "2026-03-20"),
		storetest.Commitment("c-2", 10, 2, "2026-03-20"),
	)
	svc := NewService(st, testConfig(), model.FixedClock(today))
	ctx := context.Background()

	require.NoError(t, svc.Cancel(ctx, "c-1"))
	c, err := st.GetCommitment(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, model.CommitmentCancelled, c.Status)

	assert.True(t, model.IsValidation(svc.Cancel(ctx, "c-1")))
	assert.True(t, model.IsValidation(svc.Cancel(ctx, "c-2")))
	assert.True(t, model.IsNotFound(svc.Cancel(ctx, "c-404")))
	assert.True(t, model.IsValidation(svc.Cancel(ctx, "")))
}
