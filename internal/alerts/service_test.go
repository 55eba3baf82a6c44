package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
	"github.com/sells-group/fieldops/internal/store/storetest"
	"github.com/sells-group/fieldops/pkg/telegram"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	return m.Called(ctx, chatID, text).Error(0)
}

func activeAlerts(t *testing.T, st store.Store) []model.Alert {
	t.Helper()
	got, err := st.ListActiveAlerts(context.Background(), "", 0)
	require.NoError(t, err)
	return got
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Payment Overdue", Title("PAYMENT_OVERDUE"))
	assert.Equal(t, "General", Title("GENERAL"))
	assert.Equal(t, "Dealer", Title("dealer"))
}

func TestTitle_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	got := make([]string, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for range 100 {
				got[i] = Title("PAYMENT_OVERDUE_ESCALATION")
			}
		}(i)
	}
	wg.Wait()

	for _, g := range got {
		assert.Equal(t, "Payment Overdue Escalation", g)
	}
}

func TestFormat(t *testing.T) {
	a := &model.Alert{Priority: "HIGH", Title: "Payment Overdue", EntityType: "dealer", EntityID: "d-1",
		Message: "Rs.40,000 pending", ActionRequired: "Call the dealer"}
	assert.Equal(t, "[HIGH] Payment Overdue\nDealer: d-1\n\nRs.40,000 pending\n\nAction: Call the dealer", Format(a))
}

func TestGenerate_Defaults(t *testing.T) {
	st := storetest.Seeded(t, storetest.Base())
	svc := NewService(st, nil, config.TelegramConfig{})

	res, err := svc.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AlertID)
	assert.Equal(t, "GENERAL", res.AlertType)
	assert.Equal(t, model.PriorityMedium, res.Priority)
	assert.Equal(t, "sp-mgr", res.AssignedTo)
	assert.Empty(t, res.DeliveryStatus)

	alerts := activeAlerts(t, st)
	require.Len(t, alerts, 1)
	assert.Equal(t, "General", alerts[0].Title)
	assert.Equal(t, "Alert generated by agent", alerts[0].Message)
	assert.Equal(t, "dealer", alerts[0].EntityType)
	assert.False(t, alerts[0].NotificationSent)
}

func TestGenerate_RejectsUnknownPriority(t *testing.T) {
	svc := NewService(storetest.Seeded(t, storetest.Base()), nil, config.TelegramConfig{})

	_, err := svc.Generate(context.Background(), Request{Priority: "urgent"})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "priority", ve.Field)
}

func TestSendManagerAlert_Delivered(t *testing.T) {
	st := storetest.Seeded(t, storetest.Base())
	n := &mockNotifier{}
	n.On("SendMessage", mock.Anything, "555001", mock.MatchedBy(func(text string) bool {
		return text == "[HIGH] Payment Overdue\nDealer: d-1\n\nDue for 40 days\n\nAction: Review and take appropriate action"
	})).Return(nil).Once()

	svc := NewService(st, n, config.TelegramConfig{ManagerChatID: "999"})
	res, err := svc.SendManagerAlert(context.Background(), Request{
		AlertType: "payment_overdue", Priority: "high", EntityID: "d-1", Message: "Due for 40 days",
	})
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySent, res.DeliveryStatus)
	assert.Equal(t, "PAYMENT_OVERDUE", res.AlertType)
	n.AssertExpectations(t)

	alerts := activeAlerts(t, st)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].NotificationSent)
}

func TestSendManagerAlert_FallsBackToConfiguredChat(t *testing.T) {
	f := storetest.Base()
	f.SalesPersons[1].TelegramChatID = ""
	st := storetest.Seeded(t, f)

	n := &mockNotifier{}
	n.On("SendMessage", mock.Anything, "999", mock.Anything).Return(nil).Once()

	svc := NewService(st, n, config.TelegramConfig{ManagerChatID: "999"})
	res, err := svc.SendManagerAlert(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySent, res.DeliveryStatus)
	n.AssertExpectations(t)
}

func TestSendManagerAlert_DeliveryFailureKeepsAlert(t *testing.T) {
	st := storetest.Seeded(t, storetest.Base())
	n := &mockNotifier{}
	n.On("SendMessage", mock.Anything, "555001", mock.Anything).Return(errors.New("telegram: api error 403: bot was blocked")).Once()

	svc := NewService(st, n, config.TelegramConfig{})
	res, err := svc.SendManagerAlert(context.Background(), Request{AlertType: "LOW_STOCK"})
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryFailed, res.DeliveryStatus)
	assert.Contains(t, res.DeliveryError, "bot was blocked")
	assert.NotEmpty(t, res.AlertID)

	alerts := activeAlerts(t, st)
	require.Len(t, alerts, 1)
	assert.Equal(t, res.AlertID, alerts[0].ID)
	assert.False(t, alerts[0].NotificationSent)
}

func TestSendManagerAlert_NotConfigured(t *testing.T) {
	st := storetest.Seeded(t, storetest.Base())

	svc := NewService(st, telegram.NewClient(""), config.TelegramConfig{})
	res, err := svc.SendManagerAlert(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySkipped, res.DeliveryStatus)
	assert.Len(t, activeAlerts(t, st), 1)

	svc = NewService(st, nil, config.TelegramConfig{})
	res, err = svc.SendManagerAlert(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, model.DeliverySkipped, res.DeliveryStatus)
}

func TestActive_MostUrgentFirstAndScoped(t *testing.T) {
	st := storetest.Seeded(t, storetest.Base())
	svc := NewService(st, nil, config.TelegramConfig{})
	ctx := context.Background()

	_, err := svc.Generate(ctx, Request{AlertType: "LOW_STOCK", Priority: "LOW", EntityType: "product", EntityID: "p-1"})
	require.NoError(t, err)
	_, err = svc.Generate(ctx, Request{AlertType: "PAYMENT_OVERDUE", Priority: "HIGH", EntityID: "d-1"})
	require.NoError(t, err)

	all, err := svc.Active(ctx, "", 0)
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)
	assert.Equal(t, "HIGH", all.Alerts[0].Priority)
	assert.Equal(t, "LOW", all.Alerts[1].Priority)

	mine, err := svc.Active(ctx, "sp-mgr", 1)
	require.NoError(t, err)
	require.Len(t, mine.Alerts, 1)
	assert.Equal(t, "PAYMENT_OVERDUE", mine.Alerts[0].Type)

	none, err := svc.Active(ctx, "sp-1", 0)
	require.NoError(t, err)
	assert.NotNil(t, none.Alerts)
	assert.Zero(t, none.Total)

	_, err = svc.Active(ctx, "sp-404", 0)
	assert.True(t, model.IsNotFound(err))
}
