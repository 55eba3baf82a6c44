// Package alerts raises manager alerts and delivers them over chat.
package alerts

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
	"github.com/sells-group/fieldops/pkg/telegram"
)

const (
	defaultType    = "GENERAL"
	defaultEntity  = "dealer"
	defaultMessage = "Alert generated by agent"
	defaultAction  = "Review and take appropriate action"
	activeLimit    = 50
)

// Request describes an alert. Empty fields take defaults.
type Request struct {
	AlertType  string `json:"alert_type,omitempty"`
	Priority   string `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Result reports the stored alert and, for sends, what happened to the
// notification.
type Result struct {
	AlertID        string `json:"alert_id"`
	AlertType      string `json:"alert_type"`
	Priority       string `json:"priority"`
	AssignedTo     string `json:"assigned_to,omitempty"`
	DeliveryStatus string `json:"delivery_status,omitempty"`
	DeliveryError  string `json:"delivery_error,omitempty"`
	Message        string `json:"message"`
}

// Service stores alerts and notifies managers.
type Service struct {
	store    store.Store
	notifier telegram.Client
	cfg      config.TelegramConfig
}

// NewService creates an alert service. A nil notifier skips delivery.
func NewService(st store.Store, notifier telegram.Client, cfg config.TelegramConfig) *Service {
	return &Service{store: st, notifier: notifier, cfg: cfg}
}

// Title turns an alert type such as PAYMENT_OVERDUE into "Payment Overdue".
// A Caser keeps state, so each call builds its own.
func Title(alertType string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(alertType, "_", " "))
}

// Generate stores an active alert assigned to the first manager.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	a, _, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Result{
		AlertID:    a.ID,
		AlertType:  a.Type,
		Priority:   a.Priority,
		AssignedTo: a.AssignedTo,
		Message:    "Alert created for manager",
	}, nil
}

// SendManagerAlert stores the alert and then tries to deliver it. Delivery
// problems are reported in the result; the alert row is kept either way.
func (s *Service) SendManagerAlert(ctx context.Context, req Request) (*Result, error) {
	a, manager, err := s.create(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &Result{AlertID: a.ID, AlertType: a.Type, Priority: a.Priority, AssignedTo: a.AssignedTo}

	chatID := s.cfg.ManagerChatID
	if manager != nil && manager.TelegramChatID != "" {
		chatID = manager.TelegramChatID
	}

	switch err := s.deliver(ctx, chatID, a); {
	case err == nil:
		res.DeliveryStatus = model.DeliverySent
		res.Message = "Alert sent to manager"
		if err := s.store.MarkAlertNotified(ctx, a.ID); err != nil {
			zap.L().Warn("alerts: mark notified failed", zap.String("alert_id", a.ID), zap.Error(err))
		}
	case errors.Is(err, telegram.ErrNotConfigured):
		res.DeliveryStatus = model.DeliverySkipped
		res.Message = "Alert created; chat delivery is not configured"
		zap.L().Warn("alerts: delivery skipped", zap.String("alert_id", a.ID), zap.Error(err))
	default:
		res.DeliveryStatus = model.DeliveryFailed
		res.DeliveryError = err.Error()
		res.Message = "Alert created; notification delivery failed"
		zap.L().Error("alerts: delivery failed", zap.String("alert_id", a.ID), zap.Error(err))
	}
	return res, nil
}

// ActiveList is the open alert queue.
type ActiveList struct {
	Alerts []model.Alert `json:"alerts"`
	Total  int           `json:"total"`
}

// Active lists ACTIVE alerts, CRITICAL and HIGH first, then newest. A
// non-empty assignedTo limits the list to that sales person's alerts.
func (s *Service) Active(ctx context.Context, assignedTo string, limit int) (*ActiveList, error) {
	if assignedTo != "" {
		if _, err := s.store.GetSalesPerson(ctx, assignedTo); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = activeLimit
	}
	list, err := s.store.ListActiveAlerts(ctx, assignedTo, limit)
	if err != nil {
		return nil, eris.Wrap(err, "alerts: list active")
	}
	if list == nil {
		list = []model.Alert{}
	}
	return &ActiveList{Alerts: list, Total: len(list)}, nil
}

func (s *Service) deliver(ctx context.Context, chatID string, a *model.Alert) error {
	if s.notifier == nil || chatID == "" {
		return telegram.ErrNotConfigured
	}
	return s.notifier.SendMessage(ctx, chatID, Format(a))
}

// Format renders an alert as a plain-text chat message.
func Format(a *model.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", a.Priority, a.Title)
	if a.EntityID != "" {
		fmt.Fprintf(&b, "%s: %s\n", Title(a.EntityType), a.EntityID)
	}
	b.WriteString("\n")
	b.WriteString(a.Message)
	if a.ActionRequired != "" {
		b.WriteString("\n\nAction: ")
		b.WriteString(a.ActionRequired)
	}
	return b.String()
}

func (s *Service) create(ctx context.Context, req Request) (*model.Alert, *model.SalesPerson, error) {
	req.Priority = strings.ToUpper(strings.TrimSpace(req.Priority))
	if err := model.ValidateRequest(req); err != nil {
		return nil, nil, err
	}

	manager, err := s.store.FindManager(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "alerts: find manager")
	}

	a := &model.Alert{
		Type:           strings.ToUpper(cmp.Or(req.AlertType, defaultType)),
		Priority:       cmp.Or(req.Priority, model.PriorityMedium),
		EntityType:     cmp.Or(req.EntityType, defaultEntity),
		EntityID:       req.EntityID,
		Message:        cmp.Or(req.Message, defaultMessage),
		ActionRequired: defaultAction,
		Status:         model.AlertActive,
	}
	a.Title = Title(a.Type)
	if manager != nil {
		a.AssignedTo = manager.ID
	}

	if err := s.store.CreateAlert(ctx, a); err != nil {
		return nil, nil, eris.Wrap(err, "alerts: create")
	}

	zap.L().Info("alerts: created",
		zap.String("alert_id", a.ID),
		zap.String("alert_type", a.Type),
		zap.String("priority", a.Priority),
		zap.String("assigned_to", a.AssignedTo),
	)
	return a, manager, nil
}
