package agent

import (
	"time"

	"github.com/sells-group/fieldops/internal/alerts"
	"github.com/sells-group/fieldops/internal/commitment"
	"github.com/sells-group/fieldops/internal/config"
	"github.com/sells-group/fieldops/internal/health"
	"github.com/sells-group/fieldops/internal/inventory"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/orders"
	"github.com/sells-group/fieldops/internal/planner"
	"github.com/sells-group/fieldops/internal/resilience"
	"github.com/sells-group/fieldops/internal/resolve"
	"github.com/sells-group/fieldops/internal/store"
	"github.com/sells-group/fieldops/internal/visits"
	"github.com/sells-group/fieldops/pkg/telegram"
)

// Services bundles the domain services behind one store.
type Services struct {
	Store       store.Store
	Resolver    *resolve.Resolver
	Health      *health.Scorer
	Planner     *planner.Planner
	Commitments *commitment.Service
	Engine      *commitment.Engine
	Inventory   *inventory.Calculator
	Orders      *orders.Service
	Visits      *visits.Service
	Alerts      *alerts.Service
}

// NewServices wires every service to st. A nil clock uses the wall clock.
func NewServices(st store.Store, cfg *config.Config, notifier telegram.Client, clock model.Clock) *Services {
	return &Services{
		Store:       st,
		Resolver:    resolve.New(st, cfg.Resolver),
		Health:      health.NewScorer(st, cfg.Health, cfg.Batch.MaxConcurrentDealers, clock),
		Planner:     planner.New(st, cfg.Planner, clock),
		Commitments: commitment.NewService(st, cfg.Consumption, clock),
		Engine:      commitment.NewEngine(st, cfg.Consumption, clock),
		Inventory:   inventory.NewCalculator(st, clock),
		Orders:      orders.NewService(st, cfg.Orders, clock),
		Visits:      visits.NewService(st, clock),
		Alerts:      alerts.NewService(st, notifier, cfg.Telegram),
	}
}

// NewNotifier builds the Telegram client from config. An empty token gives
// a client that reports ErrNotConfigured.
func NewNotifier(cfg config.TelegramConfig) telegram.Client {
	opts := []telegram.Option{telegram.WithRateLimit(cfg.RatePerSecond)}
	if cfg.BaseURL != "" {
		opts = append(opts, telegram.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxAttempts > 0 {
		p := resilience.DefaultPolicy()
		p.Attempts = cfg.MaxAttempts
		opts = append(opts, telegram.WithRetryPolicy(p))
	}
	if cfg.FailureThreshold > 0 {
		opts = append(opts, telegram.WithBreaker(resilience.NewBreaker("telegram", cfg.FailureThreshold, 30*time.Second)))
	}
	if cfg.TimeoutSecs > 0 {
		opts = append(opts, telegram.WithTimeout(time.Duration(cfg.TimeoutSecs)*time.Second))
	}
	return telegram.NewClient(cfg.BotToken, opts...)
}
