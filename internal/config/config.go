package config

import (
	"errors"
	"io/fs"
	"math"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Consumption ConsumptionConfig `yaml:"consumption" mapstructure:"consumption"`
	Health      HealthConfig      `yaml:"health" mapstructure:"health"`
	Planner     PlannerConfig     `yaml:"planner" mapstructure:"planner"`
	Resolver    ResolverConfig    `yaml:"resolver" mapstructure:"resolver"`
	Orders      OrdersConfig      `yaml:"orders" mapstructure:"orders"`
	Telegram    TelegramConfig    `yaml:"telegram" mapstructure:"telegram"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the function-call server.
type ServerConfig struct {
	Port           int `yaml:"port" mapstructure:"port"`
	RequestTimeout int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// ConsumptionConfig tunes the commitment consumption walk and its
// conflict retry.
type ConsumptionConfig struct {
	ForwardWindowDays int `yaml:"forward_window_days" mapstructure:"forward_window_days"`
	DueSoonDays       int `yaml:"due_soon_days" mapstructure:"due_soon_days"`
	ExpireGraceDays   int `yaml:"expire_grace_days" mapstructure:"expire_grace_days"`
	MaxAttempts       int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs  int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs      int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// HealthConfig configures dealer health scoring.
type HealthConfig struct {
	RecencyWeight     float64 `yaml:"recency_weight" mapstructure:"recency_weight"`
	FrequencyWeight   float64 `yaml:"frequency_weight" mapstructure:"frequency_weight"`
	PaymentWeight     float64 `yaml:"payment_weight" mapstructure:"payment_weight"`
	FulfillmentWeight float64 `yaml:"fulfillment_weight" mapstructure:"fulfillment_weight"`
	WindowMonths      int     `yaml:"window_months" mapstructure:"window_months"`
	ExpectedOrders    int     `yaml:"expected_orders" mapstructure:"expected_orders"`
	HealthyThreshold  float64 `yaml:"healthy_threshold" mapstructure:"healthy_threshold"`
	AtRiskThreshold   float64 `yaml:"at_risk_threshold" mapstructure:"at_risk_threshold"`
	CacheMaxAgeHours  int     `yaml:"cache_max_age_hours" mapstructure:"cache_max_age_hours"`
	MaxReasons        int     `yaml:"max_reasons" mapstructure:"max_reasons"`
}

// PlannerConfig configures visit prioritization.
type PlannerConfig struct {
	PaymentWeight      float64 `yaml:"payment_weight" mapstructure:"payment_weight"`
	OrderWeight        float64 `yaml:"order_weight" mapstructure:"order_weight"`
	VisitWeight        float64 `yaml:"visit_weight" mapstructure:"visit_weight"`
	CommitmentWeight   float64 `yaml:"commitment_weight" mapstructure:"commitment_weight"`
	RelationshipWeight float64 `yaml:"relationship_weight" mapstructure:"relationship_weight"`
	NoOrderSentinel    int     `yaml:"no_order_sentinel_days" mapstructure:"no_order_sentinel_days"`
	NoVisitSentinel    int     `yaml:"no_visit_sentinel_days" mapstructure:"no_visit_sentinel_days"`
	DefaultHealth      float64 `yaml:"default_health" mapstructure:"default_health"`
	ExpiringDays       int     `yaml:"expiring_days" mapstructure:"expiring_days"`
	MaxDealers         int     `yaml:"max_dealers" mapstructure:"max_dealers"`
}

// ResolverConfig configures fuzzy entity matching.
type ResolverConfig struct {
	Threshold     float64 `yaml:"threshold" mapstructure:"threshold"`
	MaxCandidates int     `yaml:"max_candidates" mapstructure:"max_candidates"`
}

// OrdersConfig configures order pricing and scheduling.
type OrdersConfig struct {
	TaxRatePercent        float64 `yaml:"tax_rate_percent" mapstructure:"tax_rate_percent"`
	RequestedDeliveryDays int     `yaml:"requested_delivery_days" mapstructure:"requested_delivery_days"`
	PromisedDeliveryDays  int     `yaml:"promised_delivery_days" mapstructure:"promised_delivery_days"`
	NumberPrefix          string  `yaml:"number_prefix" mapstructure:"number_prefix"`
}

// TelegramConfig holds Bot API settings for manager notifications.
type TelegramConfig struct {
	BotToken         string  `yaml:"bot_token" mapstructure:"bot_token"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	ManagerChatID    string  `yaml:"manager_chat_id" mapstructure:"manager_chat_id"`
	RatePerSecond    float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// BatchConfig configures batch recomputation.
type BatchConfig struct {
	MaxConcurrentDealers int `yaml:"max_concurrent_dealers" mapstructure:"max_concurrent_dealers"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FIELDOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Defaults returns the built-in configuration without reading any file or
// environment.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "fieldops.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_secs", 30)

	v.SetDefault("consumption.forward_window_days", 7)
	v.SetDefault("consumption.due_soon_days", 3)
	v.SetDefault("consumption.expire_grace_days", 30)
	v.SetDefault("consumption.max_attempts", 3)
	v.SetDefault("consumption.initial_backoff_ms", 20)
	v.SetDefault("consumption.max_backoff_ms", 250)

	v.SetDefault("health.recency_weight", 0.25)
	v.SetDefault("health.frequency_weight", 0.25)
	v.SetDefault("health.payment_weight", 0.25)
	v.SetDefault("health.fulfillment_weight", 0.25)
	v.SetDefault("health.window_months", 6)
	v.SetDefault("health.expected_orders", 6)
	v.SetDefault("health.healthy_threshold", 70)
	v.SetDefault("health.at_risk_threshold", 50)
	v.SetDefault("health.cache_max_age_hours", 0)
	v.SetDefault("health.max_reasons", 3)

	v.SetDefault("planner.payment_weight", 0.30)
	v.SetDefault("planner.order_weight", 0.25)
	v.SetDefault("planner.visit_weight", 0.15)
	v.SetDefault("planner.commitment_weight", 0.15)
	v.SetDefault("planner.relationship_weight", 0.15)
	v.SetDefault("planner.no_order_sentinel_days", 120)
	v.SetDefault("planner.no_visit_sentinel_days", 60)
	v.SetDefault("planner.default_health", 50)
	v.SetDefault("planner.expiring_days", 3)
	v.SetDefault("planner.max_dealers", 5)

	v.SetDefault("resolver.threshold", 0.70)
	v.SetDefault("resolver.max_candidates", 3)

	v.SetDefault("orders.tax_rate_percent", 18)
	v.SetDefault("orders.requested_delivery_days", 2)
	v.SetDefault("orders.promised_delivery_days", 3)
	v.SetDefault("orders.number_prefix", "ORD")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.manager_chat_id", "")
	v.SetDefault("telegram.rate_per_second", 1.0)
	v.SetDefault("telegram.timeout_secs", 10)
	v.SetDefault("telegram.max_attempts", 3)
	v.SetDefault("telegram.failure_threshold", 5)

	v.SetDefault("batch.max_concurrent_dealers", 8)
}

// Validate checks the configuration needed by a command. mode is one of
// "store", "engine" or "notify"; unknown modes only check the store.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for postgres")
		}
	case "sqlite":
	default:
		errs = append(errs, "store.driver must be postgres or sqlite")
	}

	if mode == "engine" || mode == "notify" {
		if !sumsToOne(c.Health.RecencyWeight, c.Health.FrequencyWeight, c.Health.PaymentWeight, c.Health.FulfillmentWeight) {
			errs = append(errs, "health weights must sum to 1.0")
		}
		if !sumsToOne(c.Planner.PaymentWeight, c.Planner.OrderWeight, c.Planner.VisitWeight, c.Planner.CommitmentWeight, c.Planner.RelationshipWeight) {
			errs = append(errs, "planner weights must sum to 1.0")
		}
		if c.Health.AtRiskThreshold > c.Health.HealthyThreshold {
			errs = append(errs, "health.at_risk_threshold must not exceed health.healthy_threshold")
		}
		if c.Consumption.ForwardWindowDays < 0 {
			errs = append(errs, "consumption.forward_window_days must be >= 0")
		}
		if c.Orders.TaxRatePercent < 0 {
			errs = append(errs, "orders.tax_rate_percent must be >= 0")
		}
		if c.Resolver.Threshold <= 0 || c.Resolver.Threshold > 1 {
			errs = append(errs, "resolver.threshold must be in (0, 1]")
		}
	}

	if mode == "notify" && c.Telegram.BotToken == "" {
		errs = append(errs, "telegram.bot_token is required (FIELDOPS_TELEGRAM_BOT_TOKEN)")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func sumsToOne(weights ...float64) bool {
	var sum float64
	for _, w := range weights {
		if w < 0 {
			return false
		}
		sum += w
	}
	return math.Abs(sum-1.0) < 0.001
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
