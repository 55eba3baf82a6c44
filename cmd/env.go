package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fieldops/internal/agent"
	"github.com/sells-group/fieldops/internal/health"
	"github.com/sells-group/fieldops/internal/model"
	"github.com/sells-group/fieldops/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "fieldops.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env holds the store and the services built on it for one command run.
type env struct {
	Store    store.Store
	Services *agent.Services
}

func (e *env) Close() {
	_ = e.Store.Close()
}

// initEnv validates config for mode, opens and migrates the store and wires
// the services.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	if mode == "engine" {
		if err := health.ValidateConfig(cfg.Health); err != nil {
			return nil, err
		}
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	notifier := agent.NewNotifier(cfg.Telegram)
	return &env{Store: st, Services: agent.NewServices(st, cfg, notifier, model.SystemClock)}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
