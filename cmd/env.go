package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/enrich-cli/internal/auth"
	"github.com/sells-group/enrich-cli/internal/config"
	"github.com/sells-group/enrich-cli/internal/pipeline"
	"github.com/sells-group/enrich-cli/internal/policy"
	"github.com/sells-group/enrich-cli/internal/store"
	"github.com/sells-group/enrich-cli/internal/throttle"
	"github.com/sells-group/enrich-cli/pkg/demographic"
	"github.com/sells-group/enrich-cli/pkg/dnc"
	"github.com/sells-group/enrich-cli/pkg/peoplesearch"
	"github.com/sells-group/enrich-cli/pkg/phoneintel"
)

// env bundles the wired dependencies for one invocation. The throttle and
// token cache are constructed once per run and injected, never ambient.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv builds the store, provider clients, throttle, token cache, and
// pipeline from configuration.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	kt := throttle.New(cfg.Throttle.Delays(), cfg.Throttle.DefaultDelay())
	gate := policy.New(cfg.Policy.ExtraDisposableCarriers...)

	issuer := dnc.NewTokenClient(cfg.DNC.ClientID, cfg.DNC.RefreshToken,
		dnc.WithTokenBaseURL(tokenBaseURL(cfg.DNC)))
	tokens := auth.NewCache(issuer,
		auth.WithSafetyMargin(time.Duration(cfg.DNC.SafetyMarginSecs)*time.Second))

	p := pipeline.New(
		kt,
		tokens,
		gate,
		peoplesearch.NewClient(cfg.PeopleSearch.Key, peoplesearch.WithBaseURL(cfg.PeopleSearch.BaseURL)),
		phoneintel.NewClient(cfg.PhoneIntel.Key, phoneintel.WithBaseURL(cfg.PhoneIntel.BaseURL)),
		dnc.NewClient(dnc.WithBaseURL(cfg.DNC.BaseURL)),
		demographic.NewClient(cfg.Demographic.Key, demographic.WithBaseURL(cfg.Demographic.BaseURL)),
	)

	return &env{Store: st, Pipeline: p}, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "postgres":
		st, err := store.NewPostgres(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres store")
		}
		return st, nil
	case "", "sqlite":
		st, err := store.NewSQLite(sc.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", sc.Driver)
	}
}

func tokenBaseURL(dc config.DNCConfig) string {
	if dc.TokenBaseURL != "" {
		return dc.TokenBaseURL
	}
	return dc.BaseURL
}
