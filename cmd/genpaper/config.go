// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/sadiq-codes/genpaper/internal/batch"
	"github.com/sadiq-codes/genpaper/internal/ratelimit"
	"github.com/sadiq-codes/genpaper/internal/resolve"
	"github.com/sadiq-codes/genpaper/internal/secrets"
	"github.com/sadiq-codes/genpaper/internal/store"
	"github.com/sadiq-codes/genpaper/internal/stream"
	"github.com/sadiq-codes/genpaper/pkg/types"
)

func init() {
	viper.SetDefault("store.path", "genpaper.db")
	viper.SetDefault("resolver.timeout", 30*time.Second)
	viper.SetDefault("resolver.resolve_timeout", resolve.DefaultResolveTimeout)
	viper.SetDefault("resolver.user_agent", "genpaper/"+version)
	viper.SetDefault("rate_limit.window", ratelimit.DefaultWindow)
	viper.SetDefault("rate_limit.batches_per_window", ratelimit.DefaultBatchesPerWindow)
	viper.SetDefault("rate_limit.units_per_window", ratelimit.DefaultUnitsPerWindow)
	viper.SetDefault("batch.concurrency", batch.DefaultConcurrency)
	viper.SetDefault("batch.max_retries", batch.DefaultMaxRetries)
	viper.SetDefault("batch.retry_base_delay", batch.DefaultRetryBaseDelay)
	viper.SetDefault("stream.sentence_window", stream.DefaultSentenceWindow)
	viper.SetDefault("stream.placeholder_backpressure", 2*batch.DefaultConcurrency)
	viper.SetDefault("stream.buffer_ceiling", stream.DefaultBufferCeiling)
	viper.SetDefault("stream.style", "numeric")
}

// loadConfig materializes the engine configuration from viper, secrets, and
// environment.
func loadConfig() types.Config {
	return types.Config{
		Resolver: types.ResolverConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("resolver.timeout"),
				UserAgent: viper.GetString("resolver.user_agent"),
			},
			CatalogAPIKey:  secrets.Value(loadedSecrets, secrets.CatalogAPIKey, "GENPAPER_CATALOG_API_KEY"),
			CrossrefMailto: secrets.Value(loadedSecrets, secrets.CrossrefMailto, "GENPAPER_CROSSREF_MAILTO"),
			ResolveTimeout: viper.GetDuration("resolver.resolve_timeout"),
		},
		RateLimit: types.RateLimitConfig{
			Window:           viper.GetDuration("rate_limit.window"),
			BatchesPerWindow: viper.GetInt("rate_limit.batches_per_window"),
			UnitsPerWindow:   viper.GetInt("rate_limit.units_per_window"),
		},
		Batch: types.BatchConfig{
			Concurrency:    viper.GetInt("batch.concurrency"),
			MaxRetries:     viper.GetInt("batch.max_retries"),
			RetryBaseDelay: viper.GetDuration("batch.retry_base_delay"),
		},
		Stream: types.StreamConfig{
			SentenceWindow:          viper.GetInt("stream.sentence_window"),
			PlaceholderBackpressure: viper.GetInt("stream.placeholder_backpressure"),
			BufferCeiling:           viper.GetInt("stream.buffer_ceiling"),
			Style:                   viper.GetString("stream.style"),
		},
		Store: types.StoreConfig{
			Path: viper.GetString("store.path"),
		},
	}
}

// engine bundles the wired components shared by the resolve and generate
// commands.
type engine struct {
	cfg   types.Config
	store *store.Store
	orch  *batch.Orchestrator
}

func newEngine() (*engine, error) {
	cfg := loadConfig()
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("opening citation store: %w", err)
	}
	catalog := resolve.NewHTTPCatalog(cfg.Resolver)
	resolver := resolve.New(st, catalog, cfg.Resolver)
	limiter := ratelimit.New(cfg.RateLimit)
	return &engine{
		cfg:   cfg,
		store: st,
		orch:  batch.New(resolver, limiter, cfg.Batch),
	}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}
