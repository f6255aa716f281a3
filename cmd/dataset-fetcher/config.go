// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/pdiddy/dataset-fetcher/internal/cache"
	"github.com/pdiddy/dataset-fetcher/internal/credentials"
	"github.com/pdiddy/dataset-fetcher/internal/fetch"
	"github.com/pdiddy/dataset-fetcher/internal/kaggle"
	"github.com/pdiddy/dataset-fetcher/internal/ledger"
	"github.com/pdiddy/dataset-fetcher/internal/metrics"
	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

const (
	envPrefix = "DATASET_FETCHER"

	defaultMaxRetries = 5
	defaultSecretsDir = ".secrets/"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_dir", "")
	v.SetDefault("endpoint", "")
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("user_agent", "")
	v.SetDefault("max_retries", defaultMaxRetries)
	v.SetDefault("force_download", false)
	v.SetDefault("offline", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", string(types.LogConsole))
	v.SetDefault("metrics_textfile", "")
	v.SetDefault("secrets_dir", defaultSecretsDir)
}

// loadConfig decodes v into a FetchConfig.
func loadConfig(v *viper.Viper) (types.FetchConfig, error) {
	var cfg types.FetchConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	if cfg.MaxRetries < 0 {
		return cfg, fmt.Errorf("max_retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.Timeout < 0 {
		return cfg, fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	return cfg, nil
}

// cacheRoot returns the configured cache root or the default one.
func cacheRoot(cfg types.FetchConfig) (string, error) {
	if cfg.CacheDir != "" {
		return cfg.CacheDir, nil
	}
	return cache.DefaultRoot(os.Getenv)
}

// newFetcher wires a Fetcher from cfg. The returned cleanup closes the
// ledger and writes the metrics textfile when one is configured.
func newFetcher(cfg types.FetchConfig) (*fetch.Fetcher, func(), error) {
	creds, err := credentials.NewResolver(loadedSecrets).Resolve()
	if err != nil {
		return nil, nil, err
	}
	if creds == nil {
		log.Debug().Msg("no Kaggle credentials found, using anonymous access")
	} else {
		log.Debug().Str("source", string(creds.Source)).Msg("using Kaggle credentials")
	}

	root, err := cacheRoot(cfg)
	if err != nil {
		return nil, nil, err
	}

	f := fetch.New(kaggle.NewClient(cfg, creds, os.Getenv), cache.New(root), log.Logger)
	f.Metrics = metrics.New()
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		f.Progress = os.Stderr
	}

	l, err := ledger.Open(root)
	if err != nil {
		log.Warn().Err(err).Msg("fetch history unavailable")
	} else {
		f.Ledger = l
	}

	cleanup := func() {
		if l != nil {
			l.Close()
		}
		if cfg.MetricsTextfile != "" {
			if err := f.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
				log.Warn().Err(err).Msg("writing metrics")
			}
		}
	}
	return f, cleanup, nil
}
