// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for requests to the dataset host.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Zero means no client timeout;
	// archive downloads can run for a long time.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "dataset-fetcher/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds the HTTP 429 backoff loop (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// LogFormat selects the log encoding.
type LogFormat string

const (
	LogConsole LogFormat = "console"
	LogJSON    LogFormat = "json"
)

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zerolog level name: debug, info, warn, error (default info).
	Level string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// Format selects console or json output. Logs always go to stderr.
	Format LogFormat `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
}

// FetchConfig holds settings for the dataset fetcher and its download service.
type FetchConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`
	LogConfig  `yaml:",inline" mapstructure:",squash"`

	// Endpoint is the base URL of the dataset host API
	// (default https://www.kaggle.com/api/v1).
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// CacheDir is the root of the dataset cache. Empty falls back to
	// $KAGGLEHUB_CACHE, then ~/.cache/kagglehub.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`

	// SecretsDir is the directory of plain-text secret files (default .secrets/).
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`

	// ForceDownload discards any cached copy and downloads again.
	ForceDownload bool `json:"force_download" yaml:"force_download" mapstructure:"force_download"`

	// Offline skips the version lookup and serves only from the cache.
	Offline bool `json:"offline" yaml:"offline" mapstructure:"offline"`

	// MetricsTextfile, when set, receives Prometheus metrics in text
	// exposition format after each run.
	MetricsTextfile string `json:"metrics_textfile,omitempty" yaml:"metrics_textfile,omitempty" mapstructure:"metrics_textfile"`
}
