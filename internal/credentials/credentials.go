// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package credentials resolves the username/key pair used to authenticate
// against the dataset host.
package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/dataset-fetcher/internal/secrets"
)

// Environment variables consulted during resolution.
const (
	EnvUsername  = "KAGGLE_USERNAME"
	EnvKey       = "KAGGLE_KEY"
	EnvConfigDir = "KAGGLE_CONFIG_DIR"
)

const configFile = "kaggle.json"

// Source names where a credential pair was found.
type Source string

const (
	SourceEnv     Source = "environment"
	SourceSecrets Source = "secrets"
	SourceFile    Source = "kaggle.json"
)

// Credentials is a username/API key pair.
type Credentials struct {
	Username string
	Key      string
	Source   Source
}

// Resolver looks up credentials. Getenv and HomeDir default to the os
// package functions; tests replace them.
type Resolver struct {
	Getenv  func(string) string
	HomeDir func() (string, error)
	Secrets secrets.Secrets
}

// NewResolver returns a Resolver backed by the process environment and
// the given secrets.
func NewResolver(s secrets.Secrets) *Resolver {
	return &Resolver{
		Getenv:  os.Getenv,
		HomeDir: os.UserHomeDir,
		Secrets: s,
	}
}

// Resolve returns the first complete credential pair from the environment,
// the secrets directory, or kaggle.json, in that order. It returns nil and
// no error when nothing is configured; requests then go out anonymously.
func (r *Resolver) Resolve() (*Credentials, error) {
	if u, k := r.Getenv(EnvUsername), r.Getenv(EnvKey); u != "" && k != "" {
		return &Credentials{Username: u, Key: k, Source: SourceEnv}, nil
	}

	if u, k := r.Secrets.Get(secrets.KaggleUsername), r.Secrets.Get(secrets.KaggleKey); u != "" && k != "" {
		return &Credentials{Username: u, Key: k, Source: SourceSecrets}, nil
	}

	path, err := r.configPath()
	if err != nil {
		return nil, nil
	}
	return readConfigFile(path)
}

func (r *Resolver) configPath() (string, error) {
	if dir := r.Getenv(EnvConfigDir); dir != "" {
		return filepath.Join(dir, configFile), nil
	}
	home, err := r.HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".kaggle", configFile), nil
}

type configJSON struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// readConfigFile parses a kaggle.json file. A missing file yields nil
// credentials; a malformed one is an error.
func readConfigFile(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg configJSON
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Username == "" || cfg.Key == "" {
		return nil, fmt.Errorf("parsing %s: username and key are both required", path)
	}
	return &Credentials{Username: cfg.Username, Key: cfg.Key, Source: SourceFile}, nil
}
