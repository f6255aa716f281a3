// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dataset-fetcher CLI. Run without
// arguments it makes the Olist Brazilian e-commerce dataset available in the
// local cache and prints where its files are.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dataset-fetcher/internal/fetch"
	"github.com/pdiddy/dataset-fetcher/internal/logging"
	"github.com/pdiddy/dataset-fetcher/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory at startup.
var loadedSecrets secrets.Secrets

// rootCmd fetches the dataset.
var rootCmd = &cobra.Command{
	Use:   "dataset-fetcher",
	Short: "Download the Olist Brazilian e-commerce dataset into the local cache",
	Long: `dataset-fetcher resolves the current version of olistbr/brazilian-ecommerce
on Kaggle, downloads and extracts it into the local cache unless that version
is already there, and prints the path to the dataset files.

Credentials come from KAGGLE_USERNAME/KAGGLE_KEY, the secrets directory, or
kaggle.json. When the host is unreachable the newest cached version is used.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runFetch,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		if err := logging.Setup(os.Stderr, cfg.LogConfig); err != nil {
			return err
		}
		if viper.ConfigFileUsed() != "" {
			log.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
		}

		s, err := secrets.Load(cfg.SecretsDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			log.Debug().Strs("keys", s.Keys()).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./dataset-fetcher.yaml or ~/.config/dataset-fetcher/dataset-fetcher.yaml)")
	rootCmd.Flags().Bool("force-download", false, "discard the cached copy and download again")
	rootCmd.Flags().Bool("offline", false, "serve only from the local cache")

	viper.BindPFlag("force_download", rootCmd.Flags().Lookup("force-download"))
	viper.BindPFlag("offline", rootCmd.Flags().Lookup("offline"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dataset-fetcher")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "dataset-fetcher"))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.ReadInConfig()
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	f, cleanup, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	return f.FetchAndReport(cmd.Context(), cmd.OutOrStdout(), fetch.DefaultDataset, fetch.Options{
		ForceDownload: cfg.ForceDownload,
		Offline:       cfg.Offline,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
