// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dataset-fetcher/internal/ledger"
	"github.com/pdiddy/dataset-fetcher/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent dataset fetches",
	Long: `History reads the fetch ledger kept under the cache root
(index/fetches.db) and lists recent fetches, newest first, including
whether each was served from the cache.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of entries to list")
	historyCmd.Flags().Bool("json", false, "output entries as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	root, err := cacheRoot(cfg)
	if err != nil {
		return err
	}

	l, err := ledger.Open(root)
	if err != nil {
		return err
	}
	defer l.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	recs, err := l.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatHistory(cmd.OutOrStdout(), recs, jsonOutput)
}

func formatHistory(w io.Writer, recs []types.FetchRecord, jsonOutput bool) error {
	if jsonOutput {
		if recs == nil {
			recs = []types.FetchRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Fprintln(w, "No fetches recorded.")
		return nil
	}

	fmt.Fprintf(w, "%-20s  %-36s  %-7s  %-6s  %12s\n", "Fetched", "Handle", "Version", "Source", "Bytes")
	fmt.Fprintln(w, strings.Repeat("-", 89))
	for _, r := range recs {
		source := "host"
		if r.CacheHit {
			source = "cache"
		}
		h := r.Handle
		if len(h) > 36 {
			h = h[:33] + "..."
		}
		fmt.Fprintf(w, "%-20s  %-36s  %-7d  %-6s  %12d\n",
			r.FetchedAt.Local().Format(time.DateTime), h, r.Version, source, r.Bytes)
	}
	fmt.Fprintf(w, "\n%d entries\n", len(recs))
	return nil
}
