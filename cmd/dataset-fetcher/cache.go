// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dataset-fetcher/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the local dataset cache",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List complete cached dataset versions",
	Long: `List walks the cache root and prints every dataset version whose
completion marker is present. Partial downloads are not listed.`,
	Args: cobra.NoArgs,
	RunE: runCacheList,
}

func init() {
	cacheListCmd.Flags().Bool("json", false, "output entries as JSON")

	cacheCmd.AddCommand(cacheListCmd)
	rootCmd.AddCommand(cacheCmd)
}

type cacheListEntry struct {
	Handle  string `json:"handle"`
	Version int    `json:"version"`
	Path    string `json:"path"`
	Files   int    `json:"files"`
	Bytes   int64  `json:"archive_bytes"`
}

func runCacheList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	root, err := cacheRoot(cfg)
	if err != nil {
		return err
	}

	entries, err := cache.New(root).List()
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatCacheList(cmd.OutOrStdout(), entries, jsonOutput)
}

func formatCacheList(w io.Writer, entries []cache.Entry, jsonOutput bool) error {
	rows := make([]cacheListEntry, 0, len(entries))
	for _, e := range entries {
		row := cacheListEntry{Handle: e.Handle.Base(), Version: e.Handle.Version, Path: e.Path}
		if e.Record != nil {
			row.Files = len(e.Record.Files)
			row.Bytes = e.Record.ArchiveBytes
		}
		rows = append(rows, row)
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "Cache is empty.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-7s  %-5s  %12s  %s\n", "Handle", "Version", "Files", "Bytes", "Path")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, r := range rows {
		fmt.Fprintf(w, "%-36s  %-7d  %-5d  %12d  %s\n", r.Handle, r.Version, r.Files, r.Bytes, r.Path)
	}
	return nil
}
