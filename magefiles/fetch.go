//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Fetch builds the CLI and fetches the dataset into the local cache.
func Fetch() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName))
}

// CacheList builds the CLI and lists the cached dataset versions.
func CacheList() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "cache", "list")
}

// History builds the CLI and prints recent fetches.
func History() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "history")
}
