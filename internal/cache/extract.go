// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
)

// ExtractWorkers bounds concurrent file extraction.
var ExtractWorkers = runtime.GOMAXPROCS(0)

const stagingSuffix = ".extracting"

// Extract unpacks archive into dest and returns the extracted file paths
// relative to dest. Files are written to a staging directory which is
// renamed to dest once every entry is written. When archive is not a zip
// it is moved into dest as fileName (the name the host served it under).
func Extract(ctx context.Context, archive, dest, fileName string) ([]string, error) {
	staging := dest + stagingSuffix
	if err := os.RemoveAll(staging); err != nil {
		return nil, fmt.Errorf("clearing staging directory: %w", err)
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", staging, err)
	}

	files, err := extractInto(ctx, archive, staging, fileName)
	if err != nil {
		os.RemoveAll(staging)
		return nil, err
	}

	if err := os.RemoveAll(dest); err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("clearing %s: %w", dest, err)
	}
	if err := os.Rename(staging, dest); err != nil {
		os.RemoveAll(staging)
		return nil, fmt.Errorf("renaming staging directory: %w", err)
	}
	return files, nil
}

func extractInto(ctx context.Context, archive, dir, fileName string) ([]string, error) {
	zr, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrFormat) {
		return moveSingle(archive, dir, fileName)
	}
	if errors.Is(err, zip.ErrInsecurePath) {
		zr.Close()
		return nil, fmt.Errorf("archive entry escapes the destination: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	var files []*zip.File
	for _, f := range zr.File {
		target, err := safeJoin(dir, f.Name)
		if err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("creating directory %s: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", filepath.Dir(target), err)
		}
		files = append(files, f)
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(max(ExtractWorkers, 1))
	for _, f := range files {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return extractFile(f, dir)
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.ToSlash(filepath.Clean(f.Name))
	}
	sort.Strings(names)
	return names, nil
}

func extractFile(f *zip.File, dir string) error {
	target, err := safeJoin(dir, f.Name)
	if err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s in archive: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	_, copyErr := io.Copy(out, rc)
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("closing %s: %w", target, closeErr)
	}
	return nil
}

// safeJoin joins name onto dir and rejects entries that would land outside it.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("archive entry %q has an absolute path", name)
	}
	target := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the destination", name)
	}
	return target, nil
}

// moveSingle places a non-zip download into dir under fileName.
func moveSingle(archive, dir, fileName string) ([]string, error) {
	name := filepath.Base(fileName)
	if name == "" || name == "." || name == "/" {
		name = "data"
	}
	if err := os.Rename(archive, filepath.Join(dir, name)); err != nil {
		return nil, fmt.Errorf("moving download into place: %w", err)
	}
	return []string{name}, nil
}
