// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package handle parses dataset handles of the form "owner/dataset" and
// "owner/dataset/versions/N".
package handle

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidHandle is wrapped by every parse failure.
var ErrInvalidHandle = errors.New("invalid dataset handle")

// slugPattern matches owner and dataset slugs.
var slugPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Handle identifies a dataset on the host, optionally pinned to a version.
type Handle struct {
	Owner   string
	Dataset string

	// Version is the pinned version number; 0 means latest.
	Version int
}

// Parse validates s and returns the handle it names.
func Parse(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Handle{}, fmt.Errorf("%w: empty", ErrInvalidHandle)
	}

	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
	case 4:
		if parts[2] != "versions" {
			return Handle{}, fmt.Errorf("%w: %q: expected owner/dataset/versions/N", ErrInvalidHandle, s)
		}
	default:
		return Handle{}, fmt.Errorf("%w: %q: expected owner/dataset or owner/dataset/versions/N", ErrInvalidHandle, s)
	}

	h := Handle{Owner: parts[0], Dataset: parts[1]}
	if !slugPattern.MatchString(h.Owner) {
		return Handle{}, fmt.Errorf("%w: %q: bad owner %q", ErrInvalidHandle, s, h.Owner)
	}
	if !slugPattern.MatchString(h.Dataset) {
		return Handle{}, fmt.Errorf("%w: %q: bad dataset %q", ErrInvalidHandle, s, h.Dataset)
	}

	if len(parts) == 4 {
		v, err := strconv.Atoi(parts[3])
		if err != nil || v < 1 {
			return Handle{}, fmt.Errorf("%w: %q: version must be a positive integer", ErrInvalidHandle, s)
		}
		h.Version = v
	}
	return h, nil
}

// IsVersioned reports whether the handle is pinned to a version.
func (h Handle) IsVersioned() bool {
	return h.Version > 0
}

// WithVersion returns a copy of h pinned to version v.
func (h Handle) WithVersion(v int) Handle {
	h.Version = v
	return h
}

// Base returns "owner/dataset" without any version suffix.
func (h Handle) Base() string {
	return h.Owner + "/" + h.Dataset
}

// String returns the canonical form of the handle.
func (h Handle) String() string {
	if h.IsVersioned() {
		return fmt.Sprintf("%s/versions/%d", h.Base(), h.Version)
	}
	return h.Base()
}
