// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/pdiddy/dataset-fetcher/internal/handle"
)

// LockRetryDelay is how often Lock polls a held lock.
var LockRetryDelay = 250 * time.Millisecond

// Lock takes the exclusive file lock for the pinned handle, waiting until
// it is free or ctx is done. The returned function releases it.
func (c *Cache) Lock(ctx context.Context, h handle.Handle) (func() error, error) {
	if err := c.EnsureVersionsDir(h); err != nil {
		return nil, err
	}

	fl := flock.New(c.LockPath(h))
	locked, err := fl.TryLockContext(ctx, LockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", h, err)
	}
	if !locked {
		return nil, fmt.Errorf("locking %s: lock not acquired", h)
	}
	return fl.Unlock, nil
}
