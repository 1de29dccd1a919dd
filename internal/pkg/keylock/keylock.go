// Package keylock serializes work per string key, in-process or across replicas.
package keylock

import (
	"context"
	"sort"
)

// Locker acquires an exclusive lock on key; release must be called exactly once
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// WithLocks acquires keys in sorted order, runs fn and releases in reverse order.
// Duplicate and empty keys are ignored.
func WithLocks(ctx context.Context, l Locker, keys []string, fn func(ctx context.Context) error) error {
	ordered := normalize(keys)
	releases := make([]func(), 0, len(ordered))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	for _, key := range ordered {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			return err
		}
		releases = append(releases, release)
	}

	return fn(ctx)
}

func normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
