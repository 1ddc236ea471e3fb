// Package feed merges independently fetched lists into one display list.
package feed

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"
)

// Item is anything that can be placed in a pinned-then-recent feed.
type Item interface {
	FeedID() string
	Pinned() bool
	Posted() time.Time
}

// Merge concatenates lists, keeps the first occurrence of every key, sorts
// stably with cmp and only then truncates to limit (limit <= 0 keeps all).
// Truncating before the sort would silently drop a pinned item that happened
// to arrive late.
func Merge[T any](lists [][]T, key func(T) string, cmp func(a, b T) int, limit int) []T {
	total := 0
	for _, list := range lists {
		total += len(list)
	}

	merged := make([]T, 0, total)
	seen := make(map[string]struct{}, total)
	for _, list := range lists {
		for _, item := range list {
			k := key(item)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, item)
		}
	}

	if cmp != nil {
		slices.SortStableFunc(merged, cmp)
	}
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// PinnedThenRecent orders pinned items first, then newest first. Items
// without a timestamp count as the oldest.
func PinnedThenRecent[T Item](a, b T) int {
	if a.Pinned() != b.Pinned() {
		if a.Pinned() {
			return -1
		}
		return 1
	}

	ta, tb := a.Posted(), b.Posted()
	switch {
	case ta.IsZero() && tb.IsZero():
		return 0
	case ta.IsZero():
		return 1
	case tb.IsZero():
		return -1
	}
	return tb.Compare(ta)
}

// MergeFeed is Merge keyed by FeedID and ordered by PinnedThenRecent.
func MergeFeed[T Item](lists [][]T, limit int) []T {
	return Merge(lists, func(item T) string { return item.FeedID() }, PinnedThenRecent[T], limit)
}

// Collect runs fetch for every key concurrently and waits for all of them.
// lists[i] and errs[i] belong to keys[i]; one failing key does not stop the
// others.
func Collect[K any, T any](ctx context.Context, keys []K, fetch func(context.Context, K) ([]T, error)) ([][]T, []error) {
	lists := make([][]T, len(keys))
	errs := make([]error, len(keys))

	var g errgroup.Group
	for i, key := range keys {
		g.Go(func() error {
			lists[i], errs[i] = fetch(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	return lists, errs
}

// Head returns at most the first n items.
func Head[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}
