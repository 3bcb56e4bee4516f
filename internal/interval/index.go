package interval

import (
	"slices"
	"time"

	"github.com/google/btree"
)

const indexDegree = 16

type entry[T any] struct {
	key  string
	span Interval
	val  T
}

func lessEntry[T any](a, b entry[T]) bool {
	if !a.span.Start.Equal(b.span.Start) {
		return a.span.Start.Before(b.span.Start)
	}
	return a.key < b.key
}

// Index keeps values ordered by interval start.
// Stored intervals must be pairwise non-overlapping; callers check
// FirstOverlap before Insert. Under that invariant starts and ends are
// sorted alike, so overlap queries only walk the neighbours of the pivot.
// Index is not safe for concurrent use.
type Index[T any] struct {
	tree *btree.BTreeG[entry[T]]
}

func NewIndex[T any]() *Index[T] {
	return &Index[T]{tree: btree.NewG(indexDegree, lessEntry[T])}
}

func (x *Index[T]) Len() int {
	return x.tree.Len()
}

// Insert adds or replaces the value stored under (span.Start, key).
func (x *Index[T]) Insert(key string, span Interval, v T) {
	x.tree.ReplaceOrInsert(entry[T]{key: key, span: span, val: v})
}

// Delete removes the value stored under (span.Start, key).
func (x *Index[T]) Delete(key string, span Interval) bool {
	_, ok := x.tree.Delete(entry[T]{key: key, span: span})
	return ok
}

// FirstOverlap returns a stored value whose interval overlaps iv.
func (x *Index[T]) FirstOverlap(iv Interval) (T, bool) {
	var (
		found T
		ok    bool
	)
	x.descendFrom(iv.End, func(e entry[T]) bool {
		if e.span.Overlaps(iv) {
			found, ok = e.val, true
			return false
		}
		return e.span.End.After(iv.Start)
	})
	return found, ok
}

// Overlapping returns the values overlapping window in ascending start order.
func (x *Index[T]) Overlapping(window Interval) []T {
	var out []T
	x.descendFrom(window.End, func(e entry[T]) bool {
		if !e.span.End.After(window.Start) {
			return false
		}
		if e.span.Overlaps(window) {
			out = append(out, e.val)
		}
		return true
	})
	slices.Reverse(out)
	return out
}

// All returns every stored value in ascending start order.
func (x *Index[T]) All() []T {
	out := make([]T, 0, x.tree.Len())
	x.tree.Ascend(func(e entry[T]) bool {
		out = append(out, e.val)
		return true
	})
	return out
}

// descendFrom walks entries starting strictly before t, latest first.
func (x *Index[T]) descendFrom(t time.Time, fn func(entry[T]) bool) {
	pivot := entry[T]{span: Interval{Start: t}}
	x.tree.DescendLessOrEqual(pivot, func(e entry[T]) bool {
		if !e.span.Start.Before(t) {
			return true
		}
		return fn(e)
	})
}

func sortByStart(ivs []Interval) {
	slices.SortFunc(ivs, func(a, b Interval) int {
		return a.Start.Compare(b.Start)
	})
}
