package alerting

import (
	"iter"
	"slices"
)

// Chunk yields consecutive sub-slices of items holding at most size elements.
// Every chunk but the last has exactly size elements; an empty input yields nothing.
// A size below one is treated as one.
func Chunk[T any](items []T, size int) iter.Seq[[]T] {
	if size < 1 {
		size = 1
	}
	return slices.Chunk(items, size)
}
