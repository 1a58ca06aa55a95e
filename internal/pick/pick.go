// Package pick selects random elements.
package pick

import "math/rand"

// Uniform returns an element of items chosen with equal probability.
// ok is false when items is empty.
func Uniform[T any](items []T) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[rand.Intn(len(items))], true
}
