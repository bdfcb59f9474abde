// Package concurrent provides the generic concurrent collections shared
// across the pipeline: a typed map for state that many goroutines read
// far more often than they write.
package concurrent

import "github.com/puzpuzpuz/xsync/v3"

// Map is a thin, typed wrapper over xsync.MapOf, giving call sites the
// same surface the standard library's sync.Map offers without the
// any/any type assertions.
type Map[K comparable, V any] struct {
	m *xsync.MapOf[K, V]
}

func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{m: xsync.NewMapOf[K, V]()}
}

func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	return m.m.Load(key)
}

func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	return m.m.LoadOrStore(key, value)
}

func (m *Map[K, V]) Delete(key K) {
	m.m.Delete(key)
}

func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(f)
}

// Size counts the current entries by iterating — xsync.MapOf does not
// expose an O(1) count.
func (m *Map[K, V]) Size() int {
	n := 0
	m.m.Range(func(K, V) bool {
		n++
		return true
	})
	return n
}
