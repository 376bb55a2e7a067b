// Package repository defines the workout store interface and errors.
package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithDefaultSort sets the view order used before any sort is requested.
func WithDefaultSort(key SortKey, ascending bool) Option {
	return func(s *MemoryStore) {
		if _, err := ParseSortKey(string(key)); err == nil {
			s.sortKey = key
			s.ascending = ascending
		}
	}
}
