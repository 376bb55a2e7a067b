package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/mapty/internal/domain/workout"
	"github.com/okian/mapty/pkg/metrics"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a slice-backed Store. Slice order is insertion order; sorted
// views are always copies.
//
// The mutex only protects readers such as the HTTP view. Mutations are
// expected to come from a single dispatcher goroutine.
type MemoryStore struct {
	mu        sync.RWMutex
	workouts  []workout.Workout
	sortKey   SortKey
	ascending bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sortKey:   SortByCreation,
		ascending: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends w.
func (s *MemoryStore) Add(ctx context.Context, w workout.Workout) error { //nolint:gocritic // hugeParam: records are values
	defer observe("add", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(w.ID) >= 0 {
		metrics.RecordStoreOperation("add", "duplicate")
		return fmt.Errorf("%w: %s", ErrDuplicateID, w.ID)
	}
	s.workouts = append(s.workouts, w)
	metrics.RecordStoreOperation("add", "ok")
	metrics.UpdateWorkoutsTotal(len(s.workouts))
	return nil
}

// RemoveByID removes exactly one workout and keeps the order of the rest.
func (s *MemoryStore) RemoveByID(ctx context.Context, id workout.ID) (workout.Workout, error) {
	defer observe("remove", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		metrics.RecordStoreOperation("remove", "not_found")
		return workout.Workout{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	removed := s.workouts[i]
	s.workouts = slices.Delete(s.workouts, i, i+1)
	metrics.RecordStoreOperation("remove", "ok")
	metrics.UpdateWorkoutsTotal(len(s.workouts))
	return removed, nil
}

// ReplaceByID swaps the workout with id for one built from in. The new record
// goes to the end of the collection.
func (s *MemoryStore) ReplaceByID(ctx context.Context, id workout.ID, in workout.Input) (workout.Workout, error) { //nolint:gocritic // hugeParam: inputs are values
	defer observe("replace", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		metrics.RecordStoreOperation("replace", "not_found")
		return workout.Workout{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	old := s.workouts[i]
	next, err := workout.Build(old.ID, old.CreatedAt, in)
	if err != nil {
		metrics.RecordStoreOperation("replace", "invalid")
		return workout.Workout{}, err
	}
	s.workouts = append(slices.Delete(s.workouts, i, i+1), next)
	metrics.RecordStoreOperation("replace", "ok")
	return next, nil
}

// SortBy returns a stable sorted copy and makes it the current view.
func (s *MemoryStore) SortBy(ctx context.Context, key SortKey, ascending bool) ([]workout.Workout, error) {
	defer observe("sort", time.Now())

	if _, err := ParseSortKey(string(key)); err != nil {
		metrics.RecordStoreOperation("sort", "invalid")
		return nil, err
	}

	s.mu.Lock()
	s.sortKey = key
	s.ascending = ascending
	s.mu.Unlock()

	metrics.RecordStoreOperation("sort", "ok")
	return s.View(ctx), nil
}

// View returns the workouts in the current view order.
func (s *MemoryStore) View(ctx context.Context) []workout.Workout {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Sorted(s.workouts, s.sortKey, s.ascending)
}

// Sorted returns a stably sorted copy of ws. Descending order reverses the
// comparison, so ties keep their stored order in both directions.
func Sorted(ws []workout.Workout, key SortKey, ascending bool) []workout.Workout {
	out := slices.Clone(ws)
	compare := comparator(key)
	if ascending {
		slices.SortStableFunc(out, compare)
	} else {
		slices.SortStableFunc(out, func(a, b workout.Workout) int { return compare(b, a) })
	}
	return out
}

// FindByID returns the workout with id.
func (s *MemoryStore) FindByID(ctx context.Context, id workout.ID) (workout.Workout, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return workout.Workout{}, false
	}
	return s.workouts[i], true
}

// All returns the workouts in stored order.
func (s *MemoryStore) All(ctx context.Context) []workout.Workout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.workouts)
}

// Reset replaces the collection with ws. Nothing changes if ws contains
// duplicate ids.
func (s *MemoryStore) Reset(ctx context.Context, ws []workout.Workout) error {
	seen := make(map[workout.ID]struct{}, len(ws))
	for _, w := range ws {
		if _, dup := seen[w.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, w.ID)
		}
		seen[w.ID] = struct{}{}
	}

	s.mu.Lock()
	s.workouts = slices.Clone(ws)
	s.mu.Unlock()

	metrics.UpdateWorkoutsTotal(len(ws))
	return nil
}

// Count returns the number of workouts.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workouts)
}

// indexOf must be called with s.mu held.
func (s *MemoryStore) indexOf(id workout.ID) int {
	return slices.IndexFunc(s.workouts, func(w workout.Workout) bool { return w.ID == id })
}

func comparator(key SortKey) func(a, b workout.Workout) int {
	switch key {
	case SortByDistance:
		return func(a, b workout.Workout) int { return cmp.Compare(a.DistanceKm, b.DistanceKm) }
	case SortByDuration:
		return func(a, b workout.Workout) int { return cmp.Compare(a.DurationMin, b.DurationMin) }
	default:
		return func(a, b workout.Workout) int {
			switch {
			case a.ID.Less(b.ID):
				return -1
			case b.ID.Less(a.ID):
				return 1
			default:
				return 0
			}
		}
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
