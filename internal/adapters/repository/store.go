// Package repository defines the workout store interface and errors.
package repository

import (
	"context"
	"fmt"

	"github.com/okian/mapty/internal/domain/workout"
)

// SortKey selects the field a view is ordered by.
type SortKey string

// Supported sort keys.
const (
	SortByCreation SortKey = "creation"
	SortByDistance SortKey = "distance"
	SortByDuration SortKey = "duration"
)

// ParseSortKey returns the SortKey named by s. An empty string selects
// creation order.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case "":
		return SortByCreation, nil
	case SortByCreation, SortByDistance, SortByDuration:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSortKey, s)
	}
}

// Store owns the ordered collection of workouts.
type Store interface {
	// Add appends w. Returns ErrDuplicateID if w.ID is already stored.
	Add(ctx context.Context, w workout.Workout) error

	// RemoveByID removes the workout with id and returns it.
	// Returns ErrNotFound if no workout matches.
	RemoveByID(ctx context.Context, id workout.ID) (workout.Workout, error)

	// ReplaceByID builds a new workout from in, keeps the old id and creation
	// time, drops the old record and appends the new one at the end.
	// Returns ErrNotFound if no workout matches.
	ReplaceByID(ctx context.Context, id workout.ID, in workout.Input) (workout.Workout, error)

	// SortBy returns a sorted copy and remembers key and direction as the
	// current view. The stored order is not changed.
	SortBy(ctx context.Context, key SortKey, ascending bool) ([]workout.Workout, error)

	// View returns the workouts ordered by the last requested sort.
	View(ctx context.Context) []workout.Workout

	// FindByID returns the workout with id, if any.
	FindByID(ctx context.Context, id workout.ID) (workout.Workout, bool)

	// All returns a copy of the workouts in stored order.
	All(ctx context.Context) []workout.Workout

	// Reset replaces the whole collection, e.g. after loading from storage.
	Reset(ctx context.Context, ws []workout.Workout) error

	// Count returns the number of stored workouts.
	Count(ctx context.Context) int
}
