// Package persistence saves and restores the workout collection as a single
// JSON blob stored under one key of a key-value backend.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/mapty/internal/domain/workout"
	"github.com/okian/mapty/pkg/metrics"
)

// DefaultKey is the key the legacy format used.
const DefaultKey = "workouts"

// KV is the minimal key-value backend the adapter needs.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
	// Close releases backend resources.
	Close() error
}

// Adapter serializes workouts to a KV backend.
type Adapter struct {
	kv  KV
	key string
}

// New creates an Adapter over kv.
func New(kv KV, opts ...Option) *Adapter {
	a := &Adapter{kv: kv, key: DefaultKey}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the storage key in use.
func (a *Adapter) Key() string { return a.key }

// Save writes every workout in the given order.
func (a *Adapter) Save(ctx context.Context, ws []workout.Workout) error {
	start := time.Now()
	defer func() { metrics.RecordPersistenceLatency("save", sinceMs(start)) }()

	blob, err := encode(ws)
	if err != nil {
		metrics.RecordPersistenceError("save")
		return fmt.Errorf("encode workouts: %w", err)
	}
	if err := a.kv.Put(ctx, a.key, blob); err != nil {
		metrics.RecordPersistenceError("save")
		return fmt.Errorf("%w: put %q: %w", ErrBackend, a.key, err)
	}
	return nil
}

// Load reads the stored workouts. A missing key yields an empty collection.
// Malformed data yields ErrCorrupt and no workouts.
func (a *Adapter) Load(ctx context.Context) ([]workout.Workout, error) {
	start := time.Now()
	defer func() { metrics.RecordPersistenceLatency("load", sinceMs(start)) }()

	blob, ok, err := a.kv.Get(ctx, a.key)
	if err != nil {
		metrics.RecordPersistenceError("load")
		return nil, fmt.Errorf("%w: get %q: %w", ErrBackend, a.key, err)
	}
	if !ok {
		return nil, nil
	}

	ws, err := decode(blob)
	if err != nil {
		metrics.RecordPersistenceCorrupt()
		return nil, err
	}
	return ws, nil
}

// Close closes the backend.
func (a *Adapter) Close() error {
	return a.kv.Close()
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
