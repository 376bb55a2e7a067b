package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	eventqueue "github.com/okian/mapty/internal/adapters/mq/queue"
	"github.com/okian/mapty/internal/adapters/mq/worker"
	"github.com/okian/mapty/internal/adapters/persistence"
	"github.com/okian/mapty/internal/adapters/render"
	"github.com/okian/mapty/internal/adapters/repository"
	"github.com/okian/mapty/internal/config"
	"github.com/okian/mapty/internal/domain/dedupe"
	"github.com/okian/mapty/internal/domain/model"
	"github.com/okian/mapty/internal/domain/types"
	"github.com/okian/mapty/internal/domain/workout"
	"github.com/okian/mapty/pkg/logger"
	"github.com/okian/mapty/pkg/metrics"
)

// Service wires storage, the controller and the dispatch queue together and
// implements what the HTTP API needs.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config

	kv         persistence.KV
	store      *repository.MemoryStore
	renderer   *render.ViewRenderer
	controller *Controller
	deduper    dedupe.Deduper
	queue      *eventqueue.InMemoryQueue
	dispatcher *worker.Dispatcher

	timersMu sync.Mutex
	timers   map[*time.Timer]struct{}

	now     func() time.Time
	started bool
	logger  logger.Logger
}

// New constructs a Service from cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:    cfg,
		now:    time.Now,
		timers: make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage, loads and renders the stored workouts and starts the dispatcher.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.kv == nil {
		kv, err := openKV(ctx, s.cfg)
		if err != nil {
			return err
		}
		s.kv = kv
	}
	s.logger.Info(ctx, "storage opened",
		logger.String("backend", s.cfg.StorageBackend),
		logger.String("path", s.cfg.StoragePath),
	)

	// Newest workouts are listed first until a sort is requested.
	s.store = repository.NewMemoryStore(repository.WithDefaultSort(repository.SortByCreation, false))
	s.renderer = render.NewViewRenderer()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.cfg.QueueSize))
	s.controller = NewController(
		s.store,
		persistence.New(s.kv, persistence.WithKey(s.cfg.StorageKey)),
		s.renderer,
		WithControllerLogger(s.logger.Named("controller")),
		WithRemovalDelay(s.cfg.RemovalDelay()),
		WithZoom(s.cfg.MapZoom),
		WithClock(s.now),
		WithExpiryScheduler(s.scheduleExpiry),
	)

	if err := s.controller.Bootstrap(ctx); err != nil {
		_ = s.kv.Close()
		return err
	}

	s.dispatcher = worker.NewDispatcher(s.queue, worker.HandlerFunc(s.Handle),
		worker.WithLogger(s.logger.Named("dispatcher")))
	s.dispatcher.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "workout service started",
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
		logger.Int("workouts", s.store.Count(ctx)),
	)
	return nil
}

// Stop drains queued intents, cancels pending effects and closes storage.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping workout service...")

	s.timersMu.Lock()
	for t := range s.timers {
		t.Stop()
	}
	clear(s.timers)
	s.timersMu.Unlock()

	_ = s.queue.Close()
	var errs []error
	select {
	case <-s.dispatcher.Done():
	case <-ctx.Done():
		errs = append(errs, s.dispatcher.Shutdown(ctx))
	}
	if err := s.kv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "workout service stopped")
	return errors.Join(errs...)
}

// SeenAndRecord reports whether an intent id was already accepted and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordIntentDuplicate()
	}
	return seen
}

// Unrecord forgets an intent id so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Dispatch enqueues an intent. It returns false on backpressure or after Stop.
func (s *Service) Dispatch(ctx context.Context, e model.Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false
	}
	if e.ID == "" {
		fresh := model.New(e.Kind)
		e.ID = fresh.ID
		if e.TS.IsZero() {
			e.TS = fresh.TS
		}
	}
	s.logger.Debug(ctx, "intent received", logger.String("intent_id", e.ID), logger.String("kind", string(e.Kind)))
	return s.queue.Enqueue(ctx, e)
}

// View returns the current rendered view.
func (s *Service) View() types.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.renderer == nil {
		return render.NewViewRenderer().Snapshot()
	}
	return s.renderer.Snapshot()
}

// Workouts returns the stored workouts. With an empty key the current view
// order is used; otherwise a sorted copy is returned and the view is left alone.
func (s *Service) Workouts(ctx context.Context, key string, ascending bool) ([]workout.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	if key == "" {
		return s.store.View(ctx), nil
	}
	k, err := repository.ParseSortKey(key)
	if err != nil {
		return nil, err
	}
	return repository.Sorted(s.store.All(ctx), k, ascending), nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":   s.started,
		"queueSize": s.cfg.QueueSize,
		"backend":   s.cfg.StorageBackend,
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(ctx)
		stats["workouts"] = s.store.Count(ctx)
		stats["dedupeSize"] = s.deduper.Size()
		if id, ok := s.controller.Editing(); ok {
			stats["editing"] = string(id)
		}
	}
	return stats
}

// Handle routes one intent to the controller. It runs on the dispatcher goroutine.
func (s *Service) Handle(ctx context.Context, e model.Event) error {
	c := s.controller
	var err error
	switch e.Kind {
	case model.KindMapClicked:
		err = c.OnMapClicked(ctx, e.Coords)
	case model.KindFormSubmitted:
		err = c.OnFormSubmitted(ctx, e.Input)
	case model.KindFormCancelled:
		c.OnFormCancelled()
	case model.KindFormTypeChanged:
		c.OnFormTypeChanged(e.Input.Kind)
	case model.KindEditRequested:
		err = c.OnEditRequested(ctx, e.WorkoutID)
	case model.KindEditChanged:
		err = c.OnEditChanged(e.Input)
	case model.KindEditSubmitted:
		err = c.OnEditSubmitted(ctx, e.Input)
	case model.KindEditCancelled:
		c.OnEditCancelled(ctx)
	case model.KindRemoveRequested:
		err = c.OnRemoveRequested(ctx, e.WorkoutID)
	case model.KindSortRequested:
		err = c.OnSortRequested(ctx, e.SortKey, e.Ascending)
	case model.KindEntrySelected:
		err = c.OnEntrySelected(ctx, e.WorkoutID)
	case model.KindListEntryExpired:
		c.OnListEntryExpired(e.WorkoutID)
	default:
		return fmt.Errorf("%w: %q", model.ErrUnknownKind, e.Kind)
	}

	// Validation failures are already shown to the user and missing ids are no-ops.
	switch {
	case errors.Is(err, workout.ErrValidation):
		s.logger.Debug(ctx, "intent rejected", logger.String("kind", string(e.Kind)), logger.Error(err))
		return nil
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Debug(ctx, "intent ignored", logger.String("kind", string(e.Kind)), logger.Error(err))
		return nil
	}
	return err
}

func (s *Service) scheduleExpiry(delay time.Duration, id workout.ID) {
	var t *time.Timer
	s.timersMu.Lock()
	defer s.timersMu.Unlock()
	t = time.AfterFunc(delay, func() {
		s.timersMu.Lock()
		delete(s.timers, t)
		s.timersMu.Unlock()

		e := model.New(model.KindListEntryExpired)
		e.WorkoutID = id
		if !s.queue.Enqueue(context.Background(), e) {
			s.logger.Warn(context.Background(), "dropped list entry expiry", logger.String("id", string(id)))
		}
	})
	s.timers[t] = struct{}{}
}

func openKV(ctx context.Context, cfg *config.Config) (persistence.KV, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case config.BackendMemory:
		return persistence.NewMemoryKV(), nil
	case config.BackendFile:
		return persistence.OpenFileKV(cfg.StoragePath)
	case config.BackendSQLite:
		return persistence.OpenSQLiteKV(ctx, cfg.StoragePath)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.StorageBackend)
	}
}
