// Package app holds the controller that turns intents into store mutations,
// re-renders and saves, plus the service that wires it to a dispatch queue.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/okian/mapty/internal/adapters/persistence"
	"github.com/okian/mapty/internal/adapters/repository"
	"github.com/okian/mapty/internal/domain/workout"
	"github.com/okian/mapty/pkg/logger"
	"github.com/okian/mapty/pkg/metrics"
)

const (
	defaultRemovalDelay = 200 * time.Millisecond
	defaultZoom         = 13
)

// Renderer draws the list, the markers and the form.
type Renderer interface {
	RenderListEntry(w workout.Workout)
	RenderMarker(w workout.Workout)
	ClearAllMarkers()
	ClearAllListEntries()
	RemoveListEntry(id workout.ID)
	ShowCreateForm(c workout.Coords)
	ShowEditForm(w workout.Workout)
	CloseForm()
	ShowTypeFields(k workout.Kind)
	ShowError(msg string)
	PanTo(c workout.Coords, zoom int)
}

// Persister loads and saves the whole collection.
type Persister interface {
	Load(ctx context.Context) ([]workout.Workout, error)
	Save(ctx context.Context, ws []workout.Workout) error
}

// ExpiryScheduler arranges for a list_entry_expired intent for id after delay.
type ExpiryScheduler func(delay time.Duration, id workout.ID)

type editState struct {
	id    workout.ID
	draft *workout.Input
}

// Controller owns the transient UI state. All methods except Editing must be
// called from a single goroutine; the dispatcher provides that.
type Controller struct {
	store    repository.Store
	persist  Persister
	renderer Renderer
	ids      *workout.IDSource

	logger       logger.Logger
	now          func() time.Time
	removalDelay time.Duration
	zoom         int
	schedule     ExpiryScheduler

	pending *workout.Coords
	edit    *editState
	// editing mirrors edit.id for readers outside the dispatcher.
	editing atomic.Pointer[workout.ID]
}

// NewController creates a controller.
func NewController(store repository.Store, p Persister, r Renderer, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:        store,
		persist:      p,
		renderer:     r,
		now:          time.Now,
		removalDelay: defaultRemovalDelay,
		zoom:         defaultZoom,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("controller")
	}
	if c.ids == nil {
		c.ids = workout.NewIDSource(c.now)
	}
	if c.schedule == nil {
		// Without a queue the effect is applied at once.
		c.schedule = func(_ time.Duration, id workout.ID) { c.renderer.RemoveListEntry(id) }
	}
	return c
}

// Bootstrap loads stored workouts and renders them once. Corrupt data is
// logged and replaced by an empty collection.
func (c *Controller) Bootstrap(ctx context.Context) error {
	ws, err := c.persist.Load(ctx)
	switch {
	case errors.Is(err, persistence.ErrCorrupt):
		c.logger.Error(ctx, "stored workouts are unreadable, starting empty", logger.Error(err))
		ws = nil
	case err != nil:
		return fmt.Errorf("load workouts: %w", err)
	}

	if err := c.store.Reset(ctx, ws); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	for _, w := range ws {
		c.ids.Observe(w.ID)
	}

	c.renderList(ctx)
	c.renderMarkers(ctx)
	c.logger.Info(ctx, "workouts loaded", logger.Int("count", len(ws)))
	return nil
}

// OnMapClicked opens the create form at coords. An open edit is resolved
// first, the same way a second edit request resolves it.
func (c *Controller) OnMapClicked(ctx context.Context, coords workout.Coords) error {
	var err error
	if c.edit != nil {
		err = c.resolveOpenEdit(ctx)
	}
	c.pending = &coords
	c.renderer.ShowCreateForm(coords)
	return err
}

// OnFormSubmitted creates a workout at the pending location.
func (c *Controller) OnFormSubmitted(ctx context.Context, in workout.Input) error {
	if c.pending == nil {
		return c.rejectInput("form_submitted", ErrNoPendingLocation)
	}
	in.Coords = *c.pending

	if err := workout.Validate(in); err != nil {
		return c.rejectInput("form_submitted", err)
	}
	w, err := workout.Build(c.ids.Next(), c.now(), in)
	if err != nil {
		return c.rejectInput("form_submitted", err)
	}
	if err := c.store.Add(ctx, w); err != nil {
		return fmt.Errorf("add workout: %w", err)
	}

	c.pending = nil
	c.renderer.CloseForm()
	c.renderList(ctx)
	c.renderMarkers(ctx)
	c.logger.Debug(ctx, "workout created", logger.String("id", string(w.ID)), logger.String("kind", string(w.Kind)))
	return c.save(ctx)
}

// OnFormCancelled closes the create form.
func (c *Controller) OnFormCancelled() {
	c.pending = nil
	c.renderer.CloseForm()
}

// OnFormTypeChanged switches the variant fields of the open form.
func (c *Controller) OnFormTypeChanged(k workout.Kind) {
	c.renderer.ShowTypeFields(k)
}

// OnRemoveRequested deletes a workout, saves, and re-renders every marker.
// The list entry disappears after the removal delay.
func (c *Controller) OnRemoveRequested(ctx context.Context, id workout.ID) error {
	if _, err := c.store.RemoveByID(ctx, id); err != nil {
		return err
	}
	if c.edit != nil && c.edit.id == id {
		c.setEdit(nil)
		c.renderer.CloseForm()
	}

	err := c.save(ctx)
	c.schedule(c.removalDelay, id)
	c.renderMarkers(ctx)
	return err
}

// OnEditRequested opens the edit form for id. An edit of another workout is
// resolved first: its recorded draft is committed when valid, otherwise the
// edit is reverted.
func (c *Controller) OnEditRequested(ctx context.Context, id workout.ID) error {
	w, ok := c.store.FindByID(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}

	if c.edit != nil {
		if c.edit.id == id {
			return nil
		}
		metrics.RecordEditConflict()
		c.logger.Warn(ctx, "edit requested while another edit is open",
			logger.String("open", string(c.edit.id)),
			logger.String("requested", string(id)),
			logger.Error(ErrConflict),
		)
		if err := c.resolveOpenEdit(ctx); err != nil {
			return err
		}
		// The commit may have replaced the record we are about to edit.
		if w, ok = c.store.FindByID(ctx, id); !ok {
			return fmt.Errorf("%w: %s", repository.ErrNotFound, id)
		}
	}

	c.pending = nil
	c.setEdit(&editState{id: id})
	c.renderer.ShowEditForm(w)
	return nil
}

func (c *Controller) resolveOpenEdit(ctx context.Context) error {
	open := c.edit
	c.setEdit(nil)

	if open.draft != nil {
		w, ok := c.store.FindByID(ctx, open.id)
		if ok {
			draft := *open.draft
			draft.Coords = w.Coords
			if workout.Validate(draft) == nil {
				if _, err := c.store.ReplaceByID(ctx, open.id, draft); err != nil {
					return fmt.Errorf("commit open edit: %w", err)
				}
				c.renderer.CloseForm()
				c.renderList(ctx)
				return c.save(ctx)
			}
		}
	}

	c.renderer.CloseForm()
	c.renderList(ctx)
	return nil
}

// OnEditChanged records the in-progress values of the edit form.
func (c *Controller) OnEditChanged(in workout.Input) error {
	if c.edit == nil {
		return ErrNoEditTarget
	}
	c.edit.draft = &in
	return nil
}

// OnEditSubmitted replaces the edited workout. Its id and creation time are
// kept. The list is re-rendered in the current view order; markers are not.
func (c *Controller) OnEditSubmitted(ctx context.Context, in workout.Input) error {
	if c.edit == nil {
		return c.rejectInput("edit_submitted", ErrNoEditTarget)
	}
	id := c.edit.id

	current, ok := c.store.FindByID(ctx, id)
	if !ok {
		c.setEdit(nil)
		c.renderer.CloseForm()
		return fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	in.Coords = current.Coords

	if err := workout.Validate(in); err != nil {
		return c.rejectInput("edit_submitted", err)
	}
	if _, err := c.store.ReplaceByID(ctx, id, in); err != nil {
		return fmt.Errorf("replace workout: %w", err)
	}

	c.setEdit(nil)
	c.renderer.CloseForm()
	err := c.save(ctx)
	c.renderList(ctx)
	return err
}

// OnEditCancelled closes the edit form and restores the list.
func (c *Controller) OnEditCancelled(ctx context.Context) {
	if c.edit == nil {
		return
	}
	c.setEdit(nil)
	c.renderer.CloseForm()
	c.renderList(ctx)
}

// OnSortRequested changes the list order. Nothing is saved.
func (c *Controller) OnSortRequested(ctx context.Context, key string, ascending bool) error {
	k, err := repository.ParseSortKey(key)
	if err != nil {
		return err
	}
	if _, err := c.store.SortBy(ctx, k, ascending); err != nil {
		return err
	}
	c.renderList(ctx)
	return nil
}

// OnEntrySelected pans the map to the workout.
func (c *Controller) OnEntrySelected(ctx context.Context, id workout.ID) error {
	w, ok := c.store.FindByID(ctx, id)
	if !ok {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	c.renderer.PanTo(w.Coords, c.zoom)
	return nil
}

// OnListEntryExpired applies a deferred list-entry removal.
func (c *Controller) OnListEntryExpired(id workout.ID) {
	c.renderer.RemoveListEntry(id)
}

// Editing returns the id being edited. It is safe to call from any goroutine.
func (c *Controller) Editing() (workout.ID, bool) {
	id := c.editing.Load()
	if id == nil {
		return "", false
	}
	return *id, true
}

func (c *Controller) setEdit(e *editState) {
	c.edit = e
	if e == nil {
		c.editing.Store(nil)
		return
	}
	id := e.id
	c.editing.Store(&id)
}

// PendingLocation returns the location of the open create form.
func (c *Controller) PendingLocation() (workout.Coords, bool) {
	if c.pending == nil {
		return workout.Coords{}, false
	}
	return *c.pending, true
}

func (c *Controller) rejectInput(intent string, err error) error {
	metrics.RecordValidationError(intent)
	c.renderer.ShowError(err.Error())
	return err
}

func (c *Controller) renderList(ctx context.Context) {
	c.renderer.ClearAllListEntries()
	for _, w := range c.store.View(ctx) {
		c.renderer.RenderListEntry(w)
	}
}

func (c *Controller) renderMarkers(ctx context.Context) {
	c.renderer.ClearAllMarkers()
	for _, w := range c.store.All(ctx) {
		c.renderer.RenderMarker(w)
	}
}

func (c *Controller) save(ctx context.Context) error {
	if err := c.persist.Save(ctx, c.store.All(ctx)); err != nil {
		c.logger.Error(ctx, "saving workouts failed", logger.Error(err))
		return fmt.Errorf("save workouts: %w", err)
	}
	return nil
}
