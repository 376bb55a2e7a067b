// Package model contains the intents passed from event sources to the controller.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mapty/internal/domain/workout"
)

// Kind names a user or timer intent.
type Kind string

// Intent kinds.
const (
	KindMapClicked       Kind = "map_clicked"
	KindFormSubmitted    Kind = "form_submitted"
	KindFormCancelled    Kind = "form_cancelled"
	KindFormTypeChanged  Kind = "form_type_changed"
	KindEditRequested    Kind = "edit_requested"
	KindEditChanged      Kind = "edit_changed"
	KindEditSubmitted    Kind = "edit_submitted"
	KindEditCancelled    Kind = "edit_cancelled"
	KindRemoveRequested  Kind = "remove_requested"
	KindSortRequested    Kind = "sort_requested"
	KindEntrySelected    Kind = "entry_selected"
	KindListEntryExpired Kind = "list_entry_expired"
)

var kinds = map[Kind]struct{}{
	KindMapClicked: {}, KindFormSubmitted: {}, KindFormCancelled: {}, KindFormTypeChanged: {},
	KindEditRequested: {}, KindEditChanged: {}, KindEditSubmitted: {}, KindEditCancelled: {},
	KindRemoveRequested: {}, KindSortRequested: {}, KindEntrySelected: {}, KindListEntryExpired: {},
}

// ParseKind validates s as an intent kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Event is one intent. Only the payload fields relevant to Kind are set.
type Event struct {
	ID   string // unique id for idempotency
	Kind Kind

	Coords    workout.Coords // map_clicked, entry_selected
	Input     workout.Input  // form_submitted, edit_changed, edit_submitted; Input.Kind for form_type_changed
	WorkoutID workout.ID     // edit_requested, remove_requested, entry_selected, list_entry_expired
	SortKey   string         // sort_requested
	Ascending bool           // sort_requested

	TS time.Time
}

// New returns an event of kind k with a fresh id and the current time.
func New(k Kind) Event {
	return Event{ID: uuid.NewString(), Kind: k, TS: time.Now()}
}
