package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mapty/internal/adapters/repository"
	"github.com/okian/mapty/internal/domain/model"
	"github.com/okian/mapty/internal/domain/workout"
)

// IntentDependencies defines what the intents handler needs.
type IntentDependencies interface {
	SeenAndRecord(ctx context.Context, id string) bool
	Unrecord(ctx context.Context, id string)
	// Dispatch enqueues an intent. Returns false on backpressure.
	Dispatch(ctx context.Context, e model.Event) bool
}

// intentRequest is the body of POST /intents. Only the fields that the
// intent type needs are read.
type intentRequest struct {
	IntentID    string   `json:"intent_id"`
	Type        string   `json:"type"`
	TS          string   `json:"ts"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	WorkoutType string   `json:"workout_type"`
	Distance    *float64 `json:"distance"`
	Duration    *float64 `json:"duration"`
	Cadence     *float64 `json:"cadence"`
	Elevation   *float64 `json:"elevation"`
	WorkoutID   string   `json:"workout_id"`
	Sort        string   `json:"sort"`
	Dir         string   `json:"dir"`
}

// toEvent validates the request shape. Field values such as a negative
// distance are left to the controller, which reports them in the view.
func (req intentRequest) toEvent() (model.Event, error) {
	kind, err := model.ParseKind(req.Type)
	if err != nil {
		return model.Event{}, err
	}

	e := model.Event{ID: strings.TrimSpace(req.IntentID), Kind: kind, TS: time.Now()}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if req.TS != "" {
		ts, err := time.Parse(time.RFC3339, req.TS)
		if err != nil {
			return model.Event{}, errors.New("invalid ts; must be RFC3339")
		}
		e.TS = ts
	}

	switch kind {
	case model.KindMapClicked:
		if req.Lat == nil || req.Lng == nil {
			return model.Event{}, errors.New("missing lat or lng")
		}
		e.Coords = workout.Coords{Lat: *req.Lat, Lng: *req.Lng}
	case model.KindFormSubmitted, model.KindEditChanged, model.KindEditSubmitted:
		in, err := req.input()
		if err != nil {
			return model.Event{}, err
		}
		e.Input = in
	case model.KindFormTypeChanged:
		k, err := workout.ParseKind(req.WorkoutType)
		if err != nil {
			return model.Event{}, errors.New("missing or unknown workout_type")
		}
		e.Input.Kind = k
	case model.KindEditRequested, model.KindRemoveRequested, model.KindEntrySelected:
		if strings.TrimSpace(req.WorkoutID) == "" {
			return model.Event{}, errors.New("missing workout_id")
		}
		e.WorkoutID = workout.ID(req.WorkoutID)
	case model.KindSortRequested:
		if _, err := repository.ParseSortKey(req.Sort); err != nil {
			return model.Event{}, err
		}
		asc, err := parseDir(req.Dir)
		if err != nil {
			return model.Event{}, err
		}
		e.SortKey = req.Sort
		e.Ascending = asc
	case model.KindListEntryExpired:
		return model.Event{}, fmt.Errorf("%s is scheduled internally", kind)
	}
	return e, nil
}

func (req intentRequest) input() (workout.Input, error) {
	k, err := workout.ParseKind(req.WorkoutType)
	if err != nil {
		return workout.Input{}, errors.New("missing or unknown workout_type")
	}
	in := workout.Input{
		Kind:        k,
		DistanceKm:  orNaN(req.Distance),
		DurationMin: orNaN(req.Duration),
	}
	if k == workout.KindRunning {
		in.Value = orNaN(req.Cadence)
	} else {
		in.Value = orNaN(req.Elevation)
	}
	return in, nil
}

// orNaN maps a missing number to NaN so it fails validation like an empty form field.
func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func parseDir(dir string) (bool, error) {
	switch strings.ToLower(dir) {
	case "", "asc":
		return true, nil
	case "desc":
		return false, nil
	default:
		return false, fmt.Errorf("invalid dir %q; must be asc or desc", dir)
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	IntentID  string `json:"intent_id"`
	Duplicate bool   `json:"duplicate"`
}

// IntentsHandler handles intent submissions.
type IntentsHandler struct {
	deps IntentDependencies
}

// NewIntentsHandler creates a new intents handler.
func NewIntentsHandler(deps IntentDependencies) *IntentsHandler {
	return &IntentsHandler{deps: deps}
}

// HandlePostIntent handles POST /intents requests.
func (h *IntentsHandler) HandlePostIntent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_intent"

	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	e, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	if h.deps.SeenAndRecord(r.Context(), e.ID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", IntentID: e.ID, Duplicate: true})
		return
	}
	if ok := h.deps.Dispatch(r.Context(), e); !ok {
		h.deps.Unrecord(r.Context(), e.ID)
		writeError(w, http.StatusTooManyRequests, "backpressure", newKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", IntentID: e.ID})
}
