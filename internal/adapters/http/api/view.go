package api

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/mapty/internal/domain/types"
	"github.com/okian/mapty/internal/domain/workout"
)

// ReadDependencies exposes the rendered view and the stored workouts.
type ReadDependencies interface {
	View() types.View
	Workouts(ctx context.Context, key string, ascending bool) ([]workout.Workout, error)
}

// workoutResponse is the JSON shape of one workout in GET /workouts.
type workoutResponse struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Distance    float64  `json:"distance"`
	Duration    float64  `json:"duration"`
	Cadence     *float64 `json:"cadence,omitempty"`
	Pace        *float64 `json:"pace,omitempty"`
	Elevation   *float64 `json:"elevation,omitempty"`
	Speed       *float64 `json:"speed,omitempty"`
}

func toWorkoutResponse(w workout.Workout) workoutResponse {
	out := workoutResponse{
		ID:          string(w.ID),
		Type:        string(w.Kind),
		Description: workout.Describe(w),
		Date:        w.CreatedAt.Format(time.RFC3339),
		Lat:         w.Coords.Lat,
		Lng:         w.Coords.Lng,
		Distance:    w.DistanceKm,
		Duration:    w.DurationMin,
	}
	if w.Kind == workout.KindRunning {
		cad, pace := w.CadenceSpm, w.Pace()
		out.Cadence, out.Pace = &cad, &pace
	} else {
		elev, speed := w.ElevationGainM, w.Speed()
		out.Elevation, out.Speed = &elev, &speed
	}
	return out
}

// ViewHandler serves read-only views.
type ViewHandler struct {
	deps ReadDependencies
}

// NewViewHandler creates a new view handler.
func NewViewHandler(deps ReadDependencies) *ViewHandler {
	return &ViewHandler{deps: deps}
}

// HandleGetView handles GET /view requests.
func (h *ViewHandler) HandleGetView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.View())
}

// HandleGetWorkouts handles GET /workouts?sort=&dir= requests.
func (h *ViewHandler) HandleGetWorkouts(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_workouts"

	q := r.URL.Query()
	asc, err := parseDir(q.Get("dir"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	ws, err := h.deps.Workouts(r.Context(), q.Get("sort"), asc)
	if err != nil {
		if isBadSort(err) {
			writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
		return
	}

	out := make([]workoutResponse, 0, len(ws))
	for _, wk := range ws {
		out = append(out, toWorkoutResponse(wk))
	}
	writeJSON(w, http.StatusOK, out)
}
