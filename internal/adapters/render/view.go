// Package render keeps a headless snapshot of what the user would see.
package render

import (
	"strconv"
	"sync"

	"github.com/okian/mapty/internal/domain/types"
	"github.com/okian/mapty/internal/domain/workout"
)

// ViewRenderer maintains a types.View. The dispatcher writes it and HTTP
// handlers read it, so every method takes the lock.
type ViewRenderer struct {
	mu   sync.RWMutex
	view types.View
}

// NewViewRenderer returns a renderer with an empty view and a hidden form.
func NewViewRenderer() *ViewRenderer {
	return &ViewRenderer{view: types.View{
		Entries: []types.ListEntry{},
		Markers: []types.Marker{},
		Form:    types.Form{Mode: types.FormHidden},
	}}
}

// Snapshot returns a copy of the current view.
func (r *ViewRenderer) Snapshot() types.View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view.Clone()
}

// RenderListEntry appends w to the list. An entry with the same id is
// replaced where it stands.
func (r *ViewRenderer) RenderListEntry(w workout.Workout) {
	entry := listEntry(w)

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.view.Entries {
		if r.view.Entries[i].ID == entry.ID {
			r.view.Entries[i] = entry
			return
		}
	}
	r.view.Entries = append(r.view.Entries, entry)
}

// RenderMarker places a marker for w, replacing any marker with the same id.
func (r *ViewRenderer) RenderMarker(w workout.Workout) {
	m := types.Marker{
		ID:    string(w.ID),
		Type:  string(w.Kind),
		Lat:   w.Coords.Lat,
		Lng:   w.Coords.Lng,
		Popup: workout.Describe(w),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.view.Markers {
		if r.view.Markers[i].ID == m.ID {
			r.view.Markers[i] = m
			return
		}
	}
	r.view.Markers = append(r.view.Markers, m)
}

// ClearAllMarkers removes every marker.
func (r *ViewRenderer) ClearAllMarkers() {
	r.mu.Lock()
	r.view.Markers = []types.Marker{}
	r.mu.Unlock()
}

// ClearAllListEntries removes every list entry.
func (r *ViewRenderer) ClearAllListEntries() {
	r.mu.Lock()
	r.view.Entries = []types.ListEntry{}
	r.mu.Unlock()
}

// RemoveListEntry drops a single list entry.
func (r *ViewRenderer) RemoveListEntry(id workout.ID) {
	r.mu.Lock()
	r.view.Entries = removeEntry(r.view.Entries, string(id))
	r.mu.Unlock()
}

// ShowCreateForm opens an empty form at coords. The form starts on running.
func (r *ViewRenderer) ShowCreateForm(c workout.Coords) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Error = ""
	r.view.Form = types.Form{
		Mode: types.FormCreate,
		Type: string(workout.KindRunning),
		Lat:  c.Lat,
		Lng:  c.Lng,
	}
}

// ShowEditForm opens the form prefilled with w.
func (r *ViewRenderer) ShowEditForm(w workout.Workout) {
	f := types.Form{
		Mode:      types.FormEdit,
		Type:      string(w.Kind),
		WorkoutID: string(w.ID),
		Lat:       w.Coords.Lat,
		Lng:       w.Coords.Lng,
		Distance:  ptr(w.DistanceKm),
		Duration:  ptr(w.DurationMin),
	}
	if w.Kind == workout.KindRunning {
		f.Cadence = ptr(w.CadenceSpm)
	} else {
		f.Elevation = ptr(w.ElevationGainM)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Error = ""
	r.view.Form = f
}

// CloseForm hides the form.
func (r *ViewRenderer) CloseForm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Error = ""
	r.view.Form = types.Form{Mode: types.FormHidden}
}

// ShowTypeFields switches the visible variant fields of an open form.
func (r *ViewRenderer) ShowTypeFields(k workout.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view.Form.Mode == types.FormHidden {
		return
	}
	r.view.Form.Type = string(k)
}

// ShowError displays a validation message.
func (r *ViewRenderer) ShowError(msg string) {
	r.mu.Lock()
	r.view.Error = msg
	r.mu.Unlock()
}

// PanTo moves the map center.
func (r *ViewRenderer) PanTo(c workout.Coords, zoom int) {
	r.mu.Lock()
	r.view.Center = &types.MapCenter{Lat: c.Lat, Lng: c.Lng, Zoom: zoom}
	r.mu.Unlock()
}

func listEntry(w workout.Workout) types.ListEntry {
	e := types.ListEntry{
		ID:    string(w.ID),
		Type:  string(w.Kind),
		Label: workout.Describe(w),
		Metrics: []types.Metric{
			{Label: "distance", Value: number(w.DistanceKm), Unit: "km"},
			{Label: "duration", Value: number(w.DurationMin), Unit: "min"},
		},
	}
	switch w.Kind {
	case workout.KindRunning:
		e.Metrics = append(e.Metrics,
			types.Metric{Label: "pace", Value: fixed1(w.Pace()), Unit: "min/km"},
			types.Metric{Label: "cadence", Value: number(w.CadenceSpm), Unit: "spm"},
		)
	case workout.KindCycling:
		e.Metrics = append(e.Metrics,
			types.Metric{Label: "speed", Value: fixed1(w.Speed()), Unit: "km/h"},
			types.Metric{Label: "elevation", Value: number(w.ElevationGainM), Unit: "m"},
		)
	}
	return e
}

func removeEntry(entries []types.ListEntry, id string) []types.ListEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// number prints raw inputs the way they were typed: no trailing zeros.
func number(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func fixed1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func ptr(v float64) *float64 { return &v }
