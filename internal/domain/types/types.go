// Package types contains the view DTOs shared by the renderer and the HTTP surface.
package types

// Metric is one formatted figure shown on a list entry.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// ListEntry is a rendered workout in the sidebar list.
type ListEntry struct {
	ID      string   `json:"id"`
	Type    string   `json:"type"`
	Label   string   `json:"label"`
	Metrics []Metric `json:"metrics"`
}

// Marker is a rendered map marker with its popup text.
type Marker struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Popup string  `json:"popup"`
}

// Form modes.
const (
	FormHidden = "hidden"
	FormCreate = "create"
	FormEdit   = "edit"
)

// Form describes the workout form currently shown.
type Form struct {
	Mode      string   `json:"mode"`
	Type      string   `json:"type,omitempty"`
	WorkoutID string   `json:"workout_id,omitempty"`
	Lat       float64  `json:"lat,omitempty"`
	Lng       float64  `json:"lng,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
	Duration  *float64 `json:"duration,omitempty"`
	Cadence   *float64 `json:"cadence,omitempty"`
	Elevation *float64 `json:"elevation,omitempty"`
}

// MapCenter is where the map is panned to.
type MapCenter struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

// View is a full snapshot of what the user sees.
type View struct {
	Entries []ListEntry `json:"entries"`
	Markers []Marker    `json:"markers"`
	Form    Form        `json:"form"`
	Center  *MapCenter  `json:"center,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Clone returns a deep copy of v.
func (v View) Clone() View {
	out := v
	out.Entries = make([]ListEntry, len(v.Entries))
	for i, e := range v.Entries {
		e.Metrics = append([]Metric(nil), e.Metrics...)
		out.Entries[i] = e
	}
	out.Markers = append([]Marker{}, v.Markers...)
	if v.Center != nil {
		c := *v.Center
		out.Center = &c
	}
	out.Form = v.Form.clone()
	return out
}

func (f Form) clone() Form {
	cp := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		v := *p
		return &v
	}
	f.Distance = cp(f.Distance)
	f.Duration = cp(f.Duration)
	f.Cadence = cp(f.Cadence)
	f.Elevation = cp(f.Elevation)
	return f
}
