package persistence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/mapty/internal/domain/workout"
)

// formatVersion is written by Save. Version 0 is the legacy bare array.
const formatVersion = 1

type envelope struct {
	Version  int             `json:"version"`
	Workouts []storedWorkout `json:"workouts"`
}

// storedWorkout is the on-disk record shape shared with the legacy format.
// Pace and speed are written for readers of the blob and ignored on load.
type storedWorkout struct {
	Type          string    `json:"type"`
	ID            flexID    `json:"id"`
	Date          string    `json:"date"`
	Coords        []float64 `json:"coords"`
	Distance      *float64  `json:"distance"`
	Duration      *float64  `json:"duration"`
	Cadence       *float64  `json:"cadence,omitempty"`
	Pace          *float64  `json:"pace,omitempty"`
	ElevationGain *float64  `json:"elevationGain,omitempty"`
	Speed         *float64  `json:"speed,omitempty"`
}

// flexID accepts ids written as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

func encode(ws []workout.Workout) ([]byte, error) {
	env := envelope{Version: formatVersion, Workouts: make([]storedWorkout, 0, len(ws))}
	for _, w := range ws {
		env.Workouts = append(env.Workouts, toStored(w))
	}
	return json.Marshal(env)
}

func toStored(w workout.Workout) storedWorkout {
	s := storedWorkout{
		Type:     string(w.Kind),
		ID:       flexID(w.ID),
		Date:     w.CreatedAt.Format(time.RFC3339Nano),
		Coords:   []float64{w.Coords.Lat, w.Coords.Lng},
		Distance: ptr(w.DistanceKm),
		Duration: ptr(w.DurationMin),
	}
	switch w.Kind {
	case workout.KindRunning:
		s.Cadence = ptr(w.CadenceSpm)
		s.Pace = ptr(w.Pace())
	case workout.KindCycling:
		s.ElevationGain = ptr(w.ElevationGainM)
		s.Speed = ptr(w.Speed())
	}
	return s
}

func decode(blob []byte) ([]workout.Workout, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var records []storedWorkout
	switch trimmed[0] {
	case '[':
		if err := strictUnmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
	case '{':
		var env envelope
		if err := strictUnmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if env.Version != formatVersion {
			return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorrupt, env.Version)
		}
		records = env.Workouts
	default:
		return nil, fmt.Errorf("%w: expected a JSON array or object", ErrCorrupt)
	}

	out := make([]workout.Workout, 0, len(records))
	seen := make(map[workout.ID]struct{}, len(records))
	for i, r := range records {
		w, err := fromStored(r)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrCorrupt, i, err)
		}
		if _, dup := seen[w.ID]; dup {
			return nil, fmt.Errorf("%w: record %d: duplicate id %s", ErrCorrupt, i, w.ID)
		}
		seen[w.ID] = struct{}{}
		out = append(out, w)
	}
	return out, nil
}

func fromStored(r storedWorkout) (workout.Workout, error) {
	if r.ID == "" {
		return workout.Workout{}, fmt.Errorf("missing id")
	}
	kind, err := workout.ParseKind(r.Type)
	if err != nil {
		return workout.Workout{}, err
	}
	created, err := time.Parse(time.RFC3339, r.Date)
	if err != nil {
		return workout.Workout{}, fmt.Errorf("date %q: %w", r.Date, err)
	}
	if len(r.Coords) != 2 {
		return workout.Workout{}, fmt.Errorf("coords must hold exactly two numbers, got %d", len(r.Coords))
	}
	if r.Distance == nil || r.Duration == nil {
		return workout.Workout{}, fmt.Errorf("missing distance or duration")
	}

	in := workout.Input{
		Kind:        kind,
		Coords:      workout.Coords{Lat: r.Coords[0], Lng: r.Coords[1]},
		DistanceKm:  *r.Distance,
		DurationMin: *r.Duration,
	}
	switch kind {
	case workout.KindRunning:
		if r.Cadence == nil {
			return workout.Workout{}, fmt.Errorf("running workout without cadence")
		}
		in.Value = *r.Cadence
	case workout.KindCycling:
		if r.ElevationGain == nil {
			return workout.Workout{}, fmt.Errorf("cycling workout without elevationGain")
		}
		in.Value = *r.ElevationGain
	}
	return workout.Build(workout.ID(r.ID), created, in)
}

// strictUnmarshal rejects trailing data after the first JSON value.
func strictUnmarshal(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after offset %s", strconv.FormatInt(dec.InputOffset(), 10))
	}
	return nil
}

func ptr(v float64) *float64 { return &v }
