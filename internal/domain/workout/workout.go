// Package workout defines the workout record variants and their derived metrics.
package workout

import (
	"fmt"
	"math"
	"time"
)

// Kind discriminates the workout variants.
type Kind string

// Known workout kinds.
const (
	KindRunning Kind = "running"
	KindCycling Kind = "cycling"
)

// minutesPerHour is used by the cycling speed rule.
const minutesPerHour = 60

// ParseKind returns the Kind named by s.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindRunning, KindCycling:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown workout type %q", ErrValidation, s)
	}
}

// Title returns the kind with its first letter upper-cased.
func (k Kind) Title() string {
	if k == "" {
		return ""
	}
	b := []byte(k)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// Coords is an immutable latitude/longitude pair.
type Coords struct {
	Lat float64
	Lng float64
}

// Workout is a single logged activity. The variant-specific field that does
// not apply to Kind is always zero.
type Workout struct {
	ID          ID
	CreatedAt   time.Time
	Kind        Kind
	Coords      Coords
	DistanceKm  float64
	DurationMin float64

	// CadenceSpm is set for running workouts.
	CadenceSpm float64
	// ElevationGainM is set for cycling workouts and may be negative.
	ElevationGainM float64
}

// Input carries every user-supplied field of a workout except its identity.
// Value is the cadence for running and the elevation gain for cycling.
type Input struct {
	Kind        Kind
	Coords      Coords
	DistanceKm  float64
	DurationMin float64
	Value       float64
}

// Pace returns minutes per kilometre for running workouts.
func (w Workout) Pace() float64 {
	if w.Kind != KindRunning {
		return 0
	}
	return w.DurationMin / w.DistanceKm
}

// Speed returns the cycling speed. The rule is duration/60 and deliberately
// ignores distance.
func (w Workout) Speed() float64 {
	if w.Kind != KindCycling {
		return 0
	}
	return w.DurationMin / minutesPerHour
}

// Value returns the variant-specific field.
func (w Workout) Value() float64 {
	if w.Kind == KindRunning {
		return w.CadenceSpm
	}
	return w.ElevationGainM
}

// Input returns the user-editable fields of w.
func (w Workout) Input() Input {
	return Input{
		Kind:        w.Kind,
		Coords:      w.Coords,
		DistanceKm:  w.DistanceKm,
		DurationMin: w.DurationMin,
		Value:       w.Value(),
	}
}

// NewRunning builds a running workout.
func NewRunning(id ID, createdAt time.Time, coords Coords, distanceKm, durationMin, cadenceSpm float64) (Workout, error) {
	if err := validateBase(coords, distanceKm, durationMin); err != nil {
		return Workout{}, err
	}
	if err := positive("cadence", cadenceSpm); err != nil {
		return Workout{}, err
	}
	return Workout{
		ID:          id,
		CreatedAt:   createdAt,
		Kind:        KindRunning,
		Coords:      coords,
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
		CadenceSpm:  cadenceSpm,
	}, nil
}

// NewCycling builds a cycling workout. Elevation gain only has to be finite.
func NewCycling(id ID, createdAt time.Time, coords Coords, distanceKm, durationMin, elevationGainM float64) (Workout, error) {
	if err := validateBase(coords, distanceKm, durationMin); err != nil {
		return Workout{}, err
	}
	if err := finite("elevation gain", elevationGainM); err != nil {
		return Workout{}, err
	}
	return Workout{
		ID:             id,
		CreatedAt:      createdAt,
		Kind:           KindCycling,
		Coords:         coords,
		DistanceKm:     distanceKm,
		DurationMin:    durationMin,
		ElevationGainM: elevationGainM,
	}, nil
}

// Build constructs the variant selected by in.Kind.
func Build(id ID, createdAt time.Time, in Input) (Workout, error) {
	switch in.Kind {
	case KindRunning:
		return NewRunning(id, createdAt, in.Coords, in.DistanceKm, in.DurationMin, in.Value)
	case KindCycling:
		return NewCycling(id, createdAt, in.Coords, in.DistanceKm, in.DurationMin, in.Value)
	default:
		return Workout{}, fmt.Errorf("%w: unknown workout type %q", ErrValidation, in.Kind)
	}
}

// Validate reports whether in would be accepted by Build.
func Validate(in Input) error {
	_, err := Build("", time.Time{}, in)
	return err
}

func validateBase(c Coords, distanceKm, durationMin float64) error {
	if err := validateCoords(c); err != nil {
		return err
	}
	if err := positive("distance", distanceKm); err != nil {
		return err
	}
	return positive("duration", durationMin)
}

func validateCoords(c Coords) error {
	if err := finite("latitude", c.Lat); err != nil {
		return err
	}
	if err := finite("longitude", c.Lng); err != nil {
		return err
	}
	if math.Abs(c.Lat) > 90 || math.Abs(c.Lng) > 180 {
		return fmt.Errorf("%w: coordinates (%g, %g) out of range", ErrValidation, c.Lat, c.Lng)
	}
	return nil
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrValidation, field)
	}
	return nil
}

func positive(field string, v float64) error {
	if err := finite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrValidation, field)
	}
	return nil
}
