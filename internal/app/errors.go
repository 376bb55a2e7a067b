package app

import (
	"errors"
	"fmt"

	"github.com/okian/mapty/internal/domain/workout"
)

// Sentinel kinds for controller errors.
var (
	// ErrNoPendingLocation means a form was submitted before a map click.
	ErrNoPendingLocation = fmt.Errorf("%w: no location selected", workout.ErrValidation)
	// ErrNoEditTarget means an edit intent arrived while nothing is being edited.
	ErrNoEditTarget = fmt.Errorf("%w: no workout is being edited", workout.ErrValidation)
	// ErrConflict means an edit was requested while another edit was open.
	ErrConflict = errors.New("edit already in progress")
	// ErrNotStarted is returned by service calls made before Start.
	ErrNotStarted = errors.New("service not started")
)
