package app

import (
	"time"

	"github.com/okian/mapty/internal/adapters/persistence"
	"github.com/okian/mapty/internal/domain/workout"
	"github.com/okian/mapty/pkg/logger"
)

// ControllerOption applies a configuration option to the Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the controller logger.
func WithControllerLogger(l logger.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRemovalDelay sets how long a removed list entry stays visible.
func WithRemovalDelay(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d >= 0 {
			c.removalDelay = d
		}
	}
}

// WithZoom sets the zoom used when panning to a workout.
func WithZoom(zoom int) ControllerOption {
	return func(c *Controller) {
		if zoom > 0 {
			c.zoom = zoom
		}
	}
}

// WithExpiryScheduler sets how deferred list-entry removals are scheduled.
func WithExpiryScheduler(s ExpiryScheduler) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.schedule = s
		}
	}
}

// WithClock sets the time source for creation times and ids.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDSource sets the id generator.
func WithIDSource(ids *workout.IDSource) ControllerOption {
	return func(c *Controller) {
		if ids != nil {
			c.ids = ids
		}
	}
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithKV makes the service use kv instead of opening the configured backend.
func WithKV(kv persistence.KV) Option {
	return func(s *Service) {
		if kv != nil {
			s.kv = kv
		}
	}
}

// WithServiceClock sets the clock handed to the controller.
func WithServiceClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
