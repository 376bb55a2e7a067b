package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/mapty/internal/adapters/persistence"
	"github.com/okian/mapty/internal/app"
	"github.com/okian/mapty/internal/config"
	"github.com/okian/mapty/internal/domain/model"
	"github.com/okian/mapty/internal/domain/types"
	"github.com/okian/mapty/internal/domain/workout"
	"github.com/okian/mapty/pkg/logger"
)

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func intent(k model.Kind) model.Event {
	return model.New(k)
}

func memoryConfig() *config.Config {
	cfg := config.New()
	cfg.StorageBackend = config.BackendMemory
	cfg.RemovalDelayMS = 0
	return cfg
}

func TestService_Lifecycle(t *testing.T) {
	convey.Convey("Given a started service on a memory backend", t, func() {
		ctx := context.Background()
		kv := persistence.NewMemoryKV()
		s := app.New(memoryConfig(), app.WithKV(kv), app.WithLogger(logger.Nop()))
		convey.So(s.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()

		convey.Convey("When a map click and a form submission are dispatched", func() {
			click := intent(model.KindMapClicked)
			click.Coords = workout.Coords{Lat: 10, Lng: 20}
			submit := intent(model.KindFormSubmitted)
			submit.Input = workout.Input{Kind: workout.KindRunning, DistanceKm: 5, DurationMin: 25, Value: 150}

			convey.So(s.Dispatch(ctx, click), convey.ShouldBeTrue)
			convey.So(s.Dispatch(ctx, submit), convey.ShouldBeTrue)

			convey.Convey("Then the workout appears in the view and in storage", func() {
				convey.So(eventually(func() bool { return len(s.View().Entries) == 1 }), convey.ShouldBeTrue)
				ws, err := s.Workouts(ctx, "", true)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(ws), convey.ShouldEqual, 1)
				convey.So(ws[0].Pace(), convey.ShouldEqual, 5)

				blob, ok, err := kv.Get(ctx, persistence.DefaultKey)
				convey.So(err, convey.ShouldBeNil)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(string(blob), convey.ShouldContainSubstring, `"version":1`)
			})

			convey.Convey("And the workout is removed", func() {
				convey.So(eventually(func() bool { return len(s.View().Entries) == 1 }), convey.ShouldBeTrue)
				ws, _ := s.Workouts(ctx, "", true)
				remove := intent(model.KindRemoveRequested)
				remove.WorkoutID = ws[0].ID
				convey.So(s.Dispatch(ctx, remove), convey.ShouldBeTrue)

				convey.Convey("Then the deferred expiry removes the list entry", func() {
					convey.So(eventually(func() bool {
						v := s.View()
						return len(v.Entries) == 0 && len(v.Markers) == 0
					}), convey.ShouldBeTrue)
				})
			})
		})

		convey.Convey("When an invalid submission is dispatched", func() {
			submit := intent(model.KindFormSubmitted)
			submit.Input = workout.Input{Kind: workout.KindRunning, DistanceKm: 5, DurationMin: 25, Value: 150}
			convey.So(s.Dispatch(ctx, submit), convey.ShouldBeTrue)

			convey.Convey("Then the error is shown in the view", func() {
				convey.So(eventually(func() bool { return s.View().Error != "" }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When intent ids are recorded", func() {
			convey.So(s.SeenAndRecord(ctx, "intent-1"), convey.ShouldBeFalse)

			convey.Convey("Then the second sighting is a duplicate until unrecorded", func() {
				convey.So(s.SeenAndRecord(ctx, "intent-1"), convey.ShouldBeTrue)
				s.Unrecord(ctx, "intent-1")
				convey.So(s.SeenAndRecord(ctx, "intent-1"), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When a sorted read uses an unknown key", func() {
			_, err := s.Workouts(ctx, "pace", true)

			convey.Convey("Then it is rejected", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When stats are requested", func() {
			stats := s.Stats(ctx)

			convey.Convey("Then they describe the running service", func() {
				convey.So(stats["started"], convey.ShouldEqual, true)
				convey.So(stats["backend"], convey.ShouldEqual, config.BackendMemory)
			})
		})

		convey.Convey("When the service is stopped", func() {
			convey.So(s.Stop(ctx), convey.ShouldBeNil)

			convey.Convey("Then dispatching is refused and stopping again is harmless", func() {
				convey.So(s.Dispatch(ctx, intent(model.KindFormCancelled)), convey.ShouldBeFalse)
				convey.So(s.Stop(ctx), convey.ShouldBeNil)
				_, err := s.Workouts(ctx, "", true)
				convey.So(errors.Is(err, app.ErrNotStarted), convey.ShouldBeTrue)
			})
		})
	})
}

func TestService_Handle(t *testing.T) {
	convey.Convey("Given a started service", t, func() {
		ctx := context.Background()
		s := app.New(memoryConfig(), app.WithKV(persistence.NewMemoryKV()), app.WithLogger(logger.Nop()))
		convey.So(s.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()

		convey.Convey("When intents for unknown workouts are handled", func() {
			remove := intent(model.KindRemoveRequested)
			remove.WorkoutID = "404"

			convey.Convey("Then they are ignored without error", func() {
				convey.So(s.Handle(ctx, remove), convey.ShouldBeNil)
			})
		})

		convey.Convey("When an unknown kind is handled", func() {
			err := s.Handle(ctx, model.Event{Kind: "double_click"})

			convey.Convey("Then ErrUnknownKind is returned", func() {
				convey.So(errors.Is(err, model.ErrUnknownKind), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the form type is changed with the form open", func() {
			click := intent(model.KindMapClicked)
			convey.So(s.Handle(ctx, click), convey.ShouldBeNil)
			toggle := intent(model.KindFormTypeChanged)
			toggle.Input.Kind = workout.KindCycling
			convey.So(s.Handle(ctx, toggle), convey.ShouldBeNil)

			convey.Convey("Then the view shows cycling fields", func() {
				convey.So(s.View().Form.Mode, convey.ShouldEqual, types.FormCreate)
				convey.So(s.View().Form.Type, convey.ShouldEqual, "cycling")
			})
		})
	})
}

func TestService_Persistence(t *testing.T) {
	convey.Convey("Given a service on a sqlite file", t, func() {
		ctx := context.Background()
		cfg := memoryConfig()
		cfg.StorageBackend = config.BackendSQLite
		cfg.StoragePath = filepath.Join(t.TempDir(), "mapty.db")

		s := app.New(cfg, app.WithLogger(logger.Nop()))
		convey.So(s.Start(ctx), convey.ShouldBeNil)
		click := intent(model.KindMapClicked)
		click.Coords = workout.Coords{Lat: 1, Lng: 2}
		submit := intent(model.KindFormSubmitted)
		submit.Input = workout.Input{Kind: workout.KindCycling, DistanceKm: 20, DurationMin: 60, Value: -3}
		convey.So(s.Dispatch(ctx, click), convey.ShouldBeTrue)
		convey.So(s.Dispatch(ctx, submit), convey.ShouldBeTrue)
		convey.So(s.Stop(ctx), convey.ShouldBeNil)

		convey.Convey("When a new service opens the same file", func() {
			again := app.New(cfg, app.WithLogger(logger.Nop()))
			convey.So(again.Start(ctx), convey.ShouldBeNil)
			defer func() { _ = again.Stop(ctx) }()

			convey.Convey("Then the workout is restored and rendered", func() {
				ws, err := again.Workouts(ctx, "", true)
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(ws), convey.ShouldEqual, 1)
				convey.So(ws[0].ElevationGainM, convey.ShouldEqual, -3)
				convey.So(len(again.View().Markers), convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given an unknown storage backend", t, func() {
		cfg := memoryConfig()
		cfg.StorageBackend = "redis"
		s := app.New(cfg, app.WithLogger(logger.Nop()))

		convey.Convey("Then Start fails with ErrInvalidConfig", func() {
			err := s.Start(context.Background())
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestService_StatsDuringEdits(t *testing.T) {
	convey.Convey("Given a service with one stored workout", t, func() {
		ctx := context.Background()
		s := app.New(memoryConfig(), app.WithKV(persistence.NewMemoryKV()), app.WithLogger(logger.Nop()))
		convey.So(s.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = s.Stop(ctx) }()

		click := intent(model.KindMapClicked)
		click.Coords = workout.Coords{Lat: 1, Lng: 2}
		submit := intent(model.KindFormSubmitted)
		submit.Input = workout.Input{Kind: workout.KindRunning, DistanceKm: 5, DurationMin: 25, Value: 150}
		convey.So(s.Dispatch(ctx, click), convey.ShouldBeTrue)
		convey.So(s.Dispatch(ctx, submit), convey.ShouldBeTrue)
		convey.So(eventually(func() bool { return len(s.View().Entries) == 1 }), convey.ShouldBeTrue)
		id := workout.ID(s.View().Entries[0].ID)

		convey.Convey("When stats are read while edits open and close", func() {
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 200 {
					_ = s.Stats(ctx)
				}
			}()
			for range 50 {
				open := intent(model.KindEditRequested)
				open.WorkoutID = id
				_ = s.Dispatch(ctx, open)
				_ = s.Dispatch(ctx, intent(model.KindEditCancelled))
			}
			wg.Wait()

			convey.Convey("Then the edits settle and stats report no open edit", func() {
				convey.So(eventually(func() bool {
					_, editing := s.Stats(ctx)["editing"]
					return !editing && s.Stats(ctx)["queueLength"] == 0
				}), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an edit is left open", func() {
			open := intent(model.KindEditRequested)
			open.WorkoutID = id
			convey.So(s.Dispatch(ctx, open), convey.ShouldBeTrue)

			convey.Convey("Then stats report the workout being edited", func() {
				convey.So(eventually(func() bool { return s.Stats(ctx)["editing"] == string(id) }), convey.ShouldBeTrue)
			})
		})
	})
}
