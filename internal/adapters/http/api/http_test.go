package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/mapty/internal/adapters/http/api"
	"github.com/okian/mapty/internal/adapters/repository"
	"github.com/okian/mapty/internal/domain/model"
	"github.com/okian/mapty/internal/domain/types"
	"github.com/okian/mapty/internal/domain/workout"
)

type mockDeps struct {
	seen       map[string]bool
	accept     bool
	dispatched []model.Event
	view       types.View
	workouts   []workout.Workout
	readErr    error
	lastSort   string
	lastAsc    bool
}

func newMockDeps() *mockDeps {
	return &mockDeps{seen: map[string]bool{}, accept: true}
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) { delete(m.seen, id) }

func (m *mockDeps) Dispatch(_ context.Context, e model.Event) bool {
	if !m.accept {
		return false
	}
	m.dispatched = append(m.dispatched, e)
	return true
}

func (m *mockDeps) View() types.View { return m.view }

func (m *mockDeps) Workouts(_ context.Context, key string, asc bool) ([]workout.Workout, error) {
	m.lastSort, m.lastAsc = key, asc
	if m.readErr != nil {
		return nil, m.readErr
	}
	if _, err := repository.ParseSortKey(key); err != nil {
		return nil, err
	}
	return m.workouts, nil
}

func (m *mockDeps) Stats(context.Context) map[string]any {
	return map[string]any{"started": true, "workouts": len(m.workouts)}
}

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/intents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Routes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		srv := api.NewServer(deps)

		Convey("When GET /healthz is requested", func() {
			rec := get(srv, "/healthz")

			Convey("Then Prometheus metrics are served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "mapty_")
			})
		})

		Convey("When GET /stats is requested", func() {
			rec := get(srv, "/stats")

			Convey("Then the stats are returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, `"started":true`)
				So(rec.Header().Get("Cache-Control"), ShouldEqual, "no-store")
			})
		})

		Convey("When an unknown route is requested", func() {
			rec := get(srv, "/routes/unknown")

			Convey("Then 404 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When GET is used on /intents", func() {
			rec := get(srv, "/intents")

			Convey("Then the method is not allowed", func() {
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestIntentsHandler(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := newMockDeps()
		srv := api.NewServer(deps)

		Convey("When a map click is posted", func() {
			rec := post(srv, `{"intent_id":"i-1","type":"map_clicked","lat":10,"lng":20}`)

			Convey("Then it is accepted and dispatched", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(len(deps.dispatched), ShouldEqual, 1)
				So(deps.dispatched[0].Kind, ShouldEqual, model.KindMapClicked)
				So(deps.dispatched[0].Coords, ShouldResemble, workout.Coords{Lat: 10, Lng: 20})
			})

			Convey("And the same intent is posted again", func() {
				rec := post(srv, `{"intent_id":"i-1","type":"map_clicked","lat":10,"lng":20}`)

				Convey("Then it is reported as a duplicate and not dispatched", func() {
					So(rec.Code, ShouldEqual, http.StatusOK)
					So(rec.Body.String(), ShouldContainSubstring, `"duplicate":true`)
					So(len(deps.dispatched), ShouldEqual, 1)
				})
			})
		})

		Convey("When an intent without id is posted", func() {
			rec := post(srv, `{"type":"form_cancelled"}`)

			Convey("Then an id is generated", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				var ack map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
				So(ack["intent_id"], ShouldNotBeEmpty)
				So(deps.dispatched[0].ID, ShouldEqual, ack["intent_id"])
			})
		})

		Convey("When a running submission is posted", func() {
			rec := post(srv, `{"type":"form_submitted","workout_type":"running","distance":5,"duration":25,"cadence":150,"elevation":99}`)

			Convey("Then the cadence becomes the input value", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				in := deps.dispatched[0].Input
				So(in.Kind, ShouldEqual, workout.KindRunning)
				So(in.DistanceKm, ShouldEqual, 5)
				So(in.Value, ShouldEqual, 150)
			})
		})

		Convey("When a cycling edit with a missing elevation is posted", func() {
			rec := post(srv, `{"type":"edit_submitted","workout_type":"cycling","distance":5,"duration":25}`)

			Convey("Then it is dispatched and left for the controller to reject", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(workout.Validate(deps.dispatched[0].Input), ShouldNotBeNil)
			})
		})

		Convey("When a sort is posted", func() {
			rec := post(srv, `{"type":"sort_requested","sort":"duration","dir":"desc"}`)

			Convey("Then the key and direction are dispatched", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(deps.dispatched[0].SortKey, ShouldEqual, "duration")
				So(deps.dispatched[0].Ascending, ShouldBeFalse)
			})
		})

		Convey("When the queue is full", func() {
			deps.accept = false
			rec := post(srv, `{"intent_id":"i-2","type":"remove_requested","workout_id":"1"}`)

			Convey("Then 429 is returned and the id can be retried", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.seen["i-2"], ShouldBeFalse)
				deps.accept = true
				So(post(srv, `{"intent_id":"i-2","type":"remove_requested","workout_id":"1"}`).Code, ShouldEqual, http.StatusAccepted)
			})
		})

		Convey("When malformed intents are posted", func() {
			cases := []string{
				`{`,
				`{"type":"teleport"}`,
				`{"type":"map_clicked","lat":10}`,
				`{"type":"form_submitted","workout_type":"swimming","distance":1,"duration":1}`,
				`{"type":"form_type_changed"}`,
				`{"type":"remove_requested"}`,
				`{"type":"edit_requested","workout_id":"  "}`,
				`{"type":"sort_requested","sort":"pace"}`,
				`{"type":"sort_requested","sort":"distance","dir":"sideways"}`,
				`{"type":"list_entry_expired","workout_id":"1"}`,
				`{"type":"form_cancelled","ts":"yesterday"}`,
			}

			Convey("Then each is rejected with 400 and nothing is dispatched", func() {
				for _, body := range cases {
					rec := post(srv, body)
					So(rec.Code, ShouldEqual, http.StatusBadRequest)
					So(rec.Body.String(), ShouldContainSubstring, "bad_request")
				}
				So(deps.dispatched, ShouldBeEmpty)
			})
		})
	})
}

func TestViewHandler(t *testing.T) {
	Convey("Given an API server with workouts", t, func() {
		deps := newMockDeps()
		run, err := workout.NewRunning("1", time.Date(2024, time.March, 7, 9, 0, 0, 0, time.UTC), workout.Coords{Lat: 1, Lng: 2}, 5, 25, 150)
		So(err, ShouldBeNil)
		ride, err := workout.NewCycling("2", time.Date(2024, time.March, 8, 9, 0, 0, 0, time.UTC), workout.Coords{Lat: 3, Lng: 4}, 30, 90, -10)
		So(err, ShouldBeNil)
		deps.workouts = []workout.Workout{run, ride}
		deps.view = types.View{
			Entries: []types.ListEntry{{ID: "2", Label: "Cycling on 8 March"}},
			Markers: []types.Marker{},
			Form:    types.Form{Mode: types.FormHidden},
		}
		srv := api.NewServer(deps)

		Convey("When GET /view is requested", func() {
			rec := get(srv, "/view")

			Convey("Then the current view is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var v types.View
				So(json.Unmarshal(rec.Body.Bytes(), &v), ShouldBeNil)
				So(v.Entries[0].Label, ShouldEqual, "Cycling on 8 March")
				So(v.Form.Mode, ShouldEqual, types.FormHidden)
			})
		})

		Convey("When GET /workouts is requested with a sort", func() {
			rec := get(srv, "/workouts?sort=distance&dir=desc")

			Convey("Then the query is passed through and derived metrics are included", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.lastSort, ShouldEqual, "distance")
				So(deps.lastAsc, ShouldBeFalse)

				var out []map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &out), ShouldBeNil)
				So(len(out), ShouldEqual, 2)
				So(out[0]["pace"], ShouldEqual, 5.0)
				So(out[0]["description"], ShouldEqual, "Running on 7 March")
				So(out[1]["speed"], ShouldEqual, 1.5)
				So(out[1]["elevation"], ShouldEqual, -10.0)
				_, hasCadence := out[1]["cadence"]
				So(hasCadence, ShouldBeFalse)
			})
		})

		Convey("When GET /workouts uses a bad sort or direction", func() {
			Convey("Then 400 is returned", func() {
				So(get(srv, "/workouts?sort=pace").Code, ShouldEqual, http.StatusBadRequest)
				So(get(srv, "/workouts?dir=up").Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the service cannot read workouts", func() {
			deps.readErr = errors.New("service not started")
			rec := get(srv, "/workouts")

			Convey("Then 503 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped in MetricsMiddleware", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = fmt.Fprint(w, "short and stout")
		}, "teapot")

		Convey("When it is called", func() {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

			Convey("Then the response passes through unchanged", func() {
				So(rec.Code, ShouldEqual, http.StatusTeapot)
				So(rec.Body.String(), ShouldEqual, "short and stout")
			})
		})
	})
}
