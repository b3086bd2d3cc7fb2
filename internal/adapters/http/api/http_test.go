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

	"github.com/okian/enemy/internal/adapters/http/api"
	eventqueue "github.com/okian/enemy/internal/adapters/mq/queue"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDeps records calls and returns the configured errors.
type fakeDeps struct {
	enqueued  []model.Observation
	surveys   map[string]model.SurveyAnswers
	duplicate bool
	err       error
}

func (f *fakeDeps) Enqueue(_ context.Context, obs model.Observation) (types.IngestResult, error) {
	if f.err != nil {
		return types.IngestResult{}, f.err
	}
	f.enqueued = append(f.enqueued, obs)
	id := obs.ObservationID
	if id == "" {
		id = "generated"
	}
	return types.IngestResult{ObservationID: id, Duplicate: f.duplicate}, nil
}

func (f *fakeDeps) Bounds(context.Context) (types.Bounds, error) {
	if f.err != nil {
		return types.Bounds{}, f.err
	}
	return types.Bounds{Mean: 6, LowerBound: 4, UpperBound: 8, Generation: 2}, nil
}

func (f *fakeDeps) RefreshBounds(ctx context.Context) (types.Bounds, error) { return f.Bounds(ctx) }

func (f *fakeDeps) Classify(_ context.Context, userID, combatant string) (types.Classification, error) {
	if f.err != nil {
		return types.Classification{}, f.err
	}
	return types.Classification{UserID: userID, Combatant: combatant, Classification: 1, Label: "high"}, nil
}

func (f *fakeDeps) SkyValue(_ context.Context, userID, combatant string) (types.Sky, error) {
	if f.err != nil {
		return types.Sky{}, f.err
	}
	return types.Sky{UserID: userID, Combatant: combatant, Value: 0.2}, nil
}

func (f *fakeDeps) ConflictBias(_ context.Context, userID, conflict string) (types.Bias, error) {
	if f.err != nil {
		return types.Bias{}, f.err
	}
	return types.Bias{UserID: userID, Conflict: conflict, Outcome: "B"}, nil
}

func (f *fakeDeps) SetSurvey(_ context.Context, userID string, answers model.SurveyAnswers) error {
	if f.err != nil {
		return f.err
	}
	if f.surveys == nil {
		f.surveys = make(map[string]model.SurveyAnswers)
	}
	f.surveys[userID] = answers
	return nil
}

func (f *fakeDeps) Epilogue(_ context.Context, userID string) (types.Epilogue, error) {
	if f.err != nil {
		return types.Epilogue{}, f.err
	}
	return types.Epilogue{UserID: userID, IntroCase: 2, Trajectory: "B1"}, nil
}

func (f *fakeDeps) Conflicts() []model.Conflict {
	return []model.Conflict{{Name: "congo", Combatant1: "congo-army", Combatant2: "congo-militia"}}
}

type fakeStats struct{}

func (fakeStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"users": 3, "started": true}
}

func newMux(deps *fakeDeps, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, fakeStats{}, opts...).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

const validObservation = `{
	"observation_id": "obs-1",
	"user_id": "u1",
	"features": {"mean_distance": 1.5, "stillness": 2, "angular_stillness": 0.5},
	"gaze": {"congo-army": 0.7},
	"ts": "2026-05-01T10:00:00Z"
}`

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		mux := newMux(&fakeDeps{})

		Convey("Then health serves Prometheus text", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "text/plain")
		})

		Convey("And stats are served as JSON", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"users":3`)
		})

		Convey("And conflicts are listed", func() {
			w := do(mux, http.MethodGet, "/conflicts", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"combatant_1":"congo-army"`)
		})

		Convey("And a wrong method is rejected", func() {
			w := do(mux, http.MethodGet, "/observations", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("And unknown paths are not found", func() {
			w := do(mux, http.MethodGet, "/scores", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestObservationsHandler(t *testing.T) {
	Convey("Given an observations endpoint", t, func() {
		deps := &fakeDeps{}
		mux := newMux(deps)

		Convey("When posting a valid observation", func() {
			w := do(mux, http.MethodPost, "/observations", validObservation)

			Convey("Then it is accepted and decoded", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(w.Body.String(), ShouldContainSubstring, `"status":"accepted"`)
				So(w.Body.String(), ShouldContainSubstring, `"observation_id":"obs-1"`)
				So(len(deps.enqueued), ShouldEqual, 1)
				obs := deps.enqueued[0]
				So(obs.UserID, ShouldEqual, "u1")
				So(obs.Gaze["congo-army"], ShouldEqual, 0.7)
				So(obs.Features.Validate(), ShouldBeNil)
				v, err := obs.Features.Attentiveness()
				So(err, ShouldBeNil)
				So(v, ShouldEqual, 4.0)
				So(obs.TS.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When a channel is omitted", func() {
			w := do(mux, http.MethodPost, "/observations", `{"user_id":"u1","features":{"mean_distance":1,"stillness":2}}`)

			Convey("Then it stays missing for validation downstream", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				_, ok := deps.enqueued[0].Features.Value(model.ChannelAngularStillness)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the observation was already seen", func() {
			deps.duplicate = true
			w := do(mux, http.MethodPost, "/observations", validObservation)

			Convey("Then it is acknowledged as duplicate", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"duplicate":true`)
			})
		})

		Convey("When the body is malformed", func() {
			cases := []string{`{not json`, `{"features":{}}`, `{"user_id":"u1","ts":"yesterday"}`}
			for _, body := range cases {
				w := do(mux, http.MethodPost, "/observations", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "bad_request")
			}
		})

		Convey("When the service rejects the observation", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{fmt.Errorf("channel stillness: %w", model.ErrMissingFeature), http.StatusBadRequest, "bad_request"},
				{model.ErrUnknownCombatant, http.StatusNotFound, "not_found"},
				{eventqueue.ErrFull, http.StatusTooManyRequests, "backpressure"},
				{eventqueue.ErrClosed, http.StatusServiceUnavailable, "unavailable"},
				{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
			}
			for _, c := range cases {
				deps.err = c.err
				w := do(mux, http.MethodPost, "/observations", validObservation)
				So(w.Code, ShouldEqual, c.status)
				So(errorCode(w), ShouldEqual, c.code)
			}
		})
	})

	Convey("Given a rate limited observations endpoint", t, func() {
		deps := &fakeDeps{}
		mux := newMux(deps, api.WithRateLimiter(api.NewRateLimiter(0.001, 2)))

		Convey("When the burst is exhausted", func() {
			first := do(mux, http.MethodPost, "/observations", validObservation)
			second := do(mux, http.MethodPost, "/observations", validObservation)
			third := do(mux, http.MethodPost, "/observations", validObservation)

			Convey("Then further requests are rejected", func() {
				So(first.Code, ShouldEqual, http.StatusAccepted)
				So(second.Code, ShouldEqual, http.StatusAccepted)
				So(third.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(third), ShouldEqual, "rate_limited")
				So(len(deps.enqueued), ShouldEqual, 2)
			})
		})

		Convey("When other routes are called", func() {
			for i := 0; i < 5; i++ {
				So(do(mux, http.MethodGet, "/bounds", "").Code, ShouldEqual, http.StatusOK)
			}
		})
	})

	Convey("Given a limiter with no rate", t, func() {
		l := api.NewRateLimiter(0, 0)

		Convey("Then it never limits", func() {
			for i := 0; i < 100; i++ {
				So(l.Allow(), ShouldBeTrue)
			}
		})
	})
}

func TestScoringRoutes(t *testing.T) {
	Convey("Given scoring routes", t, func() {
		deps := &fakeDeps{}
		mux := newMux(deps)

		Convey("Then path values reach the service", func() {
			w := do(mux, http.MethodGet, "/users/u1/combatants/congo-army/classification", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var c types.Classification
			So(json.Unmarshal(w.Body.Bytes(), &c), ShouldBeNil)
			So(c.UserID, ShouldEqual, "u1")
			So(c.Combatant, ShouldEqual, "congo-army")
			So(c.Label, ShouldEqual, "high")

			w = do(mux, http.MethodGet, "/users/u1/combatants/congo-army/sky", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"value":0.2`)

			w = do(mux, http.MethodGet, "/users/u1/conflicts/congo/bias", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"outcome":"B"`)

			w = do(mux, http.MethodPost, "/bounds/refresh", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"generation":2`)
		})

		Convey("When bounds are missing", func() {
			deps.err = fmt.Errorf("classify: %w", model.ErrBoundsNotComputed)

			Convey("Then reads return 409", func() {
				for _, path := range []string{
					"/bounds",
					"/users/u1/combatants/congo-army/classification",
					"/users/u1/combatants/congo-army/sky",
					"/users/u1/conflicts/congo/bias",
				} {
					w := do(mux, http.MethodGet, path, "")
					So(w.Code, ShouldEqual, http.StatusConflict)
					So(errorCode(w), ShouldEqual, "bounds_not_computed")
				}
			})
		})

		Convey("When the user is unknown", func() {
			deps.err = model.ErrUnknownUser
			w := do(mux, http.MethodGet, "/users/ghost/epilogue", "")

			Convey("Then it returns 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "not_found")
			})
		})
	})
}

func TestSessionRoutes(t *testing.T) {
	Convey("Given session routes", t, func() {
		deps := &fakeDeps{}
		mux := newMux(deps)

		Convey("When a survey is stored", func() {
			w := do(mux, http.MethodPut, "/users/u1/survey",
				`{"completed":true,"war_attitude":4,"biased_toward":["congo-army"]}`)

			Convey("Then it reaches the service", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(deps.surveys["u1"], ShouldResemble, model.SurveyAnswers{
					Completed:    true,
					WarAttitude:  4,
					BiasedToward: []string{"congo-army"},
				})
			})
		})

		Convey("When the survey body is malformed", func() {
			w := do(mux, http.MethodPut, "/users/u1/survey", `[`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the epilogue is requested", func() {
			w := do(mux, http.MethodGet, "/users/u1/epilogue", "")

			Convey("Then it is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var e types.Epilogue
				So(json.Unmarshal(w.Body.Bytes(), &e), ShouldBeNil)
				So(e.IntroCase, ShouldEqual, 2)
				So(e.Trajectory, ShouldEqual, "B1")
			})
		})
	})
}

func TestKindErrors(t *testing.T) {
	Convey("Given kind errors", t, func() {
		cause := errors.New("unexpected EOF")
		wrapped := api.WrapKind("api.post_observation", api.ErrBadRequest, cause)
		bare := api.NewKind("api.rate_limit", api.ErrRateLimited)

		Convey("Then kind and cause are both matched", func() {
			So(errors.Is(wrapped, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(wrapped, cause), ShouldBeTrue)
			So(wrapped.Error(), ShouldEqual, "api.post_observation: bad request: unexpected EOF")
			So(errors.Is(bare, api.ErrRateLimited), ShouldBeTrue)
			So(bare.Error(), ShouldEqual, "api.rate_limit: rate limited")
		})
	})
}
