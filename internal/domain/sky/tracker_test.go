package sky_test

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/sky"
	. "github.com/smartystreets/goconvey/convey"
)

func TestTracker_Advance(t *testing.T) {
	ctx := context.Background()

	Convey("Given a fresh tracker", t, func() {
		tr := sky.NewTracker()

		Convey("When nervousness keeps rising from the start", func() {
			var got []float64
			for _, c := range []model.Classification{model.ClassHigh, model.ClassHigh, model.ClassHigh} {
				got = append(got, tr.Advance(ctx, "u1", "c1", c))
			}

			Convey("Then the value stays clamped at zero", func() {
				So(got, ShouldResemble, []float64{0, 0, 0})
			})
		})

		Convey("When nervousness drops", func() {
			v := tr.Advance(ctx, "u1", "c1", model.ClassLow)

			Convey("Then the sky clears by one step", func() {
				So(v, ShouldAlmostEqual, 1.0/15, 1e-12)
			})

			Convey("And an unchanged classification keeps the value", func() {
				So(tr.Advance(ctx, "u1", "c1", model.ClassLow), ShouldAlmostEqual, 1.0/15, 1e-12)
			})

			Convey("And a rise takes the step back", func() {
				So(tr.Advance(ctx, "u1", "c1", model.ClassNeutral), ShouldAlmostEqual, 0, 1e-12)
			})
		})

		Convey("When the value is driven up repeatedly", func() {
			v, maxV := 0.0, 0.0
			for i := 0; i < 40; i++ {
				for _, c := range []model.Classification{model.ClassHigh, model.ClassNeutral, model.ClassLow} {
					v = tr.Advance(ctx, "u1", "c1", c)
					maxV = math.Max(maxV, v)
				}
			}

			Convey("Then it never exceeds one", func() {
				So(maxV, ShouldBeLessThanOrEqualTo, 1.0)
				So(v, ShouldAlmostEqual, 1.0, 1e-9)
			})
		})

		Convey("When keys differ", func() {
			tr.Advance(ctx, "u1", "c1", model.ClassLow)
			tr.Advance(ctx, "u1", "c2", model.ClassHigh)
			tr.Advance(ctx, "u2", "c1", model.ClassNeutral)

			Convey("Then each key keeps its own slot", func() {
				s1, ok1 := tr.Get("u1", "c1")
				s2, ok2 := tr.Get("u1", "c2")
				s3, ok3 := tr.Get("u2", "c1")
				So(ok1 && ok2 && ok3, ShouldBeTrue)
				So(s1.Value, ShouldAlmostEqual, 1.0/15, 1e-12)
				So(s2.Value, ShouldEqual, 0.0)
				So(s3.Value, ShouldEqual, 0.0)
				So(s2.Last, ShouldEqual, model.ClassHigh)
				So(tr.Len(), ShouldEqual, 3)
			})

			Convey("And a snapshot lists a user's combatants in order", func() {
				snap := tr.Snapshot("u1")
				So(len(snap), ShouldEqual, 2)
				So(snap[0].Combatant, ShouldEqual, "c1")
				So(snap[1].Combatant, ShouldEqual, "c2")
			})
		})

		Convey("When a key was never queried", func() {
			_, ok := tr.Get("nobody", "c1")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given random classification sequences", t, func() {
		tr := sky.NewTracker(sky.WithSteps(3))
		rng := rand.New(rand.NewSource(1))

		Convey("Then every value stays within [0,1]", func() {
			for i := 0; i < 500; i++ {
				c := model.Classification(rng.Intn(3) - 1)
				v := tr.Advance(ctx, "u1", "c1", c)
				So(v, ShouldBeBetweenOrEqual, 0.0, 1.0)
			}
		})
	})
}

func TestTracker_Options(t *testing.T) {
	Convey("Given a tracker with a fake clock and 5 steps", t, func() {
		start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := clockwork.NewFakeClockAt(start)
		tr := sky.NewTracker(sky.WithSteps(5), sky.WithClock(clock), sky.WithShardCount(2))

		Convey("When advancing", func() {
			clock.Advance(time.Second)
			v := tr.Advance(context.Background(), "u1", "c1", model.ClassLow)

			Convey("Then the custom step and clock are used", func() {
				So(tr.Step(), ShouldAlmostEqual, 0.2, 1e-12)
				So(v, ShouldAlmostEqual, 0.2, 1e-12)
				st, ok := tr.Get("u1", "c1")
				So(ok, ShouldBeTrue)
				So(st.UpdatedAt, ShouldEqual, start.Add(time.Second))
				So(st.Updates, ShouldEqual, 1)
			})
		})
	})
}

func TestTracker_Concurrency(t *testing.T) {
	Convey("Given concurrent updates on distinct keys", t, func() {
		tr := sky.NewTracker()
		var wg sync.WaitGroup
		for u := 0; u < 20; u++ {
			wg.Add(1)
			go func(u int) {
				defer wg.Done()
				user := fmt.Sprintf("u%d", u)
				for i := 0; i < 15; i++ {
					tr.Advance(context.Background(), user, "c1", model.ClassHigh)
					tr.Advance(context.Background(), user, "c1", model.ClassNeutral)
					tr.Advance(context.Background(), user, "c1", model.ClassLow)
				}
			}(u)
		}
		wg.Wait()

		Convey("Then every key reaches the same value independently", func() {
			So(tr.Len(), ShouldEqual, 20)
			for u := 0; u < 20; u++ {
				st, ok := tr.Get(fmt.Sprintf("u%d", u), "c1")
				So(ok, ShouldBeTrue)
				So(st.Value, ShouldAlmostEqual, 1.0, 1e-9)
				So(st.Updates, ShouldEqual, 45)
			}
		})
	})
}
