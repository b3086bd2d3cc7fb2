package scoring_test

import (
	"testing"

	"github.com/okian/enemy/internal/domain/model"
	scoring "github.com/okian/enemy/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAggregate(t *testing.T) {
	classes := []model.Classification{model.ClassLow, model.ClassNeutral, model.ClassHigh}

	Convey("Given every pair of classifications", t, func() {
		for _, c1 := range classes {
			for _, c2 := range classes {
				got := scoring.Aggregate(c1, c2)

				Convey("Then "+c1.String()+"/"+c2.String()+" aggregates consistently", func() {
					switch {
					case c1.Biased() && c2.Biased():
						So(got, ShouldEqual, model.BiasBoth)
					case c1.Biased() || c2.Biased():
						So(got, ShouldEqual, model.BiasOne)
					default:
						So(got, ShouldEqual, model.BiasNeither)
					}
					So(scoring.Aggregate(c2, c1), ShouldEqual, got)
				})
			}
		}
	})
}

func TestNegativeTowardEither(t *testing.T) {
	Convey("Given classifications", t, func() {
		So(scoring.NegativeTowardEither(model.ClassLow, model.ClassHigh), ShouldBeTrue)
		So(scoring.NegativeTowardEither(model.ClassNeutral, model.ClassLow), ShouldBeTrue)
		So(scoring.NegativeTowardEither(model.ClassHigh, model.ClassHigh), ShouldBeFalse)
		So(scoring.NegativeTowardEither(model.ClassNeutral, model.ClassNeutral), ShouldBeFalse)
	})
}

func TestBiasedTowardWhich(t *testing.T) {
	Convey("Given a conflict", t, func() {
		c := model.Conflict{Name: "conflict", Combatant1: "a", Combatant2: "b"}

		Convey("When only the first combatant is biased", func() {
			So(scoring.BiasedTowardWhich(c, model.ClassHigh, model.ClassNeutral), ShouldEqual, "a")

			Convey("Then swapping labels names the same combatant", func() {
				So(scoring.BiasedTowardWhich(c.Swapped(), model.ClassNeutral, model.ClassHigh), ShouldEqual, "a")
			})
		})

		Convey("When only the second combatant is biased", func() {
			So(scoring.BiasedTowardWhich(c, model.ClassNeutral, model.ClassLow), ShouldEqual, "b")
		})

		Convey("When both are biased", func() {
			So(scoring.BiasedTowardWhich(c, model.ClassLow, model.ClassHigh), ShouldEqual, scoring.TowardBoth)
		})

		Convey("When neither is biased", func() {
			So(scoring.BiasedTowardWhich(c, model.ClassNeutral, model.ClassNeutral), ShouldEqual, scoring.TowardNeither)
		})
	})
}
