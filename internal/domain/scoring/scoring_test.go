package scoring_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/enemy/internal/domain/bounds"
	"github.com/okian/enemy/internal/domain/model"
	scoring "github.com/okian/enemy/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// exampleBounds matches the population {1,1,1},{3,3,3}.
func exampleBounds() bounds.PopulationBounds {
	std := math.Sqrt(3)
	return bounds.PopulationBounds{
		Mean:       6,
		Std:        std,
		LowerBound: 6 - std,
		UpperBound: 6 + std,
		Size:       2,
		Generation: 7,
	}
}

// featuresWithValue spreads value over the three channels.
func featuresWithValue(userID string, value float64) model.UserFeatures {
	return model.NewUserFeatures(userID, value/3, value/3, value/3)
}

func TestBoundsScorer_Classify(t *testing.T) {
	Convey("Given a scorer with the default gaze policy", t, func() {
		scorer := scoring.NewBoundsScorer()
		b := exampleBounds()
		ctx := context.Background()

		Convey("When the user looks at the face with value 8", func() {
			res, err := scorer.Classify(ctx, scoring.Input{
				Combatant: "c1",
				Features:  model.NewUserFeatures("u1", 3, 3, 2),
				Bounds:    b,
				GazeRatio: 0.9,
			})

			Convey("Then the value is unadjusted and classified high", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldEqual, 8.0)
				So(res.Attentiveness, ShouldEqual, 8.0)
				So(res.Classification, ShouldEqual, model.ClassHigh)
				So(res.UserID, ShouldEqual, "u1")
				So(res.Combatant, ShouldEqual, "c1")
				So(res.Generation, ShouldEqual, 7)
			})
		})

		Convey("When the gaze ratio sits exactly on the threshold", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Features: featuresWithValue("u1", 5), Bounds: b, GazeRatio: 0.66})

			Convey("Then the value is unadjusted", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldAlmostEqual, 5.0, 1e-12)
				So(res.Classification, ShouldEqual, model.ClassNeutral)
			})
		})

		Convey("When the user looks away with a value below the lower bound", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Features: featuresWithValue("u1", 3), Bounds: b, GazeRatio: 0.2})

			Convey("Then one std is added", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldAlmostEqual, 3+math.Sqrt(3), 1e-9)
				So(res.Classification, ShouldEqual, model.ClassNeutral)
			})
		})

		Convey("When the user looks away with a value at or above the lower bound", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Features: featuresWithValue("u1", 5), Bounds: b, GazeRatio: 0.5})

			Convey("Then two std are added", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldAlmostEqual, 5+2*math.Sqrt(3), 1e-9)
				So(res.Classification, ShouldEqual, model.ClassHigh)
			})
		})

		Convey("When the user is far below the baseline and looks at the face", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Features: featuresWithValue("u1", 1), Bounds: b, GazeRatio: 1})

			Convey("Then it is classified low", func() {
				So(err, ShouldBeNil)
				So(res.Classification, ShouldEqual, model.ClassLow)
			})
		})

		Convey("When classifying the same input twice", func() {
			in := scoring.Input{Features: featuresWithValue("u1", 6.5), Bounds: b, GazeRatio: 0.4}
			r1, err1 := scorer.Classify(ctx, in)
			r2, err2 := scorer.Classify(ctx, in)

			Convey("Then results are identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(r1, ShouldResemble, r2)
			})
		})

		Convey("When the attentiveness value increases", func() {
			for _, gaze := range []float64{0.1, 0.9} {
				prev := model.ClassLow
				for v := 0.0; v <= 14; v += 0.125 {
					res, err := scorer.Classify(ctx, scoring.Input{Features: featuresWithValue("u1", v), Bounds: b, GazeRatio: gaze})
					So(err, ShouldBeNil)
					So(int(res.Classification), ShouldBeGreaterThanOrEqualTo, int(prev))
					prev = res.Classification
				}
			}
		})
	})
}

func TestBoundsScorer_Errors(t *testing.T) {
	Convey("Given a scorer", t, func() {
		scorer := scoring.NewBoundsScorer()
		ctx := context.Background()

		Convey("When bounds were never computed", func() {
			_, err := scorer.Classify(ctx, scoring.Input{Features: featuresWithValue("u1", 5), GazeRatio: 1})

			Convey("Then it reports missing bounds", func() {
				So(errors.Is(err, model.ErrBoundsNotComputed), ShouldBeTrue)
			})
		})

		Convey("When a feature channel is missing", func() {
			_, err := scorer.Classify(ctx, scoring.Input{
				Features:  model.FeaturesFromMap("u1", map[model.Channel]float64{model.ChannelDistance: 1}),
				Bounds:    exampleBounds(),
				GazeRatio: 1,
			})

			Convey("Then it reports a missing feature", func() {
				So(errors.Is(err, model.ErrMissingFeature), ShouldBeTrue)
			})
		})

		Convey("When the gaze ratio is out of range", func() {
			for _, gaze := range []float64{-0.1, 1.5, math.NaN()} {
				_, err := scorer.Classify(ctx, scoring.Input{Features: featuresWithValue("u1", 5), Bounds: exampleBounds(), GazeRatio: gaze})
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			}
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := scorer.Classify(cctx, scoring.Input{Features: featuresWithValue("u1", 5), Bounds: exampleBounds(), GazeRatio: 1})

			Convey("Then it returns the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestAdjusters(t *testing.T) {
	Convey("Given the survey adjuster", t, func() {
		scorer := scoring.NewBoundsScorer(scoring.WithAdjuster(scoring.NewSurveyAdjuster(scoring.NewGazeAdjuster())))
		b := exampleBounds()
		flagged := &model.SurveyAnswers{Completed: true, BiasedToward: []string{"c1"}}
		ctx := context.Background()

		Convey("When the survey flags the combatant and the user looks away below the lower bound", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Combatant: "c1", Features: featuresWithValue("u1", 3), Bounds: b, GazeRatio: 0.1, Survey: flagged})

			Convey("Then two std are added", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldAlmostEqual, 3+2*math.Sqrt(3), 1e-9)
			})
		})

		Convey("When the survey flags the combatant and the user looks away above the lower bound", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Combatant: "c1", Features: featuresWithValue("u1", 5), Bounds: b, GazeRatio: 0.1, Survey: flagged})

			Convey("Then three std are added", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldAlmostEqual, 5+3*math.Sqrt(3), 1e-9)
			})
		})

		Convey("When the survey flags another combatant", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Combatant: "c2", Features: featuresWithValue("u1", 5), Bounds: b, GazeRatio: 0.1, Survey: flagged})

			Convey("Then only the gaze penalty applies", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldAlmostEqual, 5+2*math.Sqrt(3), 1e-9)
			})
		})

		Convey("When the user looks at the face", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Combatant: "c1", Features: featuresWithValue("u1", 5), Bounds: b, GazeRatio: 0.8, Survey: flagged})

			Convey("Then the value is unadjusted", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldAlmostEqual, 5.0, 1e-9)
			})
		})

		Convey("When no survey is available", func() {
			res, err := scorer.Classify(ctx, scoring.Input{Combatant: "c1", Features: featuresWithValue("u1", 5), Bounds: b, GazeRatio: 0.1})

			Convey("Then it behaves like the gaze policy", func() {
				So(err, ShouldBeNil)
				So(res.Value, ShouldAlmostEqual, 5+2*math.Sqrt(3), 1e-9)
			})
		})
	})

	Convey("Given a scorer without adjustment", t, func() {
		scorer := scoring.NewBoundsScorer(scoring.WithAdjuster(scoring.NoAdjustment{}))

		Convey("Then away-looking users are not penalized", func() {
			res, err := scorer.Classify(context.Background(), scoring.Input{Features: featuresWithValue("u1", 5), Bounds: exampleBounds(), GazeRatio: 0})
			So(err, ShouldBeNil)
			So(res.Value, ShouldAlmostEqual, 5.0, 1e-9)
		})
	})

	Convey("Given a custom adjuster function", t, func() {
		scorer := scoring.NewBoundsScorer(scoring.WithAdjuster(scoring.AdjusterFunc(func(_ scoring.Input, v float64) float64 {
			return v * 10
		})))

		Convey("Then it is used for classification", func() {
			res, err := scorer.Classify(context.Background(), scoring.Input{Features: featuresWithValue("u1", 1), Bounds: exampleBounds(), GazeRatio: 1})
			So(err, ShouldBeNil)
			So(res.Classification, ShouldEqual, model.ClassHigh)
		})
	})

	Convey("Given a gaze adjuster with a custom threshold", t, func() {
		g := scoring.GazeAdjuster{Threshold: 0.5, BelowStd: 1, AboveStd: 2}

		So(g.LookingAway(0.49), ShouldBeTrue)
		So(g.LookingAway(0.5), ShouldBeFalse)
	})
}

func TestClassifyValue(t *testing.T) {
	Convey("Given bounds (4, 8)", t, func() {
		b := bounds.PopulationBounds{LowerBound: 4, UpperBound: 8, Size: 1}

		So(scoring.ClassifyValue(3.99, b), ShouldEqual, model.ClassLow)
		So(scoring.ClassifyValue(4, b), ShouldEqual, model.ClassNeutral)
		So(scoring.ClassifyValue(7.99, b), ShouldEqual, model.ClassNeutral)
		So(scoring.ClassifyValue(8, b), ShouldEqual, model.ClassHigh)
	})

	Convey("Given degenerate bounds with zero std", t, func() {
		b := bounds.PopulationBounds{LowerBound: 6, UpperBound: 6, Size: 1}

		So(scoring.ClassifyValue(5.9, b), ShouldEqual, model.ClassLow)
		So(scoring.ClassifyValue(6, b), ShouldEqual, model.ClassHigh)
	})
}
