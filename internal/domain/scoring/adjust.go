package scoring

// Adjuster applies a bias adjustment to a raw attentiveness value.
type Adjuster interface {
	Adjust(in Input, attentiveness float64) float64
}

// AdjusterFunc adapts a function to Adjuster.
type AdjusterFunc func(in Input, attentiveness float64) float64

// Adjust calls f.
func (f AdjusterFunc) Adjust(in Input, attentiveness float64) float64 { return f(in, attentiveness) }

// NoAdjustment returns the attentiveness value unchanged.
type NoAdjustment struct{}

// Adjust returns attentiveness.
func (NoAdjustment) Adjust(_ Input, attentiveness float64) float64 { return attentiveness }

// GazeAdjuster penalizes users looking away from the combatant's face. A value
// already below the lower bound gets BelowStd deviations added, any other value
// gets AboveStd.
type GazeAdjuster struct {
	Threshold float64
	BelowStd  float64
	AboveStd  float64
}

// NewGazeAdjuster returns the default gaze policy.
func NewGazeAdjuster() GazeAdjuster {
	return GazeAdjuster{
		Threshold: DefaultGazeThreshold,
		BelowStd:  DefaultBelowStd,
		AboveStd:  DefaultAboveStd,
	}
}

// Adjust applies the gaze policy.
func (g GazeAdjuster) Adjust(in Input, attentiveness float64) float64 {
	return attentiveness + g.penalty(in, attentiveness)*in.Bounds.Std
}

// LookingAway reports whether the gaze ratio falls under the threshold.
func (g GazeAdjuster) LookingAway(gazeRatio float64) bool {
	return gazeRatio < g.Threshold
}

// penalty returns the number of deviations to add.
func (g GazeAdjuster) penalty(in Input, attentiveness float64) float64 {
	if !g.LookingAway(in.GazeRatio) {
		return 0
	}
	if attentiveness < in.Bounds.LowerBound {
		return g.BelowStd
	}
	return g.AboveStd
}

// SurveyAdjuster extends the gaze policy with the web registration answers:
// when the survey flags the combatant, an away-looking user is pushed ExtraStd
// further. Users looking at the face stay unadjusted.
type SurveyAdjuster struct {
	Gaze     GazeAdjuster
	ExtraStd float64
}

// NewSurveyAdjuster wraps gaze with the default survey penalty.
func NewSurveyAdjuster(gaze GazeAdjuster) SurveyAdjuster {
	return SurveyAdjuster{Gaze: gaze, ExtraStd: DefaultSurveyStd}
}

// Adjust applies the gaze policy plus the survey penalty.
func (s SurveyAdjuster) Adjust(in Input, attentiveness float64) float64 {
	n := s.Gaze.penalty(in, attentiveness)
	if n > 0 && in.Survey != nil && in.Survey.Flags(in.Combatant) {
		n += s.ExtraStd
	}
	return attentiveness + n*in.Bounds.Std
}
