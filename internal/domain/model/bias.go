package model

import "slices"

// Classification is the three-way nervousness label.
type Classification int

// Classification values.
const (
	ClassLow     Classification = -1
	ClassNeutral Classification = 0
	ClassHigh    Classification = 1
)

// String returns the attention label for the classification.
func (c Classification) String() string {
	switch {
	case c < ClassNeutral:
		return "low"
	case c > ClassNeutral:
		return "high"
	default:
		return "neutral"
	}
}

// Biased reports whether the classification departs from neutral.
func (c Classification) Biased() bool { return c != ClassNeutral }

// BiasOutcome records toward which combatants of a conflict a user was biased.
type BiasOutcome string

// Bias outcomes, encoded with the letters used by the epilogue trajectory.
const (
	BiasBoth    BiasOutcome = "B"
	BiasNeither BiasOutcome = "N"
	BiasOne     BiasOutcome = "1"
)

// Name returns the long form of the outcome.
func (o BiasOutcome) Name() string {
	switch o {
	case BiasBoth:
		return "both"
	case BiasNeither:
		return "neither"
	case BiasOne:
		return "one"
	default:
		return "unknown"
	}
}

// Conflict pairs two combatants under a conflict name.
type Conflict struct {
	Name       string
	Combatant1 string
	Combatant2 string
}

// Has reports whether the combatant takes part in the conflict.
func (c Conflict) Has(combatant string) bool {
	return combatant == c.Combatant1 || combatant == c.Combatant2
}

// Swapped returns the conflict with the combatant labels exchanged.
func (c Conflict) Swapped() Conflict {
	return Conflict{Name: c.Name, Combatant1: c.Combatant2, Combatant2: c.Combatant1}
}

// BiasRecord is the per (user, conflict) outcome read back at session end.
type BiasRecord struct {
	UserID     string
	Conflict   string
	Outcome    BiasOutcome
	Generation uint64 // bounds generation the outcome was derived from
}

// SurveyAnswers carries the already-parsed web registration answers.
type SurveyAnswers struct {
	Completed bool
	// WarAttitude is the answer to question 1: 1 most pro-war .. 5 most anti-war.
	WarAttitude int
	// BiasedToward lists combatants flagged by questions 2-4.
	BiasedToward []string
}

// Flags reports whether the survey flags the combatant.
func (s SurveyAnswers) Flags(combatant string) bool {
	return s.Completed && slices.Contains(s.BiasedToward, combatant)
}
