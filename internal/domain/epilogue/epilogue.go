// Package epilogue picks the narrative ending from the survey and the
// recorded conflict biases.
package epilogue

import (
	"strings"

	"github.com/okian/enemy/internal/domain/model"
)

// War attitude answers accepted by IntroCase.
const (
	MinWarAttitude = 1
	MaxWarAttitude = 5
)

// IntroCase returns the war attitude answer, or 0 when the survey is missing,
// incomplete or the answer is out of range.
func IntroCase(survey *model.SurveyAnswers) int {
	if survey == nil || !survey.Completed {
		return 0
	}
	if survey.WarAttitude < MinWarAttitude || survey.WarAttitude > MaxWarAttitude {
		return 0
	}
	return survey.WarAttitude
}

// Step is one conflict of a trajectory.
type Step struct {
	Conflict string
	Outcome  model.BiasOutcome
}

// Trajectory orders the records by the conflict order given. Conflicts
// without a record are skipped; a later record for the same conflict wins.
func Trajectory(records []model.BiasRecord, conflicts []model.Conflict) []Step {
	latest := make(map[string]model.BiasOutcome, len(records))
	for _, r := range records {
		latest[r.Conflict] = r.Outcome
	}
	steps := make([]Step, 0, len(conflicts))
	for _, c := range conflicts {
		if o, ok := latest[c.Name]; ok {
			steps = append(steps, Step{Conflict: c.Name, Outcome: o})
		}
	}
	return steps
}

// Letters joins the trajectory outcomes, e.g. "B1N".
func Letters(steps []Step) string {
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(string(s.Outcome))
	}
	return b.String()
}

// Mirror picks the combatant whose avatar mirrors the user: the one with the
// higher classification, combatant 2 on a tie.
func Mirror(conflict model.Conflict, c1, c2 model.Classification) string {
	if c1 > c2 {
		return conflict.Combatant1
	}
	return conflict.Combatant2
}
