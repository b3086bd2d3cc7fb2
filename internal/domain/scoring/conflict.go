package scoring

import "github.com/okian/enemy/internal/domain/model"

// Labels returned by BiasedTowardWhich when no single combatant stands out.
const (
	TowardBoth    = "both"
	TowardNeither = "neither"
)

// Aggregate folds the classifications of both combatants into a bias outcome.
func Aggregate(c1, c2 model.Classification) model.BiasOutcome {
	switch {
	case c1.Biased() && c2.Biased():
		return model.BiasBoth
	case c1.Biased() || c2.Biased():
		return model.BiasOne
	default:
		return model.BiasNeither
	}
}

// NegativeTowardEither reports whether either combatant is classified low.
func NegativeTowardEither(c1, c2 model.Classification) bool {
	return c1 == model.ClassLow || c2 == model.ClassLow
}

// BiasedTowardWhich names the combatant the user is biased toward, or returns
// TowardBoth / TowardNeither.
func BiasedTowardWhich(conflict model.Conflict, c1, c2 model.Classification) string {
	switch Aggregate(c1, c2) {
	case model.BiasBoth:
		return TowardBoth
	case model.BiasOne:
		if c1.Biased() {
			return conflict.Combatant1
		}
		return conflict.Combatant2
	default:
		return TowardNeither
	}
}
