package replay

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Per-channel value ranges of the generated profiles.
var profiles = []struct {
	name     string
	min, max float64
}{
	{"calm", 0.2, 1.0},
	{"average", 1.0, 2.5},
	{"restless", 2.5, 4.0},
	{"mixed", 0.1, 4.0},
}

// Generate builds a deterministic population of n participants. Each one
// gets a gaze ratio for every combatant.
func Generate(seed int64, n int, combatants []string) ([]Participant, error) {
	if n < 1 {
		return nil, fmt.Errorf("population size must be positive, got %d", n)
	}
	if len(combatants) == 0 {
		return nil, fmt.Errorf("no combatants to observe")
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible synthetic data

	out := make([]Participant, n)
	for i := range out {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("generate user id: %w", err)
		}
		prof := profiles[rng.Intn(len(profiles))]
		channel := func() float64 { return prof.min + rng.Float64()*(prof.max-prof.min) }

		gaze := make(map[string]float64, len(combatants))
		for _, c := range combatants {
			gaze[c] = rng.Float64()
		}
		out[i] = Participant{
			UserID:           id.String(),
			Profile:          prof.name,
			MeanDistance:     channel(),
			Stillness:        channel(),
			AngularStillness: channel(),
			Gaze:             gaze,
		}
	}
	return out, nil
}
