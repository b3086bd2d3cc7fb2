package replay

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/okian/enemy/internal/domain/bounds"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/scoring"
	"github.com/okian/enemy/internal/domain/types"
	"github.com/okian/enemy/pkg/logger"
)

const boundsTolerance = 1e-9

// Mismatch is one classification the service answered differently.
type Mismatch struct {
	UserID    string
	Combatant string
	Want      model.Classification
	Got       int
	Err       error
}

// toPopulationBounds rebuilds the domain value from the API shape.
func toPopulationBounds(b types.Bounds) bounds.PopulationBounds {
	return bounds.PopulationBounds{
		Mean:       b.Mean,
		Std:        b.Std,
		LowerBound: b.LowerBound,
		UpperBound: b.UpperBound,
		Size:       b.PopulationSize,
		Generation: b.Generation,
		ComputedAt: b.ComputedAt,
	}
}

// verifyBounds compares the served baseline with one computed locally. It
// only applies when the service population is exactly the replayed one.
func verifyBounds(population []Participant, served types.Bounds) (bool, error) {
	if served.PopulationSize != len(population) {
		return false, nil
	}
	features := make([]model.UserFeatures, len(population))
	for i, p := range population {
		features[i] = p.Features()
	}
	local, err := bounds.FromPopulation(features)
	if err != nil {
		return false, err
	}
	for _, pair := range [][2]float64{
		{local.Mean, served.Mean},
		{local.Std, served.Std},
		{local.LowerBound, served.LowerBound},
		{local.UpperBound, served.UpperBound},
	} {
		if math.Abs(pair[0]-pair[1]) > boundsTolerance*math.Max(1, math.Abs(pair[0])) {
			return false, fmt.Errorf("%w: bounds %+v, want mean=%g std=%g",
				ErrMismatch, served, local.Mean, local.Std)
		}
	}
	return true, nil
}

// verifyClassifications classifies every (participant, combatant) pair
// locally against the served bounds and compares with the service.
func verifyClassifications(
	ctx context.Context,
	client *Client,
	cfg *Config,
	population []Participant,
	served types.Bounds,
	stats *Stats,
) []Mismatch {
	scorer := scoring.NewBoundsScorer(scoring.WithAdjuster(cfg.Adjuster))
	b := toPopulationBounds(served)

	type pair struct {
		p         Participant
		combatant string
	}
	var pairs []pair
	for _, p := range population {
		combatants := make([]string, 0, len(p.Gaze))
		for c := range p.Gaze {
			combatants = append(combatants, c)
		}
		sort.Strings(combatants)
		for _, c := range combatants {
			pairs = append(pairs, pair{p: p, combatant: c})
		}
	}

	var (
		mu         sync.Mutex
		mismatches []Mismatch
	)
	forEach(ctx, cfg.Workers, len(pairs), func(i int) {
		pr := pairs[i]
		want, err := scorer.Classify(ctx, scoring.Input{
			Combatant: pr.combatant,
			Features:  pr.p.Features(),
			Bounds:    b,
			GazeRatio: pr.p.Gaze[pr.combatant],
		})
		if err != nil {
			mu.Lock()
			mismatches = append(mismatches, Mismatch{UserID: pr.p.UserID, Combatant: pr.combatant, Err: err})
			mu.Unlock()
			return
		}
		got, err := client.Classification(ctx, pr.p.UserID, pr.combatant)

		mu.Lock()
		defer mu.Unlock()
		stats.Checked++
		if err != nil || got.Classification != int(want.Classification) {
			mismatches = append(mismatches, Mismatch{
				UserID:    pr.p.UserID,
				Combatant: pr.combatant,
				Want:      want.Classification,
				Got:       got.Classification,
				Err:       err,
			})
		}
	})

	stats.Mismatches = len(mismatches)
	log := logger.Get()
	for i, m := range mismatches {
		if i == 10 {
			log.Warn(ctx, "further mismatches omitted", logger.Int("total", len(mismatches)))
			break
		}
		log.Warn(ctx, "classification mismatch",
			logger.String("user_id", m.UserID),
			logger.String("combatant", m.Combatant),
			logger.String("want", m.Want.String()),
			logger.Int("got", m.Got),
			logger.Error(m.Err))
	}
	return mismatches
}
