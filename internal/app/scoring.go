package service

import (
	"context"
	"time"

	"github.com/okian/enemy/internal/domain/bounds"
	"github.com/okian/enemy/internal/domain/epilogue"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/scoring"
	"github.com/okian/enemy/internal/domain/types"
	"github.com/okian/enemy/pkg/logger"
	"github.com/okian/enemy/pkg/metrics"
)

// RefreshBounds recomputes the population baseline from every user with
// features and publishes it for subsequent classifications.
func (s *Service) RefreshBounds(ctx context.Context) (types.Bounds, error) {
	population := s.store.Population(ctx)
	b, err := s.calculator.Compute(ctx, population)
	if err != nil {
		metrics.RecordErrorByComponent("bounds", "compute_failed")
		return types.Bounds{}, err
	}
	s.current.Store(&b)

	metrics.RecordBoundsRefresh(b.Mean, b.Std, b.LowerBound, b.UpperBound, b.Size, b.Generation)
	s.logger.Info(ctx, "bounds refreshed",
		logger.Uint64("generation", b.Generation),
		logger.Int("population", b.Size),
		logger.Float64("lower", b.LowerBound),
		logger.Float64("upper", b.UpperBound),
	)
	return boundsView(b), nil
}

// Bounds returns the current baseline.
func (s *Service) Bounds(_ context.Context) (types.Bounds, error) {
	b, err := s.currentBounds()
	if err != nil {
		return types.Bounds{}, err
	}
	return boundsView(b), nil
}

func (s *Service) currentBounds() (bounds.PopulationBounds, error) {
	b := s.current.Load()
	if b == nil {
		return bounds.PopulationBounds{}, model.ErrBoundsNotComputed
	}
	return *b, nil
}

func boundsView(b bounds.PopulationBounds) types.Bounds {
	channels := make([]types.ChannelStats, len(b.Channels))
	for i, c := range b.Channels {
		channels[i] = types.ChannelStats{Channel: string(c.Channel), Mean: c.Mean, Std: c.Std}
	}
	return types.Bounds{
		Mean:           b.Mean,
		Std:            b.Std,
		LowerBound:     b.LowerBound,
		UpperBound:     b.UpperBound,
		PopulationSize: b.Size,
		Generation:     b.Generation,
		ComputedAt:     b.ComputedAt,
		Channels:       channels,
	}
}

// classify scores one (user, combatant) pair against the current bounds.
func (s *Service) classify(ctx context.Context, userID, combatant string) (scoring.Result, float64, error) {
	return s.classifyWith(ctx, userID, combatant, s.current.Load())
}

// classifyWith scores against b. A nil b reports ErrBoundsNotComputed after
// the user and combatant checks.
func (s *Service) classifyWith(
	ctx context.Context,
	userID, combatant string,
	b *bounds.PopulationBounds,
) (scoring.Result, float64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := s.catalog.Combatant(combatant); err != nil {
		return scoring.Result{}, 0, err
	}
	features, err := s.store.Features(ctx, userID)
	if err != nil {
		return scoring.Result{}, 0, err
	}
	gaze, err := s.store.Gaze(ctx, userID, combatant)
	if err != nil {
		return scoring.Result{}, 0, err
	}
	if b == nil {
		return scoring.Result{}, 0, model.ErrBoundsNotComputed
	}

	res, err := s.scorer.Classify(ctx, scoring.Input{
		Combatant: combatant,
		Features:  features,
		Bounds:    *b,
		GazeRatio: gaze,
		Survey:    s.store.Survey(ctx, userID),
	})
	if err != nil {
		metrics.RecordErrorByComponent("scoring", "classify_failed")
		return scoring.Result{}, 0, err
	}
	metrics.RecordClassification(res.Classification.String())
	return res, gaze, nil
}

func classificationView(res scoring.Result, gaze float64) types.Classification {
	return types.Classification{
		UserID:         res.UserID,
		Combatant:      res.Combatant,
		Attentiveness:  res.Attentiveness,
		Value:          res.Value,
		GazeRatio:      gaze,
		Classification: int(res.Classification),
		Label:          res.Classification.String(),
		Biased:         res.Classification.Biased(),
		Generation:     res.Generation,
	}
}

// Classify returns the user's nervousness classification toward a combatant.
func (s *Service) Classify(ctx context.Context, userID, combatant string) (types.Classification, error) {
	res, gaze, err := s.classify(ctx, userID, combatant)
	if err != nil {
		return types.Classification{}, err
	}
	return classificationView(res, gaze), nil
}

type conflictScore struct {
	conflict model.Conflict
	c1, c2   scoring.Result
	g1, g2   float64
}

// classifyConflict scores both combatants against one bounds snapshot so
// the pair always shares a generation.
func (s *Service) classifyConflict(ctx context.Context, userID, conflictName string) (conflictScore, error) {
	conflict, err := s.catalog.Conflict(conflictName)
	if err != nil {
		return conflictScore{}, err
	}
	b := s.current.Load()
	c1, g1, err := s.classifyWith(ctx, userID, conflict.Combatant1, b)
	if err != nil {
		return conflictScore{}, err
	}
	c2, g2, err := s.classifyWith(ctx, userID, conflict.Combatant2, b)
	if err != nil {
		return conflictScore{}, err
	}
	return conflictScore{conflict: conflict, c1: c1, c2: c2, g1: g1, g2: g2}, nil
}

// ConflictBias aggregates both combatants of a conflict, stores the outcome
// for the epilogue and returns it.
func (s *Service) ConflictBias(ctx context.Context, userID, conflictName string) (types.Bias, error) {
	cs, err := s.classifyConflict(ctx, userID, conflictName)
	if err != nil {
		return types.Bias{}, err
	}
	outcome := scoring.Aggregate(cs.c1.Classification, cs.c2.Classification)
	rec := model.BiasRecord{
		UserID:     userID,
		Conflict:   cs.conflict.Name,
		Outcome:    outcome,
		Generation: cs.c1.Generation,
	}
	if err := s.store.PutBias(ctx, rec); err != nil {
		return types.Bias{}, err
	}
	metrics.RecordConflictBias(string(outcome))

	return types.Bias{
		UserID:               userID,
		Conflict:             cs.conflict.Name,
		Outcome:              string(outcome),
		OutcomeName:          outcome.Name(),
		NegativeTowardEither: scoring.NegativeTowardEither(cs.c1.Classification, cs.c2.Classification),
		BiasedToward:         scoring.BiasedTowardWhich(cs.conflict, cs.c1.Classification, cs.c2.Classification),
		Mirror:               epilogue.Mirror(cs.conflict, cs.c1.Classification, cs.c2.Classification),
		Combatants:           []types.Classification{classificationView(cs.c1, cs.g1), classificationView(cs.c2, cs.g2)},
		Generation:           rec.Generation,
	}, nil
}

// NegativeBiasTowardEither reports whether the user is classified low toward
// either combatant of the conflict.
func (s *Service) NegativeBiasTowardEither(ctx context.Context, userID, conflictName string) (bool, error) {
	cs, err := s.classifyConflict(ctx, userID, conflictName)
	if err != nil {
		return false, err
	}
	return scoring.NegativeTowardEither(cs.c1.Classification, cs.c2.Classification), nil
}

// BiasedTowardWhich names the combatant the user is biased toward, or
// "both" / "neither".
func (s *Service) BiasedTowardWhich(ctx context.Context, userID, conflictName string) (string, error) {
	cs, err := s.classifyConflict(ctx, userID, conflictName)
	if err != nil {
		return "", err
	}
	return scoring.BiasedTowardWhich(cs.conflict, cs.c1.Classification, cs.c2.Classification), nil
}

// SkyValue classifies the pair and advances its sky state.
func (s *Service) SkyValue(ctx context.Context, userID, combatant string) (types.Sky, error) {
	res, _, err := s.classify(ctx, userID, combatant)
	if err != nil {
		return types.Sky{}, err
	}
	v := s.tracker.Advance(ctx, userID, combatant, res.Classification)
	metrics.ObserveSkyValue(v)

	return types.Sky{
		UserID:         userID,
		Combatant:      combatant,
		Value:          v,
		Classification: int(res.Classification),
		Label:          res.Classification.String(),
	}, nil
}
