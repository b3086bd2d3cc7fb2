package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/enemy/internal/domain/epilogue"
	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/types"
	"github.com/okian/enemy/pkg/logger"
)

// SetSurvey stores the user's registration answers. A war attitude of 0
// means unanswered.
func (s *Service) SetSurvey(ctx context.Context, userID string, answers model.SurveyAnswers) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", model.ErrInvalidInput)
	}
	if answers.WarAttitude < 0 || answers.WarAttitude > epilogue.MaxWarAttitude {
		return fmt.Errorf("%w: war attitude %d outside 0..%d",
			model.ErrInvalidInput, answers.WarAttitude, epilogue.MaxWarAttitude)
	}
	for _, c := range answers.BiasedToward {
		if err := s.catalog.Combatant(c); err != nil {
			return err
		}
	}
	if err := s.store.PutSurvey(ctx, userID, answers); err != nil {
		return err
	}
	s.logger.Debug(ctx, "survey stored",
		logger.String("user_id", userID),
		logger.Bool("completed", answers.Completed),
		logger.Int("flagged", len(answers.BiasedToward)),
	)
	return nil
}

// Epilogue assembles the closing sequence for a user: the intro case from
// the survey, the trajectory of recorded conflict outcomes in catalog order
// and the mirrored combatant per conflict the user can be scored on.
func (s *Service) Epilogue(ctx context.Context, userID string) (types.Epilogue, error) {
	survey := s.store.Survey(ctx, userID)
	records := s.store.BiasRecords(ctx, userID)
	_, featErr := s.store.Features(ctx, userID)
	if featErr != nil && survey == nil && len(records) == 0 {
		return types.Epilogue{}, fmt.Errorf("user %q: %w", userID, model.ErrUnknownUser)
	}

	var current uint64
	if b := s.current.Load(); b != nil {
		current = b.Generation
	}
	generations := make(map[string]uint64, len(records))
	for _, r := range records {
		generations[r.Conflict] = r.Generation
	}

	conflicts := s.catalog.Conflicts()
	steps := epilogue.Trajectory(records, conflicts)
	out := types.Epilogue{
		UserID:     userID,
		IntroCase:  epilogue.IntroCase(survey),
		Trajectory: epilogue.Letters(steps),
		Steps:      make([]types.TrajectoryStep, 0, len(steps)),
		Mirrors:    make(map[string]string, len(conflicts)),
		Sky:        make(map[string]float64),
	}
	if ts, ok := s.store.UpdatedAt(ctx, userID); ok {
		out.UpdatedAt = ts
	}
	for _, st := range s.tracker.Snapshot(userID) {
		out.Sky[st.Combatant] = st.Value
	}
	for _, st := range steps {
		gen := generations[st.Conflict]
		out.Steps = append(out.Steps, types.TrajectoryStep{
			Conflict:   st.Conflict,
			Outcome:    string(st.Outcome),
			Generation: gen,
			Stale:      gen < current,
		})
	}

	if featErr != nil {
		return out, nil
	}
	for _, c := range conflicts {
		cs, err := s.classifyConflict(ctx, userID, c.Name)
		switch {
		case err == nil:
			out.Mirrors[c.Name] = epilogue.Mirror(c, cs.c1.Classification, cs.c2.Classification)
		case errors.Is(err, model.ErrMissingFeature), errors.Is(err, model.ErrBoundsNotComputed):
			continue
		default:
			return types.Epilogue{}, err
		}
	}
	return out, nil
}
