// Package repository keeps per-user session state in memory for the life of
// the process.
package repository

import (
	"context"
	"time"

	"github.com/okian/enemy/internal/domain/model"
)

// Store provides read/write access to per-user session state.
type Store interface {
	// Apply stores the features and gaze ratios of an observation window.
	Apply(ctx context.Context, obs model.Observation) error
	// Features returns the latest features of a user.
	// Returns model.ErrUnknownUser if none were recorded.
	Features(ctx context.Context, userID string) (model.UserFeatures, error)
	// Population returns the latest features of every user, ordered by user id.
	Population(ctx context.Context) []model.UserFeatures
	// Gaze returns the fraction of time the user looked at a combatant's face.
	Gaze(ctx context.Context, userID, combatant string) (float64, error)

	PutSurvey(ctx context.Context, userID string, answers model.SurveyAnswers) error
	// Survey returns the survey answers of a user, nil when none were stored.
	Survey(ctx context.Context, userID string) *model.SurveyAnswers

	PutBias(ctx context.Context, rec model.BiasRecord) error
	// BiasRecords returns the latest record per conflict, ordered by conflict.
	BiasRecords(ctx context.Context, userID string) []model.BiasRecord

	// UpdatedAt returns when the user's session last changed.
	UpdatedAt(ctx context.Context, userID string) (time.Time, bool)

	// Count returns the number of users with recorded features.
	Count(ctx context.Context) int
}
