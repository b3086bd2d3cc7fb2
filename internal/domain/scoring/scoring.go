// Package scoring turns one user's features into a nervousness classification
// relative to the population bounds.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/enemy/internal/domain/bounds"
	"github.com/okian/enemy/internal/domain/model"
)

// Default adjustment constants.
const (
	DefaultGazeThreshold = 0.66
	DefaultBelowStd      = 1.0
	DefaultAboveStd      = 2.0
	DefaultSurveyStd     = 1.0
)

// Input bundles what a single classification needs.
type Input struct {
	Combatant string
	Features  model.UserFeatures
	Bounds    bounds.PopulationBounds
	// GazeRatio is the fraction of the window spent looking at the combatant's face.
	GazeRatio float64
	// Survey is optional; adjusters that do not use it ignore it.
	Survey *model.SurveyAnswers
}

// Result contains the computed classification for a user and combatant.
type Result struct {
	UserID         string
	Combatant      string
	Attentiveness  float64
	Value          float64
	Classification model.Classification
	Generation     uint64
}

// Scorer classifies a user's nervousness toward a combatant.
type Scorer interface {
	// Classify computes the adjusted value and its classification, honoring ctx for cancellation.
	Classify(ctx context.Context, in Input) (Result, error)
}

// Option applies a configuration option to the BoundsScorer.
type Option func(*BoundsScorer)

// WithAdjuster sets the bias adjustment strategy.
func WithAdjuster(a Adjuster) Option {
	return func(s *BoundsScorer) {
		if a != nil {
			s.adjuster = a
		}
	}
}

// BoundsScorer implements Scorer against PopulationBounds.
type BoundsScorer struct {
	adjuster Adjuster
}

// NewBoundsScorer creates a scorer using the gaze adjustment unless overridden.
func NewBoundsScorer(opts ...Option) *BoundsScorer {
	s := &BoundsScorer{
		adjuster: NewGazeAdjuster(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classify computes the nervousness value for in and classifies it.
func (s *BoundsScorer) Classify(ctx context.Context, in Input) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context cancelled: %w", err)
	}
	if !in.Bounds.Computed() {
		return Result{}, model.ErrBoundsNotComputed
	}
	if math.IsNaN(in.GazeRatio) || in.GazeRatio < 0 || in.GazeRatio > 1 {
		return Result{}, fmt.Errorf("gaze ratio %v outside [0,1]: %w", in.GazeRatio, model.ErrInvalidInput)
	}
	attentiveness, err := in.Features.Attentiveness()
	if err != nil {
		return Result{}, err
	}

	value := s.adjuster.Adjust(in, attentiveness)
	return Result{
		UserID:         in.Features.UserID,
		Combatant:      in.Combatant,
		Attentiveness:  attentiveness,
		Value:          value,
		Classification: ClassifyValue(value, in.Bounds),
		Generation:     in.Bounds.Generation,
	}, nil
}

// ClassifyValue maps a value onto {-1, 0, 1}: below the lower bound is low,
// at or above the upper bound is high, anything between is neutral.
func ClassifyValue(value float64, b bounds.PopulationBounds) model.Classification {
	switch {
	case value < b.LowerBound:
		return model.ClassLow
	case value < b.UpperBound:
		return model.ClassNeutral
	default:
		return model.ClassHigh
	}
}
