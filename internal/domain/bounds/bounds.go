// Package bounds computes the population baseline that classification
// thresholds are derived from.
package bounds

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/enemy/internal/domain/model"
)

// ChannelStats is the distribution of one feature channel across the population.
type ChannelStats struct {
	Channel model.Channel
	Mean    float64
	Std     float64
}

// PopulationBounds is the immutable baseline shared by classification calls.
type PopulationBounds struct {
	Mean       float64
	Std        float64
	LowerBound float64
	UpperBound float64
	Size       int
	Channels   []ChannelStats
	// Generation increases on every refresh; zero means never computed.
	Generation uint64
	ComputedAt time.Time
}

// Computed reports whether b came from a population snapshot.
func (b PopulationBounds) Computed() bool { return b.Size > 0 }

// FromPopulation computes per-channel population mean and standard deviation,
// sums the means and combines the deviations by root-sum-of-squares.
func FromPopulation(population []model.UserFeatures) (PopulationBounds, error) {
	if len(population) == 0 {
		return PopulationBounds{}, fmt.Errorf("empty population: %w", model.ErrInvalidInput)
	}
	for _, f := range population {
		if err := f.Validate(); err != nil {
			return PopulationBounds{}, err
		}
	}

	n := float64(len(population))
	out := PopulationBounds{Size: len(population)}
	variance := 0.0
	for _, ch := range model.Channels() {
		sum := 0.0
		for _, f := range population {
			v, _ := f.Value(ch)
			sum += v
		}
		mean := sum / n

		sumSq := 0.0
		for _, f := range population {
			v, _ := f.Value(ch)
			d := v - mean
			sumSq += d * d
		}
		chVar := sumSq / n

		out.Channels = append(out.Channels, ChannelStats{Channel: ch, Mean: mean, Std: math.Sqrt(chVar)})
		out.Mean += mean
		variance += chVar
	}
	out.Std = math.Sqrt(variance)
	out.LowerBound = out.Mean - out.Std
	out.UpperBound = out.Mean + out.Std
	return out, nil
}

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithClock sets the clock used to stamp ComputedAt.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Calculator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// Calculator stamps computed bounds with a generation and time.
type Calculator struct {
	clock      clockwork.Clock
	generation atomic.Uint64
}

// NewCalculator creates a calculator.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compute derives fresh bounds from the snapshot. Each successful call yields
// a new generation; failed calls leave the counter unchanged.
func (c *Calculator) Compute(ctx context.Context, population []model.UserFeatures) (PopulationBounds, error) {
	if err := ctx.Err(); err != nil {
		return PopulationBounds{}, fmt.Errorf("context cancelled: %w", err)
	}
	b, err := FromPopulation(population)
	if err != nil {
		return PopulationBounds{}, err
	}
	b.Generation = c.generation.Add(1)
	b.ComputedAt = c.clock.Now()
	return b, nil
}

// Generation returns the most recent generation handed out.
func (c *Calculator) Generation() uint64 {
	return c.generation.Load()
}
