// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"time"
)

// Channel names one of the aggregated feature channels of an observation window.
type Channel string

// Feature channels collected by the sensor pipeline.
const (
	ChannelDistance         Channel = "mean_distance"
	ChannelStillness        Channel = "stillness"
	ChannelAngularStillness Channel = "angular_stillness"
)

// Channels returns the required feature channels in canonical order.
func Channels() []Channel {
	return []Channel{ChannelDistance, ChannelStillness, ChannelAngularStillness}
}

// UserFeatures holds one user's per-window aggregates. The zero value has no
// channels; use NewUserFeatures or FeaturesFromMap to build one.
type UserFeatures struct {
	UserID string
	values map[Channel]float64
}

// NewUserFeatures builds a complete feature record.
func NewUserFeatures(userID string, meanDistance, stillness, angularStillness float64) UserFeatures {
	return UserFeatures{
		UserID: userID,
		values: map[Channel]float64{
			ChannelDistance:         meanDistance,
			ChannelStillness:        stillness,
			ChannelAngularStillness: angularStillness,
		},
	}
}

// FeaturesFromMap copies the given channel values. Channels missing from m
// stay absent and are reported by Validate.
func FeaturesFromMap(userID string, m map[Channel]float64) UserFeatures {
	values := make(map[Channel]float64, len(m))
	for ch, v := range m {
		values[ch] = v
	}
	return UserFeatures{UserID: userID, values: values}
}

// Value returns the value of a channel and whether it is present.
func (f UserFeatures) Value(ch Channel) (float64, bool) {
	v, ok := f.values[ch]
	return v, ok
}

// Map returns a copy of the channel values.
func (f UserFeatures) Map() map[Channel]float64 {
	out := make(map[Channel]float64, len(f.values))
	for ch, v := range f.values {
		out[ch] = v
	}
	return out
}

// Validate reports ErrMissingFeature for an absent channel and ErrInvalidInput
// for a non-finite value.
func (f UserFeatures) Validate() error {
	for _, ch := range Channels() {
		v, ok := f.values[ch]
		if !ok {
			return fmt.Errorf("user %q channel %s: %w", f.UserID, ch, ErrMissingFeature)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("user %q channel %s is not finite: %w", f.UserID, ch, ErrInvalidInput)
		}
	}
	return nil
}

// Attentiveness is the sum of the three feature channels.
func (f UserFeatures) Attentiveness() (float64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, ch := range Channels() {
		sum += f.values[ch]
	}
	return sum, nil
}

// Observation is one observation window pushed by the sensor pipeline.
type Observation struct {
	ObservationID string             // unique id for idempotency
	UserID        string             // participant identifier
	Features      UserFeatures       // aggregates for the window
	Gaze          map[string]float64 // combatant -> fraction of time looking at the face
	TS            time.Time          // end of the observation window
}

// ValidateGaze reports ErrInvalidInput for a gaze ratio outside [0,1] or NaN.
func ValidateGaze(gaze map[string]float64) error {
	for combatant, ratio := range gaze {
		if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
			return fmt.Errorf("gaze ratio %s=%v outside [0,1]: %w", combatant, ratio, ErrInvalidInput)
		}
	}
	return nil
}
