// Package types contains the read shapes returned by the service and
// serialized by the HTTP API.
package types

import "time"

// ChannelStats is the population spread of one feature channel.
type ChannelStats struct {
	Channel string  `json:"channel"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
}

// Bounds is the current population baseline.
type Bounds struct {
	Mean           float64        `json:"mean"`
	Std            float64        `json:"std"`
	LowerBound     float64        `json:"lower_bound"`
	UpperBound     float64        `json:"upper_bound"`
	PopulationSize int            `json:"population_size"`
	Generation     uint64         `json:"generation"`
	ComputedAt     time.Time      `json:"computed_at"`
	Channels       []ChannelStats `json:"channels"`
}

// Classification is one user's nervousness toward one combatant.
type Classification struct {
	UserID         string  `json:"user_id"`
	Combatant      string  `json:"combatant"`
	Attentiveness  float64 `json:"attentiveness"`
	Value          float64 `json:"value"`
	GazeRatio      float64 `json:"gaze_ratio"`
	Classification int     `json:"classification"`
	Label          string  `json:"label"`
	Biased         bool    `json:"biased"`
	Generation     uint64  `json:"generation"`
}

// Bias is a user's outcome for one conflict.
type Bias struct {
	UserID               string           `json:"user_id"`
	Conflict             string           `json:"conflict"`
	Outcome              string           `json:"outcome"`
	OutcomeName          string           `json:"outcome_name"`
	NegativeTowardEither bool             `json:"negative_toward_either"`
	BiasedToward         string           `json:"biased_toward"`
	Mirror               string           `json:"mirror"`
	Combatants           []Classification `json:"combatants"`
	Generation           uint64           `json:"generation"`
}

// Sky is the smoothed cloud value for one (user, combatant) key.
type Sky struct {
	UserID         string  `json:"user_id"`
	Combatant      string  `json:"combatant"`
	Value          float64 `json:"value"`
	Classification int     `json:"classification"`
	Label          string  `json:"label"`
}

// TrajectoryStep is one conflict outcome of the epilogue.
type TrajectoryStep struct {
	Conflict   string `json:"conflict"`
	Outcome    string `json:"outcome"`
	Generation uint64 `json:"generation"`
	Stale      bool   `json:"stale"`
}

// Epilogue is everything the renderer needs for the closing sequence.
type Epilogue struct {
	UserID     string             `json:"user_id"`
	IntroCase  int                `json:"intro_case"`
	Trajectory string             `json:"trajectory"`
	Steps      []TrajectoryStep   `json:"steps"`
	Mirrors    map[string]string  `json:"mirrors"`
	Sky        map[string]float64 `json:"sky"` // last value per queried combatant
	UpdatedAt  time.Time          `json:"updated_at"`
}

// IngestResult acknowledges an observation window.
type IngestResult struct {
	ObservationID string `json:"observation_id"`
	Duplicate     bool   `json:"duplicate"`
}
