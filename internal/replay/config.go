// Package replay drives a running scoring service with a synthetic
// population and checks its answers against a local computation.
package replay

import (
	"time"

	"github.com/okian/enemy/internal/domain/model"
	"github.com/okian/enemy/internal/domain/scoring"
)

// Config holds configuration for a replay run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Users         int           // Number of participants to generate
	Seed          int64         // Generator seed; equal seeds give equal populations
	Workers       int           // Number of concurrent HTTP workers
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // How long to wait for the workers to apply observations
	InputFile     string        // Replay this snapshot instead of generating
	OutputFile    string        // Write the population snapshot here; .zst compresses
	Adjuster      scoring.Adjuster
}

// Participant is one synthetic user with a single observation window.
type Participant struct {
	UserID           string             `json:"user_id"`
	Profile          string             `json:"profile"`
	MeanDistance     float64            `json:"mean_distance"`
	Stillness        float64            `json:"stillness"`
	AngularStillness float64            `json:"angular_stillness"`
	Gaze             map[string]float64 `json:"gaze"`
}

// Features returns the participant's window as domain features.
func (p Participant) Features() model.UserFeatures {
	return model.NewUserFeatures(p.UserID, p.MeanDistance, p.Stillness, p.AngularStillness)
}

// Stats holds run statistics.
type Stats struct {
	Generated      int
	Submitted      int
	Accepted       int
	Duplicate      int
	Failed         int
	Checked        int
	Mismatches     int
	BoundsVerified bool
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
