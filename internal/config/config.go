// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load(ctx) layers a YAML file and ENEMY_* environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// EventQueueSize bounds the in-memory observation queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many observation ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the lock shards of the session registry and sky tracker.
	ShardCount int `koanf:"shard_count"`

	// GazeThreshold is the face-looking ratio below which a user looks away.
	GazeThreshold float64 `koanf:"gaze_threshold"`

	// PenaltyBelowStd and PenaltyAboveStd are the std multiples added when the
	// user looks away with a value below / at or above the lower bound.
	PenaltyBelowStd float64 `koanf:"penalty_below_std"`
	PenaltyAboveStd float64 `koanf:"penalty_above_std"`

	// UseSurveyAdjustment adds SurveyExtraStd for combatants flagged by the survey.
	UseSurveyAdjustment bool    `koanf:"use_survey_adjustment"`
	SurveyExtraStd      float64 `koanf:"survey_extra_std"`

	// SkySteps is how many successive changes cross the sky range.
	SkySteps int `koanf:"sky_steps"`

	// CatalogFile is a TOML conflict catalog; empty uses the built-in one.
	CatalogFile string `koanf:"catalog_file"`

	// IngestRatePerSec and IngestBurst limit POST /observations. A
	// non-positive rate disables the limit.
	IngestRatePerSec float64 `koanf:"ingest_rate_per_sec"`
	IngestBurst      int     `koanf:"ingest_burst"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		EventQueueSize:      10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		ShardCount:          32,
		GazeThreshold:       0.66,
		PenaltyBelowStd:     1,
		PenaltyAboveStd:     2,
		UseSurveyAdjustment: false,
		SurveyExtraStd:      1,
		SkySteps:            15,
		IngestRatePerSec:    500,
		IngestBurst:         1000,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.EventQueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount < 1:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize < 1:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.ShardCount < 1:
		return fmt.Errorf("%w: shard_count must be positive", ErrInvalidConfig)
	case c.GazeThreshold < 0 || c.GazeThreshold > 1:
		return fmt.Errorf("%w: gaze_threshold must be within [0,1]", ErrInvalidConfig)
	case c.PenaltyBelowStd < 0 || c.PenaltyAboveStd < 0 || c.SurveyExtraStd < 0:
		return fmt.Errorf("%w: std penalties must not be negative", ErrInvalidConfig)
	case c.SkySteps < 1:
		return fmt.Errorf("%w: sky_steps must be positive", ErrInvalidConfig)
	case c.IngestRatePerSec > 0 && c.IngestBurst < 1:
		return fmt.Errorf("%w: ingest_burst must be positive when rate limiting", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q must be text or json", ErrInvalidConfig, c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}
