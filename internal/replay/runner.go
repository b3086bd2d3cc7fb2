package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/enemy/internal/domain/scoring"
	"github.com/okian/enemy/pkg/logger"
)

// Default run configuration constants.
const (
	DefaultUsers         = 1000
	DefaultTimeout       = 30 * time.Second
	DefaultSettleTimeout = time.Minute
	percentageMultiplier = 100
)

// Run executes the complete replay: health check, population, submission,
// bounds refresh and verification.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.Adjuster == nil {
		cfg.Adjuster = scoring.NewGazeAdjuster()
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = DefaultSettleTimeout
	}
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting replay",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("workers", cfg.Workers),
		logger.String("input", cfg.InputFile))

	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	population, err := loadPopulation(ctx, client, cfg)
	if err != nil {
		return stats, err
	}
	stats.Generated = len(population)

	if cfg.OutputFile != "" {
		if err := WriteSnapshot(cfg.OutputFile, population); err != nil {
			log.Warn(ctx, "failed to save population snapshot", logger.Error(err))
		} else {
			log.Info(ctx, "population snapshot saved", logger.String("file", cfg.OutputFile))
		}
	}

	submit(ctx, client, cfg, population, stats)
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%d observations failed", stats.Failed)
	}

	log.Info(ctx, "waiting for observations to be applied")
	if err := waitForUsers(ctx, client, len(population), cfg.SettleTimeout); err != nil {
		return stats, fmt.Errorf("wait for users: %w", err)
	}

	served, err := client.RefreshBounds(ctx)
	if err != nil {
		return stats, fmt.Errorf("refresh bounds: %w", err)
	}
	stats.BoundsVerified, err = verifyBounds(population, served)
	if err != nil {
		return stats, err
	}
	if !stats.BoundsVerified {
		log.Warn(ctx, "service holds other users; bounds not compared",
			logger.Int("served_population", served.PopulationSize),
			logger.Int("replayed", len(population)))
	}

	mismatches := verifyClassifications(ctx, client, cfg, population, served, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if len(mismatches) > 0 {
		return stats, fmt.Errorf("%w: %d of %d classifications", ErrMismatch, len(mismatches), stats.Checked)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	log.Info(ctx, "replay completed successfully")
	return stats, nil
}

// loadPopulation reads the input snapshot or generates one for the
// service's combatants.
func loadPopulation(ctx context.Context, client *Client, cfg *Config) ([]Participant, error) {
	if cfg.InputFile != "" {
		population, err := ReadSnapshot(cfg.InputFile)
		if err != nil {
			return nil, err
		}
		if len(population) == 0 {
			return nil, errors.New("snapshot holds no participants")
		}
		return population, nil
	}

	conflicts, err := client.Conflicts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	var combatants []string
	for _, c := range conflicts {
		combatants = append(combatants, c.Combatant1, c.Combatant2)
	}
	return Generate(cfg.Seed, cfg.Users, combatants)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, perSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Accepted+stats.Duplicate) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("failed", stats.Failed),
		logger.Int("checked", stats.Checked),
		logger.Int("mismatches", stats.Mismatches),
		logger.Bool("bounds_verified", stats.BoundsVerified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("success_rate", successRate),
		logger.Float64("observations_per_second", perSecond))
}
