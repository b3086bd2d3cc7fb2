// Command replay drives a running scoring service with a synthetic
// population and verifies its classifications.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/enemy/internal/catalog"
	"github.com/okian/enemy/internal/domain/scoring"
	"github.com/okian/enemy/internal/replay"
	"github.com/okian/enemy/pkg/logger"
	urfave "github.com/urfave/cli/v2"
)

const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	runTimeout     = 10 * time.Minute
)

var (
	version = "v0.0.1-default"

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}
	usersFlag = &urfave.IntFlag{
		Name:  "users",
		Usage: "Number of participants to generate",
		Value: replay.DefaultUsers,
	}
	seedFlag = &urfave.Int64Flag{
		Name:  "seed",
		Usage: "Generator seed; equal seeds give equal populations",
		Value: 1,
	}
	outputFlag = &urfave.StringFlag{
		Name:  "output",
		Usage: "Write the population snapshot here; a .zst suffix compresses it",
	}
	urlFlag = &urfave.StringFlag{
		Name:  "url",
		Usage: "Base URL of the service",
		Value: "http://localhost:9080",
	}
	workersFlag = &urfave.IntFlag{
		Name:  "workers",
		Usage: "Number of concurrent HTTP workers",
		Value: runtime.NumCPU() * defaultWorkers,
	}
	timeoutFlag = &urfave.DurationFlag{
		Name:  "timeout",
		Usage: "HTTP request timeout",
		Value: replay.DefaultTimeout,
	}
	settleFlag = &urfave.DurationFlag{
		Name:  "settle",
		Usage: "How long to wait for the service to apply all observations",
		Value: replay.DefaultSettleTimeout,
	}
	inputFlag = &urfave.StringFlag{
		Name:  "input",
		Usage: "Replay this snapshot instead of generating a population",
	}
	surveyFlag = &urfave.BoolFlag{
		Name:  "survey-adjustment",
		Usage: "Verify against the survey-aware adjuster (match the service setting)",
	}
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "replay failed:", err)
		os.Exit(1)
	}
}

func newApp() *urfave.App {
	return &urfave.App{
		Name:            "replay",
		Version:         version,
		Usage:           "Replay synthetic observation windows against the scoring service",
		HideHelpCommand: true,
		Flags:           []urfave.Flag{debugFlag},
		Before: func(c *urfave.Context) error {
			if err := logger.Init(); err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			if c.Bool(debugFlag.Name) {
				return logger.SetLevelString("debug")
			}
			return nil
		},
		Commands: []*urfave.Command{
			runCmd,
			generateCmd,
		},
	}
}

var runCmd = &urfave.Command{
	Name:  "run",
	Usage: "Submit a population, refresh bounds and verify every classification",
	Flags: []urfave.Flag{
		urlFlag,
		usersFlag,
		seedFlag,
		workersFlag,
		timeoutFlag,
		settleFlag,
		inputFlag,
		outputFlag,
		surveyFlag,
	},
	Action: func(c *urfave.Context) error {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()

		var adj scoring.Adjuster = scoring.NewGazeAdjuster()
		if c.Bool(surveyFlag.Name) {
			adj = scoring.NewSurveyAdjuster(scoring.NewGazeAdjuster())
		}

		_, err := replay.Run(ctx, &replay.Config{
			BaseURL:       c.String(urlFlag.Name),
			Users:         c.Int(usersFlag.Name),
			Seed:          c.Int64(seedFlag.Name),
			Workers:       c.Int(workersFlag.Name),
			Timeout:       c.Duration(timeoutFlag.Name),
			SettleTimeout: c.Duration(settleFlag.Name),
			InputFile:     c.String(inputFlag.Name),
			OutputFile:    c.String(outputFlag.Name),
			Adjuster:      adj,
		})
		return err
	},
}

var generateCmd = &urfave.Command{
	Name:  "generate",
	Usage: "Write a population snapshot for the built-in conflicts without a service",
	Flags: []urfave.Flag{
		usersFlag,
		seedFlag,
		&urfave.StringFlag{
			Name:     outputFlag.Name,
			Usage:    outputFlag.Usage,
			Required: true,
		},
	},
	Action: func(c *urfave.Context) error {
		cat, err := catalog.Default()
		if err != nil {
			return err
		}
		population, err := replay.Generate(c.Int64(seedFlag.Name), c.Int(usersFlag.Name), cat.Combatants())
		if err != nil {
			return err
		}
		path := c.String(outputFlag.Name)
		if err := replay.WriteSnapshot(path, population); err != nil {
			return err
		}
		logger.Get().Info(c.Context, "population snapshot written",
			logger.String("file", path),
			logger.Int("users", len(population)))
		return nil
	},
}
