package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/okian/enemy/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.GazeThreshold, convey.ShouldEqual, 0.66)
			convey.So(cfg.PenaltyBelowStd, convey.ShouldEqual, 1.0)
			convey.So(cfg.PenaltyAboveStd, convey.ShouldEqual, 2.0)
			convey.So(cfg.SkySteps, convey.ShouldEqual, 15)
			convey.So(cfg.UseSurveyAdjustment, convey.ShouldBeFalse)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with one invalid field", t, func() {
		ctx := context.Background()
		cases := []func(*config.Config){
			func(c *config.Config) { c.Addr = "" },
			func(c *config.Config) { c.EventQueueSize = 0 },
			func(c *config.Config) { c.WorkerCount = -1 },
			func(c *config.Config) { c.DedupeSize = 0 },
			func(c *config.Config) { c.ShardCount = 0 },
			func(c *config.Config) { c.GazeThreshold = 1.2 },
			func(c *config.Config) { c.PenaltyAboveStd = -1 },
			func(c *config.Config) { c.SkySteps = 0 },
			func(c *config.Config) { c.IngestBurst = 0 },
			func(c *config.Config) { c.LogFormat = "xml" },
			func(c *config.Config) { c.LogLevel = "loud" },
		}

		convey.Convey("Then each one is rejected as invalid config", func() {
			for _, mutate := range cases {
				cfg := config.New(ctx)
				mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})

		convey.Convey("And a disabled rate limit needs no burst", func() {
			cfg := config.New(ctx)
			cfg.IngestRatePerSec = 0
			cfg.IngestBurst = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
