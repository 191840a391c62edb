package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/okian/tvi/internal/config"
	"github.com/okian/tvi/internal/domain/scoring"
	"github.com/okian/tvi/internal/domain/zone"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.ScalingConstant, convey.ShouldEqual, scoring.DefaultScalingConstant)
			convey.So(cfg.IncludeEntropy, convey.ShouldBeTrue)
			convey.So(cfg.Grid.Rows, convey.ShouldEqual, 3)
			convey.So(cfg.Grid.Cols, convey.ShouldEqual, 3)
			convey.So(cfg.Grid.ZoneMap, convey.ShouldResemble, zone.DefaultZoneMap)
			convey.So(cfg.Columns.PlayTime, convey.ShouldEqual, "play_time")
			convey.So(len(cfg.Categories), convey.ShouldEqual, 3)
			convey.So(cfg.DeriveCategories, convey.ShouldBeFalse)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the default grid builds", func() {
			g, err := cfg.Grid.Build()
			convey.So(err, convey.ShouldBeNil)
			convey.So(g.Rows()*g.Cols(), convey.ShouldEqual, 9)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with a single invalid setting", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"zero workers", func(c *config.Config) { c.WorkerCount = 0 }},
			{"zero queue", func(c *config.Config) { c.QueueSize = 0 }},
			{"non-positive scaling", func(c *config.Config) { c.ScalingConstant = 0 }},
			{"negative min minutes", func(c *config.Config) { c.MinPlayTime = -1 }},
			{"short zone map", func(c *config.Config) { c.Grid.ZoneMap = []string{"1", "2", "3", "4", "5"} }},
			{"empty x range", func(c *config.Config) { c.Grid.XMax = c.Grid.XMin }},
			{"missing column", func(c *config.Config) { c.Columns.X = "" }},
			{"bad template", func(c *config.Config) {
				c.DeriveCategories = true
				c.CategoryTemplate = "{category}"
			}},
		}

		for _, tc := range cases {
			cfg := config.New(context.Background())
			tc.mutate(cfg)

			convey.Convey("Then "+tc.name+" is rejected as invalid config", func() {
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then a short zone map also reports the grid error", func() {
			cfg := config.New(context.Background())
			cfg.Grid.ZoneMap = []string{"1"}
			convey.So(errors.Is(cfg.Validate(), zone.ErrInvalidGrid), convey.ShouldBeTrue)
		})

		convey.Convey("Then the position column may be empty", func() {
			cfg := config.New(context.Background())
			cfg.Columns.Position = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
