package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/planetforge/engine/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.PersistQueueSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.SessionIdleTimeoutS, convey.ShouldEqual, 900)
				convey.So(cfg.PerSampleDeltaCap, convey.ShouldEqual, 2.0)
				convey.So(cfg.StageThresholds, convey.ShouldResemble, []float64{20, 40, 60, 80})
				convey.So(cfg.StageBonusPoints, convey.ShouldEqual, 50)
				convey.So(cfg.MaxListLimit, convey.ShouldEqual, 100)
				convey.So(cfg.AllowConcurrentSessions, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When environment variables override defaults", func() {
			clearConfigEnvVars()
			_ = os.Setenv("FORGE_ADDR", ":8088")
			_ = os.Setenv("FORGE_PERSIST_QUEUE_SIZE", "1000")
			_ = os.Setenv("FORGE_SESSION_IDLE_TIMEOUT_S", "120")
			_ = os.Setenv("FORGE_LOG_LEVEL", "debug")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the environment values win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8088")
				convey.So(cfg.PersistQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.SessionIdleTimeoutS, convey.ShouldEqual, 120)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When an environment variable is invalid", func() {
			clearConfigEnvVars()
			_ = os.Setenv("FORGE_PERSIST_QUEUE_SIZE", "-5")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then validation rejects the config", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the config file path does not exist", func() {
			clearConfigEnvVars()
			_ = os.Setenv("FORGE_CONFIG", "/nonexistent/config.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then loading fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	vars := []string{
		"FORGE_CONFIG",
		"FORGE_ADDR",
		"FORGE_LOG_LEVEL",
		"FORGE_PERSIST_QUEUE_SIZE",
		"FORGE_PERSIST_WORKER_COUNT",
		"FORGE_SESSION_IDLE_TIMEOUT_S",
		"FORGE_REAPER_INTERVAL_S",
		"FORGE_ALLOW_CONCURRENT_SESSIONS",
		"FORGE_PER_SAMPLE_DELTA_CAP",
		"FORGE_STAGE_BONUS_POINTS",
		"FORGE_SNAPSHOT_INTERVAL_S",
		"FORGE_MAX_LIST_LIMIT",
		"FORGE_ANALYZER_URL",
		"FORGE_ANALYZER_API_KEY",
		"FORGE_ANALYZER_TIMEOUT_MS",
		"FORGE_STORE_TIMEOUT_MS",
		"FORGE_IDENTITY_SECRET",
		"FORGE_WS_READ_LIMIT",
		"FORGE_WS_SEND_BUFFER",
	}
	for _, v := range vars {
		_ = os.Unsetenv(v)
	}
}
