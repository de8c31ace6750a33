package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tabletriage/internal/config"
	"github.com/okian/tabletriage/internal/memory"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then defaults are returned and learning is off", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 1)
				convey.So(cfg.Learning, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TRIAGE_ADDR", ":8080")
			_ = os.Setenv("TRIAGE_WORKER_COUNT", "4")
			_ = os.Setenv("TRIAGE_SURGEON__DEDUPE_SIZE", "250")
			_ = os.Setenv("TRIAGE_SURGEON__DEDUPE", "false")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars override defaults, nested keys included", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.Surgeon.DedupeSize, convey.ShouldEqual, 250)
				convey.So(cfg.Surgeon.Dedupe, convey.ShouldBeFalse)
				convey.So(cfg.Surgeon.MaxHeaderRows, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
addr: ":9090"
queue_size: 64
surgeon:
  min_content_threshold: 0.5
  max_header_length: 40
scoring:
  base: 0.2
  weights:
    numeric_density: 0.5
learning:
  exploration_rate: 0.25
  seed: 7
`)
			_ = os.Setenv(config.EnvConfig, path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the file values are layered over defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.Surgeon.MinContentThreshold, convey.ShouldEqual, 0.5)
				convey.So(cfg.Surgeon.MaxHeaderLength, convey.ShouldEqual, 40)
				convey.So(cfg.Surgeon.MaxHeaderRows, convey.ShouldEqual, 4)
				convey.So(cfg.Scoring.Base, convey.ShouldEqual, 0.2)
				convey.So(cfg.Scoring.Weights["numeric_density"], convey.ShouldEqual, 0.5)
			})

			convey.Convey("Then the learning block keeps defaults for unset keys", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Learning, convey.ShouldNotBeNil)
				convey.So(cfg.Learning.Enabled, convey.ShouldBeTrue)
				convey.So(cfg.Learning.ExplorationRate, convey.ShouldEqual, 0.25)
				convey.So(cfg.Learning.Seed, convey.ShouldEqual, 7)
				convey.So(cfg.Learning.CandidateLimit, convey.ShouldEqual, memory.DefaultConfig().CandidateLimit)
			})

			convey.Convey("Then env still wins over the file", func() {
				_ = os.Setenv("TRIAGE_ADDR", ":7000")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7000")
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the file holds invalid values", func() {
			path := writeConfigFile(t, "worker_count: 0\n")
			_, err := config.LoadFile(ctx, path)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	envVars := []string{
		config.EnvConfig,
		"TRIAGE_ADDR",
		"TRIAGE_WORKER_COUNT",
		"TRIAGE_SURGEON__DEDUPE_SIZE",
		"TRIAGE_SURGEON__DEDUPE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triage.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}
