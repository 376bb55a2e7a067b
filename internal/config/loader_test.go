package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/mapty/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.StorageBackend, convey.ShouldEqual, config.BackendSQLite)
			convey.So(cfg.StorageKey, convey.ShouldEqual, "workouts")
			convey.So(cfg.RemovalDelay().Milliseconds(), convey.ShouldEqual, 200)
			convey.So(cfg.MapZoom, convey.ShouldEqual, 13)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoragePath, convey.ShouldEqual, "mapty.db")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MAPTY_ADDR", ":8080")
			_ = os.Setenv("MAPTY_QUEUE_SIZE", "64")
			_ = os.Setenv("MAPTY_STORAGE_BACKEND", "memory")
			_ = os.Setenv("MAPTY_REMOVAL_DELAY_MS", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.StorageBackend, convey.ShouldEqual, config.BackendMemory)
				convey.So(cfg.RemovalDelayMS, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(t, `
addr: ":9090"
storage_backend: file
storage_path: /tmp/mapty
map_zoom: 15
`)
			_ = os.Setenv("MAPTY_CONFIG", tmpFile)
			_ = os.Setenv("MAPTY_MAP_ZOOM", "11")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StorageBackend, convey.ShouldEqual, config.BackendFile)
				convey.So(cfg.StoragePath, convey.ShouldEqual, "/tmp/mapty")
				convey.So(cfg.MapZoom, convey.ShouldEqual, 11)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(t, `invalid: yaml: content: [`)
			_ = os.Setenv("MAPTY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("MAPTY_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("MAPTY_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("MAPTY_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with an unknown storage backend", func() {
			_ = os.Setenv("MAPTY_STORAGE_BACKEND", "redis")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"MAPTY_CONFIG",
		"MAPTY_ADDR",
		"MAPTY_LOG_LEVEL",
		"MAPTY_LOG_FORMAT",
		"MAPTY_QUEUE_SIZE",
		"MAPTY_DEDUPE_SIZE",
		"MAPTY_STORAGE_BACKEND",
		"MAPTY_STORAGE_PATH",
		"MAPTY_STORAGE_KEY",
		"MAPTY_REMOVAL_DELAY_MS",
		"MAPTY_MAP_ZOOM",
	} {
		_ = os.Unsetenv(key)
	}
}
