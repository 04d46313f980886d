package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/meowith/connector-go/internal/validate"
)

type config struct {
	Addr            string        `json:"addr" validate:"required"`
	MetricsAddr     string        `json:"metrics_addr"`
	Token           string        `json:"token" validate:"required"`
	AppID           uuid.UUID     `json:"app_id" validate:"required"`
	BucketID        uuid.UUID     `json:"bucket_id" validate:"required"`
	BucketName      string        `json:"bucket_name" validate:"required"`
	Quota           int64         `json:"quota" validate:"gt=0"`
	SessionValidity time.Duration `json:"session_validity" validate:"gt=0"`
	SeedDir         string        `json:"seed_dir"`
	LogLevel        string        `json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat       string        `json:"log_format" validate:"oneof=text json"`
}

// loadConfig reads flags from args. Every flag defaults to its MEOWITH_*
// environment variable, then to a built-in value.
func loadConfig(args []string, getenv func(string) string) (config, error) {
	envOr := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	quota, err := strconv.ParseInt(envOr("MEOWITH_QUOTA", strconv.Itoa(1<<30)), 10, 64)
	if err != nil {
		return config{}, fmt.Errorf("MEOWITH_QUOTA: %w", err)
	}
	validity, err := time.ParseDuration(envOr("MEOWITH_SESSION_VALIDITY", "1h"))
	if err != nil {
		return config{}, fmt.Errorf("MEOWITH_SESSION_VALIDITY: %w", err)
	}

	var cfg config
	var appID, bucketID string

	fs := flag.NewFlagSet("meowith-fakenode", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Addr, "addr", envOr("MEOWITH_ADDR", ":4000"), "node listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", envOr("MEOWITH_METRICS_ADDR", ""), "prometheus listen address, empty to disable")
	fs.StringVar(&cfg.Token, "token", envOr("MEOWITH_TOKEN", ""), "bearer token the node accepts")
	fs.StringVar(&appID, "app", envOr("MEOWITH_APP_ID", ""), "application id, random when empty")
	fs.StringVar(&bucketID, "bucket", envOr("MEOWITH_BUCKET_ID", ""), "bucket id, random when empty")
	fs.StringVar(&cfg.BucketName, "bucket-name", envOr("MEOWITH_BUCKET_NAME", "fakenode"), "bucket name")
	fs.Int64Var(&cfg.Quota, "quota", quota, "bucket quota in bytes")
	fs.DurationVar(&cfg.SessionValidity, "session-validity", validity, "idle lifetime of an upload session")
	fs.StringVar(&cfg.SeedDir, "seed", envOr("MEOWITH_SEED_DIR", ""), "directory whose files are loaded into the bucket")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("MEOWITH_LOG_LEVEL", "info"), "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", envOr("MEOWITH_LOG_FORMAT", "text"), "text or json")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if cfg.AppID, err = parseID(appID); err != nil {
		return config{}, fmt.Errorf("app id: %w", err)
	}
	if cfg.BucketID, err = parseID(bucketID); err != nil {
		return config{}, fmt.Errorf("bucket id: %w", err)
	}

	if err := validate.Check(cfg); err != nil {
		return config{}, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(s)
}

func newLogger(w io.Writer, cfg config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
