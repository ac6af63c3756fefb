// Package config reads settings for both binaries from the environment, after
// loading a .env file when one is present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/frc-plan-sync/internal/projection"
)

const (
	EnvAddr        = "PLANNER_ADDR"
	EnvServerURL   = "PLANNER_SERVER_URL"
	EnvDatabaseURL = "PLANNER_DATABASE_URL"
	EnvDataDir     = "PLANNER_DATA_DIR"
	EnvSession     = "PLANNER_SESSION"
	EnvLogLevel    = "PLANNER_LOG_LEVEL"
	EnvLocale      = "PLANNER_LOCALE"
	EnvTimingFile  = "PLANNER_TIMING_FILE"
)

type Config struct {
	// Addr is where the server listens.
	Addr string
	// ServerURL is the sync server the CLI talks to. Empty means offline.
	ServerURL string
	// DatabaseURL switches the server from in-memory sessions to Postgres.
	DatabaseURL string
	// DataDir holds the CLI's local database.
	DataDir  string
	Session  string
	LogLevel zapcore.Level
	Locale   language.Tag
	Timing   projection.Timing
}

func Default() Config {
	return Config{
		Addr:     ":8080",
		DataDir:  defaultDataDir(),
		LogLevel: zapcore.InfoLevel,
		Locale:   language.English,
		Timing:   projection.DefaultTiming(),
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "frc-planner")
	}
	return ".frc-planner"
}

// Load reads envFile (if it exists) into the environment without overriding
// variables already set, then builds a Config from the environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Unset variables keep their defaults.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	if v := getenv(EnvAddr); v != "" {
		cfg.Addr = v
	}
	cfg.ServerURL = strings.TrimRight(getenv(EnvServerURL), "/")
	cfg.DatabaseURL = getenv(EnvDatabaseURL)
	if v := getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	cfg.Session = getenv(EnvSession)

	if v := getenv(EnvLogLevel); v != "" {
		lvl, err := zapcore.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
		cfg.LogLevel = lvl
	}
	if v := getenv(EnvLocale); v != "" {
		tag, err := language.Parse(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvLocale, err)
		}
		cfg.Locale = tag
	}
	if v := getenv(EnvTimingFile); v != "" {
		t, err := LoadTiming(v)
		if err != nil {
			return Config{}, err
		}
		cfg.Timing = t
	}
	return cfg, nil
}

// LoadTiming reads match phase lengths in seconds from a yaml file. Phases
// the file leaves out keep their default length.
func LoadTiming(path string) (projection.Timing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return projection.Timing{}, fmt.Errorf("read timing file: %w", err)
	}
	t := projection.DefaultTiming()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return projection.Timing{}, fmt.Errorf("parse timing file %s: %w", path, err)
	}
	if t.Auto < 0 || t.Teleop < 0 || t.Endgame < 0 {
		return projection.Timing{}, fmt.Errorf("timing file %s: phase lengths must not be negative", path)
	}
	return t, nil
}

// Logger builds the process logger. Debug level gets the development encoder.
func (c Config) Logger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.LogLevel <= zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(c.LogLevel)
	return zc.Build()
}
