// Package config loads livecapture settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/detector"
	"github.com/ayusman/livecapture/internal/hook"
	"github.com/ayusman/livecapture/internal/session"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every environment variable name.
const Prefix = "LIVECAPTURE_"

// Config is the full runtime configuration.
type Config struct {
	DataDir    string
	DBPath     string
	CaptureDir string
	HookDir    string
	WebDir     string
	Addr       string

	HookTimeout time.Duration

	CameraID     int
	CameraWidth  int
	CameraHeight int
	FPS          int
	MaxImageSide int

	LogLevel string
	LogFile  string

	Detector detector.Config
	Session  session.Config
}

// Default returns the configuration used when nothing is set. Paths live
// under ~/.livecapture.
func Default() Config {
	dataDir := ".livecapture"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".livecapture")
	}

	return Config{
		DataDir:      dataDir,
		DBPath:       filepath.Join(dataDir, "livecapture.db"),
		CaptureDir:   filepath.Join(dataDir, "captures"),
		HookDir:      filepath.Join(dataDir, "hooks"),
		WebDir:       findWebDir(dataDir),
		Addr:         ":8080",
		HookTimeout:  hook.DefaultTimeout,
		CameraWidth:  capture.DefaultWidth,
		CameraHeight: capture.DefaultHeight,
		FPS:          capture.DefaultFPS,
		MaxImageSide: capture.UploadMaxSide,
		LogLevel:     "info",
		Detector:     detector.DefaultConfig(),
		Session:      session.DefaultConfig(),
	}
}

// Load reads envFile into the process environment, then builds the
// configuration from LIVECAPTURE_* variables. Variables already set in the
// environment win over the file. An empty envFile tries ".env" and
// tolerates its absence.
func Load(envFile string) (Config, error) {
	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from Default and the variables visible through lookup.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	e := env{lookup: lookup}

	if dir, ok := e.get("DATA_DIR"); ok {
		cfg.DataDir = dir
		cfg.DBPath = filepath.Join(dir, "livecapture.db")
		cfg.CaptureDir = filepath.Join(dir, "captures")
		cfg.HookDir = filepath.Join(dir, "hooks")
	}
	e.str("DB", &cfg.DBPath)
	e.str("CAPTURE_DIR", &cfg.CaptureDir)
	e.str("HOOK_DIR", &cfg.HookDir)
	e.str("WEB_DIR", &cfg.WebDir)
	e.str("ADDR", &cfg.Addr)
	e.duration("HOOK_TIMEOUT", &cfg.HookTimeout)
	e.integer("CAMERA", &cfg.CameraID)
	e.integer("WIDTH", &cfg.CameraWidth)
	e.integer("HEIGHT", &cfg.CameraHeight)
	e.integer("FPS", &cfg.FPS)
	e.integer("MAX_IMAGE_SIDE", &cfg.MaxImageSide)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("LOG_FILE", &cfg.LogFile)

	e.str("DETECTOR", &cfg.Detector.Backend)
	e.str("MODEL", &cfg.Detector.ModelPath)
	e.str("CASCADE", &cfg.Detector.CascadePath)
	if cmd, ok := e.get("DETECTOR_CMD"); ok {
		cfg.Detector.Command = strings.Fields(cmd)
	}
	e.duration("DETECTOR_IDLE", &cfg.Detector.IdleTimeout)
	e.duration("DETECTOR_TIMEOUT", &cfg.Detector.RequestTimeout)
	e.float("MIN_CONFIDENCE", &cfg.Detector.MinConfidence)
	cfg.Session.Face.MinConfidence = cfg.Detector.MinConfidence

	e.integer("STABILITY", &cfg.Session.StabilityThreshold)
	e.float("MOTION_THRESHOLD", &cfg.Session.MotionThreshold)
	e.duration("TICK", &cfg.Session.TickPeriod)
	e.duration("KILL_DEADLINE", &cfg.Session.KillDeadline)
	e.duration("TRIGGER_DELAY", &cfg.Session.TriggerDelay)
	e.integer("SETTLE_TICKS", &cfg.Session.SettleTicks)
	e.boolean("MIRROR", &cfg.Session.Mirror)

	if len(e.errs) > 0 {
		return Config{}, errors.Join(e.errs...)
	}
	if err := cfg.Session.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnsureDirs creates the data, capture and hook directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, filepath.Dir(c.DBPath), c.CaptureDir, c.HookDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// env reads prefixed variables and collects parse errors.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) get(key string) (string, bool) {
	v, ok := e.lookup(Prefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *env) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *env) integer(key string, dst *int) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", Prefix, key, err))
		return
	}
	*dst = n
}

func (e *env) float(key string, dst *float64) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", Prefix, key, err))
		return
	}
	*dst = f
}

func (e *env) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", Prefix, key, err))
		return
	}
	*dst = d
}

func (e *env) boolean(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s%s: %w", Prefix, key, err))
		return
	}
	*dst = b
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
