package session

import (
	"fmt"
	"time"

	"github.com/ayusman/livecapture/internal/capture"
	"github.com/ayusman/livecapture/internal/detector"
	"github.com/go-playground/validator/v10"
)

// Config is fixed for the lifetime of a session.
type Config struct {
	// StabilityThreshold is the number of consecutive qualifying frames
	// needed before the template is captured.
	StabilityThreshold int `json:"stability_threshold" validate:"gte=1"`

	// MotionThreshold is the template score at or above which the second
	// still is captured.
	MotionThreshold float64 `json:"motion_threshold" validate:"gt=0,lte=1"`

	TickPeriod   time.Duration `json:"tick_period" validate:"gt=0"`
	KillDeadline time.Duration `json:"kill_deadline" validate:"gtfield=TickPeriod"`

	// TriggerDelay forces the second capture this long after the first.
	// Zero disables it, leaving the kill deadline as the only bound.
	TriggerDelay time.Duration `json:"trigger_delay" validate:"gte=0"`

	// SettleTicks is how many ticks to wait in CapturingDelay between the
	// trigger and the second still.
	SettleTicks int `json:"settle_ticks" validate:"gte=0"`

	Template capture.TemplateConfig `json:"template"`
	Face     detector.Bounds        `json:"face"`

	// Mirror flips stills horizontally, as a front camera preview shows them.
	Mirror bool `json:"mirror"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		StabilityThreshold: 5,
		MotionThreshold:    0.08,
		TickPeriod:         66 * time.Millisecond,
		KillDeadline:       15 * time.Second,
		TriggerDelay:       3 * time.Second,
		Template:           capture.DefaultTemplateConfig(),
		Face:               detector.DefaultBounds(),
	}
}

var validate = validator.New()

// Validate checks field ranges and the template geometry.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	if err := c.Template.Validate(); err != nil {
		return fmt.Errorf("invalid session config: %w", err)
	}
	return nil
}
