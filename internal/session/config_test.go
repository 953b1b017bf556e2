package session

import (
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "zero stability", mutate: func(c *Config) { c.StabilityThreshold = 0 }, wantErr: true},
		{name: "zero motion threshold", mutate: func(c *Config) { c.MotionThreshold = 0 }, wantErr: true},
		{name: "motion threshold above max", mutate: func(c *Config) { c.MotionThreshold = 1.5 }, wantErr: true},
		{name: "zero tick", mutate: func(c *Config) { c.TickPeriod = 0 }, wantErr: true},
		{name: "deadline shorter than tick", mutate: func(c *Config) { c.KillDeadline = time.Millisecond }, wantErr: true},
		{name: "trigger delay disabled", mutate: func(c *Config) { c.TriggerDelay = 0 }},
		{name: "negative trigger delay", mutate: func(c *Config) { c.TriggerDelay = -time.Second }, wantErr: true},
		{name: "negative settle", mutate: func(c *Config) { c.SettleTicks = -1 }, wantErr: true},
		{name: "template outside frame", mutate: func(c *Config) { c.Template.XPos = 100 }, wantErr: true},
		{name: "inverted face bounds", mutate: func(c *Config) { c.Face.MaxWidth = c.Face.MinWidth / 2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
