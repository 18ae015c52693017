// Package scheduler provides the durable completion alarm for the timer.
package scheduler

import "time"

// Config defines the scheduler configuration.
type Config struct {
	// AlarmName is the row the pending alarm is stored under.
	AlarmName string `yaml:"alarm_name"`
	// SweepInterval is how often the backstop sweep looks for overdue
	// alarms that the in-memory timer missed.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		AlarmName:     "timer-complete",
		SweepInterval: 15 * time.Second,
	}
}

// sweepSpec returns the cron spec for the backstop sweep.
func (c *Config) sweepSpec() string {
	interval := c.SweepInterval
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}
	return "@every " + interval.String()
}
