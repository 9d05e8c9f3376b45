package scheduler

import "time"

// Config controls the scheduler tick and per-job cadences.
type Config struct {
	RunInterval     time.Duration
	JobTimeout      time.Duration
	VerifyInterval  time.Duration
	ExpireInterval  time.Duration
	CleanupInterval time.Duration
	EnabledJobs     []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Minute,
		JobTimeout:      10 * time.Minute,
		VerifyInterval:  24 * time.Hour,
		ExpireInterval:  24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.VerifyInterval <= 0 {
		c.VerifyInterval = defaults.VerifyInterval
	}
	if c.ExpireInterval <= 0 {
		c.ExpireInterval = defaults.ExpireInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaults.CleanupInterval
	}
	return c
}
