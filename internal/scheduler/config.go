package scheduler

import (
	"time"

	"github.com/smallbiznis/utilitybilling/internal/config"
)

// Config controls the invoicing sweep.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	BatchSize   int
	// MaxBatchesPerRun bounds how many batches one sweep drains.
	MaxBatchesPerRun int
	JobTimeout       time.Duration
	LockTTL          time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		RunInterval:      5 * time.Minute,
		BatchSize:        100,
		MaxBatchesPerRun: 10,
		JobTimeout:       2 * time.Minute,
		LockTTL:          5 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.SchedulerEnabled,
		RunInterval: cfg.SchedulerInterval,
		BatchSize:   cfg.SchedulerBatchSize,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.MaxBatchesPerRun <= 0 {
		c.MaxBatchesPerRun = defaults.MaxBatchesPerRun
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	return c
}
