package tasks

import (
	"time"

	"github.com/mrlokans/coursemarket/internal/config"
)

// DefaultConfig returns the queue settings used when none are configured.
func DefaultConfig() config.Tasks {
	return config.Tasks{
		Enabled:           true,
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       5 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

func withDefaults(cfg config.Tasks) config.Tasks {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = def.TaskTimeout
	}
	if cfg.ReleaseAfter <= 0 {
		cfg.ReleaseAfter = def.ReleaseAfter
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.RetentionDuration <= 0 {
		cfg.RetentionDuration = def.RetentionDuration
	}
	return cfg
}
