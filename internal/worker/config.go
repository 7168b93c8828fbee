// Package worker runs background jobs that keep device trigger state
// consistent with stored duties: a startup recovery pass that replans
// every upcoming duty, and a Pub/Sub consumer that runs jobs on demand.
package worker

import (
	"os"
	"strconv"
	"time"
)

// RecoveryConfig controls the recovery job.
type RecoveryConfig struct {
	// Concurrency is the number of duties replanned in parallel.
	Concurrency int

	// DutyTimeout bounds a single duty's reschedule.
	DutyTimeout time.Duration

	// LookaheadDays limits how far into the future duties are recovered.
	// Zero means no limit.
	LookaheadDays int
}

// DefaultRecoveryConfig returns the default recovery configuration.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Concurrency:   3,
		DutyTimeout:   30 * time.Second,
		LookaheadDays: 0,
	}
}

// RecoveryConfigFromEnv builds a RecoveryConfig from environment
// variables, falling back to defaults for anything unset.
func RecoveryConfigFromEnv() RecoveryConfig {
	config := DefaultRecoveryConfig()

	if v := os.Getenv("RECOVERY_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Concurrency = n
		}
	}

	if v := os.Getenv("RECOVERY_DUTY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			config.DutyTimeout = d
		}
	}

	if v := os.Getenv("RECOVERY_LOOKAHEAD_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			config.LookaheadDays = n
		}
	}

	return config
}
