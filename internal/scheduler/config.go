package scheduler

import (
	"time"

	"github.com/smallbiznis/incomeengine/internal/config"
)

// Config controls how engine runs are locked and how long Stop waits.
// Runs themselves are never timed out or cancelled by the scheduler.
type Config struct {
	Enabled bool
	// LockTTL is the lease on a remote run lock. The lease is renewed while
	// the run is alive, so the TTL only bounds how long a crashed process
	// keeps an engine locked.
	LockTTL time.Duration
	// StopGrace is how long Stop waits for in-flight runs.
	StopGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		LockTTL:   2 * time.Minute,
		StopGrace: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.LockTTL <= 0 {
		c.LockTTL = defaults.LockTTL
	}
	if c.StopGrace <= 0 {
		c.StopGrace = defaults.StopGrace
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:   cfg.SchedulerEnabled,
		LockTTL:   cfg.RunLockTTL,
		StopGrace: cfg.SchedulerStopGrace,
	}.withDefaults()
}
