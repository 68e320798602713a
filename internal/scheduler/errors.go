package scheduler

import (
	"errors"

	"github.com/smallbiznis/incomeengine/pkg/errutil"
)

var (
	ErrInvalidConfig      = errors.New("invalid_scheduler_config")
	ErrInvalidJob         = errors.New("invalid_scheduler_job")
	ErrDuplicateJob       = errors.New("duplicate_scheduler_job")
	ErrAlreadyStarted     = errors.New("scheduler_already_started")
	ErrStopTimeout        = errors.New("scheduler_stop_timeout")
	ErrRunLockUnavailable = errutil.Unavailable("run_lock_unavailable")
)
