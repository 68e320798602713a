package domain

import (
	"errors"
	"fmt"

	"github.com/smallbiznis/incomeengine/pkg/errutil"
)

var (
	ErrEngineNotFound      = errutil.NotFound("engine_not_found")
	ErrAlreadyRunning      = errutil.Conflict("engine_already_running")
	ErrDuplicateEngine     = errors.New("duplicate engine registration")
	ErrProviderUnavailable = errutil.Unavailable("provider_unavailable")
	ErrProvider            = errutil.Unavailable("provider_error")
	ErrPublish             = errutil.Unavailable("publish_error")
	ErrFeed                = errutil.Unavailable("feed_error")
)

// EngineRunError wraps a failure that escaped an engine's Run.
type EngineRunError struct {
	Engine string
	Err    error
}

func (e *EngineRunError) Error() string {
	return fmt.Sprintf("engine %s run failed: %v", e.Engine, e.Err)
}

func (e *EngineRunError) Unwrap() error {
	return e.Err
}

// NewEngineRunError wraps err unless it is already an EngineRunError.
func NewEngineRunError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EngineRunError
	if errors.As(err, &existing) {
		return err
	}
	return &EngineRunError{Engine: engine, Err: err}
}

// PanicError records a recovered panic inside an engine run.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
