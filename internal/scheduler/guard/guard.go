package guard

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrEngineDisabled = errors.New("engine_disabled")
	ErrUnknownTrigger = errors.New("unknown_trigger")
)

const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

// EnsureEngineCanFire decides whether a firing may start a run. Manual
// triggers bypass the enabled flag.
func EnsureEngineCanFire(enabled bool, trigger string) error {
	switch strings.TrimSpace(trigger) {
	case TriggerManual:
		return nil
	case TriggerSchedule:
		if !enabled {
			return ErrEngineDisabled
		}
		return nil
	default:
		return ErrUnknownTrigger
	}
}

// AccruableAmount is what a finished run adds to the engine's total. Failed
// runs and negative results accrue nothing.
func AccruableAmount(amount decimal.Decimal, runErr error) decimal.Decimal {
	if runErr != nil || amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}
