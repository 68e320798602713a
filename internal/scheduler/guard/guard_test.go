package guard

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEnsureEngineCanFire(t *testing.T) {
	assert.NoError(t, EnsureEngineCanFire(true, TriggerSchedule))
	assert.ErrorIs(t, EnsureEngineCanFire(false, TriggerSchedule), ErrEngineDisabled)
	assert.NoError(t, EnsureEngineCanFire(false, TriggerManual))
	assert.ErrorIs(t, EnsureEngineCanFire(true, "webhook"), ErrUnknownTrigger)
}

func TestAccruableAmount(t *testing.T) {
	amount := decimal.RequireFromString("1.25")
	assert.True(t, AccruableAmount(amount, nil).Equal(amount))
	assert.True(t, AccruableAmount(amount, errors.New("boom")).IsZero())
	assert.True(t, AccruableAmount(decimal.NewFromInt(-1), nil).IsZero())
}
