package app

import (
	"testing"
	"time"

	"github.com/smallbiznis/incomeengine/internal/clock"
	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewStampsStartTime(t *testing.T) {
	started := time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(started)

	a := New(Params{Config: config.Config{AppName: "incomeengine"}, Clock: clk})
	clk.Advance(time.Hour)

	assert.Equal(t, started, a.StartedAt)
	assert.Equal(t, "incomeengine", a.Config.AppName)
}
