package cadence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStandardExpression(t *testing.T) {
	c, err := Parse("0 */6 * * *")
	require.NoError(t, err)

	from := time.Date(2024, 3, 1, 7, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), c.Next(from))
	assert.Equal(t, "0 */6 * * *", c.String())
}

func TestParseListExpression(t *testing.T) {
	c := MustParse("0 8,14,20 * * *")

	from := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC), c.Next(from))
}

func TestParseSecondsAndDescriptors(t *testing.T) {
	c, err := Parse("*/10 * * * * *")
	require.NoError(t, err)
	from := time.Date(2024, 3, 1, 0, 0, 3, 0, time.UTC)
	assert.Equal(t, from.Add(7*time.Second), c.Next(from))

	hourly, err := Parse("@hourly")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC), hourly.Next(from))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("every tuesday")
	assert.Error(t, err)

	_, err = Parse("  ")
	assert.Error(t, err)
}

func TestEveryKeepsSubSecondPrecision(t *testing.T) {
	c := Every(25 * time.Millisecond)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(25*time.Millisecond), c.Next(from))
	assert.False(t, c.IsZero())
}

func TestZeroCadenceNeverFires(t *testing.T) {
	var c Cadence
	assert.True(t, c.IsZero())
	assert.True(t, c.Next(time.Now()).IsZero())
	assert.True(t, Every(0).IsZero())
}
