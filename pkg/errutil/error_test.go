package errutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodedErrorMatchesKind(t *testing.T) {
	errInvalidAmount := Validation("invalid_amount")
	wrapped := fmt.Errorf("request withdrawal: %w", errInvalidAmount)

	assert.True(t, errors.Is(wrapped, errInvalidAmount))
	assert.True(t, errors.Is(wrapped, ErrValidation))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, "invalid_amount", CodeOf(wrapped))
	assert.Equal(t, ErrValidation, Kind(wrapped))
}

func TestKindUnknown(t *testing.T) {
	assert.Nil(t, Kind(errors.New("boom")))
	assert.Equal(t, "", CodeOf(errors.New("boom")))
}
