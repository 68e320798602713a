package domain

import (
	"errors"
	"testing"

	"github.com/smallbiznis/incomeengine/pkg/errutil"
	"github.com/stretchr/testify/assert"
)

func TestNewEngineRunErrorWrapsOnce(t *testing.T) {
	cause := errors.New("boom")

	err := NewEngineRunError("content-writer", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "content-writer")

	again := NewEngineRunError("other", err)
	assert.Same(t, err, again)

	assert.NoError(t, NewEngineRunError("x", nil))
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, ErrEngineNotFound, errutil.ErrNotFound)
	assert.ErrorIs(t, ErrAlreadyRunning, errutil.ErrConflict)
	assert.ErrorIs(t, ErrProviderUnavailable, errutil.ErrUnavailable)
	assert.ErrorIs(t, ErrPublish, errutil.ErrUnavailable)
}
