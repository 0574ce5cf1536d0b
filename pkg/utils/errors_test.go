package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorMessage(t *testing.T) {
	err := NewAppError(ErrCodeValidation, "webhook URL is required")
	assert.Equal(t, "VALIDATION_ERROR: webhook URL is required", err.Error())
	assert.NotEmpty(t, err.File)

	err = NewAppError(ErrCodeExternal, "webhook rejected", "status 404")
	assert.Equal(t, "EXTERNAL_ERROR: webhook rejected (status 404)", err.Error())
}

func TestWrapAppErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapAppError(ErrCodeStorage, "append failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "connection refused", err.Details)
	assert.Nil(t, WrapAppError(ErrCodeStorage, "x", nil).Unwrap())
}

func TestHasCode(t *testing.T) {
	inner := WrapAppError(ErrCodeFeed, "fetch failed", errors.New("timeout"))
	outer := WrapAppError(ErrCodeInternal, "poll failed", inner)

	assert.True(t, HasCode(inner, ErrCodeFeed))
	assert.True(t, HasCode(outer, ErrCodeFeed))
	assert.True(t, HasCode(fmt.Errorf("context: %w", outer), ErrCodeInternal))
	assert.False(t, HasCode(outer, ErrCodeStorage))
	assert.False(t, HasCode(errors.New("plain"), ErrCodeFeed))
	assert.False(t, HasCode(nil, ErrCodeFeed))

	joined := errors.Join(errors.New("other"), NewAppError(ErrCodeExternal, "leaderboard send failed"))
	assert.True(t, HasCode(joined, ErrCodeExternal))
}
