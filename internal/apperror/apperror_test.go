package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrappedError(t *testing.T) {
	err := fmt.Errorf("confirm pickup: %w", New(KindAlreadyUsed, "pickup token already used"))

	assert.Equal(t, KindAlreadyUsed, KindOf(err))
	assert.True(t, Is(err, KindAlreadyUsed))
	assert.False(t, Is(err, KindExpired))
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestWithDetailDoesNotMutateOriginal(t *testing.T) {
	base := New(KindAlreadyUsed, "used")
	withAt := base.WithDetail("used_at", "2026-01-01T00:00:00Z")

	assert.Nil(t, base.Details)
	assert.Equal(t, "2026-01-01T00:00:00Z", withAt.Details["used_at"])
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := Wrap(KindInternal, "store order", errors.New("disk full"))

	assert.Equal(t, "store order: disk full", err.Error())
	assert.ErrorIs(t, err, err.Cause)
}

func TestInvalidTransitionDetails(t *testing.T) {
	err := InvalidTransition("ready", "paid")

	assert.Equal(t, KindInvalidTransition, err.Kind)
	assert.Equal(t, "ready", err.Details["from"])
	assert.Equal(t, "paid", err.Details["to"])
}
