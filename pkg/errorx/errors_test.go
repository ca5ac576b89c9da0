package errorx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Wrapping(t *testing.T) {
	t.Run("should expose category through wrapping", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CategoryTool, "endpoint unreachable", true, true)

		wrapped := fmt.Errorf("executing tool: %w", err)

		assert.Equal(t, CategoryTool, CategoryOf(wrapped))
		assert.True(t, IsRetryable(wrapped))
		assert.True(t, IsRecoverable(wrapped))
		assert.ErrorIs(t, wrapped, err)
	})

	t.Run("should format message with and without cause", func(t *testing.T) {
		assert.Equal(t, "routing: no rule matched", New(CategoryRouting, "no rule matched", true, false).Error())

		err := Wrap(errors.New("boom"), CategoryLLM, "chat failed", true, true)
		assert.Equal(t, "llm: chat failed: boom", err.Error())
	})
}

func TestSentinels(t *testing.T) {
	t.Run("session not found carries the session id", func(t *testing.T) {
		err := SessionNotFound("sess-123")
		assert.ErrorIs(t, err, ErrSessionNotFound)
		assert.Contains(t, err.Error(), "sess-123")
		assert.False(t, IsRetryable(err))
	})

	t.Run("escalated session is terminal", func(t *testing.T) {
		assert.False(t, IsRecoverable(ErrSessionEscalated))
		assert.False(t, IsRetryable(ErrSessionEscalated))
	})
}

func TestClassifiers_UnknownError(t *testing.T) {
	plain := errors.New("plain")
	assert.False(t, IsRetryable(plain))
	assert.False(t, IsRecoverable(plain))
	assert.Equal(t, Category(""), CategoryOf(plain))
}
