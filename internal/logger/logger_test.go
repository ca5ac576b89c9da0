package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		l, err := New(Config{Level: "info", Console: true})
		require.NoError(t, err)
		defer l.Close()

		assert.Nil(t, l.file)
		assert.Nil(t, l.redactor)
	})

	t.Run("file output goes through rotating writer", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tanya.log")

		l, err := New(Config{Level: "debug", File: path})
		require.NoError(t, err)
		defer l.Close()

		rw, ok := l.file.(*RotatingWriter)
		require.True(t, ok)
		assert.Equal(t, int64(100*1024*1024), rw.maxSize)

		l.Info().Str("session_id", "sess-1").Msg("session started")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "session started")
		assert.Contains(t, string(data), "sess-1")
	})

	t.Run("redacts customer email in file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tanya.log")

		l, err := New(Config{Level: "info", File: path, Redaction: true})
		require.NoError(t, err)
		defer l.Close()

		l.Info().
			Str("customer", "jordan@example.com").
			Str("api_key", "sk-abcdefghij1234567890abc").
			Msg("order lookup")

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		out := string(data)
		assert.NotContains(t, out, "jordan@example.com")
		assert.NotContains(t, out, "sk-abcdefghij1234567890abc")
		assert.Equal(t, 2, strings.Count(out, "[REDACTED]"))
		assert.Contains(t, out, "order lookup")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tanya.log")

		l, err := New(Config{Level: "chatty", File: path})
		require.NoError(t, err)
		defer l.Close()

		l.Debug().Msg("too quiet")
		l.Info().Msg("loud enough")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "too quiet")
		assert.Contains(t, string(data), "loud enough")
	})
}

func TestLoggerMethods(t *testing.T) {
	l, err := New(Config{Level: "debug", Console: true})
	require.NoError(t, err)
	defer l.Close()

	assert.NotNil(t, l.Debug())
	assert.NotNil(t, l.Info())
	assert.NotNil(t, l.Warn())
	assert.NotNil(t, l.Error())
}

func TestLoggerWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tanya.log")

	l, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)
	defer l.Close()

	child := l.With().Str("agent", "order_support").Logger()
	child.Info().Msg("routed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "order_support")
}

func TestGetZerolog(t *testing.T) {
	l, err := New(Config{Level: "info", Console: true})
	require.NoError(t, err)
	defer l.Close()

	zl := l.GetZerolog()
	assert.NotNil(t, zl.Info())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.True(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}
