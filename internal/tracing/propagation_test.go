package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPropagateToLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSessionID(ctx, "sess-1")

	logger := PropagateToLogger(ctx, base)
	logger.Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, `"trace_id":"trace-1"`)
	assert.Contains(t, out, `"session_id":"sess-1"`)
	assert.NotContains(t, out, "agent_id")
}

func TestMergeContext(t *testing.T) {
	source := context.Background()
	source = WithTraceID(source, "trace-src")
	source = WithSessionID(source, "sess-src")

	target := WithTraceID(context.Background(), "trace-dst")

	merged := MergeContext(target, source)

	// Existing values on the target win; gaps are filled from the source.
	assert.Equal(t, "trace-dst", GetTraceID(merged))
	assert.Equal(t, "sess-src", GetSessionID(merged))
}

func TestCloneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithSessionID(ctx, "sess-1")

	clone := CloneContext(ctx)
	cancel()

	// The clone carries the tracing values but not the cancellation.
	assert.Equal(t, "trace-1", GetTraceID(clone))
	assert.Equal(t, "sess-1", GetSessionID(clone))
	assert.NoError(t, clone.Err())
}
