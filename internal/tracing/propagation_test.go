package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithUserID(WithTraceID(context.Background(), "trace-1"), "alice")
	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "alice", entry["user_id"])
	_, hasRequestID := entry["request_id"]
	assert.False(t, hasRequestID)
}

func TestLoggerFromContextEmpty(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := LoggerFromContext(context.Background(), base)
	logger.Info().Msg("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	_, hasTraceID := entry["trace_id"]
	assert.False(t, hasTraceID)
}
