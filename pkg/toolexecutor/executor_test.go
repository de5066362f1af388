package toolexecutor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() ToolDefinition {
	return ToolDefinition{
		Name:        "echo",
		Description: "Echoes back the message parameter",
		Parameters: []ToolParameter{
			{Name: "message", Type: "string", Description: "Text to echo", Required: true},
			{Name: "repeat", Type: "integer", Description: "Repeat count", Default: 1},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			msg := params["message"].(string)
			repeat := 1
			switch n := params["repeat"].(type) {
			case int:
				repeat = n
			case float64:
				repeat = int(n)
			}
			return strings.Repeat(msg, repeat), nil
		},
	}
}

func TestRegisterAndExecute(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	assert.Equal(t, 1, te.GetToolCount())
	assert.Contains(t, te.ListTools(), "echo")
	assert.NotNil(t, te.GetTool("echo"))

	result := te.Execute(context.Background(), "echo", map[string]interface{}{
		"message": "hi",
	}, nil)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "hi", result.Output)
	assert.NotEmpty(t, result.Metadata["request_id"])
}

func TestExecuteAppliesDefaults(t *testing.T) {
	te := New()

	var seen map[string]interface{}
	def := ToolDefinition{
		Name:        "capture",
		Description: "Captures its parameters",
		Parameters: []ToolParameter{
			{Name: "limit", Type: "integer", Description: "A limit", Default: 20},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			seen = params
			return "ok", nil
		},
	}
	require.NoError(t, te.RegisterTool(def))

	result := te.Execute(context.Background(), "capture", map[string]interface{}{}, nil)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 20, seen["limit"])

	// An explicit value wins over the default.
	result = te.Execute(context.Background(), "capture", map[string]interface{}{"limit": 5}, nil)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 5, seen["limit"])
}

func TestExecuteValidation(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	// Missing required parameter.
	result := te.Execute(context.Background(), "echo", map[string]interface{}{}, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "validation")

	// Wrong type.
	result = te.Execute(context.Background(), "echo", map[string]interface{}{
		"message": 42,
	}, nil)
	assert.False(t, result.Success)

	// Unknown parameter is rejected by the closed schema.
	result = te.Execute(context.Background(), "echo", map[string]interface{}{
		"message": "hi",
		"bogus":   true,
	}, nil)
	assert.False(t, result.Success)
}

func TestExecuteUnknownTool(t *testing.T) {
	te := New()

	result := te.Execute(context.Background(), "missing", nil, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "tool not found")
}

func TestExecuteHandlerError(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "boom",
		Description: "Always fails",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, errors.New("backend exploded")
		},
	}))

	result := te.Execute(context.Background(), "boom", nil, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "backend exploded")
}

func TestExecuteTimeout(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "slow",
		Description: "Sleeps past the deadline",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			select {
			case <-time.After(5 * time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}))

	result := te.Execute(context.Background(), "slow", nil, &ExecutionContext{Timeout: 50 * time.Millisecond})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timeout")
}

func TestExecuteTruncatesOutput(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(ToolDefinition{
		Name:        "firehose",
		Description: "Returns oversized output",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return strings.Repeat("x", 20*1024), nil
		},
	}))

	result := te.Execute(context.Background(), "firehose", nil, nil)
	require.True(t, result.Success, result.Error)
	assert.True(t, result.Truncated)
	assert.Contains(t, result.Output.(string), "[output truncated]")
}

func TestRegisterToolValidation(t *testing.T) {
	te := New()
	handler := func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return nil, nil
	}

	assert.Error(t, te.RegisterTool(ToolDefinition{Description: "no name", Handler: handler}))
	assert.Error(t, te.RegisterTool(ToolDefinition{Name: "x", Handler: handler}))
	assert.Error(t, te.RegisterTool(ToolDefinition{Name: "x", Description: "no handler"}))
	assert.Error(t, te.RegisterTool(ToolDefinition{
		Name:        "x",
		Description: "bad param type",
		Handler:     handler,
		Parameters:  []ToolParameter{{Name: "p", Type: "uuid", Description: "not a schema type"}},
	}))
}

func TestUnregisterTool(t *testing.T) {
	te := New()
	require.NoError(t, te.RegisterTool(echoTool()))

	te.UnregisterTool("echo")
	assert.Nil(t, te.GetTool("echo"))
	assert.Equal(t, 0, te.GetToolCount())
}
