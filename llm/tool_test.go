package llm

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cityInput struct {
	City string `json:"city" jsonschema:"required,description=City name such as Beijing"`
	Days int    `json:"days,omitempty"`
}

type forecast struct {
	City  string `json:"city"`
	TempC int    `json:"temp_c"`
}

func weatherTool() *TypedTool[cityInput, forecast] {
	return MustNewTool("get_weather", "Weather forecast for a city",
		func(ctx context.Context, in cityInput) (forecast, error) {
			return forecast{City: in.City, TempC: 20 + in.Days}, nil
		})
}

func echoTool(name string) Tool {
	return MustNewTool(name, "echoes the city",
		func(ctx context.Context, in cityInput) (string, error) {
			return name + ":" + in.City, nil
		})
}

func TestNewTool_Validation(t *testing.T) {
	noop := func(ctx context.Context, in cityInput) (string, error) { return "", nil }

	_, err := NewTool("", "no name", noop)
	assert.Error(t, err)

	_, err = NewTool[cityInput, string]("nil_fn", "no function", nil)
	assert.ErrorContains(t, err, "nil_fn")

	assert.Panics(t, func() { MustNewTool("", "", noop) })
}

func TestTypedTool_Schema(t *testing.T) {
	tool := weatherTool()

	assert.Equal(t, "get_weather", tool.Name())
	assert.Equal(t, "Weather forecast for a city", tool.Description())

	params := tool.Parameters()
	require.NotNil(t, params)
	city, ok := params.Properties.Get("city")
	require.True(t, ok)
	assert.Contains(t, city.Description, "City name")
	_, ok = params.Properties.Get("days")
	assert.True(t, ok)
	assert.Contains(t, params.Required, "city")
}

func TestTypedTool_Execute(t *testing.T) {
	tool := weatherTool()
	ctx := context.Background()

	tests := []struct {
		name    string
		args    string
		want    forecast
		wantErr bool
	}{
		{name: "all fields", args: `{"city":"Hangzhou","days":3}`, want: forecast{City: "Hangzhou", TempC: 23}},
		{name: "optional omitted", args: `{"city":"Beijing"}`, want: forecast{City: "Beijing", TempC: 20}},
		{name: "empty object", args: `{}`, want: forecast{TempC: 20}},
		{name: "no arguments", args: ``, want: forecast{TempC: 20}},
		{name: "invalid json", args: `{"city":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tool.Execute(ctx, json.RawMessage(tt.args))
			if tt.wantErr {
				assert.ErrorContains(t, err, "decoding arguments")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	direct, err := tool.TypedCall(ctx, cityInput{City: "Shenzhen", Days: 1})
	require.NoError(t, err)
	assert.Equal(t, forecast{City: "Shenzhen", TempC: 21}, direct)
}

func TestTypedTool_ExecutePropagatesError(t *testing.T) {
	boom := errors.New("upstream unavailable")
	tool := MustNewTool("failing", "always fails",
		func(ctx context.Context, in cityInput) (string, error) { return "", boom })

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"city":"x"}`))
	assert.ErrorIs(t, err, boom)
}

func TestToolRegistry(t *testing.T) {
	r := NewToolRegistry(echoTool("b"), echoTool("a"))
	r.Register(echoTool("c"))

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	var names []string
	for _, tool := range r.All() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)

	replacement := MustNewTool("a", "replaced",
		func(ctx context.Context, in cityInput) (string, error) { return "", nil })
	r.Register(replacement)
	got, _ = r.Get("a")
	assert.Equal(t, "replaced", got.Description())
	assert.Len(t, r.All(), 3)
}

func TestExecuteToolCalls(t *testing.T) {
	failing := MustNewTool("failing", "always fails",
		func(ctx context.Context, in cityInput) (string, error) {
			return "", errors.New("quota exceeded")
		})
	registry := NewToolRegistry(weatherTool(), echoTool("echo"), failing)
	ctx := context.Background()

	t.Run("no calls", func(t *testing.T) {
		msgs, err := ExecuteToolCalls(ctx, nil, registry)
		require.NoError(t, err)
		assert.Nil(t, msgs)
	})

	t.Run("results keep call order", func(t *testing.T) {
		msgs, err := ExecuteToolCalls(ctx, []ToolCall{
			{ID: "call_a", Name: "echo", Arguments: `{"city":"Wuhan"}`},
			{ID: "call_b", Name: "get_weather", Arguments: `{"city":"Xian","days":2}`},
		}, registry)
		require.NoError(t, err)
		require.Len(t, msgs, 2)

		assert.Equal(t, RoleTool, msgs[0].Role)
		assert.Equal(t, "call_a", msgs[0].ToolCallID)
		assert.Equal(t, "echo:Wuhan", msgs[0].Content)

		assert.Equal(t, "call_b", msgs[1].ToolCallID)
		assert.JSONEq(t, `{"city":"Xian","temp_c":22}`, msgs[1].Content)
	})

	t.Run("tool failure is reported to the model", func(t *testing.T) {
		msgs, err := ExecuteToolCalls(ctx, []ToolCall{
			{ID: "call_f", Name: "failing", Arguments: `{"city":"x"}`},
		}, registry)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "call_f", msgs[0].ToolCallID)
		assert.Equal(t, `Error: tool "failing" execution failed: quota exceeded`, msgs[0].Content)
	})

	t.Run("unknown tool aborts", func(t *testing.T) {
		_, err := ExecuteToolCalls(ctx, []ToolCall{
			{ID: "call_1", Name: "echo", Arguments: `{}`},
			{ID: "call_2", Name: "nope", Arguments: `{}`},
		}, registry)
		var notFound *ToolNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "nope", notFound.Name)
	})
}

func TestToolDefs(t *testing.T) {
	defs := toolDefs([]Tool{weatherTool()})
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0].Type)
	require.NotNil(t, defs[0].Function)
	assert.Equal(t, "get_weather", defs[0].Function.Name)

	var params map[string]any
	require.NoError(t, json.Unmarshal(defs[0].Function.Parameters, &params))
	assert.Equal(t, "object", params["type"])
	assert.Contains(t, params["properties"], "city")
}

func TestExecuteToolCalls_RunsConcurrently(t *testing.T) {
	// Each call waits for the other to start; run serially this would block.
	started := make(chan struct{}, 2)
	barrier := MustNewTool("barrier", "waits for a peer",
		func(ctx context.Context, in cityInput) (string, error) {
			started <- struct{}{}
			for len(started) < 2 {
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				default:
					runtime.Gosched()
				}
			}
			return in.City, nil
		})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgs, err := ExecuteToolCalls(ctx, []ToolCall{
		{ID: "1", Name: "barrier", Arguments: `{"city":"first"}`},
		{ID: "2", Name: "barrier", Arguments: `{"city":"second"}`},
	}, NewToolRegistry(barrier))
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestExecuteToolCalls_UnknownToolRunsNothing(t *testing.T) {
	var calls atomic.Int32
	counted := MustNewTool("counted", "counts calls",
		func(ctx context.Context, in cityInput) (string, error) {
			calls.Add(1)
			return "ok", nil
		})

	_, err := ExecuteToolCalls(context.Background(), []ToolCall{
		{ID: "1", Name: "counted"},
		{ID: "2", Name: "missing"},
	}, NewToolRegistry(counted))
	assert.Error(t, err)
	assert.Zero(t, calls.Load())
}
