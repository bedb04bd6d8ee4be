package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/i2y/bigmodel/schema"
	"github.com/i2y/bigmodel/zhipu"
)

// Tool is a function GLM may ask to call.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON Schema of the arguments object.
	Parameters() *jsonschema.Schema
	// Execute runs the tool with the JSON arguments chosen by the model.
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// TypedTool adapts a Go function to Tool. The parameter schema is reflected
// from In, so json and jsonschema struct tags shape what the model sees.
type TypedTool[In any, Out any] struct {
	name   string
	desc   string
	fn     func(ctx context.Context, in In) (Out, error)
	params *jsonschema.Schema
}

// NewTool wraps fn as a tool.
//
//	type WeatherInput struct {
//	    City string `json:"city" jsonschema:"required,description=City name"`
//	}
//
//	weather, err := llm.NewTool("get_weather", "Current weather for a city",
//	    func(ctx context.Context, in WeatherInput) (string, error) {
//	        return "晴, 23°C", nil
//	    },
//	)
func NewTool[In any, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) (*TypedTool[In, Out], error) {
	switch {
	case strings.TrimSpace(name) == "":
		return nil, errors.New("tool name is required")
	case fn == nil:
		return nil, fmt.Errorf("tool %q: function is nil", name)
	}
	return &TypedTool[In, Out]{
		name:   name,
		desc:   description,
		fn:     fn,
		params: schema.Reflector.Reflect(new(In)),
	}, nil
}

// MustNewTool is NewTool for package-level declarations; it panics on error.
func MustNewTool[In any, Out any](name, description string, fn func(ctx context.Context, in In) (Out, error)) *TypedTool[In, Out] {
	t, err := NewTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *TypedTool[In, Out]) Name() string                   { return t.name }
func (t *TypedTool[In, Out]) Description() string            { return t.desc }
func (t *TypedTool[In, Out]) Parameters() *jsonschema.Schema { return t.params }

// Execute decodes args into In and calls the function. Empty args decode as
// the zero In.
func (t *TypedTool[In, Out]) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in In
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, fmt.Errorf("decoding arguments: %w", err)
		}
	}
	return t.fn(ctx, in)
}

// TypedCall calls the function directly.
func (t *TypedTool[In, Out]) TypedCall(ctx context.Context, in In) (Out, error) {
	return t.fn(ctx, in)
}

// ToolRegistry indexes tools by name. It is safe for concurrent use.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates a registry holding tools.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool, len(tools))}
	r.Register(tools...)
	return r
}

// Register adds tools. A tool replaces any earlier one with the same name.
func (r *ToolRegistry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// Get looks a tool up by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns the registered tools ordered by name.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	r.mu.RUnlock()

	slices.SortFunc(tools, func(a, b Tool) int { return strings.Compare(a.Name(), b.Name()) })
	return tools
}

// ExecuteToolCalls runs the calls concurrently and returns one tool message
// per call, in call order. Every name is resolved before anything runs, so
// an unknown tool aborts the batch with *ToolNotFoundError. A failing tool
// does not: its error is reported to the model as the message content.
func ExecuteToolCalls(ctx context.Context, toolCalls []ToolCall, registry *ToolRegistry) ([]Message, error) {
	if len(toolCalls) == 0 {
		return nil, nil
	}

	resolved := make([]Tool, len(toolCalls))
	for i, tc := range toolCalls {
		t, ok := registry.Get(tc.Name)
		if !ok {
			return nil, &ToolNotFoundError{Name: tc.Name}
		}
		resolved[i] = t
	}

	messages := make([]Message, len(toolCalls))
	var wg sync.WaitGroup
	for i, tc := range toolCalls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			messages[i] = ToolMessage(tc.ID, runTool(ctx, resolved[i], tc.Arguments))
		}()
	}
	wg.Wait()
	return messages, nil
}

// runTool renders a tool result as message content: strings verbatim,
// anything else as JSON.
func runTool(ctx context.Context, t Tool, args string) string {
	result, err := t.Execute(ctx, json.RawMessage(args))
	if err != nil {
		return "Error: " + (&ToolError{ToolName: t.Name(), Cause: err}).Error()
	}
	if s, ok := result.(string); ok {
		return s
	}
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("Error: encoding result of %s: %v", t.Name(), err)
	}
	return string(b)
}

// emptyObject is sent when a tool has no usable schema; GLM requires one.
var emptyObject = json.RawMessage(`{"type":"object","properties":{}}`)

// toolDefs converts tools to request definitions.
func toolDefs(tools []Tool) []zhipu.Tool {
	defs := make([]zhipu.Tool, len(tools))
	for i, t := range tools {
		params := emptyObject
		if s := t.Parameters(); s != nil {
			if b, err := json.Marshal(s); err == nil {
				params = b
			}
		}
		defs[i] = zhipu.FunctionTool(t.Name(), t.Description(), params)
	}
	return defs
}
