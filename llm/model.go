package llm

import (
	"context"

	"github.com/i2y/bigmodel/zhipu"
)

// Model binds a client, a model name and default options.
//
//	flash := llm.NewModel(client, "glm-4-flash-250414", llm.WithTemperature(0.3))
//	resp, err := flash.Call(ctx, "Tell me a joke")
type Model struct {
	client   *zhipu.Client
	name     string
	baseOpts []Option
}

// NewModel creates a Model. An empty name uses the client's default model.
func NewModel(client *zhipu.Client, name string, opts ...Option) *Model {
	return &Model{client: client, name: name, baseOpts: opts}
}

// Call is llm.Call with this model's configuration.
func (m *Model) Call(ctx context.Context, prompt string, opts ...Option) (Response[string], error) {
	return Call(ctx, prompt, m.merge(opts)...)
}

// CallMessages is llm.CallMessages with this model's configuration.
func (m *Model) CallMessages(ctx context.Context, messages []Message, opts ...Option) (Response[string], error) {
	return CallMessages(ctx, messages, m.merge(opts)...)
}

// CallStream is llm.CallStream with this model's configuration.
func (m *Model) CallStream(ctx context.Context, prompt string, opts ...Option) (*Stream, error) {
	return CallStream(ctx, prompt, m.merge(opts)...)
}

// merge puts per-call options after the base ones so they win.
func (m *Model) merge(opts []Option) []Option {
	all := make([]Option, 0, len(m.baseOpts)+len(opts)+2)
	all = append(all, WithClient(m.client))
	if m.name != "" {
		all = append(all, WithModel(m.name))
	}
	all = append(all, m.baseOpts...)
	return append(all, opts...)
}
