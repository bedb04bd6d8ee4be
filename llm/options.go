package llm

import (
	"encoding/json"

	"github.com/i2y/bigmodel/zhipu"
)

// Option configures an LLM call.
type Option func(*callConfig)

type callConfig struct {
	client        *zhipu.Client
	model         string
	temperature   *float64
	maxTokens     *int
	topP          *float64
	stopSequences []string
	systemMessage string
	tools         []Tool
	messages      []Message
	params        []zhipu.Param

	// set by the *Parse functions
	responseSchema json.RawMessage
}

func newCallConfig(opts ...Option) *callConfig {
	c := &callConfig{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithClient sets the client used for the call. Without it a client is
// created from the environment for every call.
func WithClient(client *zhipu.Client) Option {
	return func(c *callConfig) {
		c.client = client
	}
}

// WithModel overrides the client's default model (e.g. "glm-4-plus").
func WithModel(name string) Option {
	return func(c *callConfig) {
		c.model = name
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *callConfig) {
		c.temperature = &t
	}
}

// WithMaxTokens sets the maximum tokens in the response.
func WithMaxTokens(n int) Option {
	return func(c *callConfig) {
		c.maxTokens = &n
	}
}

// WithTopP sets the nucleus sampling parameter (0.0 to 1.0).
func WithTopP(p float64) Option {
	return func(c *callConfig) {
		c.topP = &p
	}
}

// WithStopSequences sets stop sequences to end generation.
func WithStopSequences(seqs ...string) Option {
	return func(c *callConfig) {
		c.stopSequences = seqs
	}
}

// WithSystemMessage prepends a system message.
func WithSystemMessage(msg string) Option {
	return func(c *callConfig) {
		c.systemMessage = msg
	}
}

// WithTools adds tools the model can use.
func WithTools(tools ...Tool) Option {
	return func(c *callConfig) {
		c.tools = append(c.tools, tools...)
	}
}

// WithMessages sets the conversation history that precedes the prompt.
func WithMessages(msgs ...Message) Option {
	return func(c *callConfig) {
		c.messages = append(c.messages, msgs...)
	}
}

// WithParams passes raw request parameters through to the client.
func WithParams(params ...zhipu.Param) Option {
	return func(c *callConfig) {
		c.params = append(c.params, params...)
	}
}

func (c *callConfig) resolveClient() (*zhipu.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	return zhipu.New()
}

// conversation builds the messages for a prompt call: system message,
// history, then the prompt as a user message.
func (c *callConfig) conversation(prompt string) []Message {
	msgs := make([]Message, 0, len(c.messages)+2)
	if c.systemMessage != "" {
		msgs = append(msgs, SystemMessage(c.systemMessage))
	}
	msgs = append(msgs, c.messages...)
	if prompt != "" {
		msgs = append(msgs, UserMessage(prompt))
	}
	return msgs
}

// withSystem prepends the configured system message to explicit messages.
func (c *callConfig) withSystem(messages []Message) []Message {
	if c.systemMessage == "" {
		return messages
	}
	msgs := make([]Message, 0, len(messages)+1)
	msgs = append(msgs, SystemMessage(c.systemMessage))
	return append(msgs, messages...)
}

// requestParams translates the options to client params.
func (c *callConfig) requestParams() []zhipu.Param {
	var params []zhipu.Param
	if c.model != "" {
		params = append(params, zhipu.Model(c.model))
	}
	if c.temperature != nil {
		params = append(params, zhipu.Temperature(*c.temperature))
	}
	if c.maxTokens != nil {
		params = append(params, zhipu.MaxTokens(*c.maxTokens))
	}
	if c.topP != nil {
		params = append(params, zhipu.TopP(*c.topP))
	}
	if len(c.stopSequences) > 0 {
		params = append(params, zhipu.Stop(c.stopSequences...))
	}
	if len(c.tools) > 0 {
		params = append(params, zhipu.Tools(toolDefs(c.tools)...))
	}
	if c.responseSchema != nil {
		params = append(params, zhipu.JSONResponse())
	}
	return append(params, c.params...)
}
