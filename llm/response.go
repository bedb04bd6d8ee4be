package llm

import (
	"context"
	"errors"

	"github.com/i2y/bigmodel/zhipu"
)

// Response wraps a completion with its typed structured output and the
// conversation that produced it.
type Response[T any] struct {
	raw       *zhipu.ChatCompletion
	parsed    T
	hasParsed bool
	parseErr  error
	messages  []Message
	resume    *resumeConfig
}

// resumeConfig carries what a follow-up call needs.
type resumeConfig struct {
	client *zhipu.Client
	model  string
	tools  []Tool
}

// Text returns the content of the first choice.
func (r Response[T]) Text() string {
	if r.raw == nil {
		return ""
	}
	return r.raw.Text()
}

// Parsed returns the structured output. It returns ErrNotParsed if the
// response was not created by a *Parse function.
func (r Response[T]) Parsed() (T, error) {
	if r.parseErr != nil {
		return r.parsed, r.parseErr
	}
	if !r.hasParsed {
		return r.parsed, ErrNotParsed
	}
	return r.parsed, nil
}

// MustParse returns the parsed value or panics.
func (r Response[T]) MustParse() T {
	v, err := r.Parsed()
	if err != nil {
		panic(err)
	}
	return v
}

// HasToolCalls reports whether the model requested tool calls.
func (r Response[T]) HasToolCalls() bool {
	return len(r.ToolCalls()) > 0
}

// ToolCalls returns the tool calls of the first choice.
func (r Response[T]) ToolCalls() []ToolCall {
	if r.raw == nil || len(r.raw.Choices) == 0 {
		return nil
	}
	return toolCallsFrom(r.raw.Choices[0].Message.ToolCalls)
}

// Usage returns token counts.
func (r Response[T]) Usage() Usage {
	if r.raw == nil || r.raw.Usage == nil {
		return Usage{}
	}
	return Usage(*r.raw.Usage)
}

// FinishReason returns why the model stopped generating.
func (r Response[T]) FinishReason() FinishReason {
	if r.raw == nil || len(r.raw.Choices) == 0 {
		return ""
	}
	return FinishReason(r.raw.Choices[0].FinishReason)
}

// Raw returns the completion. For non-streaming calls its Raw field holds
// the response body as received; streamed responses are assembled from
// chunks and leave it empty.
func (r Response[T]) Raw() *zhipu.ChatCompletion {
	return r.raw
}

// Messages returns the conversation including the assistant's reply.
func (r Response[T]) Messages() []Message {
	return r.messages
}

// Resume continues the conversation with another user turn, using the same
// client, model and tools.
//
//	resp, _ := llm.Call(ctx, "Recommend a book", llm.WithClient(c))
//	next, _ := resp.Resume(ctx, "Why that one?")
//	fmt.Println(next.Text())
func (r Response[T]) Resume(ctx context.Context, content string, opts ...Option) (Response[string], error) {
	return r.continueWith(ctx, []Message{UserMessage(content)}, opts)
}

// ResumeWithToolOutputs continues the conversation with tool results,
// typically from ExecuteToolCalls.
func (r Response[T]) ResumeWithToolOutputs(ctx context.Context, toolOutputs []Message, opts ...Option) (Response[string], error) {
	return r.continueWith(ctx, toolOutputs, opts)
}

func (r Response[T]) continueWith(ctx context.Context, next []Message, opts []Option) (Response[string], error) {
	if r.resume == nil {
		return Response[string]{}, errors.New("cannot resume: response has no conversation state")
	}

	msgs := make([]Message, 0, len(r.messages)+len(next))
	msgs = append(msgs, r.messages...)
	msgs = append(msgs, next...)

	all := make([]Option, 0, len(opts)+3)
	all = append(all, WithClient(r.resume.client))
	if r.resume.model != "" {
		all = append(all, WithModel(r.resume.model))
	}
	if len(r.resume.tools) > 0 {
		all = append(all, WithTools(r.resume.tools...))
	}
	all = append(all, opts...)

	return CallMessages(ctx, msgs, all...)
}

// Usage contains token counts.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason indicates why the model stopped generating.
type FinishReason string

const (
	FinishReasonStop      FinishReason = zhipu.FinishReasonStop
	FinishReasonToolCalls FinishReason = zhipu.FinishReasonToolCalls
	FinishReasonLength    FinishReason = zhipu.FinishReasonLength
	FinishReasonSensitive FinishReason = zhipu.FinishReasonSensitive
)
