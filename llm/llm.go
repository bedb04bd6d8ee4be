// Package llm is a high-level API over the zhipu client: plain and
// structured calls, conversation resume, streaming and tool use.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/i2y/bigmodel/schema"
	"github.com/i2y/bigmodel/zhipu"
)

// Call sends prompt as a single user turn and returns the text reply.
//
//	resp, err := llm.Call(ctx, "Introduce yourself",
//	    llm.WithClient(client),
//	    llm.WithTemperature(0.7),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(resp.Text())
func Call(ctx context.Context, prompt string, opts ...Option) (Response[string], error) {
	cfg := newCallConfig(opts...)
	return callText(ctx, cfg, cfg.conversation(prompt))
}

// CallMessages sends a full conversation.
//
//	resp, err := llm.CallMessages(ctx, []llm.Message{
//	    llm.UserMessage("Tell me about the history of AI"),
//	    llm.AssistantMessage("It begins at Dartmouth in 1956..."),
//	    llm.UserMessage("What changed with deep learning?"),
//	}, llm.WithClient(client))
func CallMessages(ctx context.Context, messages []Message, opts ...Option) (Response[string], error) {
	cfg := newCallConfig(opts...)
	return callText(ctx, cfg, cfg.withSystem(messages))
}

// CallParse asks for a JSON reply matching the schema of T and decodes it.
// A reply that does not decode is reported by Parsed, not as an error.
//
//	type Book struct {
//	    Title  string `json:"title" jsonschema:"required"`
//	    Author string `json:"author" jsonschema:"required"`
//	}
//
//	resp, err := llm.CallParse[Book](ctx, "Recommend a sci-fi book", llm.WithClient(client))
//	book, err := resp.Parsed()
func CallParse[T any](ctx context.Context, prompt string, opts ...Option) (Response[T], error) {
	cfg := newCallConfig(opts...)
	return callParsed[T](ctx, cfg, func() []Message { return cfg.conversation(prompt) })
}

// CallMessagesParse is CallParse for a full conversation.
func CallMessagesParse[T any](ctx context.Context, messages []Message, opts ...Option) (Response[T], error) {
	cfg := newCallConfig(opts...)
	return callParsed[T](ctx, cfg, func() []Message { return cfg.withSystem(messages) })
}

func callText(ctx context.Context, cfg *callConfig, messages []Message) (Response[string], error) {
	client, completion, history, err := complete(ctx, cfg, messages)
	if err != nil {
		return Response[string]{}, err
	}
	return Response[string]{
		raw:       completion,
		parsed:    completion.Text(),
		hasParsed: true,
		messages:  history,
		resume:    &resumeConfig{client: client, model: cfg.model, tools: cfg.tools},
	}, nil
}

// callParsed injects the schema instruction before building the messages,
// so it lands right after any configured system message.
func callParsed[T any](ctx context.Context, cfg *callConfig, build func() []Message) (Response[T], error) {
	raw, err := schema.Generate[T]()
	if err != nil {
		return Response[T]{}, fmt.Errorf("generating schema: %w", err)
	}
	cfg.responseSchema = raw

	target := typeName[T]()
	instruction := schema.Instruction(target, raw)
	if cfg.systemMessage != "" {
		cfg.systemMessage += "\n\n" + instruction
	} else {
		cfg.systemMessage = instruction
	}

	client, completion, history, err := complete(ctx, cfg, build())
	if err != nil {
		return Response[T]{}, err
	}

	var parsed T
	content := completion.Text()
	parseErr := json.Unmarshal([]byte(schema.StripCodeFence(content)), &parsed)
	if parseErr != nil {
		parseErr = &ParseError{Content: content, Target: target, Cause: parseErr}
	}

	return Response[T]{
		raw:       completion,
		parsed:    parsed,
		hasParsed: parseErr == nil,
		parseErr:  parseErr,
		messages:  history,
		resume:    &resumeConfig{client: client, model: cfg.model, tools: cfg.tools},
	}, nil
}

// complete performs the request and returns the conversation extended by
// the assistant's reply.
func complete(ctx context.Context, cfg *callConfig, messages []Message) (*zhipu.Client, *zhipu.ChatCompletion, []Message, error) {
	client, err := cfg.resolveClient()
	if err != nil {
		return nil, nil, nil, err
	}

	completion, err := client.Chat(ctx, messages, cfg.requestParams()...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chat completion: %w", err)
	}

	history := make([]Message, 0, len(messages)+1)
	history = append(history, messages...)
	if len(completion.Choices) > 0 {
		reply := completion.Choices[0].Message
		if reply.Role == "" {
			reply.Role = RoleAssistant
		}
		history = append(history, reply)
	}
	return client, completion, history, nil
}

func typeName[T any]() string {
	var zero T
	if t := reflect.TypeOf(zero); t != nil && t.Name() != "" {
		return t.Name()
	}
	return "response"
}
