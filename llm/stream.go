package llm

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/i2y/bigmodel/sse"
	"github.com/i2y/bigmodel/zhipu"
)

// Stream is a streaming reply. Chunks yields content as it arrives and
// Response returns everything accumulated so far.
type Stream struct {
	stream    *zhipu.Stream
	content   []byte
	role      Role
	finish    FinishReason
	usage     *zhipu.Usage
	toolCalls map[int]*ToolCall
	malformed int
}

// StreamChunk is one content increment.
type StreamChunk struct {
	Delta        string
	ToolCalls    []ToolCall
	FinishReason FinishReason
}

// CallStream streams the reply to prompt.
//
//	stream, err := llm.CallStream(ctx, "Write a poem about AI", llm.WithClient(client))
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for chunk := range stream.Chunks() {
//	    fmt.Print(chunk.Delta)
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
func CallStream(ctx context.Context, prompt string, opts ...Option) (*Stream, error) {
	cfg := newCallConfig(opts...)
	return startStream(ctx, cfg, cfg.conversation(prompt))
}

// CallMessagesStream streams the reply to a full conversation.
func CallMessagesStream(ctx context.Context, messages []Message, opts ...Option) (*Stream, error) {
	cfg := newCallConfig(opts...)
	return startStream(ctx, cfg, cfg.withSystem(messages))
}

func startStream(ctx context.Context, cfg *callConfig, messages []Message) (*Stream, error) {
	client, err := cfg.resolveClient()
	if err != nil {
		return nil, err
	}
	s, err := client.ChatStream(ctx, messages, cfg.requestParams()...)
	if err != nil {
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	return &Stream{stream: s, toolCalls: make(map[int]*ToolCall)}, nil
}

// Chunks iterates over content increments until the stream ends. Malformed
// fragments are counted (see Malformed) and skipped.
func (s *Stream) Chunks() iter.Seq[StreamChunk] {
	return func(yield func(StreamChunk) bool) {
		for ev := range s.stream.Events() {
			switch ev.Type {
			case sse.EventMalformed:
				s.malformed++
				continue
			case sse.EventDone:
				return
			}

			chunk, err := zhipu.DecodeChunk(ev)
			if err != nil {
				s.malformed++
				continue
			}
			if !yield(s.accumulate(chunk)) {
				return
			}
		}
	}
}

func (s *Stream) accumulate(chunk *zhipu.StreamChunk) StreamChunk {
	if chunk.Usage != nil {
		s.usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return StreamChunk{}
	}

	choice := chunk.Choices[0]
	out := StreamChunk{
		Delta:        choice.Delta.Content,
		FinishReason: FinishReason(choice.FinishReason),
	}
	s.content = append(s.content, choice.Delta.Content...)
	if choice.Delta.Role != "" {
		s.role = choice.Delta.Role
	}
	if choice.FinishReason != "" {
		s.finish = out.FinishReason
	}

	for _, tc := range choice.Delta.ToolCalls {
		key := tc.Index
		// GLM sends whole calls and may omit the index; a new id starts a new call.
		if prev, ok := s.toolCalls[key]; ok && tc.ID != "" && prev.ID != "" && prev.ID != tc.ID {
			for taken := true; taken; _, taken = s.toolCalls[key] {
				key++
			}
		}
		acc, ok := s.toolCalls[key]
		if !ok {
			acc = &ToolCall{}
			s.toolCalls[key] = acc
		}
		if tc.ID != "" {
			acc.ID = tc.ID
		}
		if tc.Function.Name != "" {
			acc.Name = tc.Function.Name
		}
		acc.Arguments += tc.Function.Arguments
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// Err returns the transport error that ended the stream, if any.
func (s *Stream) Err() error {
	return s.stream.Err()
}

// Malformed returns how many fragments could not be decoded.
func (s *Stream) Malformed() int {
	return s.malformed
}

// Close releases the connection.
func (s *Stream) Close() error {
	return s.stream.Close()
}

// Response returns the reply accumulated so far as a completion.
func (s *Stream) Response() Response[string] {
	role := s.role
	if role == "" {
		role = RoleAssistant
	}
	msg := Message{Role: role, Content: string(s.content)}

	indexes := make([]int, 0, len(s.toolCalls))
	for i := range s.toolCalls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	calls := make([]ToolCall, 0, len(indexes))
	for _, i := range indexes {
		calls = append(calls, *s.toolCalls[i])
	}
	if len(calls) > 0 {
		msg = AssistantMessageWithToolCalls(msg.Content, calls)
	}

	raw := &zhipu.ChatCompletion{
		Choices: []zhipu.Choice{{Message: msg, FinishReason: string(s.finish)}},
		Usage:   s.usage,
	}
	return Response[string]{
		raw:       raw,
		parsed:    msg.Content,
		hasParsed: true,
	}
}
