package llm

import "github.com/i2y/bigmodel/zhipu"

// Message is an alias for zhipu.Message for convenience.
type Message = zhipu.Message

// Role is an alias for zhipu.Role for convenience.
type Role = zhipu.Role

// Role constants.
const (
	RoleSystem    = zhipu.RoleSystem
	RoleUser      = zhipu.RoleUser
	RoleAssistant = zhipu.RoleAssistant
	RoleTool      = zhipu.RoleTool
)

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantMessageWithToolCalls creates an assistant message that requested
// tool calls.
func AssistantMessageWithToolCalls(content string, toolCalls []ToolCall) Message {
	calls := make([]zhipu.ToolCall, len(toolCalls))
	for i, tc := range toolCalls {
		calls[i] = zhipu.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: zhipu.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		}
	}
	return Message{
		Role:      RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	}
}

// ToolMessage creates a tool result message.
func ToolMessage(toolCallID, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: toolCallID,
	}
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

func toolCallsFrom(calls []zhipu.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}
	return out
}
