package llm

import (
	"errors"
	"fmt"
)

// ErrNotParsed is returned when Parsed() is called on a response that was
// not produced by CallParse or CallMessagesParse.
var ErrNotParsed = errors.New("response was not parsed: use CallParse to get structured output")

// ParseError is a reply that could not be decoded into the target type.
type ParseError struct {
	Content string
	Target  string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse response as %s: %v", e.Target, e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ToolError is a failed tool execution.
type ToolError struct {
	ToolName string
	Cause    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q execution failed: %v", e.ToolName, e.Cause)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

// ToolNotFoundError is returned when the model calls an unregistered tool.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool not found: %q", e.Name)
}
