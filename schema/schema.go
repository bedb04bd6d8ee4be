// Package schema generates JSON Schemas from Go types for tool parameters
// and structured replies.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Reflector inlines every definition: the API does not resolve $ref.
var Reflector = &jsonschema.Reflector{
	DoNotReference: true,
}

// Generate creates a JSON Schema from a Go type with json and jsonschema
// struct tags.
//
//	type Book struct {
//	    Title  string `json:"title" jsonschema:"required,description=The book title"`
//	    Author string `json:"author" jsonschema:"required"`
//	    Year   int    `json:"year,omitempty"`
//	}
//
//	raw, err := schema.Generate[Book]()
func Generate[T any]() (json.RawMessage, error) {
	var zero T
	return json.Marshal(Reflector.Reflect(&zero))
}

// GenerateFromValue creates a JSON Schema from the type of v.
func GenerateFromValue(v any) (json.RawMessage, error) {
	return json.Marshal(Reflector.Reflect(v))
}

// MustGenerate is like Generate but panics on error.
func MustGenerate[T any]() json.RawMessage {
	raw, err := Generate[T]()
	if err != nil {
		panic(err)
	}
	return raw
}

// Instruction renders the system prompt that asks for a reply conforming to
// raw. The API's JSON mode guarantees an object but not its shape, so the
// schema has to travel in the prompt.
func Instruction(name string, raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	return fmt.Sprintf(
		"Reply with a single JSON object describing a %s. It must conform to this JSON Schema:\n%s\nDo not add any text outside the JSON object.",
		name, pretty.String())
}

// StripCodeFence removes a surrounding ```json fence, which models add even
// in JSON mode.
func StripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	} else {
		return s
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
