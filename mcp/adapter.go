// Package mcp exposes the tools of a Model Context Protocol server as
// llm.Tool values, so GLM can call them through function calling.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/i2y/bigmodel/llm"
	"github.com/i2y/bigmodel/logger"
)

// DefaultCallTimeout bounds a single tool call.
const DefaultCallTimeout = 30 * time.Second

// Client is a session with one MCP server.
type Client struct {
	session *mcp.ClientSession
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout time.Duration
	logger  *slog.Logger
	version string
}

// WithTimeout bounds each tool call.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithLogger logs tool calls at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithVersion sets the client version announced to the server.
func WithVersion(v string) Option {
	return func(c *clientConfig) {
		c.version = v
	}
}

// Connect opens a session over transport.
func Connect(ctx context.Context, transport mcp.Transport, opts ...Option) (*Client, error) {
	cfg := &clientConfig{timeout: DefaultCallTimeout, version: "0.1.0"}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Nop()
	}

	impl := &mcp.Implementation{Name: "bigmodel", Version: cfg.version}
	session, err := mcp.NewClient(impl, nil).Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to MCP server: %w", err)
	}
	return &Client{session: session, timeout: cfg.timeout, logger: cfg.logger}, nil
}

// NewStdioClient starts command and talks MCP over its stdin and stdout.
//
//	client, err := mcp.NewStdioClient(ctx, "npx", []string{"-y", "@modelcontextprotocol/server-everything"})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func NewStdioClient(ctx context.Context, command string, args []string, opts ...Option) (*Client, error) {
	transport := &mcp.CommandTransport{Command: exec.Command(command, args...)}
	c, err := Connect(ctx, transport, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", command, err)
	}
	return c, nil
}

// Tools lists every tool of the server, following pagination.
//
//	tools, err := client.Tools(ctx)
//	resp, err := llm.Call(ctx, "What time is it in Beijing?",
//	    llm.WithClient(glm),
//	    llm.WithTools(tools...),
//	)
func (c *Client) Tools(ctx context.Context) ([]llm.Tool, error) {
	var tools []llm.Tool
	for t, err := range c.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("listing MCP tools: %w", err)
		}
		tools = append(tools, &remoteTool{client: c, def: t, params: inputSchema(t.InputSchema)})
	}
	c.logger.Debug("listed MCP tools", "count", len(tools))
	return tools, nil
}

// Close ends the session. For stdio clients this stops the server process.
func (c *Client) Close() error {
	return c.session.Close()
}

// remoteTool forwards Execute to the server.
type remoteTool struct {
	client *Client
	def    *mcp.Tool
	params *jsonschema.Schema
}

func (t *remoteTool) Name() string {
	return t.def.Name
}

func (t *remoteTool) Description() string {
	return t.def.Description
}

func (t *remoteTool) Parameters() *jsonschema.Schema {
	return t.params
}

func (t *remoteTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.client.timeout)
	defer cancel()

	arguments := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, fmt.Errorf("decoding arguments: %w", err)
		}
	}

	start := time.Now()
	result, err := t.client.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      t.def.Name,
		Arguments: arguments,
	})
	t.client.logger.Debug("called MCP tool", "tool", t.def.Name, "duration", time.Since(start), "error", err)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", t.def.Name, err)
	}

	text := renderContent(result.Content)
	if result.IsError {
		return nil, fmt.Errorf("%s reported an error: %s", t.def.Name, text)
	}
	if text == "" && result.StructuredContent != nil {
		b, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("encoding structured result: %w", err)
		}
		return string(b), nil
	}
	return text, nil
}

// inputSchema converts the server's schema, which arrives as decoded JSON.
func inputSchema(v any) *jsonschema.Schema {
	fallback := &jsonschema.Schema{Type: "object"}
	if v == nil {
		return fallback
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return fallback
	}
	if s.Type == "" {
		s.Type = "object"
	}
	return &s
}

// renderContent flattens a tool result into text, one line per item. Binary
// items are described rather than inlined.
func renderContent(content []mcp.Content) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		switch item := c.(type) {
		case *mcp.TextContent:
			parts = append(parts, item.Text)
		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes]", item.MIMEType, len(item.Data)))
		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio %s, %d bytes]", item.MIMEType, len(item.Data)))
		case *mcp.ResourceLink:
			parts = append(parts, fmt.Sprintf("[resource %s]", item.URI))
		case *mcp.EmbeddedResource:
			switch {
			case item.Resource == nil:
				parts = append(parts, "[resource]")
			case item.Resource.Text != "":
				parts = append(parts, item.Resource.Text)
			default:
				parts = append(parts, fmt.Sprintf("[resource %s]", item.Resource.URI))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// ToolsFromMCP starts a stdio server and returns its tools with a function
// that stops it.
//
//	tools, stop, err := mcp.ToolsFromMCP(ctx, "./weather-server", nil)
//	if err != nil {
//	    return err
//	}
//	defer stop()
func ToolsFromMCP(ctx context.Context, command string, args []string, opts ...Option) ([]llm.Tool, func() error, error) {
	c, err := NewStdioClient(ctx, command, args, opts...)
	if err != nil {
		return nil, nil, err
	}
	tools, err := c.Tools(ctx)
	if err != nil {
		_ = c.Close()
		return nil, nil, err
	}
	return tools, c.Close, nil
}
