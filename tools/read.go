package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/i2y/bigmodel/llm"
)

const defaultReadLimit = 2000

// ReadInput is the argument object of the read tool.
type ReadInput struct {
	Path   string `json:"path" jsonschema:"required,description=File to read (relative to the working directory)"`
	Offset int    `json:"offset,omitempty" jsonschema:"description=First line to return (0-based)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum lines to return (default 2000)"`
}

// ReadOutput is a range of lines from a file.
type ReadOutput struct {
	Content   string `json:"content"`
	StartLine int    `json:"start_line"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated"`
}

// ReadTool returns the read tool rooted at dir.
func ReadTool(dir string) (llm.Tool, error) {
	fsys, err := openRoot(dir)
	if err != nil {
		return nil, err
	}
	return newReadTool(fsys)
}

func newReadTool(fsys fs.FS) (llm.Tool, error) {
	return llm.NewTool("read",
		"Read a text file, optionally a range of lines.",
		func(ctx context.Context, in ReadInput) (ReadOutput, error) {
			return readFile(fsys, in)
		})
}

func readFile(fsys fs.FS, in ReadInput) (ReadOutput, error) {
	if in.Path == "" {
		return ReadOutput{}, fmt.Errorf("path is required")
	}
	if in.Offset < 0 {
		return ReadOutput{}, fmt.Errorf("offset must not be negative")
	}
	name, err := resolve(in.Path)
	if err != nil {
		return ReadOutput{}, err
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultReadLimit
	}

	f, err := fsys.Open(name)
	if err != nil {
		return ReadOutput{}, fmt.Errorf("opening %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	out := ReadOutput{StartLine: in.Offset + 1}
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 0; sc.Scan(); n++ {
		if n < in.Offset {
			continue
		}
		if len(lines) == limit {
			out.Truncated = true
			break
		}
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return ReadOutput{}, fmt.Errorf("reading %s: %w", name, err)
	}

	out.Content = strings.Join(lines, "\n")
	out.Lines = len(lines)
	return out, nil
}
