package tools

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/i2y/bigmodel/llm"
)

const defaultMaxMatches = 100

// GrepInput is the argument object of the grep tool.
type GrepInput struct {
	Pattern    string `json:"pattern" jsonschema:"required,description=Regular expression (RE2 syntax)"`
	Path       string `json:"path,omitempty" jsonschema:"description=File or directory to search (relative to the working directory)"`
	Include    string `json:"include,omitempty" jsonschema:"description=Only search files matching this glob (e.g. **/*.go)"`
	MaxMatches int    `json:"max_matches,omitempty" jsonschema:"description=Maximum matches to return (default 100)"`
}

// GrepOutput lists matching lines.
type GrepOutput struct {
	Matches   []GrepMatch `json:"matches"`
	Count     int         `json:"count"`
	Truncated bool        `json:"truncated,omitempty"`
}

// GrepMatch is one matching line.
type GrepMatch struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// GrepTool returns the grep tool rooted at dir.
func GrepTool(dir string) (llm.Tool, error) {
	fsys, err := openRoot(dir)
	if err != nil {
		return nil, err
	}
	return newGrepTool(fsys)
}

func newGrepTool(fsys fs.FS) (llm.Tool, error) {
	return llm.NewTool("grep",
		"Search file contents with a regular expression. Returns file, line number and line for each match.",
		func(ctx context.Context, in GrepInput) (GrepOutput, error) {
			return grepFiles(ctx, fsys, in)
		})
}

func grepFiles(ctx context.Context, fsys fs.FS, in GrepInput) (GrepOutput, error) {
	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return GrepOutput{}, fmt.Errorf("invalid pattern: %w", err)
	}
	include := in.Include
	if include == "" {
		include = "**"
	}
	if !doublestar.ValidatePattern(include) {
		return GrepOutput{}, fmt.Errorf("invalid include pattern %q", include)
	}
	limit := in.MaxMatches
	if limit <= 0 {
		limit = defaultMaxMatches
	}
	base, err := resolve(in.Path)
	if err != nil {
		return GrepOutput{}, err
	}

	g := &grep{fsys: fsys, re: re, limit: limit, out: GrepOutput{Matches: []GrepMatch{}}}

	info, err := fs.Stat(fsys, base)
	if err != nil {
		return GrepOutput{}, err
	}
	if !info.IsDir() {
		if err := g.file(base); err != nil && !errors.Is(err, errLimit) {
			return GrepOutput{}, err
		}
		return g.result(), nil
	}

	sub, err := fs.Sub(fsys, base)
	if err != nil {
		return GrepOutput{}, err
	}
	err = doublestar.GlobWalk(sub, include, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Unreadable files are skipped.
		if err := g.file(path.Join(base, p)); errors.Is(err, errLimit) {
			return err
		}
		return nil
	}, doublestar.WithFilesOnly())
	if err != nil && !errors.Is(err, errLimit) {
		return GrepOutput{}, err
	}
	return g.result(), nil
}

type grep struct {
	fsys  fs.FS
	re    *regexp.Regexp
	limit int
	out   GrepOutput
}

func (g *grep) result() GrepOutput {
	g.out.Count = len(g.out.Matches)
	return g.out
}

// file scans one file. Binary files are skipped silently.
func (g *grep) file(name string) error {
	f, err := g.fsys.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	head, _ := r.Peek(512)
	if bytes.IndexByte(head, 0) >= 0 {
		return nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if !g.re.Match(sc.Bytes()) {
			continue
		}
		if len(g.out.Matches) == g.limit {
			g.out.Truncated = true
			return errLimit
		}
		g.out.Matches = append(g.out.Matches, GrepMatch{File: name, Line: line, Content: sc.Text()})
	}
	// Over-long lines end the scan of this file only.
	return nil
}
