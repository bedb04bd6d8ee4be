package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/i2y/bigmodel/llm"
)

const maxGlobResults = 500

// GlobInput is the argument object of the glob tool.
type GlobInput struct {
	Pattern string `json:"pattern" jsonschema:"required,description=Glob pattern; ** matches any number of directories (e.g. **/*.go)"`
	Path    string `json:"path,omitempty" jsonschema:"description=Directory to search from (relative to the working directory)"`
}

// GlobOutput lists the matching files.
type GlobOutput struct {
	Files     []string `json:"files"`
	Count     int      `json:"count"`
	Truncated bool     `json:"truncated,omitempty"`
}

// GlobTool returns the glob tool rooted at dir.
func GlobTool(dir string) (llm.Tool, error) {
	fsys, err := openRoot(dir)
	if err != nil {
		return nil, err
	}
	return newGlobTool(fsys)
}

func newGlobTool(fsys fs.FS) (llm.Tool, error) {
	return llm.NewTool("glob",
		"Find files by name pattern. Supports ** for recursive matching.",
		func(ctx context.Context, in GlobInput) (GlobOutput, error) {
			return globFiles(ctx, fsys, in)
		})
}

func globFiles(ctx context.Context, fsys fs.FS, in GlobInput) (GlobOutput, error) {
	if !doublestar.ValidatePattern(in.Pattern) {
		return GlobOutput{}, fmt.Errorf("invalid pattern %q", in.Pattern)
	}
	base, err := resolve(in.Path)
	if err != nil {
		return GlobOutput{}, err
	}
	sub, err := fs.Sub(fsys, base)
	if err != nil {
		return GlobOutput{}, err
	}

	out := GlobOutput{Files: []string{}}
	err = doublestar.GlobWalk(sub, in.Pattern, func(p string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(out.Files) == maxGlobResults {
			out.Truncated = true
			return errLimit
		}
		out.Files = append(out.Files, path.Join(base, p))
		return nil
	}, doublestar.WithFilesOnly())
	if err != nil && !errors.Is(err, errLimit) {
		return GlobOutput{}, fmt.Errorf("glob %q: %w", in.Pattern, err)
	}
	out.Count = len(out.Files)
	return out, nil
}
