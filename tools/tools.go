// Package tools provides file tools for GLM function calling. Every tool is
// confined to a root directory: paths given by the model are resolved
// inside it and may not escape it.
package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/i2y/bigmodel/llm"
)

// FileTools returns the read, glob and grep tools rooted at dir.
//
//	files, err := tools.FileTools(".")
//	if err != nil {
//	    return err
//	}
//	resp, err := llm.Call(ctx, "Which files mention TODO?",
//	    llm.WithClient(client),
//	    llm.WithTools(files...),
//	)
func FileTools(dir string) ([]llm.Tool, error) {
	fsys, err := openRoot(dir)
	if err != nil {
		return nil, err
	}
	return []llm.Tool{
		must(newReadTool(fsys)),
		must(newGlobTool(fsys)),
		must(newGrepTool(fsys)),
	}, nil
}

// openRoot opens dir as a file system that refuses every path leading out
// of it, symlinks included. The root stays open for the life of the tools.
func openRoot(dir string) (fs.FS, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("opening tool root: %w", err)
	}
	return root.FS(), nil
}

// errLimit stops a walk once enough results were collected.
var errLimit = errors.New("result limit reached")

func must(t llm.Tool, err error) llm.Tool {
	if err != nil {
		panic(err)
	}
	return t
}

// resolve turns a model-supplied path into an fs.FS path. Empty means the
// root; leading slashes and "./" are dropped.
func resolve(p string) (string, error) {
	p = strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return ".", nil
	}
	p = path.Clean(p)
	if !fs.ValidPath(p) {
		return "", fmt.Errorf("path %q is outside the working directory", p)
	}
	return p, nil
}
