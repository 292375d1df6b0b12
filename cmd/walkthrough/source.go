package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/livetemplate/walkthrough"
	"github.com/livetemplate/walkthrough/internal/config"
	"github.com/livetemplate/walkthrough/internal/content"
	"github.com/spf13/cobra"
)

// contentSource is the tree of pages a command works on.
type contentSource struct {
	fsys fs.FS
	dir  string // absolute path, "" for the built-in tutorial
}

func (s contentSource) String() string {
	if s.dir == "" {
		return "built-in tutorial"
	}
	return s.dir
}

// resolveContent returns the directory named by args, or the built-in tutorial.
func resolveContent(args []string) (contentSource, error) {
	if len(args) == 0 {
		return contentSource{fsys: content.FS()}, nil
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return contentSource{}, fmt.Errorf("directory does not exist: %s", dir)
		}
		return contentSource{}, err
	}
	if !info.IsDir() {
		return contentSource{}, fmt.Errorf("not a directory: %s", dir)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return contentSource{}, fmt.Errorf("failed to get absolute path: %w", err)
	}
	return contentSource{fsys: os.DirFS(absDir), dir: absDir}, nil
}

// loadConfig reads --config when set, else walkthrough.yaml from the content
// dir. The built-in tutorial uses the defaults.
func loadConfig(cmd *cobra.Command, src contentSource) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	switch {
	case path != "":
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	case src.dir != "":
		cfg, err := config.LoadFromDir(src.dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	default:
		return config.DefaultConfig(), nil
	}
}

// loadPage parses a markdown file, or a page of the built-in tutorial by
// name ("elements" or "elements.md").
func loadPage(arg string, registry *walkthrough.Registry) (*walkthrough.Page, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return walkthrough.ParseFile(arg, walkthrough.WithRegistry(registry))
	}

	name := strings.TrimSuffix(arg, ".md") + ".md"
	if _, err := fs.Stat(content.FS(), name); err != nil {
		return nil, fmt.Errorf("no such file or tutorial page: %s", arg)
	}
	return walkthrough.ParseFS(content.FS(), name, walkthrough.WithRegistry(registry))
}

// markdownFiles lists the pages under fsys, skipping _ and . directories.
func markdownFiles(fsys fs.FS) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != "." && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(p, ".md") {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}
