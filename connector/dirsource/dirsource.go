// Package dirsource provides a connector over a local directory of
// markdown and plain-text documents. It exists both as a usable source
// for file dumps and as the reference implementation of the connector
// contract: enumeration walks the tree lazily, the relative path is
// the natural key, and extraction never mutates the directory.
package dirsource

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/corpus/connector"
	"github.com/poiesic/corpus/core"
)

// Connector reads documents from a directory tree. Files with a .md,
// .markdown or .txt extension are enumerated; everything else is
// ignored.
type Connector struct {
	name string
	root string
}

var _ connector.Connector = (*Connector)(nil)

// New creates a directory connector named name over the tree rooted at
// root.
func New(name, root string) connector.Connector {
	return &Connector{name: name, root: root}
}

// Descriptor returns the connector's immutable descriptor. Local reads
// need no cooldown.
func (c *Connector) Descriptor() connector.Descriptor {
	return connector.Descriptor{
		Name:     c.name,
		KeyField: "natural_key",
	}
}

// Setup verifies the root directory exists.
func (c *Connector) Setup(ctx context.Context) error {
	info, err := os.Stat(c.root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", c.root)
	}
	return nil
}

// Items walks the tree and yields the relative path of every document
// file. The walk restarts from the root on every invocation.
func (c *Connector) Items(ctx context.Context) iter.Seq2[connector.Item, error] {
	return func(yield func(connector.Item, error) bool) {
		err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if !yield(nil, err) {
					return fs.SkipAll
				}
				return nil
			}
			if d.IsDir() || !isDocumentFile(path) {
				return nil
			}

			rel, err := filepath.Rel(c.root, path)
			if err != nil {
				return err
			}
			if !yield(filepath.ToSlash(rel), nil) {
				return fs.SkipAll
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// ItemKey returns the slash-separated path relative to the root, which
// is stable across walks and hosts.
func (c *Connector) ItemKey(item connector.Item) string {
	key, _ := item.(string)
	return key
}

// Process reads and extracts one document file.
func (c *Connector) Process(ctx context.Context, item connector.Item) (*core.Record, error) {
	rel, ok := item.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected item type %T", item)
	}

	path := filepath.Join(c.root, filepath.FromSlash(rel))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := string(data)
	title, body := extractTitle(rel, text)

	record := &core.Record{
		Title: title,
		URL:   "file://" + path,
		Text:  body,
	}

	if info, err := os.Stat(path); err == nil {
		record.DatePublished = info.ModTime().UTC()
	}

	return record, nil
}

func isDocumentFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	}
	return false
}

// extractTitle takes the first markdown heading as the title, falling
// back to the file name. The heading line is removed from the body so
// it isn't embedded twice.
func extractTitle(rel, text string) (title, body string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if after, ok := strings.CutPrefix(trimmed, "# "); ok {
			rest := append(lines[:i:i], lines[i+1:]...)
			return strings.TrimSpace(after), strings.Join(rest, "\n")
		}
		break
	}

	base := filepath.Base(rel)
	title = strings.TrimSuffix(base, filepath.Ext(base))
	title = strings.ReplaceAll(title, "-", " ")
	title = strings.ReplaceAll(title, "_", " ")
	return title, text
}
