package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/docmerge/internal/doctree"
	"github.com/dgallion1/docmerge/internal/parser"
)

// Entry describes one file of a merged docs tree.
type Entry struct {
	Path        string   `json:"path"` // Slash-separated, relative to the catalog root
	Format      string   `json:"format,omitempty"`
	Title       string   `json:"title,omitempty"`
	Headings    []string `json:"headings,omitempty"`
	Size        int64    `json:"size"`
	ContentHash string   `json:"content_hash"`
	Error       string   `json:"error,omitempty"`
}

// Catalog lists every regular file under Root in lexicographic path order.
type Catalog struct {
	Root    string  `json:"root"`
	Entries []Entry `json:"entries"`
}

// Options controls document parsing while cataloging.
type Options struct {
	Parser        parser.Options
	MaxParseBytes int64 // Larger files are hashed but not parsed; 0 means no limit
}

// Build walks root and records each file. Supported documents are parsed
// for a title and heading outline; a parse failure is kept on the entry
// rather than failing the catalog. Unreadable files and directories do fail it.
func Build(ctx context.Context, root string, opts Options, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	cat := &Catalog{Root: root, Entries: []Entry{}}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		entry, err := Describe(path, opts)
		if err != nil {
			return err
		}
		entry.Path = filepath.ToSlash(rel)
		if entry.Error != "" {
			log.Warn("document parse failed", "path", entry.Path, "error", entry.Error)
		}
		cat.Entries = append(cat.Entries, entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", root, err)
	}
	return cat, nil
}

// Describe hashes and, when supported, parses a single file. Only I/O
// failures are returned as errors.
func Describe(path string, opts Options) (Entry, error) {
	entry := Entry{Path: filepath.ToSlash(path), Format: parser.Format(path)}

	f, err := os.Open(path)
	if err != nil {
		return entry, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return entry, err
	}
	entry.Size = n
	entry.ContentHash = hex.EncodeToString(h.Sum(nil))

	if entry.Format == "" {
		return entry, nil
	}
	if opts.MaxParseBytes > 0 && n > opts.MaxParseBytes {
		entry.Error = fmt.Sprintf("file exceeds max parse size (%d bytes)", opts.MaxParseBytes)
		return entry, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return entry, err
	}

	tree, err := Outline(f, path, opts.Parser)
	if err != nil {
		entry.Error = err.Error()
		return entry, nil
	}
	entry.Title = Title(tree, entry.Format)
	entry.Headings = tree.Headings()
	return entry, nil
}

// Outline parses r with the parser registered for filename's extension.
func Outline(r io.Reader, filename string, opts parser.Options) (*doctree.DocTree, error) {
	p, err := parser.ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	tree, err := p.Parse(r, filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, errors.New("parser returned no document")
	}
	return tree, nil
}

// Title picks the display title of a parsed document. Markdown and DOCX
// files with a single top-level heading are titled by that heading; other
// formats keep the parser's title (HTML <title>, else the file name).
func Title(tree *doctree.DocTree, format string) string {
	switch format {
	case "markdown", "docx":
		if len(tree.Children) == 1 && tree.Children[0].Title != "" {
			return tree.Children[0].Title
		}
	}
	return tree.Title
}
