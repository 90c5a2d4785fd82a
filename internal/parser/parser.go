package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docmerge/internal/doctree"
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// Options tunes individual parsers.
type Options struct {
	PDFFallbackPdftotext bool
}

// formats maps lower-case extensions to the format name reported in catalogs.
var formats = map[string]string{
	".txt":      "text",
	".md":       "markdown",
	".markdown": "markdown",
	".csv":      "csv",
	".html":     "html",
	".htm":      "html",
	".pdf":      "pdf",
	".docx":     "docx",
}

// Format returns the document format for filename, or "" if unsupported.
func Format(filename string) string {
	return formats[strings.ToLower(filepath.Ext(filename))]
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return Format(filename) != ""
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	switch Format(filename) {
	case "text":
		return &TextParser{}, nil
	case "markdown":
		return &MarkdownParser{}, nil
	case "csv":
		return &CSVParser{}, nil
	case "html":
		return &HTMLParser{}, nil
	case "pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case "docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", filepath.Ext(filename))
	}
}

// baseTitle strips the extension from a file name.
func baseTitle(filename string) string {
	name := filepath.Base(filename)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// spool copies r into a temp file for libraries that need random access.
// The caller removes the returned path.
func spool(r io.Reader, pattern string) (path string, size int64, err error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	path = tmp.Name()

	size, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	return path, size, nil
}
