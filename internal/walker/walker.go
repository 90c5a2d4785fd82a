package walker

import (
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docmerge/internal/doctree"
)

// DefaultName is the directory name that qualifies for merging.
const DefaultName = "docs"

// DefaultSkip lists directory names that rarely hold project documentation
// and are expensive to scan.
var DefaultSkip = []string{
	"venv",
	"site-packages",
	"__pycache__",
	"node_modules",
	".git",
	"target",
	"build",
	"third_party",
	"tests",
}

// ErrNotDirectory is wrapped by a TraversalError when the root is a file.
var ErrNotDirectory = errors.New("not a directory")

// TraversalError reports a source path that could not be scanned.
type TraversalError struct {
	Path string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("traverse %s: %v", e.Path, e.Err)
}

func (e *TraversalError) Unwrap() error { return e.Err }

// Options controls which directories match and which are searched.
type Options struct {
	Name       string   // Qualifying directory name; DefaultName when empty
	IgnoreCase bool     // Match Name case-insensitively
	Skip       []string // Directories whose name contains any of these are not searched
	SkipHidden bool     // Do not search names starting with "." or "_"
	Exclude    []string // Paths never searched, e.g. a destination inside the source
}

func (o Options) matches(name string) bool {
	want := o.Name
	if want == "" {
		want = DefaultName
	}
	if o.IgnoreCase {
		return strings.EqualFold(name, want)
	}
	return name == want
}

func (o Options) skips(name string) bool {
	if o.SkipHidden && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
		return true
	}
	for _, p := range o.Skip {
		if p != "" && strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// Walk returns a lazy depth-first, pre-order sequence of the qualifying
// directories under root. Siblings are visited in lexicographic order. The
// root itself never matches, and a matched directory is not searched any
// further: whatever it contains belongs to that match.
//
// On the first unreadable directory the sequence yields a *TraversalError and
// ends. Symlinked directories are not followed.
func Walk(root string, opts Options) iter.Seq2[doctree.Match, error] {
	return func(yield func(doctree.Match, error) bool) {
		root = filepath.Clean(root)
		info, err := os.Stat(root)
		if err != nil {
			yield(doctree.Match{}, &TraversalError{Path: root, Err: err})
			return
		}
		if !info.IsDir() {
			yield(doctree.Match{}, &TraversalError{Path: root, Err: ErrNotDirectory})
			return
		}

		excluded := make(map[string]bool, len(opts.Exclude))
		for _, p := range opts.Exclude {
			if abs, err := filepath.Abs(p); err == nil {
				excluded[abs] = true
			}
		}

		type frame struct {
			path  string
			chain doctree.Chain
			match bool
		}
		stack := []frame{{path: root}}

		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if f.match {
				if !yield(doctree.Match{Chain: f.chain, Path: f.path}, nil) {
					return
				}
				continue
			}

			entries, err := os.ReadDir(f.path)
			if err != nil {
				yield(doctree.Match{}, &TraversalError{Path: f.path, Err: err})
				return
			}

			// Pushed in reverse so the lexicographically first child pops first.
			for i := len(entries) - 1; i >= 0; i-- {
				e := entries[i]
				if !e.IsDir() {
					continue
				}
				name := e.Name()
				if opts.skips(name) {
					continue
				}
				path := filepath.Join(f.path, name)
				if len(excluded) > 0 {
					if abs, err := filepath.Abs(path); err == nil && excluded[abs] {
						continue
					}
				}
				if opts.matches(name) {
					stack = append(stack, frame{path: path, chain: f.chain, match: true})
				} else {
					stack = append(stack, frame{path: path, chain: f.chain.Extend(name)})
				}
			}
		}
	}
}

// Collect drains Walk into a slice, stopping at the first error.
func Collect(root string, opts Options) ([]doctree.Match, error) {
	var out []doctree.Match
	for m, err := range Walk(root, opts) {
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}
