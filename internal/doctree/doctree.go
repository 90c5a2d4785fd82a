package doctree

import (
	"path/filepath"
	"slices"
	"strings"
)

// Chain is the ordered list of directory names from a scan root down to, but
// not including, a matched directory.
type Chain []string

// Extend returns a new chain with name appended. The receiver is not modified.
func (c Chain) Extend(name string) Chain {
	return append(slices.Clone(c), name)
}

// Under joins the chain onto base.
func (c Chain) Under(base string) string {
	return filepath.Join(append([]string{base}, c...)...)
}

// String renders the chain with forward slashes, "." when empty.
func (c Chain) String() string {
	if len(c) == 0 {
		return "."
	}
	return strings.Join(c, "/")
}

// Match is a qualifying directory found by the walker.
type Match struct {
	Chain Chain  // Segments from the scan root to the match's parent
	Path  string // Full path of the matched directory
}

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     `json:"title"`              // Document title (from metadata or filename)
	Children []*DocNode `json:"children,omitempty"` // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     `json:"title,omitempty"`    // Section heading (empty for leaf text)
	Text     string     `json:"text,omitempty"`     // Text content of this node (may be empty for container nodes)
	Page     int        `json:"page,omitempty"`     // Source page/line (0 if N/A)
	Children []*DocNode `json:"children,omitempty"` // Subsections
}

// Headings returns section titles in document order, indented two spaces
// per nesting level.
func (t *DocTree) Headings() []string {
	type frame struct {
		node  *DocNode
		depth int
	}
	var out []string
	stack := make([]frame, 0, len(t.Children))
	for i := len(t.Children) - 1; i >= 0; i-- {
		stack = append(stack, frame{t.Children[i], 0})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		depth := f.depth
		if f.node.Title != "" {
			out = append(out, strings.Repeat("  ", f.depth)+f.node.Title)
			depth++
		}
		for i := len(f.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.node.Children[i], depth})
		}
	}
	return out
}
