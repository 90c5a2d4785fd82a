package doctree

import "strings"

// Builder assembles a DocTree from a flat stream of headings and text
// blocks. A heading nests under the nearest earlier heading with a lower
// level; text attaches to the most recent heading.
type Builder struct {
	title string
	root  *DocNode
	stack []builderLevel
	text  strings.Builder
}

type builderLevel struct {
	node  *DocNode
	level int
}

// NewBuilder starts a document titled title.
func NewBuilder(title string) *Builder {
	root := &DocNode{Title: title}
	return &Builder{
		title: title,
		root:  root,
		stack: []builderLevel{{node: root, level: 0}},
	}
}

// Heading opens a section at level (1 is the outermost).
func (b *Builder) Heading(level int, title string) {
	b.flush()
	n := &DocNode{Title: title}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, builderLevel{node: n, level: level})
}

// Text appends a paragraph to the current section. Blank input is ignored.
func (b *Builder) Text(t string) {
	if t == "" {
		return
	}
	if b.text.Len() > 0 {
		b.text.WriteString("\n\n")
	}
	b.text.WriteString(t)
}

func (b *Builder) flush() {
	t := strings.TrimSpace(b.text.String())
	b.text.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1].node
	if top.Text != "" {
		top.Text += "\n\n" + t
	} else {
		top.Text = t
	}
}

// Tree finishes the document. Text without any heading becomes a single
// untitled child.
func (b *Builder) Tree() *DocTree {
	b.flush()
	tree := &DocTree{Title: b.title, Children: b.root.Children}
	if len(tree.Children) == 0 && b.root.Text != "" {
		tree.Children = []*DocNode{{Text: b.root.Text}}
	}
	return tree
}
