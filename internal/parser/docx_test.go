package parser

import (
	"testing"

	"github.com/fumiama/go-docx"
)

func TestDocxHeadingLevel(t *testing.T) {
	tests := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading 2", 2},
		{"Heading 6", 6},
		{"Heading7", 0},
		{"Title", 1},
		{"Normal", 0},
		{"HeadingX", 0},
	}
	for _, tt := range tests {
		para := &docx.Paragraph{Properties: &docx.ParagraphProperties{Style: &docx.Style{Val: tt.style}}}
		if got := docxHeadingLevel(para); got != tt.want {
			t.Errorf("style %q: expected level %d, got %d", tt.style, tt.want, got)
		}
	}

	if got := docxHeadingLevel(&docx.Paragraph{}); got != 0 {
		t.Errorf("expected 0 for paragraph without properties, got %d", got)
	}
}
