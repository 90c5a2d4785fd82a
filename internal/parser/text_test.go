package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func paragraphs(t *testing.T, input, filename string) (string, []string) {
	t.Helper()
	tree, err := (&TextParser{}).Parse(strings.NewReader(input), filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got []string
	for _, c := range tree.Children {
		if c.Title != "" {
			t.Errorf("text paragraphs should be untitled, got %q", c.Title)
		}
		got = append(got, c.Text)
	}
	return tree.Title, got
}

func TestTextParser(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		input     string
		wantTitle string
		want      []string
	}{
		{
			name:      "merged changelog",
			file:      "A/B/CHANGELOG.txt",
			input:     "v1.2.0\nAdded skip patterns.\n\nv1.1.0\nFirst merged release.",
			wantTitle: "CHANGELOG",
			want:      []string{"v1.2.0\nAdded skip patterns.", "v1.1.0\nFirst merged release."},
		},
		{
			name:      "runs of blank and whitespace lines",
			file:      "ops/runbook.txt",
			input:     "Restart the service.\n\n\n   \n\t\nCheck the logs.\n",
			wantTitle: "runbook",
			want:      []string{"Restart the service.", "Check the logs."},
		},
		{
			name:      "dotted name keeps inner dots",
			file:      "A/release.notes.txt",
			input:     "x",
			wantTitle: "release.notes",
			want:      []string{"x"},
		},
		{
			name:      "empty file",
			file:      "A/B/EMPTY.txt",
			input:     "",
			wantTitle: "EMPTY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, got := paragraphs(t, tt.input, tt.file)
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("paragraphs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTextParser_LongLine(t *testing.T) {
	line := strings.Repeat("x", 200*1024)
	_, got := paragraphs(t, line+"\n\nshort", "A/dump.txt")
	if len(got) != 2 || len(got[0]) != len(line) {
		t.Fatalf("expected the long line intact as the first paragraph, got %d paragraphs", len(got))
	}
}
