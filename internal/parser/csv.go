package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docmerge/internal/doctree"
)

// CSVParser handles CSV files. The header row becomes a "Columns" section;
// data rows are grouped in batches.
type CSVParser struct{}

const csvBatchSize = 20

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	tree := &doctree.DocTree{Title: baseTitle(filename)}

	header, err := reader.Read()
	if err == io.EOF {
		return tree, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	tree.Children = append(tree.Children, &doctree.DocNode{
		Title: "Columns",
		Text:  strings.Join(header, ", "),
	})

	var batch [][]string
	first := 2 // 1-indexed line of the first data row
	flush := func() {
		if len(batch) == 0 {
			return
		}
		var text strings.Builder
		for _, row := range batch {
			for j, cell := range row {
				if j > 0 {
					text.WriteString(", ")
				}
				if j < len(header) {
					text.WriteString(header[j] + ": ")
				}
				text.WriteString(cell)
			}
			text.WriteString("\n")
		}
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", first, first+len(batch)-1),
			Text:  strings.TrimSpace(text.String()),
		})
		first += len(batch)
		batch = batch[:0]
	}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		batch = append(batch, row)
		if len(batch) == csvBatchSize {
			flush()
		}
	}
	flush()

	return tree, nil
}
