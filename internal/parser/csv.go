package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docchat/internal/doctree"
)

// CSVParser handles CSV files. Rows are rendered one per line with cells
// joined by ", ".
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename, ".csv")}
	if len(records) == 0 {
		return tree, nil
	}

	lines := make([]string, 0, len(records))
	for _, row := range records {
		lines = append(lines, strings.ToValidUTF8(strings.Join(row, ", "), ""))
	}
	tree.Children = []*doctree.DocNode{{Text: strings.Join(lines, "\n")}}
	return tree, nil
}
