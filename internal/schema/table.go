package schema

import (
	"strings"

	"github.com/couchcryptid/grid-reliability-etl/internal/domain"
)

// Table is a block of spreadsheet rows below a located header.
type Table struct {
	Header []string
	Body   [][]string
}

// NewTable splits rows at headerRow. Rows above the header are discarded.
func NewTable(rows [][]string, headerRow int) Table {
	if headerRow < 0 || headerRow >= len(rows) {
		return Table{}
	}
	header := make([]string, len(rows[headerRow]))
	for i, h := range rows[headerRow] {
		header[i] = strings.TrimSpace(h)
	}
	return Table{Header: header, Body: rows[headerRow+1:]}
}

// Records converts body rows to RawRows keyed by header label. Blank rows
// are skipped; for repeated labels the leftmost column wins, matching
// Resolve's source-order tie-break.
func (t Table) Records() []domain.RawRow {
	out := make([]domain.RawRow, 0, len(t.Body))
	for _, row := range t.Body {
		if isBlank(row) {
			continue
		}
		rec := make(domain.RawRow, len(t.Header))
		for i, label := range t.Header {
			if label == "" || i >= len(row) {
				continue
			}
			if _, seen := rec[label]; seen {
				continue
			}
			rec[label] = row[i]
		}
		out = append(out, rec)
	}
	return out
}

// Column returns the cells of one column, skipping short rows.
func (t Table) Column(idx int) []string {
	var cells []string
	for _, row := range t.Body {
		if idx < len(row) {
			cells = append(cells, row[idx])
		}
	}
	return cells
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
