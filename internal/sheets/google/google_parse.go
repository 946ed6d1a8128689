package google

import (
	"fmt"
	"strings"
)

// rowIndex maps budget ids to 1-based sheet rows, plus the owner of each row.
type rowIndex struct {
	rows   map[string]int
	owners map[string]string
	// next is the first row after the last used one.
	next int
}

func (i rowIndex) empty() bool { return i.next <= 1 }

func (i rowIndex) clone() rowIndex {
	out := rowIndex{
		rows:   make(map[string]int, len(i.rows)),
		owners: make(map[string]string, len(i.owners)),
		next:   i.next,
	}
	for k, v := range i.rows {
		out.rows[k] = v
	}
	for k, v := range i.owners {
		out.owners[k] = v
	}
	return out
}

// parseRowIndex reads an A:B values matrix (budget id, user id). The header
// row and blanked rows are skipped but still count towards the next free row.
func parseRowIndex(values [][]any) rowIndex {
	idx := rowIndex{
		rows:   map[string]int{},
		owners: map[string]string{},
		next:   len(values) + 1,
	}
	for i, row := range values {
		id := cell(row, 0)
		if id == "" || (i == 0 && strings.EqualFold(id, "Budget ID")) {
			continue
		}
		if _, dup := idx.rows[id]; dup {
			continue
		}
		idx.rows[id] = i + 1
		idx.owners[id] = cell(row, 1)
	}
	return idx
}

func cell(row []any, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[col]))
}
