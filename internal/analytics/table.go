package analytics

import (
	"fmt"
	"sort"

	"github.com/andresuchdata/stalestock/internal/domain"
)

// Table projects records onto columns and sorts them by sortBy. An empty
// column list selects every column; an empty sortBy uses the first dataset
// column. Both must name columns in allColumns.
func Table(records []domain.Record, columns, allColumns []string, sortBy string, descending bool) (domain.TableView, error) {
	known := make(map[string]bool, len(allColumns))
	for _, c := range allColumns {
		known[c] = true
	}

	if len(columns) == 0 {
		columns = allColumns
	}
	for _, c := range columns {
		if !known[c] {
			return domain.TableView{}, fmt.Errorf("%w: %q", ErrUnknownColumn, c)
		}
	}

	if sortBy == "" && len(allColumns) > 0 {
		sortBy = allColumns[0]
	}
	if sortBy != "" && !known[sortBy] {
		return domain.TableView{}, fmt.Errorf("%w: %q", ErrUnknownColumn, sortBy)
	}

	sorted := SortRecords(records, sortBy, descending)

	rows := make([][]any, 0, len(sorted))
	for _, r := range sorted {
		row := make([]any, len(columns))
		for i, c := range columns {
			text, num, isNum := r.Field(c)
			if isNum && isNumericColumn(c) {
				row[i] = num
			} else {
				row[i] = text
			}
		}
		rows = append(rows, row)
	}

	return domain.TableView{
		Columns:    append([]string(nil), columns...),
		Rows:       rows,
		SortBy:     sortBy,
		Descending: descending,
	}, nil
}

// SortRecords returns a stably sorted copy of records. Values compare
// numerically when both parse as numbers, otherwise as text.
func SortRecords(records []domain.Record, column string, descending bool) []domain.Record {
	sorted := make([]domain.Record, len(records))
	copy(sorted, records)
	if column == "" {
		return sorted
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		c := compareField(sorted[i], sorted[j], column)
		if descending {
			return c > 0
		}
		return c < 0
	})
	return sorted
}

func compareField(a, b domain.Record, column string) int {
	at, an, aNum := a.Field(column)
	bt, bn, bNum := b.Field(column)
	if aNum && bNum {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	}
	switch {
	case at < bt:
		return -1
	case at > bt:
		return 1
	}
	return 0
}

func isNumericColumn(column string) bool {
	for _, c := range domain.NumericColumns {
		if c == column {
			return true
		}
	}
	for _, c := range domain.DerivedColumns {
		if c == column {
			return true
		}
	}
	return false
}
