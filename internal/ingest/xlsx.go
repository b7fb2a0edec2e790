package ingest

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// readXLSXRows returns the cells of the first sheet, header row first.
func readXLSXRows(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: xlsx file has no sheets", ErrEmptyFile)
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from sheet %s: %w", sheet, err)
		}
		if len(out) == 0 && len(record) == 0 {
			// leading empty rows before the header
			continue
		}
		out = append(out, record)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in sheet %s: %w", sheet, err)
	}

	if len(out) == 0 {
		return nil, ErrEmptyFile
	}
	return out, nil
}
