package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/andresuchdata/stalestock/internal/domain"
)

const fileNamePrefix = "滞销分析数据_"

// FileName returns the download name for an export created at now.
func FileName(now time.Time, ext string) string {
	return fmt.Sprintf("%s%s.%s", fileNamePrefix, now.Format("20060102_150405"), ext)
}

// WriteCSV writes records as UTF-8 CSV with one column per entry of columns.
// Re-importing the output yields the same derived values.
func WriteCSV(w io.Writer, columns []string, records []domain.Record) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(columns))
	for i, r := range records {
		for j, c := range columns {
			row[j], _, _ = r.Field(c)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
