package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/stalestock/internal/analytics"
	"github.com/andresuchdata/stalestock/internal/domain"
)

const (
	dataSheet    = "滞销数据"
	summarySheet = "汇总"
)

// WriteXLSX writes records to a workbook with a data sheet and a summary sheet.
func WriteXLSX(w io.Writer, columns []string, records []domain.Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(dataSheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if len(columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(columns), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(dataSheet, "A1", last, bold); err != nil {
			return fmt.Errorf("style xlsx header: %w", err)
		}
	}

	for i, r := range records {
		row := make([]any, len(columns))
		for j, c := range columns {
			text, num, isNum := r.Field(c)
			if isNum {
				row[j] = num
			} else {
				row[j] = text
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(dataSheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}

	if err := writeSummarySheet(f, analytics.Summarize(records)); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, s domain.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	rows := [][]any{
		{"指标", "数值"},
		{"本月总滞销数量", s.TotalCurrent},
		{"上月总滞销数量", s.TotalPrevious},
		{"滞销变化", s.TotalChange},
		{"变化百分比", s.ChangePercent},
		{"平均日均销量", s.AvgDaily},
		{"产品数量", s.Products},
		{"店铺数量", s.Stores},
		{"产品类别", s.Categories},
		{"数据行数", s.Rows},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	return nil
}
