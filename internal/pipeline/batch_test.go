package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/stalestock/internal/domain"
	"github.com/andresuchdata/stalestock/internal/ingest"
)

const goodCSV = "店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销\n" +
	"A店,毛巾,家居,M1,2,100,80\n" +
	"B店,水杯,厨具,M2,1,50,70\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBatchRun(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")

	good := writeFile(t, in, "jan.csv", goodCSV)
	missing := writeFile(t, in, "feb.csv", "店铺,品名\nA店,毛巾\n")
	empty := writeFile(t, in, "mar.csv", "")

	batch := NewBatch(ingest.NewLoader(nil, nil), BatchConfig{WorkerCount: 2, OutputDir: out})
	result, err := batch.Run(context.Background(), []string{good, missing, empty})
	require.NoError(t, err)
	require.Len(t, result.Jobs, 3)

	assert.Equal(t, 1, result.Succeeded())
	assert.Equal(t, 2, result.Failed())

	ok := result.Jobs[0]
	assert.Equal(t, FileStatusCompleted, ok.Status)
	assert.Equal(t, 2, ok.Rows)
	assert.Equal(t, filepath.Join(out, "jan_export.csv"), ok.ExportPath)
	assert.Equal(t, filepath.Join(out, "jan_report.txt"), ok.ReportPath)

	exported, err := os.ReadFile(ok.ExportPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(exported), "店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销,滞销数量变化,变化百分比\n"))
	assert.Contains(t, string(exported), "A店,毛巾,家居,M1,2,100,80,-20,-20\n")

	report, err := os.ReadFile(ok.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "滞销最严重的产品")

	var missingErr *ingest.MissingColumnsError
	assert.ErrorAs(t, result.Jobs[1].Err, &missingErr)
	assert.Contains(t, result.Jobs[1].ErrorMessage, "缺少必要列")
	assert.ErrorIs(t, result.Jobs[2].Err, ingest.ErrEmptyFile)

	_, err = os.Stat(filepath.Join(out, "feb_export.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestBatchRunAppliesFilter(t *testing.T) {
	in := t.TempDir()
	good := writeFile(t, in, "jan.csv", goodCSV)

	batch := NewBatch(nil, BatchConfig{OutputDir: t.TempDir(), Filter: domain.Filter{Store: "B店"}})
	result, err := batch.Run(context.Background(), []string{good})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Jobs[0].Rows)
}

func TestBatchRunMissingFile(t *testing.T) {
	batch := NewBatch(nil, BatchConfig{OutputDir: t.TempDir()})
	result, err := batch.Run(context.Background(), []string{filepath.Join(t.TempDir(), "nope.csv")})
	require.NoError(t, err)
	assert.Equal(t, FileStatusFailed, result.Jobs[0].Status)
}

func TestBatchRunEmpty(t *testing.T) {
	result, err := NewBatch(nil, DefaultBatchConfig()).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Jobs)
}

func TestBatchRunCancelled(t *testing.T) {
	in := t.TempDir()
	good := writeFile(t, in, "jan.csv", goodCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewBatch(nil, BatchConfig{OutputDir: t.TempDir()}).Run(ctx, []string{good})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.NotEqual(t, FileStatusCompleted, result.Jobs[0].Status)
}

func TestBatchRunKeepsSameStemOutputsApart(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	writeFile(t, in, "stock.csv", "店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销\nCSVSTORE,毛巾,家居,M1,2,100,80\n")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"店铺", "品名", "产品类别", "Msku", "日均", "上月滞销", "本月滞销"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"XLSXSTORE", "水杯", "厨具", "M2", 1, 50, 70}))
	require.NoError(t, f.SaveAs(filepath.Join(in, "stock.xlsx")))
	require.NoError(t, f.Close())

	files, err := CollectFiles(in)
	require.NoError(t, err)

	result, err := NewBatch(nil, BatchConfig{WorkerCount: 2, OutputDir: out}).Run(context.Background(), files)
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded())

	csvJob, xlsxJob := result.Jobs[0], result.Jobs[1]
	assert.Equal(t, filepath.Join(out, "stock_export.csv"), csvJob.ExportPath)
	assert.Equal(t, filepath.Join(out, "stock_xlsx_export.csv"), xlsxJob.ExportPath)
	assert.Equal(t, filepath.Join(out, "stock_xlsx_report.txt"), xlsxJob.ReportPath)

	csvOut, err := os.ReadFile(csvJob.ExportPath)
	require.NoError(t, err)
	assert.Contains(t, string(csvOut), "CSVSTORE")
	assert.NotContains(t, string(csvOut), "XLSXSTORE")

	xlsxOut, err := os.ReadFile(xlsxJob.ExportPath)
	require.NoError(t, err)
	assert.Contains(t, string(xlsxOut), "XLSXSTORE")
}

func TestOutputBases(t *testing.T) {
	got := outputBases([]string{"a/stock.csv", "b/stock.csv", "stock.xlsx", "Stock.csv", "jan.csv"})
	assert.Equal(t, []string{"stock", "stock_csv", "stock_xlsx", "Stock_csv_2", "jan"}, got)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.csv", goodCSV)
	writeFile(t, dir, "a.XLSX", "")
	writeFile(t, dir, "notes.txt", "")
	writeFile(t, dir, "b_export.csv", goodCSV)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	files, err := CollectFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.XLSX"), filepath.Join(dir, "b.csv")}, files)

	_, err = CollectFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
