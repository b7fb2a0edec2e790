package export

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/stalestock/internal/domain"
	"github.com/andresuchdata/stalestock/internal/ingest"
)

const exportSource = `店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销,备注
A店,商品1,食品,SKU1,2.5,100,120,x
A店,商品2,日用,SKU2,1,0,10,
B店,商品3,食品,SKU3,3,1500,1200,"含,逗号"
`

func loadDataset(t *testing.T, data []byte, name string) *domain.Dataset {
	t.Helper()
	res, err := ingest.NewLoader(nil, nil).Load(data, ingest.LoadOptions{FileName: name})
	require.NoError(t, err)
	return res.Dataset
}

func TestFileName(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	assert.Equal(t, "滞销分析数据_20240305_140709.csv", FileName(now, "csv"))
}

func TestWriteCSVRoundTrip(t *testing.T) {
	ds := loadDataset(t, []byte(exportSource), "src.csv")

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds.AllColumns(), ds.Records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销,备注,滞销数量变化,变化百分比", lines[0])
	assert.Equal(t, "A店,商品1,食品,SKU1,2.5,100,120,x,20,20", lines[1])
	assert.Equal(t, "A店,商品2,日用,SKU2,1,0,10,,10,1000", lines[2])

	again := loadDataset(t, buf.Bytes(), "export.csv")
	require.Len(t, again.Records, len(ds.Records))
	assert.Equal(t, ds.Columns, again.Columns)
	for i := range ds.Records {
		assert.Equal(t, ds.Records[i].Change, again.Records[i].Change)
		assert.Equal(t, ds.Records[i].ChangePct, again.Records[i].ChangePct)
		assert.Equal(t, ds.Records[i].Extra, again.Records[i].Extra)
	}
}

func TestBuildReport(t *testing.T) {
	ds := loadDataset(t, []byte(exportSource), "src.csv")
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	report := BuildReport(ds.Records, now, 2)

	assert.Contains(t, report, "滞销库存分析报告")
	assert.Contains(t, report, "生成时间: 2024-03-05 14:07:09")
	assert.Contains(t, report, "- 本月总滞销数量: 1,330")
	assert.Contains(t, report, "- 上月总滞销数量: 1,600")
	assert.Contains(t, report, "- 滞销变化: -270")
	assert.Contains(t, report, "- 平均日均销量: 2.2")
	assert.Contains(t, report, "- 产品数量: 3")
	assert.Contains(t, report, "- 店铺数量: 2")
	assert.Contains(t, report, "- 产品类别: 2")

	tail := report[strings.Index(report, "滞销最严重的产品:"):]
	assert.Contains(t, tail, "商品3")
	assert.Contains(t, tail, "商品1")
	assert.NotContains(t, tail, "商品2")
	assert.Less(t, strings.Index(tail, "商品3"), strings.Index(tail, "商品1"))
}

func TestBuildReportSignAndEmpty(t *testing.T) {
	assert.Equal(t, "+0", signedGrouped(0))
	assert.Equal(t, "+12,345", signedGrouped(12345))
	assert.Equal(t, "-1,000", signedGrouped(-1000))

	report := BuildReport(nil, time.Now(), 0)
	assert.Contains(t, report, "- 滞销变化: +0")
	assert.True(t, strings.HasSuffix(report, "滞销最严重的产品:\n无\n"))
}

func TestWriteXLSX(t *testing.T) {
	ds := loadDataset(t, []byte(exportSource), "src.csv")

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, ds.AllColumns(), ds.Records))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{dataSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(dataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, ds.AllColumns(), rows[0])
	assert.Equal(t, "商品1", rows[1][1])

	total, err := f.GetCellValue(summarySheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "1330", total)
}

func TestXLSXExportReimports(t *testing.T) {
	ds := loadDataset(t, []byte(exportSource), "src.csv")

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, ds.AllColumns(), ds.Records))

	again := loadDataset(t, buf.Bytes(), "export.xlsx")
	require.Len(t, again.Records, 3)
	assert.Equal(t, 1000.0, again.Records[1].ChangePct)
}

func TestRenderChart(t *testing.T) {
	ds := loadDataset(t, []byte(exportSource), "src.csv")

	for _, kind := range ChartKinds() {
		t.Run(kind, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, RenderChart(&buf, kind, ds.Records, ChartOptions{}))
			_, err := png.Decode(&buf)
			require.NoError(t, err)
		})
	}
}

func TestRenderChartSingleGroup(t *testing.T) {
	ds := loadDataset(t, []byte(exportSource), "src.csv")
	records := ds.Records[:1]

	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, ChartTrend, records, ChartOptions{GroupBy: domain.ColStore}))
	assert.NotZero(t, buf.Len())
}

func TestTrendBars(t *testing.T) {
	bars := trendBars([]domain.GroupTotal{
		{Key: "食品", Previous: 1600, Current: 1320},
		{Key: "日用", Previous: 0, Current: 10},
	})
	require.Len(t, bars, 4)
	assert.Equal(t, "食品 上月", bars[0].Label)
	assert.Equal(t, 1600.0, bars[0].Value)
	assert.Equal(t, "食品 本月", bars[1].Label)
	assert.Equal(t, 1320.0, bars[1].Value)
	assert.Equal(t, previousColor, bars[2].Style.FillColor)
	assert.Equal(t, currentColor, bars[3].Style.FillColor)
}

func TestRenderTrendByDate(t *testing.T) {
	src := "日期,店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销\n" +
		"2024-01,A店,商品1,食品,SKU1,1,10,12\n" +
		"2024-02,A店,商品1,食品,SKU1,1,12,9\n"
	ds := loadDataset(t, []byte(src), "dated.csv")

	var buf bytes.Buffer
	require.NoError(t, RenderChart(&buf, ChartTrend, ds.Records, ChartOptions{GroupBy: domain.ColDate, HasDate: ds.HasDate}))
	_, err := png.Decode(&buf)
	require.NoError(t, err)
}

func TestRenderChartErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderChart(&buf, ChartTrend, nil, ChartOptions{}), ErrNothingToChart)
	assert.ErrorIs(t, RenderChart(&buf, "pie", nil, ChartOptions{}), ErrUnknownChart)
}

func TestInstructions(t *testing.T) {
	g := Instructions([]string{"utf-8", "gbk"})
	assert.Equal(t, domain.RequiredColumns, g.RequiredColumns)
	assert.Equal(t, []string{"自动检测", "utf-8", "gbk"}, g.Encodings)
	require.Len(t, g.Examples, 2)
	assert.Len(t, g.Examples[1].Rows, 3)
}
