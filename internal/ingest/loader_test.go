package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/andresuchdata/stalestock/internal/domain"
)

const sampleCSV = `店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销
A店,商品1,食品,SKU1,2.5,100,120
A店,商品2,日用,SKU2,1,0,10
B店,商品3,食品,SKU3,abc,50,
`

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	l := NewLoader(nil, nil)
	l.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return l
}

func TestLoadUTF8(t *testing.T) {
	res, err := newTestLoader(t).Load([]byte(sampleCSV), LoadOptions{FileName: "stock.csv"})
	require.NoError(t, err)

	ds := res.Dataset
	assert.Equal(t, "utf-8", res.Encoding)
	assert.Equal(t, SourceDetected, res.EncodingSource)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "stock.csv", ds.FileName)
	assert.Equal(t, int64(len(sampleCSV)), ds.SizeBytes)
	assert.Equal(t, domain.RequiredColumns, ds.Columns)
	assert.False(t, ds.HasDate)
	require.Len(t, ds.Records, 3)

	first := ds.Records[0]
	assert.Equal(t, "A店", first.Store)
	assert.Equal(t, "SKU1", first.SKU)
	assert.Equal(t, 2.5, first.DailyAvg)
	assert.Equal(t, 20.0, first.Change)
	assert.Equal(t, 20.0, first.ChangePct)

	assert.Equal(t, 10.0, ds.Records[1].Change)
	assert.Equal(t, 1000.0, ds.Records[1].ChangePct)

	// unparseable and empty cells become zero
	third := ds.Records[2]
	assert.Equal(t, 0.0, third.DailyAvg)
	assert.Equal(t, 0.0, third.CurStale)
	assert.Equal(t, -50.0, third.Change)
	assert.Equal(t, -100.0, third.ChangePct)
}

func TestLoadEnglishHeaders(t *testing.T) {
	csv := "store,product,category,SKU,daily,last_month,this_month,note\nS1,P1,C1,K1,1,2,3,hello\n"

	res, err := newTestLoader(t).Load([]byte(csv), LoadOptions{FileName: "en.csv"})
	require.NoError(t, err)
	assert.Equal(t, []string{"店铺", "品名", "产品类别", "Msku", "日均", "上月滞销", "本月滞销", "note"}, res.Dataset.Columns)
	assert.Equal(t, "K1", res.Dataset.Records[0].SKU)
	assert.Equal(t, "hello", res.Dataset.Records[0].Extra["note"])
}

func TestLoadDetectsGBK(t *testing.T) {
	res, err := newTestLoader(t).Load(mustGBK(t, sampleCSV), LoadOptions{FileName: "gbk.csv"})
	require.NoError(t, err)
	assert.Equal(t, "gbk", res.Encoding)
	assert.Equal(t, SourceDetected, res.EncodingSource)
	assert.Equal(t, "A店", res.Dataset.Records[0].Store)
}

func TestLoadManualEncoding(t *testing.T) {
	res, err := newTestLoader(t).Load(mustGBK(t, sampleCSV), LoadOptions{FileName: "gbk.csv", Encoding: "GBK"})
	require.NoError(t, err)
	assert.Equal(t, "gbk", res.Encoding)
	assert.Equal(t, SourceManual, res.EncodingSource)
	assert.Empty(t, res.Warnings)
}

func TestLoadWrongManualEncodingFallsBack(t *testing.T) {
	res, err := newTestLoader(t).Load(mustGBK(t, sampleCSV), LoadOptions{FileName: "gbk.csv", Encoding: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, "gbk", res.Encoding)
	assert.Equal(t, SourceFallback, res.EncodingSource)
	assert.Equal(t, []string{"utf-8编码失败，尝试其他编码...", "成功使用编码: gbk"}, res.Warnings)
	assert.Equal(t, "商品1", res.Dataset.Records[0].Product)
}

func TestLoadLossyLastResort(t *testing.T) {
	r, err := NewResolver([]string{"utf-8"}, "utf-8", 0)
	require.NoError(t, err)
	l := NewLoader(r, nil)

	data := []byte("店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销\nA\xff,P,C,K,1,2,3\n")
	res, err := l.Load(data, LoadOptions{FileName: "bad.csv"})
	require.NoError(t, err)
	assert.Equal(t, SourceLossy, res.EncodingSource)
	assert.Equal(t, []string{
		"无法自动检测编码，使用默认编码utf-8",
		"utf-8编码失败，尝试其他编码...",
		"使用错误处理模式，部分字符可能显示异常",
	}, res.Warnings)
	assert.Equal(t, "A�", res.Dataset.Records[0].Store)
}

func TestLoadUnknownManualEncoding(t *testing.T) {
	res, err := newTestLoader(t).Load([]byte(sampleCSV), LoadOptions{Encoding: "utf-16"})
	require.NoError(t, err)
	assert.Equal(t, "utf-8", res.Encoding)
	assert.Equal(t, SourceFallback, res.EncodingSource)
	assert.Equal(t, []string{"utf-16编码失败，尝试其他编码...", "成功使用编码: utf-8"}, res.Warnings)
	assert.Equal(t, "商品1", res.Dataset.Records[0].Product)
}

func TestLoadAutoKeywordDetects(t *testing.T) {
	res, err := newTestLoader(t).Load([]byte(sampleCSV), LoadOptions{Encoding: "自动检测"})
	require.NoError(t, err)
	assert.Equal(t, SourceDetected, res.EncodingSource)
}

func TestLoadMissingColumns(t *testing.T) {
	csv := "店铺,品名,产品类别,Msku,上月滞销,本月滞销\nA,B,C,D,1,2\n"

	res, err := newTestLoader(t).Load([]byte(csv), LoadOptions{})
	assert.Nil(t, res)

	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"日均"}, missing.Missing)
	assert.Equal(t, []string{"店铺", "品名", "产品类别", "Msku", "上月滞销", "本月滞销"}, missing.Headers)
}

func TestLoadMalformedRow(t *testing.T) {
	csv := "店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销\nA,B,C,D,1,2,3,extra\n"

	_, err := newTestLoader(t).Load([]byte(csv), LoadOptions{})
	assert.ErrorIs(t, err, ErrMalformedCSV)
}

func TestLoadShortRowIsPadded(t *testing.T) {
	csv := "店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销\nA,B,C,D,1\n"

	res, err := newTestLoader(t).Load([]byte(csv), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, res.Dataset.Records, 1)
	assert.Equal(t, 0.0, res.Dataset.Records[0].CurStale)
}

func TestLoadEmpty(t *testing.T) {
	_, err := newTestLoader(t).Load(nil, LoadOptions{})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = newTestLoader(t).Load([]byte("\n\n"), LoadOptions{})
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestLoadHeaderOnly(t *testing.T) {
	res, err := newTestLoader(t).Load([]byte("店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销\n"), LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Dataset.Records)
}

func TestLoadDateAndDerivedColumns(t *testing.T) {
	csv := "统计日期,店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销,滞销数量变化,变化百分比\n" +
		"2024-02,A,P,C,K,1,10,15,999,999\n"

	res, err := newTestLoader(t).Load([]byte(csv), LoadOptions{})
	require.NoError(t, err)

	ds := res.Dataset
	assert.True(t, ds.HasDate)
	assert.Equal(t, []string{"日期", "店铺", "品名", "产品类别", "Msku", "日均", "上月滞销", "本月滞销"}, ds.Columns)
	assert.Equal(t, "2024-02", ds.Records[0].Date)
	// stale derived values are recomputed
	assert.Equal(t, 5.0, ds.Records[0].Change)
	assert.Equal(t, 50.0, ds.Records[0].ChangePct)
}

func TestLoadPrefersExactDateHeader(t *testing.T) {
	csv := "店铺,品名,产品类别,Msku,日均,上月滞销,本月滞销,Date,日期\n" +
		"A,P,C,K,1,10,15,2024-01,2024-02\n"

	res, err := newTestLoader(t).Load([]byte(csv), LoadOptions{})
	require.NoError(t, err)

	ds := res.Dataset
	assert.True(t, ds.HasDate)
	assert.Equal(t, []string{"店铺", "品名", "产品类别", "Msku", "日均", "上月滞销", "本月滞销", "Date", "日期"}, ds.Columns)
	assert.Equal(t, "2024-02", ds.Records[0].Date)
	assert.Equal(t, "2024-01", ds.Records[0].Extra["Date"])
}

func TestLoadMissingColumnsReportsAllHeaders(t *testing.T) {
	csv := "店铺,品名,产品类别,Msku,上月滞销,本月滞销,滞销数量变化\nA,B,C,D,1,2,1\n"

	_, err := newTestLoader(t).Load([]byte(csv), LoadOptions{})
	var missing *MissingColumnsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"日均"}, missing.Missing)
	assert.Equal(t, []string{"店铺", "品名", "产品类别", "Msku", "上月滞销", "本月滞销", "滞销数量变化"}, missing.Headers)
}

func TestLoadXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"店铺", "品名", "产品类别", "Msku", "日均", "上月滞销", "本月滞销"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"A店", "商品1", "食品", "SKU1", 2, 100, 120}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := newTestLoader(t).Load(buf.Bytes(), LoadOptions{FileName: "stock.XLSX"})
	require.NoError(t, err)
	assert.Equal(t, SourceXLSX, res.EncodingSource)
	require.Len(t, res.Dataset.Records, 1)
	assert.Equal(t, 20.0, res.Dataset.Records[0].Change)
	assert.Equal(t, "A店", res.Dataset.Records[0].Store)
}
