// internal/domain/models.go
package domain

import (
	"strconv"
	"strings"
	"time"
)

// Canonical column names used after header reconciliation.
const (
	ColStore     = "店铺"
	ColProduct   = "品名"
	ColCategory  = "产品类别"
	ColSKU       = "Msku"
	ColDailyAvg  = "日均"
	ColPrevStale = "上月滞销"
	ColCurStale  = "本月滞销"
	ColDate      = "日期"

	// Derived columns, always appended after the source columns.
	ColChange    = "滞销数量变化"
	ColChangePct = "变化百分比"
)

// AllFilter is the "no narrowing" choice for store and category filters.
const AllFilter = "全部"

// RequiredColumns lists the canonical fields every upload must provide.
var RequiredColumns = []string{ColStore, ColProduct, ColCategory, ColSKU, ColDailyAvg, ColPrevStale, ColCurStale}

// NumericColumns are coerced from text before metrics are derived.
var NumericColumns = []string{ColDailyAvg, ColPrevStale, ColCurStale}

// DerivedColumns are computed on load and never read from the source file.
var DerivedColumns = []string{ColChange, ColChangePct}

// DefaultDisplayColumns is the initial column selection of the detail table.
var DefaultDisplayColumns = []string{ColStore, ColProduct, ColCategory, ColCurStale, ColChange, ColChangePct}

// Record is one (store, product) observation.
type Record struct {
	Store     string  `json:"store"`
	Product   string  `json:"product"`
	Category  string  `json:"category"`
	SKU       string  `json:"sku"`
	DailyAvg  float64 `json:"daily_avg"`
	PrevStale float64 `json:"prev_stale"`
	CurStale  float64 `json:"cur_stale"`
	Change    float64 `json:"change"`
	// ChangePct divides by 1 when PrevStale is 0, so rows for new products
	// carry change*100 here rather than a true percentage.
	ChangePct float64           `json:"change_pct"`
	Date      string            `json:"date,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Field returns the cell for a column. isNum reports whether num holds the
// value; text is always populated.
func (r Record) Field(column string) (text string, num float64, isNum bool) {
	switch column {
	case ColStore:
		return r.Store, 0, false
	case ColProduct:
		return r.Product, 0, false
	case ColCategory:
		return r.Category, 0, false
	case ColSKU:
		return r.SKU, 0, false
	case ColDate:
		return r.Date, 0, false
	case ColDailyAvg:
		return FormatNumber(r.DailyAvg), r.DailyAvg, true
	case ColPrevStale:
		return FormatNumber(r.PrevStale), r.PrevStale, true
	case ColCurStale:
		return FormatNumber(r.CurStale), r.CurStale, true
	case ColChange:
		return FormatNumber(r.Change), r.Change, true
	case ColChangePct:
		return FormatNumber(r.ChangePct), r.ChangePct, true
	}
	text = r.Extra[column]
	if f, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
		return text, f, true
	}
	return text, 0, false
}

// FormatNumber renders a float in its shortest round-trip form.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Dataset is an immutable, reconciled table built from one uploaded file.
type Dataset struct {
	ID             string    `json:"id"`
	FileName       string    `json:"file_name"`
	SizeBytes      int64     `json:"size_bytes"`
	Encoding       string    `json:"encoding"`
	EncodingSource string    `json:"encoding_source"`
	Columns        []string  `json:"columns"`
	HasDate        bool      `json:"has_date"`
	Records        []Record  `json:"records"`
	LoadedAt       time.Time `json:"loaded_at"`
}

// AllColumns returns the source columns followed by the derived columns.
func (d *Dataset) AllColumns() []string {
	cols := make([]string, 0, len(d.Columns)+len(DerivedColumns))
	cols = append(cols, d.Columns...)
	return append(cols, DerivedColumns...)
}

// HasColumn reports whether column is one of AllColumns.
func (d *Dataset) HasColumn(column string) bool {
	for _, c := range d.AllColumns() {
		if c == column {
			return true
		}
	}
	return false
}

// Meta summarizes the dataset without its records.
func (d *Dataset) Meta() DatasetMeta {
	return DatasetMeta{
		ID:             d.ID,
		FileName:       d.FileName,
		SizeKB:         float64(d.SizeBytes) / 1024,
		Encoding:       d.Encoding,
		EncodingSource: d.EncodingSource,
		Rows:           len(d.Records),
		Columns:        d.AllColumns(),
		HasDate:        d.HasDate,
		LoadedAt:       d.LoadedAt,
	}
}

// DatasetMeta is the file information shown after an upload.
type DatasetMeta struct {
	ID             string    `json:"id"`
	FileName       string    `json:"file_name"`
	SizeKB         float64   `json:"size_kb"`
	Encoding       string    `json:"encoding"`
	EncodingSource string    `json:"encoding_source"`
	Rows           int       `json:"rows"`
	Columns        []string  `json:"columns"`
	HasDate        bool      `json:"has_date"`
	LoadedAt       time.Time `json:"loaded_at"`
	Warnings       []string  `json:"warnings,omitempty"`
}

// Filter narrows records by store and category. Empty or AllFilter means no narrowing.
type Filter struct {
	Store    string `json:"store"`
	Category string `json:"category"`
}

// ViewConfig is the complete render configuration for one request.
type ViewConfig struct {
	Filter     Filter   `json:"filter"`
	GroupBy    string   `json:"group_by"`
	Columns    []string `json:"columns"`
	SortBy     string   `json:"sort_by"`
	Descending bool     `json:"descending"`
	TopN       int      `json:"top_n"`
	Bins       int      `json:"bins"`
}

// UploadedFile represents an uploaded file for processing
type UploadedFile struct {
	Filename string
	Data     []byte
	Encoding string
}
