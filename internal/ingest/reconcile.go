package ingest

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/stalestock/internal/domain"
)

// FieldAliases lists the header names accepted for one canonical field, in
// priority order.
type FieldAliases struct {
	Canonical string
	Aliases   []string
}

type AliasTable []FieldAliases

// DefaultAliasTable accepts the Chinese and English header variants seen in
// store exports.
var DefaultAliasTable = AliasTable{
	{Canonical: domain.ColStore, Aliases: []string{"店铺", "store", "Shop", "门店"}},
	{Canonical: domain.ColProduct, Aliases: []string{"品名", "产品名称", "product", "Product", "商品名称"}},
	{Canonical: domain.ColCategory, Aliases: []string{"产品类别", "category", "Category", "品类"}},
	{Canonical: domain.ColSKU, Aliases: []string{"Msku", "MSKU", "sku", "SKU"}},
	{Canonical: domain.ColDailyAvg, Aliases: []string{"日均", "日均销量", "daily", "Daily", "平均销量"}},
	{Canonical: domain.ColPrevStale, Aliases: []string{"上月滞销", "上月滞销数量", "last_month", "LastMonth", "上月库存"}},
	{Canonical: domain.ColCurStale, Aliases: []string{"本月滞销", "本月滞销数量", "this_month", "ThisMonth", "本月库存"}},
}

// Canonicals returns the canonical names in table order.
func (t AliasTable) Canonicals() []string {
	out := make([]string, 0, len(t))
	for _, f := range t {
		out = append(out, f.Canonical)
	}
	return out
}

// MissingColumnsError is returned when a file lacks required fields.
type MissingColumnsError struct {
	Missing []string
	Headers []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("缺少必要列: [%s]; 当前文件包含的列: [%s]",
		strings.Join(e.Missing, ", "), strings.Join(e.Headers, ", "))
}

// Reconcile maps each canonical field to the first of its aliases present in
// headers. Either every field is mapped or a *MissingColumnsError lists all
// the missing ones.
func Reconcile(headers []string, table AliasTable) (map[string]string, error) {
	present := make(map[string]string, len(headers))
	for _, h := range headers {
		key := strings.TrimSpace(h)
		if _, ok := present[key]; !ok {
			present[key] = h
		}
	}

	mapping := make(map[string]string, len(table))
	var missing []string
	for _, field := range table {
		found := false
		for _, alias := range field.Aliases {
			if actual, ok := present[alias]; ok {
				mapping[field.Canonical] = actual
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, field.Canonical)
		}
	}

	if len(missing) > 0 {
		return nil, &MissingColumnsError{
			Missing: missing,
			Headers: append([]string(nil), headers...),
		}
	}
	return mapping, nil
}

// findDateColumn returns the date column among the headers not already
// mapped: a header named exactly 日期 wins, otherwise the first one that
// looks like a date.
func findDateColumn(headers []string, mapped map[string]string) (string, bool) {
	used := make(map[string]bool, len(mapped))
	for _, actual := range mapped {
		used[actual] = true
	}

	var (
		first string
		found bool
	)
	for _, h := range headers {
		if used[h] {
			continue
		}
		name := strings.TrimSpace(h)
		if name == domain.ColDate {
			return h, true
		}
		if !found && (strings.Contains(name, domain.ColDate) || strings.Contains(strings.ToLower(name), "date")) {
			first, found = h, true
		}
	}
	return first, found
}

// normalizeHeaders trims names, labels blank headers and suffixes duplicates
// with .1, .2 and so on.
func normalizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			candidate := fmt.Sprintf("%s.%d", name, n)
			for seen[candidate] > 0 {
				n++
				candidate = fmt.Sprintf("%s.%d", name, n)
			}
			seen[name] = n + 1
			seen[candidate] = 1
			name = candidate
		} else {
			seen[name] = 1
		}
		out[i] = name
	}
	return out
}

func isDerivedColumn(name string) bool {
	for _, c := range domain.DerivedColumns {
		if name == c {
			return true
		}
	}
	return false
}
