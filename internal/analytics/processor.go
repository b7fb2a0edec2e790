// internal/analytics/processor.go
package analytics

import (
	"errors"
	"sort"

	"github.com/andresuchdata/stalestock/internal/domain"
)

const (
	DefaultTopN       = 10
	DefaultReportTopN = 5
)

var (
	ErrUnknownColumn    = errors.New("unknown column")
	ErrUnknownDimension = errors.New("unknown group-by dimension")
	ErrNoDateColumn     = errors.New("dataset has no date column")
)

// IsAll reports whether a filter value selects everything.
func IsAll(value string) bool {
	return value == "" || value == domain.AllFilter
}

// ApplyFilter returns the records matching f. The input slice is never modified.
func ApplyFilter(records []domain.Record, f domain.Filter) []domain.Record {
	out := make([]domain.Record, 0, len(records))
	for _, r := range records {
		if !IsAll(f.Store) && r.Store != f.Store {
			continue
		}
		if !IsAll(f.Category) && r.Category != f.Category {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Summarize computes the headline metrics for records.
func Summarize(records []domain.Record) domain.Summary {
	s := domain.Summary{Rows: len(records)}

	products := make(map[string]struct{})
	stores := make(map[string]struct{})
	categories := make(map[string]struct{})
	var dailySum float64

	for _, r := range records {
		s.TotalCurrent += r.CurStale
		s.TotalPrevious += r.PrevStale
		dailySum += r.DailyAvg
		products[r.Product] = struct{}{}
		stores[r.Store] = struct{}{}
		categories[r.Category] = struct{}{}
	}

	s.TotalChange = s.TotalCurrent - s.TotalPrevious
	if s.TotalPrevious > 0 {
		s.ChangePercent = s.TotalChange / s.TotalPrevious * 100
	}
	if len(records) > 0 {
		s.AvgDaily = dailySum / float64(len(records))
	}
	s.Products = len(products)
	s.Stores = len(stores)
	s.Categories = len(categories)

	return s
}

// Options lists the filter choices, columns and group-by dimensions of ds.
func Options(ds *domain.Dataset) domain.DatasetOptions {
	stores := make(map[string]struct{})
	categories := make(map[string]struct{})
	for _, r := range ds.Records {
		stores[r.Store] = struct{}{}
		categories[r.Category] = struct{}{}
	}

	return domain.DatasetOptions{
		Stores:         withAll(stores),
		Categories:     withAll(categories),
		Columns:        ds.AllColumns(),
		DefaultColumns: defaultColumns(ds),
		GroupBy:        Dimensions(ds.HasDate),
	}
}

// Dimensions returns the trend group-by choices.
func Dimensions(hasDate bool) []string {
	dims := []string{domain.ColCategory, domain.ColStore}
	if hasDate {
		dims = append(dims, domain.ColDate)
	}
	return dims
}

func withAll(set map[string]struct{}) []string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return append([]string{domain.AllFilter}, values...)
}

func defaultColumns(ds *domain.Dataset) []string {
	out := make([]string, 0, len(domain.DefaultDisplayColumns))
	for _, c := range domain.DefaultDisplayColumns {
		if ds.HasColumn(c) {
			out = append(out, c)
		}
	}
	return out
}
