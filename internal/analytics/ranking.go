package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/stalestock/internal/domain"
)

// Trend sums previous and current stale quantities per group, sorted by key.
// An empty dim groups by category.
func Trend(records []domain.Record, dim string, hasDate bool) ([]domain.GroupTotal, error) {
	var key func(domain.Record) string
	switch dim {
	case "", domain.ColCategory:
		key = func(r domain.Record) string { return r.Category }
	case domain.ColStore:
		key = func(r domain.Record) string { return r.Store }
	case domain.ColDate:
		if !hasDate {
			return nil, ErrNoDateColumn
		}
		key = func(r domain.Record) string { return r.Date }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}

	index := make(map[string]int)
	groups := make([]domain.GroupTotal, 0)
	for _, r := range records {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, domain.GroupTotal{Key: k})
		}
		groups[i].Previous += r.PrevStale
		groups[i].Current += r.CurStale
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups, nil
}

// TopProducts returns the n rows with the most current stale stock. Ties keep
// their original order.
func TopProducts(records []domain.Record, n int) []domain.ProductRank {
	if n <= 0 {
		n = DefaultTopN
	}

	sorted := make([]domain.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CurStale > sorted[j].CurStale })

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]domain.ProductRank, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, domain.ProductRank{Product: r.Product, Current: r.CurStale, Change: r.Change})
	}
	return out
}

// StoreRanking sums current stock and change per store and returns the n
// stores with the most current stale stock.
func StoreRanking(records []domain.Record, n int) []domain.StoreRank {
	if n <= 0 {
		n = DefaultTopN
	}

	index := make(map[string]int)
	stores := make([]domain.StoreRank, 0)
	for _, r := range records {
		i, ok := index[r.Store]
		if !ok {
			i = len(stores)
			index[r.Store] = i
			stores = append(stores, domain.StoreRank{Store: r.Store})
		}
		stores[i].Current += r.CurStale
		stores[i].Change += r.Change
	}

	sort.Slice(stores, func(i, j int) bool { return stores[i].Store < stores[j].Store })
	sort.SliceStable(stores, func(i, j int) bool { return stores[i].Current > stores[j].Current })

	if len(stores) > n {
		stores = stores[:n]
	}
	return stores
}

// ChangeDistribution buckets the per-row change into bins of equal width.
// bins <= 0 uses Sturges' rule.
func ChangeDistribution(records []domain.Record, bins int) []domain.HistogramBin {
	if len(records) == 0 {
		return []domain.HistogramBin{}
	}

	lo, hi := records[0].Change, records[0].Change
	for _, r := range records[1:] {
		lo = math.Min(lo, r.Change)
		hi = math.Max(hi, r.Change)
	}

	if lo == hi {
		return []domain.HistogramBin{{Lower: lo, Upper: hi, Count: len(records)}}
	}

	if bins <= 0 {
		bins = int(math.Ceil(math.Log2(float64(len(records))))) + 1
	}

	width := (hi - lo) / float64(bins)
	out := make([]domain.HistogramBin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, r := range records {
		i := int((r.Change - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}
