package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/andresuchdata/stalestock/internal/domain"
)

// CoerceNumber parses a numeric cell. Empty, unparseable and non-finite
// values become 0.
func CoerceNumber(text string) float64 {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// Change is the month-over-month difference in stale quantity.
func Change(previous, current float64) float64 {
	return current - previous
}

// ChangePercent divides by previous, or by 1 when previous is 0. For a product
// with no stale stock last month the result is change*100, not a percentage.
func ChangePercent(previous, current float64) float64 {
	divisor := previous
	if divisor == 0 {
		divisor = 1
	}
	return Change(previous, current) / divisor * 100
}

// Derive fills the derived fields of r from its numeric fields.
func Derive(r *domain.Record) {
	r.Change = Change(r.PrevStale, r.CurStale)
	r.ChangePct = ChangePercent(r.PrevStale, r.CurStale)
}
