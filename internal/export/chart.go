package export

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/andresuchdata/stalestock/internal/analytics"
	"github.com/andresuchdata/stalestock/internal/domain"
)

// Chart kinds served by RenderChart.
const (
	ChartTrend        = "trend"
	ChartTopProducts  = "top_products"
	ChartStoreRanking = "store_ranking"
	ChartDistribution = "change_distribution"
)

var (
	ErrNothingToChart = errors.New("no rows to chart")
	ErrUnknownChart   = errors.New("unknown chart kind")
)

var (
	previousColor = drawing.Color{R: 120, G: 144, B: 200, A: 255}
	currentColor  = drawing.Color{R: 220, G: 40, B: 40, A: 255}
)

const (
	chartWidth  = 960
	chartHeight = 480
	barWidth    = 40
	barSpacing  = 20
)

// ChartOptions carries the view settings a chart depends on.
type ChartOptions struct {
	GroupBy string
	HasDate bool
	TopN    int
	Bins    int
}

// ChartKinds lists the supported chart kinds.
func ChartKinds() []string {
	return []string{ChartTrend, ChartTopProducts, ChartStoreRanking, ChartDistribution}
}

// RenderChart draws a PNG chart of records to w.
func RenderChart(w io.Writer, kind string, records []domain.Record, opts ChartOptions) error {
	switch kind {
	case ChartTrend, ChartTopProducts, ChartStoreRanking, ChartDistribution:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, kind)
	}
	if len(records) == 0 {
		return ErrNothingToChart
	}

	switch kind {
	case ChartTrend:
		groups, err := analytics.Trend(records, opts.GroupBy, opts.HasDate)
		if err != nil {
			return err
		}
		return renderTrend(w, groups, opts.GroupBy)
	case ChartTopProducts:
		top := analytics.TopProducts(records, opts.TopN)
		bars := make([]chart.Value, 0, len(top))
		for _, p := range top {
			bars = append(bars, chart.Value{Label: p.Product, Value: p.Current})
		}
		return renderBars(w, fmt.Sprintf("滞销产品TOP%d", len(bars)), bars)
	case ChartStoreRanking:
		ranking := analytics.StoreRanking(records, opts.TopN)
		bars := make([]chart.Value, 0, len(ranking))
		for _, s := range ranking {
			bars = append(bars, chart.Value{Label: s.Store, Value: s.Current})
		}
		return renderBars(w, fmt.Sprintf("店铺滞销数量TOP%d", len(bars)), bars)
	default:
		bins := analytics.ChangeDistribution(records, opts.Bins)
		bars := make([]chart.Value, 0, len(bins))
		for _, b := range bins {
			bars = append(bars, chart.Value{
				Label: fmt.Sprintf("%s~%s", domain.FormatNumber(b.Lower), domain.FormatNumber(b.Upper)),
				Value: float64(b.Count),
			})
		}
		return renderBars(w, "滞销数量变化分布", bars)
	}
}

// renderTrend draws dates as lines and store or category groups as paired
// previous/current bars.
func renderTrend(w io.Writer, groups []domain.GroupTotal, groupBy string) error {
	if groupBy == "" {
		groupBy = domain.ColCategory
	}
	if groupBy != domain.ColDate {
		return renderBars(w, trendTitle(groupBy), trendBars(groups))
	}

	xs := make([]float64, len(groups))
	prev := make([]float64, len(groups))
	cur := make([]float64, len(groups))
	ticks := make([]chart.Tick, len(groups))
	for i, g := range groups {
		xs[i] = float64(i)
		prev[i] = g.Previous
		cur[i] = g.Current
		ticks[i] = chart.Tick{Value: float64(i), Label: g.Key}
	}

	// go-chart needs at least two x values per series
	if len(xs) == 1 {
		xs = append(xs, 1)
		prev = append(prev, prev[0])
		cur = append(cur, cur[0])
		ticks = append(ticks, chart.Tick{Value: 1})
	}

	lo, hi := valueBounds(append(append([]float64{}, prev...), cur...))
	ch := chart.Chart{
		Title:      trendTitle(groupBy),
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 48}},
		XAxis: chart.XAxis{
			Name:  groupBy,
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  "滞销数量",
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "上月滞销",
				XValues: xs,
				YValues: prev,
				Style:   chart.Style{StrokeWidth: 2, StrokeColor: previousColor, StrokeDashArray: []float64{5, 5}},
			},
			chart.ContinuousSeries{
				Name:    "本月滞销",
				XValues: xs,
				YValues: cur,
				Style:   chart.Style{StrokeWidth: 2, StrokeColor: currentColor},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render trend chart: %w", err)
	}
	return nil
}

func trendTitle(groupBy string) string {
	return fmt.Sprintf("按%s分组的滞销趋势对比", groupBy)
}

// trendBars lays out one previous and one current bar per group.
func trendBars(groups []domain.GroupTotal) []chart.Value {
	bars := make([]chart.Value, 0, 2*len(groups))
	for _, g := range groups {
		bars = append(bars,
			chart.Value{
				Label: g.Key + " 上月",
				Value: g.Previous,
				Style: chart.Style{FillColor: previousColor, StrokeColor: previousColor},
			},
			chart.Value{
				Label: g.Key + " 本月",
				Value: g.Current,
				Style: chart.Style{FillColor: currentColor, StrokeColor: currentColor},
			},
		)
	}
	return bars
}

func renderBars(w io.Writer, title string, bars []chart.Value) error {
	if len(bars) == 0 {
		return ErrNothingToChart
	}

	values := make([]float64, len(bars))
	for i, b := range bars {
		values[i] = b.Value
	}
	lo, hi := valueBounds(values)

	bc := chart.BarChart{
		Title:      title,
		Width:      max(chartWidth, len(bars)*(barWidth+barSpacing)+200),
		Height:     chartHeight,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
		},
		Bars: bars,
	}

	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render %s: %w", title, err)
	}
	return nil
}

// valueBounds returns an axis range that includes zero and is never empty.
func valueBounds(values []float64) (float64, float64) {
	lo, hi := 0.0, 0.0
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi * 1.1
}
