package export

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/andresuchdata/stalestock/internal/analytics"
	"github.com/andresuchdata/stalestock/internal/domain"
)

var printer = message.NewPrinter(language.English)

// BuildReport renders the plain-text analysis report for records.
func BuildReport(records []domain.Record, now time.Time, topN int) string {
	if topN <= 0 {
		topN = analytics.DefaultReportTopN
	}
	s := analytics.Summarize(records)

	var b strings.Builder
	b.WriteString("\n滞销库存分析报告\n")
	fmt.Fprintf(&b, "生成时间: %s\n\n", now.Format("2006-01-02 15:04:05"))

	b.WriteString("总体情况:\n")
	fmt.Fprintf(&b, "- 本月总滞销数量: %s\n", grouped(s.TotalCurrent))
	fmt.Fprintf(&b, "- 上月总滞销数量: %s\n", grouped(s.TotalPrevious))
	fmt.Fprintf(&b, "- 滞销变化: %s\n", signedGrouped(s.TotalChange))
	fmt.Fprintf(&b, "- 平均日均销量: %.1f\n\n", s.AvgDaily)

	b.WriteString("涉及范围:\n")
	fmt.Fprintf(&b, "- 产品数量: %s\n", printer.Sprintf("%d", s.Products))
	fmt.Fprintf(&b, "- 店铺数量: %s\n", printer.Sprintf("%d", s.Stores))
	fmt.Fprintf(&b, "- 产品类别: %s\n\n", printer.Sprintf("%d", s.Categories))

	b.WriteString("滞销最严重的产品:\n")
	top := analytics.TopProducts(records, topN)
	if len(top) == 0 {
		b.WriteString("无\n")
		return b.String()
	}

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", domain.ColProduct, domain.ColCurStale)
	for _, p := range top {
		fmt.Fprintf(tw, "%s\t%s\n", p.Product, domain.FormatNumber(p.Current))
	}
	tw.Flush()

	return b.String()
}

func grouped(v float64) string {
	return printer.Sprintf("%.0f", v)
}

// signedGrouped always prints the sign, including "+0".
func signedGrouped(v float64) string {
	sign := "+"
	if v < 0 {
		sign = "-"
	}
	return sign + grouped(math.Abs(v))
}
