// Package report 把验证报告渲染成静态 HTML（go-echarts），供人工审阅。
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"edgeproof/internal/walkforward"
)

const (
	colorBackground  = "#060c1b"
	colorTextPrimary = "#eceff4"
	colorEquity      = "#3b82f6"
	colorPositive    = "#34d399"
	colorNegative    = "#f87171"

	chartWidthPx  = 1280
	chartHeightPx = 420
)

// WriteHTML 把报告渲染成单页 HTML 写到 path：
// 拼接各 fold 的 OOS 权益曲线 + 每个 fold 的 OOS 收益柱状图。
func WriteHTML(rep *walkforward.ValidationReport, path string) error {
	if rep == nil {
		return fmt.Errorf("report 不能为空")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildEquityLine(rep), buildFoldBars(rep))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func buildEquityLine(rep *walkforward.ValidationReport) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      fmt.Sprintf("OOS Equity — run %s", rep.RunID),
			Subtitle:   verdictSubtitle(rep),
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
	)

	// 按 fold 顺序拼接各段 OOS 权益，段与段之间累计衔接。
	var xAxis []string
	var data []opts.LineData
	base := 0.0
	for _, r := range rep.FoldResults {
		if !r.Informative() || len(r.OOSEquity) == 0 {
			continue
		}
		for i, v := range r.OOSEquity {
			xAxis = append(xAxis, fmt.Sprintf("f%d/%d", r.FoldID, i))
			data = append(data, opts.LineData{Value: base + v})
		}
		base += r.OOSEquity[len(r.OOSEquity)-1]
	}
	line.SetXAxis(xAxis)
	line.AddSeries("equity", data)
	return line
}

func buildFoldBars(rep *walkforward.ValidationReport) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      "Per-fold OOS return",
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTextPrimary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)

	var xAxis []string
	var data []opts.BarData
	for _, r := range rep.FoldResults {
		label := fmt.Sprintf("fold %d", r.FoldID)
		if r.ScenarioID != "" {
			label = fmt.Sprintf("f%d %s", r.FoldID, r.ScenarioID)
		}
		xAxis = append(xAxis, label)
		if !r.Informative() {
			// 非 informative 的单元留空，不画成 0 收益误导读者。
			data = append(data, opts.BarData{Value: nil, Name: r.Status})
			continue
		}
		color := colorPositive
		if r.OOSReturn < 0 {
			color = colorNegative
		}
		data = append(data, opts.BarData{
			Value:     r.OOSReturn,
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.8)},
		})
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("oos_return", data)
	return bar
}

func verdictSubtitle(rep *walkforward.ValidationReport) string {
	s := rep.Statistics
	parts := []string{
		fmt.Sprintf("verdict=%s", rep.Verdict),
		fmt.Sprintf("consistency=%.2f", s.ConsistencyRatio),
		fmt.Sprintf("p=%.4f", s.PValue),
		fmt.Sprintf("efficiency=%.2f", s.Efficiency),
		fmt.Sprintf("dsr=%.3f", s.DeflatedSharpe),
	}
	return strings.Join(parts, "  ")
}
