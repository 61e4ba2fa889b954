// Package analytics summarizes stored triage records for the dashboard.
package analytics

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/samber/lo"

	"github.com/TobiSchelling/nexuscds/internal/database"
	"github.com/TobiSchelling/nexuscds/internal/triage"
)

// EmptyMessage is shown instead of charts before any record exists.
const EmptyMessage = "Analytics will appear after the first patient record is processed."

var levelColors = map[triage.Level]string{
	triage.Red:    "#d9534f",
	triage.Yellow: "#f0ad4e",
	triage.Green:  "#5cb85c",
}

// LevelCount is the number of records at one level.
type LevelCount struct {
	Level   triage.Level
	Count   int
	Percent float64
}

// Point is one record on the confidence trend.
type Point struct {
	Timestamp  string
	Confidence int
}

// View is the analytics summary.
type View struct {
	Empty         bool
	Total         int
	Distribution  []LevelCount // always Red, Yellow, Green
	Trend         []Point      // insertion order
	AvgConfidence float64
}

// Build summarizes rows, which must be in insertion order.
func Build(rows []database.TrendRow) *View {
	v := &View{
		Empty: len(rows) == 0,
		Total: len(rows),
	}

	v.Distribution = lo.Map(triage.Levels, func(l triage.Level, _ int) LevelCount {
		n := lo.CountBy(rows, func(r database.TrendRow) bool { return r.TriageLevel == l })
		lc := LevelCount{Level: l, Count: n}
		if v.Total > 0 {
			lc.Percent = float64(n) * 100 / float64(v.Total)
		}
		return lc
	})

	v.Trend = lo.Map(rows, func(r database.TrendRow, _ int) Point {
		return Point{Timestamp: r.Timestamp, Confidence: r.Confidence}
	})

	if v.Total > 0 {
		sum := lo.SumBy(rows, func(r database.TrendRow) int { return r.Confidence })
		v.AvgConfidence = float64(sum) / float64(v.Total)
	}

	return v
}

// TrendChart writes a standalone HTML page with the confidence line chart.
func TrendChart(v *View, w io.Writer) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Confidence Trend", Width: "100%", Height: "340px"}),
		charts.WithTitleOpts(opts.Title{Title: "AI Analysis Confidence", Subtitle: "per record, oldest first"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "%", Min: 0, Max: 100}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)

	x := make([]string, len(v.Trend))
	data := make([]opts.LineData, len(v.Trend))
	for i, p := range v.Trend {
		x[i] = p.Timestamp
		data[i] = opts.LineData{Value: p.Confidence}
	}
	line.SetXAxis(x).AddSeries("Confidence", data)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("rendering trend chart: %w", err)
	}
	return nil
}

// DistributionChart writes a standalone HTML page with the per-level bar chart.
func DistributionChart(v *View, w io.Writer) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Triage Distribution", Width: "100%", Height: "340px"}),
		charts.WithTitleOpts(opts.Title{Title: "Triage Distribution"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "item"}),
	)

	x := lo.Map(v.Distribution, func(lc LevelCount, _ int) string { return string(lc.Level) })
	data := lo.Map(v.Distribution, func(lc LevelCount, _ int) opts.BarData {
		return opts.BarData{
			Name:      string(lc.Level),
			Value:     lc.Count,
			ItemStyle: &opts.ItemStyle{Color: levelColors[lc.Level]},
		}
	})
	bar.SetXAxis(x).AddSeries("Records", data)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("rendering distribution chart: %w", err)
	}
	return nil
}
