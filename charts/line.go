package charts

import (
	"bytes"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"salepage/cms/stats"
)

const (
	labelLayout = "2006-01-02"
	height      = "400px"
)

// RenderLine renders one reshaped series as an HTML line chart.
func RenderLine(title, seriesName string, series stats.Series) (string, error) {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: height}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0}),
	)

	labels := make([]string, len(series.Labels))
	for i, l := range series.Labels {
		labels[i] = l.Format(labelLayout)
	}
	data := make([]opts.LineData, len(series.Values))
	for i, v := range series.Values {
		data[i] = opts.LineData{Value: v}
	}

	line.SetXAxis(labels).AddSeries(seriesName, data)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
