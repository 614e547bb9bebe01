package chart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
)

// dpi converts figure inches to pixels for the rendered page.
const dpi = 100

var palette = []string{"#4c72b0", "#dd8452", "#55a868", "#c44e52", "#8172b3", "#937860", "#da8bc3", "#8c8c8c"}

// Option builds an ECharts option object for fig.
func Option(fig *Figure) map[string]any {
	categorical := fig.Categorical()
	labels := fig.Labels()

	xAxis := map[string]any{
		"name":         fig.XLabel,
		"nameLocation": "middle",
		"nameGap":      30,
		"axisLabel":    map[string]any{"rotate": fig.XTickRotation},
		"splitLine":    map[string]any{"show": fig.Theme},
	}
	if categorical {
		xAxis["type"] = "category"
		xAxis["data"] = labels
	} else {
		xAxis["type"] = "value"
		xAxis["scale"] = true
	}
	yAxis := map[string]any{
		"type":         "value",
		"name":         fig.YLabel,
		"nameLocation": "middle",
		"nameGap":      45,
		"splitLine":    map[string]any{"show": fig.Theme},
		"axisLine":     map[string]any{"show": true},
	}

	series := make([]any, 0, len(fig.Series))
	names := make([]string, 0, len(fig.Series))
	for i, s := range fig.Series {
		color := palette[i%len(palette)]
		series = append(series, seriesOption(s, labels, color))
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}

	opt := map[string]any{
		"animation": false,
		"color":     palette,
		"title": map[string]any{
			"text":      fig.Title.Text,
			"left":      fig.Title.Loc,
			"top":       fig.Title.Pad / 2,
			"textStyle": map[string]any{"fontSize": fig.Title.FontSize},
		},
		"tooltip": map[string]any{"trigger": "item"},
		"grid": map[string]any{
			"left":         60,
			"right":        30,
			"top":          fig.Title.Pad + fig.Title.FontSize + 30,
			"bottom":       60,
			"containLabel": true,
		},
		"xAxis":  xAxis,
		"yAxis":  yAxis,
		"series": series,
	}
	if len(names) > 1 {
		opt["legend"] = map[string]any{"data": names, "right": 10}
	}
	if fig.Theme {
		opt["backgroundColor"] = "#eaeaf2"
	}
	return opt
}

func seriesOption(s Series, labels []string, color string) map[string]any {
	out := map[string]any{"name": s.Name, "itemStyle": map[string]any{"color": color}}
	switch s.Kind {
	case KindHist:
		out["type"] = "bar"
		out["barWidth"] = "99%"
		out["barGap"] = "-100%"
		out["data"] = pairs(s.X, s.Y)
	case KindKDE:
		out["type"] = "line"
		out["smooth"] = true
		out["showSymbol"] = false
		out["data"] = pairs(s.X, s.Y)
	case KindScatter:
		out["type"] = "scatter"
		out["data"] = pairs(s.X, s.Y)
	case KindLine:
		out["type"] = "line"
		if len(s.Labels) > 0 {
			out["data"] = aligned(s.Labels, s.Y, labels)
		} else {
			out["data"] = pairs(s.X, s.Y)
		}
	case KindCount, KindBar:
		out["type"] = "bar"
		out["data"] = aligned(s.Labels, s.Y, labels)
	case KindBox, KindViolin:
		out["type"] = "boxplot"
		data := make([]any, len(labels))
		for i := range data {
			data[i] = "-"
		}
		pos := index(labels)
		for i, b := range s.Box {
			data[pos[s.Labels[i]]] = []any{num(b.Low), num(b.Q1), num(b.Median), num(b.Q3), num(b.High)}
		}
		out["data"] = data
	}
	return out
}

// pairs zips x and y into [x, y] points.
func pairs(xs, ys []float64) []any {
	out := make([]any, len(xs))
	for i := range xs {
		out[i] = []any{num(xs[i]), num(ys[i])}
	}
	return out
}

// aligned places values on the figure-wide label axis; missing labels become
// gaps.
func aligned(own []string, ys []float64, all []string) []any {
	vals := make(map[string]float64, len(own))
	for i, l := range own {
		vals[l] = ys[i]
	}
	out := make([]any, len(all))
	for i, l := range all {
		v, ok := vals[l]
		if !ok {
			out[i] = "-"
			continue
		}
		out[i] = num(v)
	}
	return out
}

func index(labels []string) map[string]int {
	out := make(map[string]int, len(labels))
	for i, l := range labels {
		out[l] = i
	}
	return out
}

// num maps values JSON cannot carry to the ECharts missing-value marker.
func num(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return v
}

// OptionJSON marshals Option(fig).
func OptionJSON(fig *Figure) ([]byte, error) {
	b, err := json.Marshal(Option(fig))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ECharts option: %w", err)
	}
	return b, nil
}

var pageTemplate = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <script src="https://cdn.jsdelivr.net/npm/echarts@5/dist/echarts.min.js"></script>
    <style>
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 24px; }
        #chart { width: {{.Width}}px; height: {{.Height}}px; }
    </style>
</head>
<body>
    <div id="chart" data-series="{{.Series}}"></div>
    <script id="chart-option" type="application/json">{{.Option}}</script>
    <script>
        var option = JSON.parse(document.getElementById("chart-option").textContent);
        echarts.init(document.getElementById("chart")).setOption(option);
    </script>
</body>
</html>
`))

// HTML renders fig as a standalone page that draws it with ECharts.
func HTML(fig *Figure) (string, error) {
	opt, err := OptionJSON(fig)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = pageTemplate.Execute(&buf, map[string]any{
		"Title":  firstNonEmpty(fig.Title.Text, "Gráfico"),
		"Width":  int(fig.Width * dpi),
		"Height": int(fig.Height * dpi),
		"Series": len(fig.Series),
		"Option": template.JS(opt),
	})
	if err != nil {
		return "", fmt.Errorf("render chart page: %w", err)
	}
	return buf.String(), nil
}
