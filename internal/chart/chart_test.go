package chart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/llm"
	"github.com/golovatskygroup/data-lens/internal/sandbox"
)

const deliveries = `clima,tempo,distancia
Sol,30,5
Chuva,45,7
Sol,25,3
Neve,60,8
Chuva,50,6
`

func loadFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.LoadCSV(strings.NewReader(deliveries), "entregas.csv", dataset.Options{})
	require.NoError(t, err)
	return f
}

func newGenerator(code string, check bool) *Generator {
	cfg := sandbox.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, stop ...string) (string, error) {
		return code, nil
	})
	return NewGenerator(gen, sandbox.NewRunner(cfg, nil), Options{CheckColumns: check, SampleRows: 3}, nil)
}

const barCode = "```javascript\n" + `sns.set_theme();
plt.figure({figsize: [8, 4]});
sns.barplot({data: df, x: "clima", y: "tempo"});
plt.title("Tempo médio por clima", {loc: "left", pad: 20, fontsize: 14});
plt.xlabel("Clima");
plt.ylabel("Tempo");
plt.xticks({rotation: 0});
sns.despine();
plt.show();
` + "```"

func TestGenerateBarplot(t *testing.T) {
	res, err := newGenerator(barCode, true).Generate(context.Background(), "tempo médio por clima", loadFrame(t))
	require.NoError(t, err)

	fig := res.Figure
	assert.Equal(t, 8.0, fig.Width)
	assert.Equal(t, 4.0, fig.Height)
	assert.Equal(t, Title{Text: "Tempo médio por clima", Loc: "left", Pad: 20, FontSize: 14}, fig.Title)
	assert.True(t, fig.Theme)
	assert.True(t, fig.Despine)
	assert.True(t, fig.Shown)
	require.Len(t, fig.Series, 1)
	assert.Equal(t, []string{"Sol", "Chuva", "Neve"}, fig.Series[0].Labels)
	assert.Equal(t, []float64{27.5, 47.5, 60}, fig.Series[0].Y)
	assert.NotContains(t, res.Code, "```")

	var opt map[string]any
	require.NoError(t, json.Unmarshal(res.Option, &opt))
	assert.Equal(t, "category", opt["xAxis"].(map[string]any)["type"])
	assert.Contains(t, res.HTML, "echarts.init")
}

func TestMissingColumnIsEvaluationError(t *testing.T) {
	code := `sns.histplot({data: df, x: "temperatura"}); plt.show();`
	for _, check := range []bool{true, false} {
		_, err := newGenerator(code, check).Generate(context.Background(), "histograma", loadFrame(t))
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.Evaluation), "check=%v", check)
		assert.Contains(t, err.Error(), "temperatura")
	}
}

func TestEmptyFigureIsEvaluationError(t *testing.T) {
	_, err := newGenerator(`plt.title("nada"); plt.show();`, true).Generate(context.Background(), "nada", loadFrame(t))
	require.Error(t, err)
	assert.Equal(t, apperr.KindEvaluation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "empty figure")
}

func TestRuntimeErrorIsEvaluationError(t *testing.T) {
	_, err := newGenerator(`sns.scatterplot({data: df, x: "clima", y: "tempo"});`, true).Generate(context.Background(), "x", loadFrame(t))
	require.Error(t, err)
	assert.Equal(t, apperr.KindEvaluation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "numeric")
}

func TestOnlyThreeBindings(t *testing.T) {
	code := `if (typeof console !== "undefined" || typeof process !== "undefined" || typeof fetch !== "undefined") { throw new Error("leak"); }
sns.countplot({data: df, x: "clima"});`
	res, err := newGenerator(code, true).Generate(context.Background(), "contagem", loadFrame(t))
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 1}, res.Figure.Series[0].Y)
}

func TestPlotKinds(t *testing.T) {
	f := loadFrame(t)
	tests := []struct {
		code string
		kind SeriesKind
		n    int
	}{
		{`sns.histplot({data: df, x: "tempo", bins: 4})`, KindHist, 1},
		{`sns.histplot({data: df, x: "tempo", kde: true})`, KindHist, 2},
		{`sns.kdeplot({data: df, x: "tempo"})`, KindKDE, 1},
		{`sns.boxplot({data: df, x: "clima", y: "tempo"})`, KindBox, 1},
		{`sns.violinplot({data: df, y: "tempo"})`, KindViolin, 1},
		{`sns.scatterplot({data: df, x: "distancia", y: "tempo", hue: "clima"})`, KindScatter, 3},
		{`sns.lineplot({data: df, x: "distancia", y: "tempo"})`, KindLine, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			res, err := newGenerator(tt.code, true).Render(context.Background(), tt.code, f)
			require.NoError(t, err)
			require.Len(t, res.Figure.Series, tt.n)
			assert.Equal(t, tt.kind, res.Figure.Series[0].Kind)
			_, err = OptionJSON(res.Figure)
			assert.NoError(t, err)
		})
	}
}

func TestHistogramSturges(t *testing.T) {
	centers, counts, width := histogram([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 0)
	assert.Len(t, centers, 4)
	assert.Equal(t, []float64{2, 2, 2, 2}, counts)
	assert.InDelta(t, 1.75, width, 1e-9)
}

func TestBoxStatsOutliers(t *testing.T) {
	b := boxStats([]float64{1, 2, 3, 4, 100})
	assert.Equal(t, 2.0, b.Q1)
	assert.Equal(t, 3.0, b.Median)
	assert.Equal(t, 4.0, b.Q3)
	assert.Equal(t, 1.0, b.Low)
	assert.Equal(t, 4.0, b.High)
	assert.Equal(t, []float64{100}, b.Outliers)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "plt.show();", StripFences("```js\nplt.show();\n```"))
	assert.Equal(t, "plt.show();", StripFences("  plt.show();  "))
}

func TestReferencedColumns(t *testing.T) {
	code := `sns.barplot({data: df, x: "clima", y: 'tempo', hue: "clima"});
var m = df.mean("distancia"); df.corr("a", "b"); plt.title("x: \"no\"", {loc: "left"});`
	assert.Equal(t, []string{"clima", "tempo", "distancia", "a", "b"}, ReferencedColumns(code))
}

func TestCheckColumnsWithQuoteInName(t *testing.T) {
	f, err := dataset.LoadCSV(strings.NewReader("Driver's age,x\n30,1\n41,2\n"), "motoristas.csv", dataset.Options{})
	require.NoError(t, err)

	code := `sns.histplot({data: df, x: "Driver's age"}); var m = df.mean('x');`
	assert.Equal(t, []string{"Driver's age", "x"}, ReferencedColumns(code))
	assert.NoError(t, CheckColumns(code, f))

	err = CheckColumns(`sns.histplot({data: df, x: 'Rider"s age'});`, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `Rider\"s age`)
}

func TestBuildPrompt(t *testing.T) {
	p, err := BuildPrompt("gráfico de barras", loadFrame(t), 3)
	require.NoError(t, err)
	assert.Contains(t, p, "- clima (object)")
	assert.Contains(t, p, "- tempo (int64)")
	assert.Contains(t, p, `"gráfico de barras"`)
	assert.Contains(t, p, "plt.show()")
	assert.Contains(t, p, "figsize: [8, 4]")
}
