package sandbox

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/dataset"
)

func testFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f, err := dataset.LoadCSV(strings.NewReader("city,temp,rain\nRecife,31,true\nCuritiba,18,false\nRecife,29,true\n"), "w.csv", dataset.Options{})
	require.NoError(t, err)
	return f
}

func testRunner() *Runner {
	cfg := DefaultConfig()
	cfg.Timeout = 2 * time.Second
	return NewRunner(cfg, nil)
}

func TestRunJSWithFrame(t *testing.T) {
	r := testRunner()
	f := testFrame(t)

	tests := []struct {
		name string
		code string
		want any
	}{
		{"mean", `df.mean("temp")`, 26},
		{"shape", `df.shape[0] * 10 + df.shape[1]`, 33},
		{"columns", `df.columns.join(",")`, "city,temp,rain"},
		{"groupby", `df.groupby("city", "temp", "max").map(g => g.key + "=" + g.value).join(";")`, "Curitiba=18;Recife=31"},
		{"valueCounts", `df.valueCounts("city")[0].value`, "Recife"},
		{"nullCounts", `df.nullCounts()["temp"]`, 0},
		{"head", `df.head(1)[0].city + df.head(1)[0].temp + df.head(1)[0].rain`, "Recife31true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.RunJS(context.Background(), tt.code, FrameBinding(f))
			require.NoError(t, err)
			assert.EqualValues(t, tt.want, got)
		})
	}
}

func TestRunJSUnknownColumnIsEvaluationError(t *testing.T) {
	r := testRunner()
	_, err := r.RunJS(context.Background(), `df.mean("pressure")`, FrameBinding(testFrame(t)))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Evaluation))
	assert.Contains(t, err.Error(), `unknown column: "pressure"`)
}

func TestRunJSTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	r := NewRunner(cfg, nil)

	_, err := r.RunJS(context.Background(), `while (true) {}`, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindEvaluation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "timeout")
}

func TestRunJSForbiddenConstructs(t *testing.T) {
	r := testRunner()
	for _, code := range []string{
		`eval("1")`,
		`new Function("return 1")()`,
		`require("fs")`,
		`({}).__proto__`,
		`globalThis.df`,
	} {
		_, err := r.RunJS(context.Background(), code, nil)
		assert.Error(t, err, code)
		assert.True(t, errors.Is(err, apperr.Evaluation), code)
	}
}

func TestRunJSOnlyBoundGlobals(t *testing.T) {
	r := testRunner()
	got, err := r.RunJS(context.Background(), `typeof console + "," + typeof fetch + "," + typeof df`, FrameBinding(testFrame(t)))
	require.NoError(t, err)
	assert.Equal(t, "undefined,undefined,object", got)
}

func TestRunGo(t *testing.T) {
	r := testRunner()
	f := testFrame(t)

	res, err := r.RunGo(context.Background(), `df.Mean("temp")`, f)
	require.NoError(t, err)
	assert.Equal(t, float64(26), res.Value)

	res, err = r.RunGo(context.Background(), "import \"math\"\nmath.Round(df.Max(\"temp\") - df.Min(\"temp\"))", f)
	require.NoError(t, err)
	assert.Equal(t, float64(13), res.Value)
}

func TestRunGoErrors(t *testing.T) {
	r := testRunner()
	f := testFrame(t)

	_, err := r.RunGo(context.Background(), `df.Mean("pressure")`, f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.Evaluation))
	assert.Contains(t, err.Error(), "unknown column")

	_, err = r.RunGo(context.Background(), "import \"os\"\nos.Getenv(\"HOME\")", f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "package not in allowed list: os")
}

func TestValidatorGo(t *testing.T) {
	v := NewValidator(DefaultConfig())
	assert.NoError(t, v.Validate(LanguageGo, `x := df.Mean("a")
x * 2`))
	assert.Error(t, v.Validate(LanguageGo, `go func() {}()`))
	assert.Error(t, v.Validate(LanguageGo, `df.Mean(`))
	assert.Error(t, v.Validate(LanguageGo, "   "))
}

func TestValidatorGoRejectsUnboundedLoops(t *testing.T) {
	v := NewValidator(DefaultConfig())
	assert.NoError(t, v.Validate(LanguageGo, `s := 0.0
for i := 0; i < 3; i++ {
	s += df.Mean("a")
}
for _, c := range df.Columns() {
	_ = c
}
s`))

	for _, code := range []string{
		"for {\n}",
		"for ;; {\n}",
		"x := 0\nloop:\nx++\ngoto loop",
		"c := make(chan int)\n<-c",
	} {
		assert.Error(t, v.Validate(LanguageGo, code), code)
	}

	_, err := testRunner().RunGo(context.Background(), "for {\n}", testFrame(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "for loop without condition")
}

func TestParseLanguage(t *testing.T) {
	l, err := ParseLanguage("")
	require.NoError(t, err)
	assert.Equal(t, LanguageJavaScript, l)
	_, err = ParseLanguage("python")
	assert.Error(t, err)
}
