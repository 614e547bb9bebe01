package chart

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/dop251/goja"

	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/sandbox"
)

// kdePoints is the grid resolution of density curves.
const kdePoints = 100

// env holds the state shared by the df, plt and sns globals of one run.
type env struct {
	vm    *goja.Runtime
	frame *dataset.Frame
	df    *goja.Object
	fig   *Figure
}

type plotArgs struct {
	x, y, hue string
	bins      int
	kde       bool
}

func newEnv(frame *dataset.Frame) *env {
	return &env{frame: frame, fig: NewFigure()}
}

// bind installs exactly df, plt and sns.
func (e *env) bind(vm *goja.Runtime) error {
	e.vm = vm
	df, err := sandbox.NewFrameObject(vm, e.frame)
	if err != nil {
		return err
	}
	e.df = df
	if err := vm.Set("df", df); err != nil {
		return err
	}
	if err := vm.Set("plt", e.pltObject()); err != nil {
		return err
	}
	return vm.Set("sns", e.snsObject())
}

func (e *env) pltObject() *goja.Object {
	o := e.vm.NewObject()
	e.setAll(o, map[string]func(goja.FunctionCall) goja.Value{
		"figure": func(call goja.FunctionCall) goja.Value {
			fig := NewFigure()
			if opts := e.optionsArg(call, 0); opts != nil {
				if v := opts.Get("figsize"); v != nil && !goja.IsUndefined(v) {
					var size []float64
					if err := e.vm.ExportTo(v, &size); err != nil || len(size) != 2 {
						sandbox.Throw(e.vm, fmt.Errorf("plt.figure: figsize must be [width, height]"))
					}
					fig.Width, fig.Height = size[0], size[1]
				}
			}
			e.fig = fig
			return goja.Undefined()
		},
		"title": func(call goja.FunctionCall) goja.Value {
			e.fig.Title.Text = call.Argument(0).String()
			if opts := e.optionsArg(call, 1); opts != nil {
				if s := optString(opts, "loc"); s != "" {
					e.fig.Title.Loc = s
				}
				if v, ok := optFloat(opts, "pad"); ok {
					e.fig.Title.Pad = v
				}
				if v, ok := optFloat(opts, "fontsize"); ok {
					e.fig.Title.FontSize = v
				}
			}
			return goja.Undefined()
		},
		"xlabel": func(call goja.FunctionCall) goja.Value {
			e.fig.XLabel = call.Argument(0).String()
			return goja.Undefined()
		},
		"ylabel": func(call goja.FunctionCall) goja.Value {
			e.fig.YLabel = call.Argument(0).String()
			return goja.Undefined()
		},
		"xticks": func(call goja.FunctionCall) goja.Value {
			arg := call.Argument(0)
			if opts := e.optionsArg(call, 0); opts != nil {
				if v, ok := optFloat(opts, "rotation"); ok {
					e.fig.XTickRotation = v
				}
			} else if !goja.IsUndefined(arg) {
				e.fig.XTickRotation = arg.ToFloat()
			}
			return goja.Undefined()
		},
		"tight_layout": func(goja.FunctionCall) goja.Value { return goja.Undefined() },
		"legend":       func(goja.FunctionCall) goja.Value { return goja.Undefined() },
		"gcf": func(goja.FunctionCall) goja.Value {
			return e.vm.ToValue(map[string]any{
				"series":  len(e.fig.Series),
				"figsize": []float64{e.fig.Width, e.fig.Height},
			})
		},
		"show": func(goja.FunctionCall) goja.Value {
			e.fig.Shown = true
			return goja.Undefined()
		},
	})
	return o
}

func (e *env) snsObject() *goja.Object {
	o := e.vm.NewObject()
	e.setAll(o, map[string]func(goja.FunctionCall) goja.Value{
		"set_theme": func(goja.FunctionCall) goja.Value {
			e.fig.Theme = true
			return goja.Undefined()
		},
		"despine": func(goja.FunctionCall) goja.Value {
			e.fig.Despine = true
			return goja.Undefined()
		},
		"histplot":    e.plot("histplot", e.histplot),
		"kdeplot":     e.plot("kdeplot", e.kdeplot),
		"boxplot":     e.plot("boxplot", func(a plotArgs) { e.boxplot(a, KindBox) }),
		"violinplot":  e.plot("violinplot", func(a plotArgs) { e.boxplot(a, KindViolin) }),
		"countplot":   e.plot("countplot", e.countplot),
		"barplot":     e.plot("barplot", e.barplot),
		"scatterplot": e.plot("scatterplot", e.scatterplot),
		"lineplot":    e.plot("lineplot", e.lineplot),
	})
	return o
}

func (e *env) setAll(o *goja.Object, fns map[string]func(goja.FunctionCall) goja.Value) {
	for name, fn := range fns {
		_ = o.Set(name, fn)
	}
}

// plot parses the options object of an sns call, checks every referenced
// column and runs draw.
func (e *env) plot(name string, draw func(plotArgs)) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		opts := e.optionsArg(call, 0)
		if opts == nil {
			sandbox.Throw(e.vm, fmt.Errorf("sns.%s: expected an options object like {data: df, x: \"col\"}", name))
		}
		if d := opts.Get("data"); d != nil && !goja.IsUndefined(d) {
			if obj, ok := d.(*goja.Object); !ok || obj != e.df {
				sandbox.Throw(e.vm, fmt.Errorf("sns.%s: data must be df", name))
			}
		}
		a := plotArgs{
			x:   optString(opts, "x"),
			y:   optString(opts, "y"),
			hue: optString(opts, "hue"),
		}
		if v, ok := optFloat(opts, "bins"); ok {
			a.bins = int(v)
		}
		if v := opts.Get("kde"); v != nil {
			a.kde = v.ToBoolean()
		}
		if a.x == "" && a.y == "" {
			sandbox.Throw(e.vm, fmt.Errorf("sns.%s: x or y is required", name))
		}
		for _, col := range []string{a.x, a.y, a.hue} {
			if col == "" {
				continue
			}
			if _, err := e.frame.DType(col); err != nil {
				sandbox.Throw(e.vm, fmt.Errorf("sns.%s: %w", name, err))
			}
		}
		draw(a)
		return goja.Undefined()
	}
}

// optionsArg returns argument i as an options object, skipping a leading df
// passed positionally.
func (e *env) optionsArg(call goja.FunctionCall, i int) *goja.Object {
	v := call.Argument(i)
	if obj, ok := v.(*goja.Object); ok && obj == e.df {
		v = call.Argument(i + 1)
	}
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() == "Array" {
		return nil
	}
	return obj
}

func (e *env) histplot(a plotArgs) {
	col := firstNonEmpty(a.x, a.y)
	vals := e.floats(col)
	for _, g := range e.groups(a.hue) {
		sub := pick(vals, g.rows)
		centers, counts, width := histogram(sub, a.bins)
		e.fig.Series = append(e.fig.Series, Series{Kind: KindHist, Name: g.name, X: centers, Y: counts, BinWidth: width})
		if a.kde {
			xs, ys := kde(sub, kdePoints)
			scale := float64(len(sub)) * width
			for i := range ys {
				ys[i] *= scale
			}
			if xs != nil {
				e.fig.Series = append(e.fig.Series, Series{Kind: KindKDE, Name: g.name, X: xs, Y: ys})
			}
		}
	}
}

func (e *env) kdeplot(a plotArgs) {
	col := firstNonEmpty(a.x, a.y)
	vals := e.floats(col)
	for _, g := range e.groups(a.hue) {
		xs, ys := kde(pick(vals, g.rows), kdePoints)
		if xs == nil {
			continue
		}
		e.fig.Series = append(e.fig.Series, Series{Kind: KindKDE, Name: g.name, X: xs, Y: ys})
	}
}

func (e *env) boxplot(a plotArgs, kind SeriesKind) {
	switch {
	case a.x != "" && a.y != "":
		cat, num := a.x, a.y
		if e.numeric(a.x) && !e.numeric(a.y) {
			cat, num = a.y, a.x
		}
		labels, order := e.categories(cat)
		vals := e.floats(num)
		boxes := make([]BoxStats, len(order))
		for i, rows := range order {
			boxes[i] = boxStats(pick(vals, rows))
		}
		e.fig.Series = append(e.fig.Series, Series{Kind: kind, Name: num, Labels: labels, Box: boxes})
	default:
		col := firstNonEmpty(a.x, a.y)
		vals := e.floats(col)
		e.fig.Series = append(e.fig.Series, Series{Kind: kind, Name: col, Labels: []string{col}, Box: []BoxStats{boxStats(pick(vals, nil))}})
	}
}

func (e *env) countplot(a plotArgs) {
	col := firstNonEmpty(a.x, a.y)
	labels, _ := e.categories(col)
	text := e.texts(col)
	for _, g := range e.groups(a.hue) {
		counts := make(map[string]float64, len(labels))
		for _, r := range g.rows {
			if text[r] != nil {
				counts[*text[r]]++
			}
		}
		ys := make([]float64, len(labels))
		for i, l := range labels {
			ys[i] = counts[l]
		}
		e.fig.Series = append(e.fig.Series, Series{Kind: KindCount, Name: g.name, Labels: labels, Y: ys})
	}
}

func (e *env) barplot(a plotArgs) {
	if a.x == "" || a.y == "" {
		sandbox.Throw(e.vm, fmt.Errorf("sns.barplot: x and y are required"))
	}
	labels, _ := e.categories(a.x)
	e.fig.Series = append(e.fig.Series, e.meanBy(KindBar, a, labels)...)
}

func (e *env) lineplot(a plotArgs) {
	if a.x == "" || a.y == "" {
		sandbox.Throw(e.vm, fmt.Errorf("sns.lineplot: x and y are required"))
	}
	if !e.numeric(a.x) {
		labels, _ := e.categories(a.x)
		sorted := append([]string(nil), labels...)
		sort.Strings(sorted)
		e.fig.Series = append(e.fig.Series, e.meanBy(KindLine, a, sorted)...)
		return
	}
	xs := e.floats(a.x)
	ys := e.floats(a.y)
	for _, g := range e.groups(a.hue) {
		sums := map[float64][2]float64{}
		for _, r := range g.rows {
			if math.IsNaN(xs[r]) || math.IsNaN(ys[r]) {
				continue
			}
			s := sums[xs[r]]
			sums[xs[r]] = [2]float64{s[0] + ys[r], s[1] + 1}
		}
		keys := make([]float64, 0, len(sums))
		for k := range sums {
			keys = append(keys, k)
		}
		sort.Float64s(keys)
		out := Series{Kind: KindLine, Name: g.name, X: keys, Y: make([]float64, len(keys))}
		for i, k := range keys {
			out.Y[i] = sums[k][0] / sums[k][1]
		}
		e.fig.Series = append(e.fig.Series, out)
	}
}

func (e *env) scatterplot(a plotArgs) {
	if a.x == "" || a.y == "" {
		sandbox.Throw(e.vm, fmt.Errorf("sns.scatterplot: x and y are required"))
	}
	xs := e.floats(a.x)
	ys := e.floats(a.y)
	for _, g := range e.groups(a.hue) {
		s := Series{Kind: KindScatter, Name: g.name}
		for _, r := range g.rows {
			if math.IsNaN(xs[r]) || math.IsNaN(ys[r]) {
				continue
			}
			s.X = append(s.X, xs[r])
			s.Y = append(s.Y, ys[r])
		}
		e.fig.Series = append(e.fig.Series, s)
	}
}

// meanBy averages y within each x label, one series per hue group.
// Labels without values get NaN.
func (e *env) meanBy(kind SeriesKind, a plotArgs, labels []string) []Series {
	text := e.texts(a.x)
	ys := e.floats(a.y)
	var out []Series
	for _, g := range e.groups(a.hue) {
		sums := map[string][2]float64{}
		for _, r := range g.rows {
			if text[r] == nil || math.IsNaN(ys[r]) {
				continue
			}
			s := sums[*text[r]]
			sums[*text[r]] = [2]float64{s[0] + ys[r], s[1] + 1}
		}
		means := make([]float64, len(labels))
		for i, l := range labels {
			if s := sums[l]; s[1] > 0 {
				means[i] = s[0] / s[1]
			} else {
				means[i] = math.NaN()
			}
		}
		out = append(out, Series{Kind: kind, Name: g.name, Labels: labels, Y: means})
	}
	return out
}

type group struct {
	name string
	rows []int
}

// groups splits rows by the hue column. Without hue there is one unnamed
// group holding every row.
func (e *env) groups(hue string) []group {
	rows, _ := e.frame.Shape()
	if hue == "" {
		all := make([]int, rows)
		for i := range all {
			all[i] = i
		}
		return []group{{rows: all}}
	}
	labels, order := e.categories(hue)
	out := make([]group, len(labels))
	for i := range labels {
		out[i] = group{name: labels[i], rows: order[i]}
	}
	return out
}

// categories returns the distinct non-null labels of a column with the rows
// of each. Numeric columns are ordered numerically, others by first
// appearance.
func (e *env) categories(col string) ([]string, [][]int) {
	text := e.texts(col)
	idx := map[string]int{}
	var labels []string
	var rows [][]int
	for r, t := range text {
		if t == nil {
			continue
		}
		i, ok := idx[*t]
		if !ok {
			i = len(labels)
			idx[*t] = i
			labels = append(labels, *t)
			rows = append(rows, nil)
		}
		rows[i] = append(rows[i], r)
	}
	if e.numeric(col) {
		perm := make([]int, len(labels))
		for i := range perm {
			perm[i] = i
		}
		sort.SliceStable(perm, func(a, b int) bool {
			fa, _ := strconv.ParseFloat(labels[perm[a]], 64)
			fb, _ := strconv.ParseFloat(labels[perm[b]], 64)
			return fa < fb
		})
		sl := make([]string, len(perm))
		sr := make([][]int, len(perm))
		for i, p := range perm {
			sl[i], sr[i] = labels[p], rows[p]
		}
		labels, rows = sl, sr
	}
	return labels, rows
}

func (e *env) numeric(col string) bool {
	dt, err := e.frame.DType(col)
	return err == nil && dt.Numeric()
}

// floats returns a numeric column with NaN for nulls; other dtypes throw.
func (e *env) floats(col string) []float64 {
	dt, err := e.frame.DType(col)
	if err != nil {
		sandbox.Throw(e.vm, err)
	}
	if !dt.Numeric() {
		sandbox.Throw(e.vm, fmt.Errorf("column %q is %s, a numeric column is required", col, dt))
	}
	vals, _ := e.frame.Column(col)
	out := make([]float64, len(vals))
	for i, v := range vals {
		if f, ok := v.(float64); ok {
			out[i] = f
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// texts returns each cell's display text, nil for nulls.
func (e *env) texts(col string) []*string {
	vals, err := e.frame.Column(col)
	if err != nil {
		sandbox.Throw(e.vm, err)
	}
	out := make([]*string, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case float64:
			s = strconv.FormatFloat(t, 'g', -1, 64)
		default:
			s = fmt.Sprint(t)
		}
		out[i] = &s
	}
	return out
}

// pick returns the non-NaN values at rows; nil rows means all.
func pick(vals []float64, rows []int) []float64 {
	out := make([]float64, 0, len(vals))
	if rows == nil {
		for _, v := range vals {
			if !math.IsNaN(v) {
				out = append(out, v)
			}
		}
		return out
	}
	for _, r := range rows {
		if !math.IsNaN(vals[r]) {
			out = append(out, vals[r])
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func optString(o *goja.Object, key string) string {
	v := o.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func optFloat(o *goja.Object, key string) (float64, bool) {
	v := o.Get(key)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return 0, false
	}
	return v.ToFloat(), true
}
