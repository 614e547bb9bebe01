package sandbox

import (
	"fmt"

	"github.com/golovatskygroup/data-lens/internal/dataset"
)

// GoFrame is the df value seen by Go-dialect code. Methods panic on bad
// column names; the evaluator turns the panic into an error.
type GoFrame struct {
	f *dataset.Frame
}

func NewGoFrame(f *dataset.Frame) *GoFrame { return &GoFrame{f: f} }

func (g *GoFrame) Columns() []string { return g.f.Columns() }

func (g *GoFrame) Rows() int {
	r, _ := g.f.Shape()
	return r
}

func (g *GoFrame) Shape() [2]int {
	r, c := g.f.Shape()
	return [2]int{r, c}
}

func (g *GoFrame) Col(name string) []any {
	v, err := g.f.Column(name)
	must(err)
	return v
}

func (g *GoFrame) Head(n int) []map[string]any { return g.f.Head(n) }

func (g *GoFrame) Mean(col string) float64   { return g.reduce(col, dataset.AggMean) }
func (g *GoFrame) Median(col string) float64 { return g.reduce(col, dataset.AggMedian) }
func (g *GoFrame) Std(col string) float64    { return g.reduce(col, dataset.AggStd) }
func (g *GoFrame) Min(col string) float64    { return g.reduce(col, dataset.AggMin) }
func (g *GoFrame) Max(col string) float64    { return g.reduce(col, dataset.AggMax) }
func (g *GoFrame) Sum(col string) float64    { return g.reduce(col, dataset.AggSum) }
func (g *GoFrame) Count(col string) int      { return int(g.reduce(col, dataset.AggCount)) }
func (g *GoFrame) NUnique(col string) int    { return int(g.reduce(col, dataset.AggNUnique)) }

func (g *GoFrame) Corr(a, b string) float64 {
	v, err := g.f.Corr(a, b)
	must(err)
	return v
}

func (g *GoFrame) DuplicateRows() int { return g.f.DuplicateRowCount() }

func (g *GoFrame) Describe() []dataset.NumericStats { return g.f.DescribeNumeric() }

func (g *GoFrame) Unique(col string) []any {
	v, err := g.f.Unique(col)
	must(err)
	return v
}

func (g *GoFrame) NullCount(col string) int {
	must(g.lookup(col))
	for _, c := range g.f.NullCounts() {
		if c.Name == col {
			return c.Count
		}
	}
	return 0
}

// ValueCounts maps each value's text to its count.
func (g *GoFrame) ValueCounts(col string) map[string]int {
	vc, err := g.f.ValueCounts(col)
	must(err)
	out := make(map[string]int, len(vc))
	for _, c := range vc {
		out[toKey(c.Value)] = c.Count
	}
	return out
}

// GroupBy maps each key's text to the reduced value of col.
func (g *GoFrame) GroupBy(by, col, agg string) map[string]float64 {
	a, err := dataset.ParseAgg(agg)
	must(err)
	groups, err := g.f.GroupBy(by, col, a)
	must(err)
	out := make(map[string]float64, len(groups))
	for _, gr := range groups {
		out[toKey(gr.Key)] = gr.Value
	}
	return out
}

func (g *GoFrame) reduce(col string, agg dataset.Agg) float64 {
	v, err := g.f.Reduce(col, agg)
	must(err)
	return v
}

func (g *GoFrame) lookup(col string) error {
	_, err := g.f.DType(col)
	return err
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func toKey(v any) string { return fmt.Sprint(v) }
