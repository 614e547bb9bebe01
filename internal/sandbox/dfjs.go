package sandbox

import (
	"fmt"
	"math"

	"github.com/dop251/goja"

	"github.com/golovatskygroup/data-lens/internal/dataset"
)

// FrameBinding returns Bindings that expose f as the global "df". Column
// lookups that fail throw inside the script.
func FrameBinding(f *dataset.Frame) Bindings {
	return func(vm *goja.Runtime) error {
		obj, err := NewFrameObject(vm, f)
		if err != nil {
			return err
		}
		return vm.Set("df", obj)
	}
}

// NewFrameObject builds the read-only df object for vm.
func NewFrameObject(vm *goja.Runtime, f *dataset.Frame) (*goja.Object, error) {
	obj := vm.NewObject()
	rows, cols := f.Shape()

	reduce := func(agg dataset.Agg) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			v, err := f.Reduce(stringArg(vm, call, 0, "column"), agg)
			if err != nil {
				Throw(vm, err)
			}
			return floatValue(vm, v)
		}
	}

	props := map[string]any{
		"columns": f.Columns(),
		"shape":   []int{rows, cols},
	}
	for k, v := range props {
		if err := obj.Set(k, v); err != nil {
			return nil, err
		}
	}

	methods := map[string]func(call goja.FunctionCall) goja.Value{
		"col": func(call goja.FunctionCall) goja.Value {
			vals, err := f.Column(stringArg(vm, call, 0, "column"))
			if err != nil {
				Throw(vm, err)
			}
			return vm.ToValue(vals)
		},
		"head": func(call goja.FunctionCall) goja.Value {
			n := 5
			if len(call.Arguments) > 0 && !goja.IsUndefined(call.Argument(0)) {
				n = int(call.Argument(0).ToInteger())
			}
			return vm.ToValue(recordsValue(f.Head(n)))
		},
		"records": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(recordsValue(f.Records(0, rows)))
		},
		"unique": func(call goja.FunctionCall) goja.Value {
			vals, err := f.Unique(stringArg(vm, call, 0, "column"))
			if err != nil {
				Throw(vm, err)
			}
			return vm.ToValue(vals)
		},
		"valueCounts": func(call goja.FunctionCall) goja.Value {
			vc, err := f.ValueCounts(stringArg(vm, call, 0, "column"))
			if err != nil {
				Throw(vm, err)
			}
			out := make([]any, len(vc))
			for i, c := range vc {
				out[i] = map[string]any{"value": c.Value, "count": c.Count}
			}
			return vm.ToValue(out)
		},
		"groupby": func(call goja.FunctionCall) goja.Value {
			by := stringArg(vm, call, 0, "by")
			col := stringArg(vm, call, 1, "column")
			agg := ""
			if len(call.Arguments) > 2 {
				agg = call.Argument(2).String()
			}
			a, err := dataset.ParseAgg(agg)
			if err != nil {
				Throw(vm, err)
			}
			groups, err := f.GroupBy(by, col, a)
			if err != nil {
				Throw(vm, err)
			}
			out := make([]any, len(groups))
			for i, g := range groups {
				out[i] = map[string]any{"key": g.Key, "value": jsFloat(g.Value)}
			}
			return vm.ToValue(out)
		},
		"corr": func(call goja.FunctionCall) goja.Value {
			v, err := f.Corr(stringArg(vm, call, 0, "column"), stringArg(vm, call, 1, "column"))
			if err != nil {
				Throw(vm, err)
			}
			return floatValue(vm, v)
		},
		"describe": func(call goja.FunctionCall) goja.Value {
			stats := f.DescribeNumeric()
			out := make([]any, len(stats))
			for i, st := range stats {
				out[i] = map[string]any{
					"column": st.Column,
					"count":  st.Count,
					"mean":   jsFloat(st.Mean),
					"std":    jsFloat(st.Std),
					"min":    jsFloat(st.Min),
					"25%":    jsFloat(st.Q25),
					"50%":    jsFloat(st.Q50),
					"75%":    jsFloat(st.Q75),
					"max":    jsFloat(st.Max),
				}
			}
			return vm.ToValue(out)
		},
		"nullCounts": func(call goja.FunctionCall) goja.Value {
			out := map[string]any{}
			for _, c := range f.NullCounts() {
				out[c.Name] = c.Count
			}
			return vm.ToValue(out)
		},
		"duplicates": func(call goja.FunctionCall) goja.Value {
			return vm.ToValue(f.DuplicateRowCount())
		},
		"mean":    reduce(dataset.AggMean),
		"median":  reduce(dataset.AggMedian),
		"std":     reduce(dataset.AggStd),
		"min":     reduce(dataset.AggMin),
		"max":     reduce(dataset.AggMax),
		"sum":     reduce(dataset.AggSum),
		"count":   reduce(dataset.AggCount),
		"nunique": reduce(dataset.AggNUnique),
	}
	for name, fn := range methods {
		if err := obj.Set(name, fn); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func stringArg(vm *goja.Runtime, call goja.FunctionCall, i int, what string) string {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		panic(vm.NewTypeError(fmt.Sprintf("missing %s argument", what)))
	}
	return v.String()
}

func recordsValue(recs []map[string]any) []any {
	out := make([]any, len(recs))
	for i, r := range recs {
		out[i] = r
	}
	return out
}

// jsFloat maps undefined statistics to nil so scripts see null.
func jsFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatValue(vm *goja.Runtime, v float64) goja.Value {
	if math.IsNaN(v) {
		return goja.Null()
	}
	return vm.ToValue(v)
}
