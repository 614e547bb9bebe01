package dataset

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Agg names a column reduction.
type Agg string

const (
	AggMean    Agg = "mean"
	AggMedian  Agg = "median"
	AggStd     Agg = "std"
	AggMin     Agg = "min"
	AggMax     Agg = "max"
	AggSum     Agg = "sum"
	AggCount   Agg = "count"
	AggNUnique Agg = "nunique"
)

// ParseAgg accepts an aggregation name in any case.
func ParseAgg(s string) (Agg, error) {
	a := Agg(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case AggMean, AggMedian, AggStd, AggMin, AggMax, AggSum, AggCount, AggNUnique:
		return a, nil
	case "":
		return AggMean, nil
	}
	return "", fmt.Errorf("unknown aggregation %q", s)
}

type ValueCount struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

type Group struct {
	Key   any     `json:"key"`
	Value float64 `json:"value"`
}

// Reduce applies agg to the non-null values of a column. Count and nunique
// work on any dtype; the others require a numeric column.
func (f *Frame) Reduce(name string, agg Agg) (float64, error) {
	c, err := f.lookup(name)
	if err != nil {
		return 0, err
	}
	rows := make([]int, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		rows = append(rows, i)
	}
	return c.reduce(rows, agg)
}

func (c *column) reduce(rows []int, agg Agg) (float64, error) {
	switch agg {
	case AggCount:
		n := 0
		for _, i := range rows {
			if !c.null[i] {
				n++
			}
		}
		return float64(n), nil
	case AggNUnique:
		seen := map[string]struct{}{}
		for _, i := range rows {
			if !c.null[i] {
				seen[c.raw[i]] = struct{}{}
			}
		}
		return float64(len(seen)), nil
	}

	if !c.dtype.Numeric() {
		return 0, fmt.Errorf("column %q is %s, %s needs a numeric column", c.name, c.dtype, agg)
	}
	vals := make([]float64, 0, len(rows))
	for _, i := range rows {
		if !c.null[i] {
			vals = append(vals, c.num[i])
		}
	}
	switch agg {
	case AggMean:
		return Mean(vals), nil
	case AggMedian:
		return Quantile(vals, 0.5), nil
	case AggStd:
		return Std(vals), nil
	case AggSum:
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s, nil
	case AggMin, AggMax:
		if len(vals) == 0 {
			return math.NaN(), nil
		}
		m := vals[0]
		for _, v := range vals[1:] {
			if (agg == AggMin && v < m) || (agg == AggMax && v > m) {
				m = v
			}
		}
		return m, nil
	}
	return 0, fmt.Errorf("unknown aggregation %q", agg)
}

// Unique returns distinct non-null values in order of first appearance.
func (f *Frame) Unique(name string) ([]any, error) {
	c, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	out := []any{}
	seen := map[string]struct{}{}
	for i := 0; i < f.rows; i++ {
		if c.null[i] {
			continue
		}
		if _, ok := seen[c.raw[i]]; ok {
			continue
		}
		seen[c.raw[i]] = struct{}{}
		out = append(out, c.value(i))
	}
	return out, nil
}

// ValueCounts counts non-null values, most frequent first. Ties keep the
// order of first appearance.
func (f *Frame) ValueCounts(name string) ([]ValueCount, error) {
	c, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	out := []ValueCount{}
	for i := 0; i < f.rows; i++ {
		if c.null[i] {
			continue
		}
		if j, ok := idx[c.raw[i]]; ok {
			out[j].Count++
			continue
		}
		idx[c.raw[i]] = len(out)
		out = append(out, ValueCount{Value: c.value(i), Count: 1})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Count > out[b].Count })
	return out, nil
}

// GroupBy reduces col within each distinct non-null value of by. Groups are
// sorted by key, numerically for numeric keys.
func (f *Frame) GroupBy(by, col string, agg Agg) ([]Group, error) {
	bc, err := f.lookup(by)
	if err != nil {
		return nil, err
	}
	vc, err := f.lookup(col)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		key  any
		sort string
		num  float64
		rows []int
	}
	buckets := map[string]*bucket{}
	order := []*bucket{}
	for i := 0; i < f.rows; i++ {
		if bc.null[i] {
			continue
		}
		b, ok := buckets[bc.raw[i]]
		if !ok {
			b = &bucket{key: bc.value(i), sort: bc.raw[i]}
			if bc.dtype.Numeric() {
				b.num = bc.num[i]
			}
			buckets[bc.raw[i]] = b
			order = append(order, b)
		}
		b.rows = append(b.rows, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		if bc.dtype.Numeric() {
			return order[a].num < order[b].num
		}
		return order[a].sort < order[b].sort
	})

	out := make([]Group, 0, len(order))
	for _, b := range order {
		v, err := vc.reduce(b.rows, agg)
		if err != nil {
			return nil, err
		}
		out = append(out, Group{Key: b.key, Value: v})
	}
	return out, nil
}

// Corr is the Pearson correlation of two numeric columns over rows where
// both are present.
func (f *Frame) Corr(a, b string) (float64, error) {
	xs, ys, err := f.Pairs(a, b)
	if err != nil {
		return 0, err
	}
	return Pearson(xs, ys), nil
}
