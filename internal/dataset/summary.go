package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

type ColumnType struct {
	Name  string `json:"name"`
	DType DType  `json:"dtype"`
}

type ColumnCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// NumericStats is one row of DescribeNumeric. Undefined values are NaN.
type NumericStats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q25    float64 `json:"25%"`
	Q50    float64 `json:"50%"`
	Q75    float64 `json:"75%"`
	Max    float64 `json:"max"`
}

// Summary bundles every read the report generators use.
type Summary struct {
	Rows        int            `json:"rows"`
	Cols        int            `json:"cols"`
	Types       []ColumnType   `json:"types"`
	Nulls       []ColumnCount  `json:"nulls"`
	NaNLiterals []ColumnCount  `json:"nan_literals"`
	Duplicates  int            `json:"duplicates"`
	Numeric     []NumericStats `json:"numeric"`
}

// Shape returns (rows, columns).
func (f *Frame) Shape() (int, int) { return f.rows, len(f.cols) }

func (f *Frame) ColumnTypes() []ColumnType {
	out := make([]ColumnType, len(f.cols))
	for j, c := range f.cols {
		out[j] = ColumnType{Name: c.name, DType: c.dtype}
	}
	return out
}

func (f *Frame) NullCounts() []ColumnCount {
	out := make([]ColumnCount, len(f.cols))
	for j, c := range f.cols {
		n := 0
		for _, isNull := range c.null {
			if isNull {
				n++
			}
		}
		out[j] = ColumnCount{Name: c.name, Count: n}
	}
	return out
}

// NaNLiteralCounts counts non-null cells whose trimmed text equals "nan" in
// any capitalization. The column dtype plays no part.
func (f *Frame) NaNLiteralCounts() []ColumnCount {
	out := make([]ColumnCount, len(f.cols))
	for j, c := range f.cols {
		n := 0
		for i, v := range c.raw {
			if c.null[i] {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(v), "nan") {
				n++
			}
		}
		out[j] = ColumnCount{Name: c.name, Count: n}
	}
	return out
}

// DuplicateRowCount counts rows equal, across all columns, to an earlier row.
func (f *Frame) DuplicateRowCount() int {
	seen := make(map[string]struct{}, f.rows)
	dups := 0
	var sb strings.Builder
	for i := 0; i < f.rows; i++ {
		sb.Reset()
		for j := range f.cols {
			if f.cols[j].null[i] {
				sb.WriteByte(0)
			} else {
				sb.WriteByte(1)
				sb.WriteString(f.cols[j].key(i))
			}
			sb.WriteByte(0x1f)
		}
		key := sb.String()
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// key compares parsed values for typed columns, so "1" and "1.0" or "True"
// and "true" are the same cell.
func (c *column) key(i int) string {
	switch c.dtype {
	case Int64, Float64:
		v := c.num[i]
		if v == 0 {
			v = 0 // -0
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case Bool:
		b, _ := parseBool(strings.TrimSpace(c.raw[i]))
		return strconv.FormatBool(b)
	default:
		return c.raw[i]
	}
}

// DescribeNumeric returns count, mean, std, min, quartiles and max for every
// numeric column. A frame without numeric columns yields an empty slice.
func (f *Frame) DescribeNumeric() []NumericStats {
	out := []NumericStats{}
	for j := range f.cols {
		c := &f.cols[j]
		if !c.dtype.Numeric() {
			continue
		}
		vals := make([]float64, 0, len(c.num))
		for i, v := range c.num {
			if !c.null[i] {
				vals = append(vals, v)
			}
		}
		out = append(out, describe(c.name, vals))
	}
	return out
}

func (f *Frame) Summary() Summary {
	rows, cols := f.Shape()
	return Summary{
		Rows:        rows,
		Cols:        cols,
		Types:       f.ColumnTypes(),
		Nulls:       f.NullCounts(),
		NaNLiterals: f.NaNLiteralCounts(),
		Duplicates:  f.DuplicateRowCount(),
		Numeric:     f.DescribeNumeric(),
	}
}

func describe(name string, vals []float64) NumericStats {
	st := NumericStats{Column: name, Count: len(vals)}
	if len(vals) == 0 {
		nan := math.NaN()
		st.Mean, st.Std, st.Min, st.Q25, st.Q50, st.Q75, st.Max = nan, nan, nan, nan, nan, nan, nan
		return st
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	st.Mean = Mean(vals)
	st.Std = Std(vals)
	st.Min = sorted[0]
	st.Max = sorted[len(sorted)-1]
	st.Q25 = QuantileSorted(sorted, 0.25)
	st.Q50 = QuantileSorted(sorted, 0.50)
	st.Q75 = QuantileSorted(sorted, 0.75)
	return st
}
