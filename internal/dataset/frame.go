// Package dataset holds the read-only in-memory representation of an
// uploaded table and the summary reads the report tools are built on.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DType mirrors the dtype names users see in pandas-style summaries.
type DType string

const (
	Int64   DType = "int64"
	Float64 DType = "float64"
	Bool    DType = "bool"
	Object  DType = "object"
)

func (d DType) Numeric() bool { return d == Int64 || d == Float64 }

// ErrUnknownColumn is returned (wrapped) by column lookups.
var ErrUnknownColumn = errors.New("unknown column")

type column struct {
	name  string
	dtype DType
	raw   []string
	null  []bool
	num   []float64 // parsed values for numeric dtypes, NaN where null
}

// Frame is immutable once built. All methods are safe for concurrent reads.
type Frame struct {
	name  string
	rows  int
	cols  []column
	index map[string]int
}

// Build creates a Frame from a header and row-major records. An empty cell is
// null. Records shorter than the header are padded with nulls; longer records
// are an error.
func Build(name string, header []string, records [][]string) (*Frame, error) {
	if len(header) == 0 {
		return nil, errors.New("no columns to parse")
	}
	names := normalizeHeader(header)

	f := &Frame{
		name:  name,
		rows:  len(records),
		cols:  make([]column, len(names)),
		index: make(map[string]int, len(names)),
	}
	for j, n := range names {
		f.cols[j] = column{
			name: n,
			raw:  make([]string, len(records)),
			null: make([]bool, len(records)),
		}
		f.index[n] = j
	}
	for i, rec := range records {
		if len(rec) > len(names) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+1, len(rec), len(names))
		}
		for j := range names {
			if j >= len(rec) || rec[j] == "" {
				f.cols[j].null[i] = true
				continue
			}
			f.cols[j].raw[i] = rec[j]
		}
	}
	for j := range f.cols {
		f.cols[j].infer()
	}
	return f, nil
}

// normalizeHeader names blank headers "Unnamed: i" and suffixes repeats with
// ".1", ".2", ... the way pandas does.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		base := h
		for {
			n, dup := seen[h]
			if !dup {
				break
			}
			seen[base] = n + 1
			h = fmt.Sprintf("%s.%d", base, n+1)
		}
		seen[h] = 0
		out[i] = h
	}
	return out
}

func (c *column) infer() {
	nonNull, hasNull := 0, false
	isInt, isFloat, isBool := true, true, true
	for i, v := range c.raw {
		if c.null[i] {
			hasNull = true
			continue
		}
		nonNull++
		s := strings.TrimSpace(v)
		if isInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, ok := parseFinite(s); !ok {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(s); !ok {
				isBool = false
			}
		}
	}

	switch {
	case nonNull == 0:
		c.dtype = Float64
	case isInt && !hasNull:
		c.dtype = Int64
	case isInt || isFloat:
		c.dtype = Float64
	case isBool && !hasNull:
		c.dtype = Bool
	default:
		c.dtype = Object
	}

	if c.dtype.Numeric() {
		c.num = make([]float64, len(c.raw))
		for i, v := range c.raw {
			if c.null[i] {
				c.num[i] = math.NaN()
				continue
			}
			c.num[i], _ = parseFinite(strings.TrimSpace(v))
		}
	}
}

// parseFinite rejects NaN and Inf spellings so that a literal "nan" keeps the
// column textual.
func parseFinite(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func (f *Frame) Name() string { return f.name }

func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for j, c := range f.cols {
		out[j] = c.name
	}
	return out
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

func (f *Frame) lookup(name string) (*column, error) {
	j, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownColumn, name, strings.Join(f.Columns(), ", "))
	}
	return &f.cols[j], nil
}

// DType returns the inferred dtype of a column.
func (f *Frame) DType(name string) (DType, error) {
	c, err := f.lookup(name)
	if err != nil {
		return "", err
	}
	return c.dtype, nil
}

// Column returns typed cell values: float64 for numeric columns, bool for
// bool columns, string otherwise and nil for nulls.
func (f *Frame) Column(name string) ([]any, error) {
	c, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]any, f.rows)
	for i := range out {
		out[i] = c.value(i)
	}
	return out, nil
}

// Floats returns the non-null values of a numeric column in row order.
func (f *Frame) Floats(name string) ([]float64, error) {
	c, err := f.lookup(name)
	if err != nil {
		return nil, err
	}
	if !c.dtype.Numeric() {
		return nil, fmt.Errorf("column %q is %s, not numeric", name, c.dtype)
	}
	out := make([]float64, 0, f.rows)
	for i, v := range c.num {
		if !c.null[i] {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *column) value(i int) any {
	if c.null[i] {
		return nil
	}
	switch c.dtype {
	case Int64, Float64:
		return c.num[i]
	case Bool:
		b, _ := parseBool(strings.TrimSpace(c.raw[i]))
		return b
	default:
		return c.raw[i]
	}
}

// Records returns rows [from, to) as maps keyed by column name.
func (f *Frame) Records(from, to int) []map[string]any {
	if from < 0 {
		from = 0
	}
	if to > f.rows {
		to = f.rows
	}
	if from >= to {
		return []map[string]any{}
	}
	out := make([]map[string]any, 0, to-from)
	for i := from; i < to; i++ {
		rec := make(map[string]any, len(f.cols))
		for j := range f.cols {
			rec[f.cols[j].name] = f.cols[j].value(i)
		}
		out = append(out, rec)
	}
	return out
}

// Head returns the first n rows as records.
func (f *Frame) Head(n int) []map[string]any { return f.Records(0, n) }

// Pairs returns the values of two numeric columns for rows where both are
// non-null.
func (f *Frame) Pairs(a, b string) ([]float64, []float64, error) {
	ca, err := f.lookup(a)
	if err != nil {
		return nil, nil, err
	}
	cb, err := f.lookup(b)
	if err != nil {
		return nil, nil, err
	}
	if !ca.dtype.Numeric() || !cb.dtype.Numeric() {
		return nil, nil, fmt.Errorf("columns %q and %q must both be numeric", a, b)
	}
	xs := make([]float64, 0, f.rows)
	ys := make([]float64, 0, f.rows)
	for i := 0; i < f.rows; i++ {
		if ca.null[i] || cb.null[i] {
			continue
		}
		xs = append(xs, ca.num[i])
		ys = append(ys, cb.num[i])
	}
	return xs, ys, nil
}
