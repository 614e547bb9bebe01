package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
)

// FormatShape renders "(rows, cols)".
func (s Summary) FormatShape() string {
	return fmt.Sprintf("(%d, %d)", s.Rows, s.Cols)
}

// FormatTypes renders one "name  dtype" line per column.
func (s Summary) FormatTypes() string {
	names := make([]string, len(s.Types))
	vals := make([]string, len(s.Types))
	for i, t := range s.Types {
		names[i] = t.Name
		vals[i] = string(t.DType)
	}
	return formatSeries(names, vals, "dtype: object")
}

func (s Summary) FormatNulls() string { return formatCounts(s.Nulls) }

func (s Summary) FormatNaNLiterals() string { return formatCounts(s.NaNLiterals) }

// FormatDescribe renders the transposed describe table, one numeric column
// per row. An empty summary renders as "Empty DataFrame".
func (s Summary) FormatDescribe() string {
	if len(s.Numeric) == 0 {
		return "Empty DataFrame\nColumns: [count, mean, std, min, 25%, 50%, 75%, max]\nIndex: []"
	}
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tcount\tmean\tstd\tmin\t25%\t50%\t75%\tmax\t")
	for _, st := range s.Numeric {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			st.Column,
			FormatFloat(float64(st.Count)),
			FormatFloat(st.Mean),
			FormatFloat(st.Std),
			FormatFloat(st.Min),
			FormatFloat(st.Q25),
			FormatFloat(st.Q50),
			FormatFloat(st.Q75),
			FormatFloat(st.Max),
		)
	}
	_ = tw.Flush()
	return strings.TrimRight(sb.String(), "\n")
}

func formatCounts(counts []ColumnCount) string {
	names := make([]string, len(counts))
	vals := make([]string, len(counts))
	for i, c := range counts {
		names[i] = c.Name
		vals[i] = strconv.Itoa(c.Count)
	}
	return formatSeries(names, vals, "dtype: int64")
}

func formatSeries(names, vals []string, footer string) string {
	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 4, ' ', 0)
	for i := range names {
		fmt.Fprintf(tw, "%s\t%s\n", names[i], vals[i])
	}
	_ = tw.Flush()
	sb.WriteString(footer)
	return sb.String()
}

// FormatFloat prints six decimals, "NaN" for undefined values.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// HeadMarkdown renders the first n rows as a markdown table with the row
// index in the first column. Nulls render as empty cells.
func (f *Frame) HeadMarkdown(n int) string {
	if n > f.rows {
		n = f.rows
	}
	var sb strings.Builder
	sb.WriteString("|    |")
	for _, c := range f.cols {
		sb.WriteString(" ")
		sb.WriteString(escapeCell(c.name))
		sb.WriteString(" |")
	}
	sb.WriteString("\n|---:|")
	for _, c := range f.cols {
		if c.dtype.Numeric() {
			sb.WriteString("----:|")
		} else {
			sb.WriteString(":----|")
		}
	}
	sb.WriteString("\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "| %2d |", i)
		for j := range f.cols {
			sb.WriteString(" ")
			sb.WriteString(escapeCell(f.cols[j].cell(i)))
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ColumnInfo renders "- name (dtype)" lines for generation prompts.
func (f *Frame) ColumnInfo() string {
	lines := make([]string, len(f.cols))
	for j, c := range f.cols {
		lines[j] = fmt.Sprintf("- %s (%s)", c.name, c.dtype)
	}
	return strings.Join(lines, "\n")
}

func (c *column) cell(i int) string {
	if c.null[i] {
		return ""
	}
	if c.dtype.Numeric() {
		return strconv.FormatFloat(c.num[i], 'g', -1, 64)
	}
	return c.raw[i]
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
