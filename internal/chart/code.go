package chart

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/golovatskygroup/data-lens/internal/dataset"
)

var fenceRe = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")

// StripFences removes markdown code fences and surrounding whitespace.
func StripFences(code string) string {
	code = fenceRe.ReplaceAllString(code, "")
	code = strings.ReplaceAll(code, "```javascript", "")
	code = strings.ReplaceAll(code, "```js", "")
	code = strings.ReplaceAll(code, "```", "")
	return strings.TrimSpace(code)
}

// quoted matches a double- or single-quoted name; the other quote may appear
// inside it.
const quoted = `(?:"([^"]+)"|'([^']+)')`

var (
	optionColumnRe = regexp.MustCompile(`\b(?:x|y|hue)\s*:\s*` + quoted)
	methodColumnRe = regexp.MustCompile(`\bdf\s*\.\s*(?:col|unique|mean|median|std|min|max|sum|count|nunique|valueCounts|groupby|corr)\s*\(\s*` + quoted + `(?:\s*,\s*` + quoted + `)?`)
)

// ReferencedColumns lists the quoted column names code passes to sns options
// or df methods, in order of first use.
func ReferencedColumns(code string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(c string) {
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	for _, m := range optionColumnRe.FindAllStringSubmatch(code, -1) {
		add(m[1] + m[2])
	}
	for _, m := range methodColumnRe.FindAllStringSubmatch(code, -1) {
		add(m[1] + m[2])
		add(m[3] + m[4])
	}
	return out
}

// CheckColumns fails on the first referenced column f does not have.
func CheckColumns(code string, f *dataset.Frame) error {
	for _, c := range ReferencedColumns(code) {
		if !f.HasColumn(c) {
			return fmt.Errorf("%w: %q (available: %s)", dataset.ErrUnknownColumn, c, strings.Join(f.Columns(), ", "))
		}
	}
	return nil
}
