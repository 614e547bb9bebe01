// Package query evaluates ad hoc expressions against the session dataset.
package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/sandbox"
)

type Evaluator struct {
	runner *sandbox.Runner
	lang   sandbox.Language
	log    *zap.Logger
}

func NewEvaluator(runner *sandbox.Runner, lang sandbox.Language, log *zap.Logger) *Evaluator {
	if lang == "" {
		lang = sandbox.LanguageJavaScript
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{runner: runner, lang: lang, log: log}
}

func (e *Evaluator) Language() sandbox.Language { return e.lang }

// EvaluateValue runs expr against f and returns the raw result. Failures are
// KindEvaluation errors.
func (e *Evaluator) EvaluateValue(ctx context.Context, f *dataset.Frame, expr string) (any, error) {
	expr = cleanExpression(expr)
	switch e.lang {
	case sandbox.LanguageGo:
		res, err := e.runner.RunGo(ctx, expr, f)
		if err != nil {
			return nil, err
		}
		if res.Value == nil && res.Stdout != "" {
			return strings.TrimRight(res.Stdout, "\n"), nil
		}
		return res.Value, nil
	default:
		return e.runner.RunJS(ctx, expr, sandbox.FrameBinding(f))
	}
}

// Evaluate is EvaluateValue rendered as text. Evaluation failures come back
// as their message so the caller can show or re-prompt with them; only a
// canceled context is returned as an error.
func (e *Evaluator) Evaluate(ctx context.Context, f *dataset.Frame, expr string) (string, error) {
	v, err := e.EvaluateValue(ctx, f, expr)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.log.Info("query failed", zap.String("language", string(e.lang)), zap.Error(err))
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Err != nil {
			return fmt.Sprintf("%s error: %v", e.lang, ae.Err), nil
		}
		return err.Error(), nil
	}
	return Format(v), nil
}

// cleanExpression drops code fences and wrapping backticks the model often
// adds around an action input.
func cleanExpression(expr string) string {
	expr = strings.TrimSpace(expr)
	for _, p := range []string{"```javascript", "```js", "```go", "```"} {
		expr = strings.ReplaceAll(expr, p, "")
	}
	expr = strings.TrimSpace(expr)
	if len(expr) >= 2 && strings.HasPrefix(expr, "`") && strings.HasSuffix(expr, "`") {
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr
}

// Format renders a result value: numbers without trailing zeros, strings
// verbatim, everything else as JSON.
func Format(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return formatFloat(t)
	case float32:
		return formatFloat(float64(t))
	case int, int32, int64, uint, uint32, uint64, bool:
		return fmt.Sprint(t)
	}
	b, err := json.Marshal(sanitize(v))
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// sanitize replaces NaN and Inf, which JSON cannot encode, with nil.
func sanitize(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = sanitize(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = sanitize(x)
		}
		return out
	case map[string]float64:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = sanitize(x)
		}
		return out
	}
	return v
}
