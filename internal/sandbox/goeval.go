package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/dataset"
)

// GoResult is the outcome of a Go-dialect evaluation.
type GoResult struct {
	Value  any
	Stdout string
}

// RunGo interprets a Go snippet with a fresh yaegi interpreter. The snippet
// sees a single variable, df, of type *datalens.Frame, plus the allowed
// standard packages it imports itself. The value of the last expression is
// returned.
func (r *Runner) RunGo(ctx context.Context, code string, f *dataset.Frame) (*GoResult, error) {
	if err := r.Validate(LanguageGo, code); err != nil {
		return nil, err
	}
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	var stdout bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stdout})
	if err := i.Use(r.allowedSymbols()); err != nil {
		return nil, apperr.New(apperr.KindEvaluation, "go setup", err)
	}
	df := NewGoFrame(f)
	if err := i.Use(interp.Exports{
		"datalens/datalens": {
			"Frame": reflect.ValueOf((*GoFrame)(nil)),
			"DF":    reflect.ValueOf(&df).Elem(),
		},
	}); err != nil {
		return nil, apperr.New(apperr.KindEvaluation, "go setup", err)
	}

	imports, body := splitGoImports(code)
	prelude := []string{`import "datalens"`}
	for _, imp := range imports {
		prelude = append(prelude, fmt.Sprintf("import %q", imp))
	}
	prelude = append(prelude, "var df = datalens.DF")
	for _, src := range prelude {
		if _, err := i.Eval(src); err != nil {
			return nil, apperr.New(apperr.KindEvaluation, "go setup", err)
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	v, err := evalRecover(runCtx, i, strings.TrimSpace(body))
	r.log.Debug("go evaluated", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("execution timeout after %s", r.cfg.Timeout)
		}
		return nil, apperr.New(apperr.KindEvaluation, "go", err)
	}

	res := &GoResult{Stdout: stdout.String()}
	if v.IsValid() && v.CanInterface() {
		res.Value = v.Interface()
	}
	return res, nil
}

func evalRecover(ctx context.Context, i *interp.Interpreter, src string) (v reflect.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	v, err = i.EvalWithContext(ctx, src)
	var pe interp.Panic
	if errors.As(err, &pe) {
		err = fmt.Errorf("%v", pe.Value)
	}
	return v, err
}

func (r *Runner) allowedSymbols() interp.Exports {
	out := interp.Exports{}
	for _, pkg := range r.cfg.AllowedPackages {
		key := pkg + "/" + pkg[strings.LastIndex(pkg, "/")+1:]
		if syms, ok := stdlib.Symbols[key]; ok {
			out[key] = syms
		}
	}
	return out
}
