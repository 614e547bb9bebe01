package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
)

// Bindings installs the globals evaluated code may use.
type Bindings func(vm *goja.Runtime) error

// RunJS validates and executes code in a fresh runtime. Only the globals
// installed by bind are reachable besides the ECMAScript builtins. The value
// of the last expression is exported to Go.
func (r *Runner) RunJS(ctx context.Context, code string, bind Bindings) (any, error) {
	if err := r.Validate(LanguageJavaScript, code); err != nil {
		return nil, err
	}
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	vm, err := r.newRuntime(bind)
	if err != nil {
		return nil, apperr.New(apperr.KindEvaluation, "javascript setup", err)
	}

	type result struct {
		v   any
		err error
	}
	resultChan := make(chan result, 1)
	done := make(chan struct{})
	start := time.Now()

	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				resultChan <- result{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		val, err := vm.RunString(code)
		if err != nil {
			resultChan <- result{err: err}
			return
		}
		var out any
		if val != nil {
			out = val.Export()
		}
		resultChan <- result{v: out}
	}()

	timer := time.NewTimer(r.cfg.Timeout)
	defer timer.Stop()

	var res result
	select {
	case <-ctx.Done():
		vm.Interrupt("canceled")
		<-done
		return nil, apperr.New(apperr.KindEvaluation, "javascript", ctx.Err())
	case <-timer.C:
		vm.Interrupt("timeout")
		<-done
		return nil, apperr.New(apperr.KindEvaluation, "javascript", fmt.Errorf("execution timeout after %s", r.cfg.Timeout))
	case res = <-resultChan:
	}

	r.log.Debug("javascript evaluated", zap.Duration("elapsed", time.Since(start)), zap.Error(res.err))
	if res.err != nil {
		return nil, apperr.New(apperr.KindEvaluation, "javascript", jsError(res.err))
	}
	return res.v, nil
}

func (r *Runner) newRuntime(bind Bindings) (*goja.Runtime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	for _, g := range r.cfg.ForbiddenGlobals {
		if err := vm.Set(g, goja.Undefined()); err != nil {
			return nil, err
		}
	}
	if r.cfg.MaxStackDepth > 0 {
		vm.SetMaxCallStackSize(r.cfg.MaxStackDepth)
	}
	if bind != nil {
		if err := bind(vm); err != nil {
			return nil, err
		}
	}
	return vm, nil
}

// jsError keeps the thrown value's message and drops goja's stack suffix.
func jsError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		if v := ex.Value(); v != nil {
			if obj, ok := v.(*goja.Object); ok {
				if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
					return errors.New(msg.String())
				}
			}
			return errors.New(v.String())
		}
	}
	return err
}

// Throw raises err as a JavaScript exception from inside a Go binding.
func Throw(vm *goja.Runtime, err error) {
	panic(vm.NewGoError(err))
}
