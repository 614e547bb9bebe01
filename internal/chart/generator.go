// Package chart turns a natural-language chart request into a figure: the
// model writes plotting code against df, plt and sns, which runs in the
// sandbox and is rendered with ECharts.
package chart

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/llm"
	"github.com/golovatskygroup/data-lens/internal/sandbox"
)

type Options struct {
	// CheckColumns rejects code quoting unknown columns before it runs.
	CheckColumns bool
	SampleRows   int
}

type Generator struct {
	gen    llm.Generator
	runner *sandbox.Runner
	opts   Options
	log    *zap.Logger
}

// Result is a rendered chart.
type Result struct {
	Code   string
	Figure *Figure
	Option []byte // ECharts option JSON
	HTML   string
}

func NewGenerator(gen llm.Generator, runner *sandbox.Runner, opts Options, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{gen: gen, runner: runner, opts: opts, log: log}
}

// Generate asks the model for plotting code and runs it. Code that fails
// validation, throws or draws nothing is a KindEvaluation error.
func (g *Generator) Generate(ctx context.Context, request string, f *dataset.Frame) (*Result, error) {
	prompt, err := BuildPrompt(request, f, g.opts.SampleRows)
	if err != nil {
		return nil, apperr.New(apperr.KindGeneration, "chart prompt", err)
	}
	raw, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	code := StripFences(raw)
	g.log.Debug("chart code generated", zap.String("request", request), zap.Int("bytes", len(code)))
	return g.Render(ctx, code, f)
}

// Render validates and executes plotting code against f.
func (g *Generator) Render(ctx context.Context, code string, f *dataset.Frame) (*Result, error) {
	if g.opts.CheckColumns {
		if err := CheckColumns(code, f); err != nil {
			return nil, apperr.New(apperr.KindEvaluation, "chart columns", err)
		}
	}

	e := newEnv(f)
	if _, err := g.runner.RunJS(ctx, code, e.bind); err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return nil, apperr.New(apperr.KindEvaluation, "chart", ae.Err)
		}
		return nil, apperr.New(apperr.KindEvaluation, "chart", err)
	}

	fig := e.fig
	if fig.Empty() {
		return nil, apperr.New(apperr.KindEvaluation, "chart", fmt.Errorf("the code produced an empty figure"))
	}
	opt, err := OptionJSON(fig)
	if err != nil {
		return nil, apperr.New(apperr.KindEvaluation, "chart", err)
	}
	page, err := HTML(fig)
	if err != nil {
		return nil, apperr.New(apperr.KindEvaluation, "chart", err)
	}
	g.log.Info("chart rendered", zap.Int("series", len(fig.Series)), zap.String("title", fig.Title.Text))
	return &Result{Code: code, Figure: fig, Option: opt, HTML: page}, nil
}
