// Package router picks the tool that answers a question. The model replies in
// the Thought/Action/Action Input/Observation format; the router parses each
// reply, dispatches to the registry and feeds corrections back until a tool
// answers directly or the iteration budget runs out.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/llm"
	"github.com/golovatskygroup/data-lens/internal/tool"
)

const DefaultMaxIterations = 5

// Recorder persists finished decisions.
type Recorder interface {
	Record(ctx context.Context, d Decision) error
}

type Options struct {
	// DatasetHead is shown to the model as a sample of the data.
	DatasetHead   string
	MaxIterations int
	Recorder      Recorder
}

type Router struct {
	gen  llm.Generator
	reg  *tool.Registry
	opts Options
	log  *zap.Logger
	now  func() time.Time
}

func New(gen llm.Generator, reg *tool.Registry, opts Options, log *zap.Logger) *Router {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{gen: gen, reg: reg, opts: opts, log: log, now: time.Now}
}

// Route answers question with one of the registered tools. Generation and
// tool failures are returned unchanged; running out of attempts without a
// usable decision is a KindRoutingParse error.
func (r *Router) Route(ctx context.Context, question string) (*Result, error) {
	d := Decision{
		ID:        uuid.NewString(),
		Question:  question,
		State:     AwaitingDecision,
		StartedAt: r.now(),
	}
	res := &Result{}
	log := r.log.With(zap.String("decision_id", d.ID))

	var lastObservation string
	for d.Attempts < r.opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, res, &d, err)
		}
		d.Attempts++

		prompt, err := buildPrompt(r.opts.DatasetHead, r.reg.List(), question, res.Steps)
		if err != nil {
			return r.fail(ctx, res, &d, err)
		}
		text, err := r.gen.Generate(ctx, prompt, StopSequence)
		if err != nil {
			return r.fail(ctx, res, &d, err)
		}

		parsed, err := Parse(text)
		if err != nil {
			var pe *ParseError
			if !errors.As(err, &pe) {
				return r.fail(ctx, res, &d, err)
			}
			log.Debug("unparseable model output", zap.Int("attempt", d.Attempts), zap.String("observation", pe.Observation))
			lastObservation = pe.Observation
			res.Steps = append(res.Steps, Step{Log: text, Observation: pe.Observation})
			if err := d.advance(AwaitingDecision); err != nil {
				return r.fail(ctx, res, &d, err)
			}
			continue
		}

		if parsed.Final {
			if err := d.advance(Done); err != nil {
				return r.fail(ctx, res, &d, err)
			}
			res.Output = tool.Output{Text: parsed.Answer}
			return r.finish(ctx, res, &d), nil
		}

		d.Tool, d.ActionInput = parsed.Tool, parsed.Input
		if err := d.advance(ToolSelected); err != nil {
			return r.fail(ctx, res, &d, err)
		}
		step := Step{Log: text, Tool: parsed.Tool, Input: parsed.Input}

		desc, in, obs := r.resolve(parsed)
		if obs != "" {
			log.Debug("rejected tool call", zap.String("tool", parsed.Tool), zap.String("observation", obs))
			lastObservation = obs
			step.Observation = obs
			res.Steps = append(res.Steps, step)
			if err := d.advance(AwaitingDecision); err != nil {
				return r.fail(ctx, res, &d, err)
			}
			continue
		}

		log.Info("invoking tool", zap.String("tool", desc.Name), zap.Int("attempt", d.Attempts))
		out, err := desc.Invoke(ctx, in)
		if err != nil {
			return r.fail(ctx, res, &d, err)
		}
		if err := d.advance(ToolExecuted); err != nil {
			return r.fail(ctx, res, &d, err)
		}

		if desc.ReturnDirect {
			if err := d.advance(Done); err != nil {
				return r.fail(ctx, res, &d, err)
			}
			res.Output = out
			return r.finish(ctx, res, &d), nil
		}

		step.Observation = out.Text
		res.Steps = append(res.Steps, step)
		if err := d.advance(AwaitingDecision); err != nil {
			return r.fail(ctx, res, &d, err)
		}
	}

	err := apperr.Newf(apperr.KindRoutingParse, "route",
		"no usable decision after %d attempts: %s", d.Attempts, lastObservation)
	return r.fail(ctx, res, &d, err)
}

// resolve returns the tool and decoded input, or the observation explaining
// why the call was rejected.
func (r *Router) resolve(p Parsed) (tool.Descriptor, tool.Input, string) {
	desc, err := r.reg.Resolve(p.Tool)
	if err != nil {
		obs := fmt.Sprintf("%s is not a valid tool, try one of [%s].", p.Tool, strings.Join(r.reg.Names(), ", "))
		var ue *tool.UnknownToolError
		if errors.As(err, &ue) && len(ue.Suggestions) > 0 {
			obs += fmt.Sprintf(" Did you mean %s?", strings.Join(ue.Suggestions, ", "))
		}
		return tool.Descriptor{}, tool.Input{}, obs
	}
	in, err := r.reg.DecodeInput(desc.Name, p.Input)
	if err != nil {
		return tool.Descriptor{}, tool.Input{}, err.Error()
	}
	return desc, in, ""
}

func (r *Router) finish(ctx context.Context, res *Result, d *Decision) *Result {
	d.Duration = r.now().Sub(d.StartedAt)
	r.record(ctx, *d)
	res.Decision = *d
	r.log.Info("routed",
		zap.String("decision_id", d.ID),
		zap.String("tool", d.Tool),
		zap.Int("attempts", d.Attempts),
		zap.Duration("duration", d.Duration),
	)
	return res
}

func (r *Router) fail(ctx context.Context, res *Result, d *Decision, err error) (*Result, error) {
	d.State = Failed
	d.Err = err
	d.Duration = r.now().Sub(d.StartedAt)
	r.record(ctx, *d)
	res.Decision = *d
	r.log.Warn("routing failed",
		zap.String("decision_id", d.ID),
		zap.Int("attempts", d.Attempts),
		zap.Error(err),
	)
	return res, err
}

func (r *Router) record(ctx context.Context, d Decision) {
	if r.opts.Recorder == nil {
		return
	}
	// The decision is recorded even when the request context is done.
	if err := r.opts.Recorder.Record(context.WithoutCancel(ctx), d); err != nil {
		r.log.Warn("audit record failed", zap.String("decision_id", d.ID), zap.Error(err))
	}
}
