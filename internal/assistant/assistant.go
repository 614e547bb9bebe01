// Package assistant wires the four data tools for a session and answers
// questions through the router.
package assistant

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/artifacts"
	"github.com/golovatskygroup/data-lens/internal/audit"
	"github.com/golovatskygroup/data-lens/internal/chart"
	"github.com/golovatskygroup/data-lens/internal/config"
	"github.com/golovatskygroup/data-lens/internal/llm"
	"github.com/golovatskygroup/data-lens/internal/query"
	"github.com/golovatskygroup/data-lens/internal/report"
	"github.com/golovatskygroup/data-lens/internal/router"
	"github.com/golovatskygroup/data-lens/internal/sandbox"
	"github.com/golovatskygroup/data-lens/internal/session"
	"github.com/golovatskygroup/data-lens/internal/tool"
)

// Tool names as the model sees them.
const (
	ToolGeneralInfo = "general_info_report"
	ToolStatistics  = "statistics_report"
	ToolChart       = "chart"
	ToolQuery       = "query"
)

// headRows is how many rows of the dataset the routing prompt shows.
const headRows = 5

// Deps are the shared collaborators. Artifacts and Audit are optional.
type Deps struct {
	Generator llm.Generator
	Runner    *sandbox.Runner
	Artifacts *artifacts.Store
	Audit     *audit.Store
}

type Assistant struct {
	deps    Deps
	cfg     config.Config
	reports map[report.Kind]*report.Generator
	charts  *chart.Generator
	queries *query.Evaluator
	log     *zap.Logger
}

func New(cfg config.Config, deps Deps, log *zap.Logger) (*Assistant, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Generator == nil {
		return nil, apperr.Newf(apperr.KindConfig, "assistant", "a generator is required")
	}
	if deps.Runner == nil {
		deps.Runner = sandbox.NewRunner(sandbox.FromConfig(cfg.Sandbox), log.Named("sandbox"))
	}
	lang, err := sandbox.ParseLanguage(cfg.Query.Language)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "assistant", err)
	}

	a := &Assistant{
		deps:    deps,
		cfg:     cfg,
		reports: make(map[report.Kind]*report.Generator, len(report.Kinds)),
		charts: chart.NewGenerator(deps.Generator, deps.Runner, chart.Options{
			CheckColumns: cfg.Chart.CheckColumns,
			SampleRows:   cfg.Chart.SampleRows,
		}, log.Named("chart")),
		queries: query.NewEvaluator(deps.Runner, lang, log.Named("query")),
		log:     log,
	}
	for _, k := range report.Kinds {
		g, err := report.NewGenerator(k, deps.Generator, log.Named("report"))
		if err != nil {
			return nil, err
		}
		a.reports[k] = g
	}
	return a, nil
}

// Answer is what a routed question produced.
type Answer struct {
	Text       string           `json:"text"`
	Tool       string           `json:"tool,omitempty"`
	DecisionID string           `json:"decision_id"`
	Attempts   int              `json:"attempts"`
	Artifacts  []artifacts.Item `json:"artifacts,omitempty"`
}

// Tools builds the registry for one session. Every tool is read-only and
// returns directly.
func (a *Assistant) Tools(s *session.Session) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	descs := []tool.Descriptor{
		{
			Name: ToolGeneralInfo,
			Description: "Use esta ferramenta sempre que o usuário solicitar informações gerais sobre o dataframe, " +
				"incluindo número de colunas e linhas, nomes das colunas e seus tipos de dados, contagem de dados nulos " +
				"e duplicados para dar um panorama geral sobre o arquivo.",
			ReturnDirect: true,
			Invoke:       a.reportTool(s, report.GeneralInfo),
		},
		{
			Name: ToolStatistics,
			Description: "Use esta ferramenta sempre que o usuário solicitar um resumo estatístico completo e descritivo " +
				"da base de dados, incluindo várias estatísticas (média, desvio padrão, mínimo, máximo etc.). " +
				"Não utilize esta ferramenta para calcular uma única métrica como 'qual é a média de X' ou " +
				"'qual a correlação das variáveis'. Nesses casos, use a ferramenta query.",
			ReturnDirect: true,
			Invoke:       a.reportTool(s, report.Statistics),
		},
		{
			Name: ToolChart,
			Description: "Use esta ferramenta sempre que o usuário solicitar um gráfico a partir de um dataframe `df` " +
				"com base em uma instrução do usuário (plot, gráfico, visualização). A entrada deve ser a pergunta do usuário.",
			ReturnDirect: true,
			Invoke:       a.chartTool(s),
		},
		{
			Name: ToolQuery,
			Description: fmt.Sprintf("Use esta ferramenta sempre que o usuário solicitar cálculos, consultas ou "+
				"transformações específicas usando %s sobre o dataframe `df`, como média de uma coluna, contagem "+
				"de valores ou correlação. A entrada deve ser uma expressão que usa `df`.", a.queryDialect()),
			ReturnDirect: true,
			Invoke:       a.queryTool(s),
		},
	}
	for _, d := range descs {
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (a *Assistant) queryDialect() string {
	if a.queries.Language() == sandbox.LanguageGo {
		return "Go (df.Mean(\"coluna\"), df.Corr(\"a\", \"b\"), ...)"
	}
	return "JavaScript (df.mean('coluna'), df.corr('a', 'b'), ...)"
}

func (a *Assistant) reportTool(s *session.Session, kind report.Kind) tool.InvokeFunc {
	gen := a.reports[kind]
	return func(ctx context.Context, in tool.Input) (tool.Output, error) {
		text, err := gen.Generate(ctx, in.Question, s.Frame.Summary())
		if err != nil {
			return tool.Output{}, err
		}
		s.SetReport(report.Report{Kind: kind, Text: text})
		return tool.Output{
			Text: text,
			Attachments: []tool.Attachment{{
				Name: kind.Filename(),
				MIME: report.MIME,
				Data: []byte(text),
			}},
		}, nil
	}
}

func (a *Assistant) chartTool(s *session.Session) tool.InvokeFunc {
	return func(ctx context.Context, in tool.Input) (tool.Output, error) {
		res, err := a.charts.Generate(ctx, in.Question, s.Frame)
		if err != nil {
			return tool.Output{}, err
		}
		text := res.Figure.Title.Text
		if text == "" {
			text = "Gráfico gerado."
		}
		return tool.Output{
			Text: text,
			Attachments: []tool.Attachment{
				{Name: "grafico.html", MIME: "text/html", Data: []byte(res.HTML)},
				{Name: "grafico.json", MIME: "application/json", Data: res.Option},
				{Name: "grafico.js", MIME: "text/javascript", Data: []byte(res.Code)},
			},
		}, nil
	}
}

func (a *Assistant) queryTool(s *session.Session) tool.InvokeFunc {
	return func(ctx context.Context, in tool.Input) (tool.Output, error) {
		text, err := a.queries.Evaluate(ctx, s.Frame, in.Question)
		if err != nil {
			return tool.Output{}, err
		}
		return tool.Output{Text: text}, nil
	}
}

func (a *Assistant) router(s *session.Session, reg *tool.Registry) *router.Router {
	opts := router.Options{
		DatasetHead:   s.Frame.HeadMarkdown(headRows),
		MaxIterations: a.cfg.Router.MaxIterations,
	}
	if a.deps.Audit != nil {
		opts.Recorder = audit.SessionRecorder{Store: a.deps.Audit, SessionID: s.ID}
	}
	return router.New(a.deps.Generator, reg, opts, a.log.Named("router").With(zap.String("session", s.ID)))
}

// Ask routes question to one tool. Requests on the same session run one at
// a time.
func (a *Assistant) Ask(ctx context.Context, s *session.Session, question string) (*Answer, error) {
	var ans *Answer
	err := s.Do(ctx, func(ctx context.Context) error {
		reg, err := a.Tools(s)
		if err != nil {
			return err
		}
		res, err := a.router(s, reg).Route(ctx, question)
		if err != nil {
			return err
		}
		ans = &Answer{
			Text:       res.Output.Text,
			Tool:       res.Decision.Tool,
			DecisionID: res.Decision.ID,
			Attempts:   res.Decision.Attempts,
		}
		ans.Artifacts, err = a.store(s, res.Output.Attachments)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ans, nil
}

// QuickReport runs the quick action for kind: the canned question goes
// through the router like any other, and the stored report is returned.
func (a *Assistant) QuickReport(ctx context.Context, s *session.Session, kind report.Kind) (report.Report, *Answer, error) {
	ans, err := a.Ask(ctx, s, kind.QuickQuestion())
	if err != nil {
		return report.Report{}, nil, err
	}
	r, ok := s.Report(kind)
	if !ok || ans.Tool != reportTool(kind) {
		return report.Report{}, ans, apperr.Newf(apperr.KindRoutingParse, "quick report",
			"%q was routed to %q instead of the %s report", kind.QuickQuestion(), ans.Tool, kind)
	}
	return r, ans, nil
}

func reportTool(kind report.Kind) string {
	switch kind {
	case report.GeneralInfo:
		return ToolGeneralInfo
	case report.Statistics:
		return ToolStatistics
	}
	return ""
}

func (a *Assistant) store(s *session.Session, atts []tool.Attachment) ([]artifacts.Item, error) {
	if a.deps.Artifacts == nil || len(atts) == 0 {
		return nil, nil
	}
	out := make([]artifacts.Item, 0, len(atts))
	for _, att := range atts {
		it, err := a.deps.Artifacts.StoreBytes(s.ID, att.Name, att.MIME, att.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, nil
}
