// Package report produces the narrative dataset reports.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/llm"
)

// Kind identifies a report type.
type Kind string

const (
	GeneralInfo Kind = "general_info"
	Statistics  Kind = "statistics"
)

// Kinds lists every report kind in display order.
var Kinds = []Kind{GeneralInfo, Statistics}

// MIME is the content type of every report download.
const MIME = "text/markdown"

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.TrimSpace(s)) {
	case GeneralInfo:
		return GeneralInfo, nil
	case Statistics:
		return Statistics, nil
	}
	return "", fmt.Errorf("unknown report kind %q", s)
}

// Filename is the download name of a report.
func (k Kind) Filename() string {
	switch k {
	case GeneralInfo:
		return "relatorio_informacoes_gerais.md"
	case Statistics:
		return "relatorio_estatisticas_descritivas.md"
	}
	return string(k) + ".md"
}

// Title is the button and section label.
func (k Kind) Title() string {
	switch k {
	case GeneralInfo:
		return "Relatório de informações gerais"
	case Statistics:
		return "Relatório de estatísticas descritivas"
	}
	return string(k)
}

// QuickQuestion is the question a quick action routes for this kind.
func (k Kind) QuickQuestion() string {
	switch k {
	case GeneralInfo:
		return "Quero um relatório com informações sobre os dados"
	case Statistics:
		return "Quero um relatório de estatísticas descritivas"
	}
	return ""
}

type Report struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

var templates = map[Kind]*template.Template{
	GeneralInfo: template.Must(template.New("general_info").Parse(`
Você é um analista de dados encarregado de apresentar um resumo informativo sobre um DataFrame
a partir de uma {{.Question}} feita pelo usuário.

A seguir, você encontrará as informações gerais da base de dados:

================ INFORMAÇÕES DO DATAFRAME ================

Dimensões: {{.Summary.FormatShape}}
Colunas e tipos de dados:
{{.Summary.FormatTypes}}
Valores nulos por colunas:
{{.Summary.FormatNulls}}
Strings 'nan' (qualquer capitalização) por coluna:
{{.Summary.FormatNaNLiterals}}
Linhas duplicadas: {{.Summary.Duplicates}}

==========================================================

Com base nessas informações, escreva um resumo claro e organizado contendo:

1. Um título: ### Relatório de informações gerais sobre o dataset
2. A dimensão total do DataFrame;
3. A descrição de cada coluna (incluindo nome, tipo de dado e o que aquela coluna é)
4. As colunas que contém dados nulos, com a respectiva quantidade.
5. As colunas que contém string 'nan', com a respectiva quantidade.
6. E a existência (ou não) de dados duplicados.
7. Escreva um parágrafo sobre análises que podem ser feitas com esses dados.
8. Escreva um parágrafo sobre tratamentos que podem ser feitos nos dados.
`)),
	Statistics: template.Must(template.New("statistics").Parse(`
Você é um analista de dados encarregado de interpretar resultados estatísticos de uma base de dados
a partir de uma {{.Question}} feita pelo usuário.

A seguir, você encontrará as estatísticas descritivas da base de dados:

================ ESTATÍSTICAS DESCRITIVAS ================

{{.Summary.FormatDescribe}}

==========================================================

Com base nesses dados, elabore um resumo explicativo com linguagem clara, acessível e fluida, destacando
os principais pontos dos resultados. Inclua:

1. Um título: ### Relatório de estatísticas descritivas
2. Uma visão geral das estatísticas das colunas numéricas
3. Um parágrafo sobre cada uma das colunas, comentando informações sobre seus valores.
4. Identificação de possíveis outliers com base nos valores mínimo e máximo
5. Recomendações de próximos passos na análise com base nos padrões identificados
`)),
}

// Generator writes one kind of report. It is stateless; the same question
// and summary under a deterministic model yield the same text.
type Generator struct {
	kind Kind
	gen  llm.Generator
	log  *zap.Logger
}

func NewGenerator(kind Kind, gen llm.Generator, log *zap.Logger) (*Generator, error) {
	if _, ok := templates[kind]; !ok {
		return nil, fmt.Errorf("unknown report kind %q", kind)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{kind: kind, gen: gen, log: log}, nil
}

func (g *Generator) Kind() Kind { return g.kind }

// Prompt renders the fixed prompt for question and summary.
func (g *Generator) Prompt(question string, summary dataset.Summary) (string, error) {
	var sb strings.Builder
	err := templates[g.kind].Execute(&sb, map[string]any{
		"Question": question,
		"Summary":  summary,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Generate returns the model's text verbatim. Model failures are
// KindGeneration errors wrapping the cause.
func (g *Generator) Generate(ctx context.Context, question string, summary dataset.Summary) (string, error) {
	prompt, err := g.Prompt(question, summary)
	if err != nil {
		return "", apperr.New(apperr.KindGeneration, "report prompt", err)
	}
	text, err := g.gen.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, apperr.Generation) {
			return "", err
		}
		return "", apperr.New(apperr.KindGeneration, string(g.kind), err)
	}
	g.log.Debug("report generated", zap.String("kind", string(g.kind)), zap.Int("chars", len(text)))
	return text, nil
}
