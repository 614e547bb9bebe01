package chart

import (
	"encoding/json"
	"strings"
	"text/template"

	"github.com/golovatskygroup/data-lens/internal/dataset"
)

var promptTemplate = template.Must(template.New("chart").Parse(`
Você é uma especialista em visualização de dados. Sua tarefa é gerar **apenas código JavaScript** para plotar um gráfico com base na solicitação do usuário.

### Solicitação do usuário:
"{{.Request}}"

### Metadados do DataFrame:
{{.Columns}}

### Amostra dos dados ({{.SampleRows}} primeiras linhas):
{{.Sample}}

### Instruções obrigatórias:
1. Use apenas os objetos globais ` + "`df`, `plt` e `sns`" + `; não existe nenhum outro módulo disponível
2. Defina o tema com ` + "`sns.set_theme()`" + `
3. Certifique-se de que todas as colunas mencionadas na solicitação existem no DataFrame chamado ` + "`df`" + `
4. As funções do ` + "`sns`" + ` recebem um objeto de opções, por exemplo ` + "`sns.histplot({data: df, x: \"coluna\", bins: 20})`" + `
5. Escolha o tipo de gráfico adequado conforme a análise solicitada:
- **Distribuição de variáveis numéricas**: ` + "`histplot`, `kdeplot`, `boxplot` ou `violinplot`" + `
- **Distribuição de variáveis categóricas**: ` + "`countplot`" + `
- **Comparação entre categorias**: ` + "`barplot`" + `
- **Relação entre variáveis**: ` + "`scatterplot` ou `lineplot`" + `
- **Séries temporais**: ` + "`lineplot`" + `, com o eixo X contendo as datas
6. Configure o tamanho do gráfico com ` + "`plt.figure({figsize: [8, 4]})`" + `
7. Adicione título e rótulos apropriados aos eixos com ` + "`plt.xlabel` e `plt.ylabel`" + `
8. Posicione o título à esquerda com ` + "`plt.title(\"...\", {loc: \"left\", pad: 20, fontsize: 14})`" + `
9. Mantenha os ticks do eixo X sem rotação com ` + "`plt.xticks({rotation: 0})`" + `
10. Remova as bordas superior e direita do gráfico com ` + "`sns.despine()`" + `
11. Finalize o código com ` + "`plt.show()`" + `

Retorne APENAS o código JavaScript, sem nenhum texto adicional ou explicação.

Código JavaScript:
`))

// BuildPrompt renders the code-generation prompt for request over f.
func BuildPrompt(request string, f *dataset.Frame, sampleRows int) (string, error) {
	if sampleRows <= 0 {
		sampleRows = 3
	}
	sample, err := json.Marshal(f.Head(sampleRows))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	err = promptTemplate.Execute(&sb, map[string]any{
		"Request":    request,
		"Columns":    f.ColumnInfo(),
		"SampleRows": sampleRows,
		"Sample":     string(sample),
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
