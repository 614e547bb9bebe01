package router

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/golovatskygroup/data-lens/internal/tool"
)

var promptTemplate = template.Must(template.New("react").Parse(`Você é um assistente que sempre responde em português.

Você tem acesso a um dataframe chamado ` + "`df`" + `.
Aqui estão as primeiras linhas do DataFrame:

{{.Head}}

Responda as seguintes perguntas da melhor forma possível.

Para isso, você tem acesso as seguintes ferramentas:

{{.Tools}}

Use o seguinte formato:

Question: a pergunta de entrada que você deve responder
Thought: você deve sempre pensar no que fazer
Action: a ação a ser tomada, deve ser um das [{{.ToolNames}}]
Action Input: a entrada da ação
Observation: o resultado da ação
...(este Thought/Action/Action Input/Observation pode se repetir N vezes)
Thought: Agora eu sei a resposta final
Final Answer: a resposta final para a pergunta de entrada original.
Quando usar a ferramenta query: formate sua resposta final de forma clara, em lista, com valores separados por virgulas e duas casas decimais sempre que apresentar numeros.

Comece!

Question: {{.Question}}
Thought: {{.Scratchpad}}`))

type promptData struct {
	Head       string
	Tools      string
	ToolNames  string
	Question   string
	Scratchpad string
}

func buildPrompt(head string, tools []tool.Descriptor, question string, steps []Step) (string, error) {
	lines := make([]string, len(tools))
	names := make([]string, len(tools))
	for i, t := range tools {
		lines[i] = fmt.Sprintf("%s: %s", t.Name, t.Description)
		names[i] = t.Name
	}

	var sb strings.Builder
	err := promptTemplate.Execute(&sb, promptData{
		Head:       head,
		Tools:      strings.Join(lines, "\n"),
		ToolNames:  strings.Join(names, ", "),
		Question:   question,
		Scratchpad: scratchpad(steps),
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// scratchpad replays earlier turns so the model continues where it stopped.
func scratchpad(steps []Step) string {
	var sb strings.Builder
	for _, s := range steps {
		sb.WriteString(s.Log)
		sb.WriteString("\nObservation: ")
		sb.WriteString(s.Observation)
		sb.WriteString("\nThought: ")
	}
	return sb.String()
}
