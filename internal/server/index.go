package server

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/report"
)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Assistente de análise de dados com IA</title>
<style>
body { font-family: sans-serif; max-width: 860px; margin: 2rem auto; padding: 0 1rem; }
section { border-top: 1px solid #ddd; padding: 1rem 0; }
pre { white-space: pre-wrap; background: #f6f6f6; padding: .75rem; }
iframe { width: 100%; height: 480px; border: 0; }
.error { color: #b00020; }
</style>
</head>
<body>
<h1>Assistente de análise de dados com IA</h1>
<p>Envie um arquivo CSV ou XLSX para gerar relatórios automáticos, fazer perguntas simples sobre os dados e criar gráficos com base em linguagem natural.</p>

<section id="upload">
<h2>Faça upload do seu arquivo</h2>
<form id="upload-form">
<input type="file" name="file" id="file" accept=".csv,.tsv,.txt,.xlsx">
<button type="submit">Enviar</button>
</form>
<div id="preview"></div>
</section>

<section id="quick-actions">
<h2>Ações Rápidas</h2>
{{range .Reports}}<button type="button" class="report" data-kind="{{.Kind}}">{{.Title}}</button>
{{end}}<div id="report-output"></div>
</section>

<section id="questions">
<h2>Perguntas sobre os dados</h2>
<input type="text" id="question" size="60" placeholder="Qual é a média do tempo de entrega?">
<button type="button" id="ask">Responder pergunta</button>
<div id="answer"></div>
</section>

<section id="charts">
<h2>Criar gráfico com base em uma pergunta</h2>
<input type="text" id="chart-request" size="60" placeholder="Crie um gráfico da média de tempo de entrega por clima.">
<button type="button" id="chart">Gerar gráfico</button>
<div id="chart-output"></div>
</section>

<script>
let sessionID = null;

async function call(method, url, body) {
  const opts = {method: method};
  if (body instanceof FormData) {
    opts.body = body;
  } else if (body !== undefined) {
    opts.headers = {"Content-Type": "application/json"};
    opts.body = JSON.stringify(body);
  }
  const resp = await fetch(url, opts);
  const data = await resp.json();
  if (!resp.ok) {
    throw new Error(data.error || resp.statusText);
  }
  return data;
}

function show(id, html) { document.getElementById(id).innerHTML = html; }
function escape(s) { const d = document.createElement("div"); d.textContent = s; return d.innerHTML; }
function fail(id, err) { show(id, '<p class="error">' + escape(err.message) + '</p>'); }

document.getElementById("upload-form").addEventListener("submit", async (ev) => {
  ev.preventDefault();
  try {
    const s = await call("POST", "/api/sessions", new FormData(ev.target));
    sessionID = s.id;
    const cols = s.columns.map(c => escape(c.name) + " (" + c.dtype + ")").join(", ");
    show("preview", "<p>Arquivo carregado com sucesso! " + s.rows + " linhas, " + s.cols + " colunas: " + cols + "</p>");
  } catch (err) { fail("preview", err); }
});

document.querySelectorAll("button.report").forEach(btn => btn.addEventListener("click", async () => {
  show("report-output", "<p>Gerando relatório</p>");
  try {
    const r = await call("POST", "/api/sessions/" + sessionID + "/reports/" + btn.dataset.kind);
    show("report-output", "<h3>" + escape(r.title) + "</h3><pre>" + escape(r.text) + '</pre><a href="' + r.download + '">Baixar relatório</a>');
  } catch (err) { fail("report-output", err); }
}));

document.getElementById("ask").addEventListener("click", async () => {
  show("answer", "<p>Analisando os dados</p>");
  try {
    const a = await call("POST", "/api/sessions/" + sessionID + "/ask", {question: document.getElementById("question").value});
    let html = "<pre>" + escape(a.text) + "</pre>";
    if (a.chart_url) { html += '<iframe src="' + a.chart_url + '"></iframe>'; }
    show("answer", html);
  } catch (err) { fail("answer", err); }
});

document.getElementById("chart").addEventListener("click", async () => {
  show("chart-output", "<p>Gerando o gráfico</p>");
  try {
    const a = await call("POST", "/api/sessions/" + sessionID + "/charts", {question: document.getElementById("chart-request").value});
    show("chart-output", '<iframe src="' + a.chart_url + '"></iframe>');
  } catch (err) { fail("chart-output", err); }
});
</script>
</body>
</html>
`))

type reportButton struct {
	Kind  report.Kind
	Title string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	buttons := make([]reportButton, 0, len(report.Kinds))
	for _, k := range report.Kinds {
		buttons = append(buttons, reportButton{Kind: k, Title: k.Title()})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, map[string]any{"Reports": buttons}); err != nil {
		s.log.Error("render index", zap.Error(err))
	}
}
