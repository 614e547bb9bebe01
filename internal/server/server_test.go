package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/artifacts"
	"github.com/golovatskygroup/data-lens/internal/assistant"
	"github.com/golovatskygroup/data-lens/internal/config"
	"github.com/golovatskygroup/data-lens/internal/llm"
	"github.com/golovatskygroup/data-lens/internal/report"
	"github.com/golovatskygroup/data-lens/internal/sandbox"
	"github.com/golovatskygroup/data-lens/internal/session"
)

const people = "nome,idade\nAna,30\nBruno,\nAna,30\nCarla,25\nDavi,40\n"

const barCode = `sns.set_theme();
plt.figure({figsize: [8, 4]});
sns.barplot({data: df, x: "nome", y: "idade"});
plt.title("Idade por nome", {loc: "left", pad: 20, fontsize: 14});
plt.show();`

// routes maps a question to the "Action / Action Input" the model replies with.
var routes = map[string][2]string{
	"informações gerais":               {assistant.ToolGeneralInfo, "informações gerais"},
	report.GeneralInfo.QuickQuestion(): {assistant.ToolGeneralInfo, "informações gerais"},
	report.Statistics.QuickQuestion():  {assistant.ToolStatistics, "estatísticas"},
	"qual a média de idade?":           {assistant.ToolQuery, "df.mean('idade')"},
	"plot idade por nome":              {assistant.ToolChart, "plot idade por nome"},
	"histograma do peso":               {assistant.ToolChart, "histograma do peso"},
}

func stubModel() llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, prompt string, _ ...string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Você é um assistente"):
			i := strings.LastIndex(prompt, "Question: ")
			q := strings.TrimSpace(strings.SplitN(prompt[i+len("Question: "):], "\n", 2)[0])
			r, ok := routes[q]
			if !ok {
				return "Thought: Agora eu sei a resposta final\nFinal Answer: não sei", nil
			}
			return "Action: " + r[0] + "\nAction Input: " + r[1], nil
		case strings.Contains(prompt, "Código JavaScript:"):
			if strings.Contains(prompt, "peso") {
				return `sns.histplot({data: df, x: "peso"}); plt.show();`, nil
			}
			return barCode, nil
		default:
			return prompt, nil
		}
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := artifacts.New(artifacts.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	sbx := sandbox.DefaultConfig()
	sbx.Timeout = 2 * time.Second
	asst, err := assistant.New(config.Default(), assistant.Deps{
		Generator: stubModel(),
		Runner:    sandbox.NewRunner(sbx, nil),
		Artifacts: store,
	}, nil)
	require.NoError(t, err)

	srv := New(config.Default().Server, asst, session.NewManager(), Options{Artifacts: store}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func upload(t *testing.T, ts *httptest.Server, name, content string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/api/sessions", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func newSession(t *testing.T, ts *httptest.Server) sessionView {
	t.Helper()
	resp := upload(t, ts, "pessoas.csv", people)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var v sessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	var body io.Reader = http.NoBody
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	resp, err := http.Post(url, "application/json", body)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestUploadCreatesSession(t *testing.T) {
	ts := newTestServer(t)
	v := newSession(t, ts)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "pessoas.csv", v.Name)
	assert.Equal(t, 5, v.Rows)
	assert.Equal(t, 2, v.Cols)
	assert.Len(t, v.Head, 5)

	resp, err := http.Get(ts.URL + "/api/sessions/" + v.ID)
	require.NoError(t, err)
	got := decode[sessionView](t, resp)
	assert.Equal(t, v.ID, got.ID)
	assert.Empty(t, got.Reports)
}

func TestUploadEmptyFileIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	resp := upload(t, ts, "vazio.csv", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, apperr.KindUpload, body.Kind)
	assert.True(t, body.Recoverable)
}

func TestUnknownSession(t *testing.T) {
	ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/api/sessions/nope/ask", map[string]string{"question": "oi"})
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReportAndDownload(t *testing.T) {
	ts := newTestServer(t)
	v := newSession(t, ts)

	resp, err := http.Get(ts.URL + "/api/sessions/" + v.ID + "/reports/general_info/download")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postJSON(t, ts.URL+"/api/sessions/"+v.ID+"/reports/general_info", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rep := decode[reportView](t, resp)
	assert.Equal(t, report.GeneralInfo, rep.Kind)
	assert.Contains(t, rep.Text, "Linhas duplicadas: 1")

	resp, err = http.Get(ts.URL + rep.Download)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="relatorio_informacoes_gerais.md"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/markdown"))
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, rep.Text, string(b))
}

func TestUnknownReportKind(t *testing.T) {
	ts := newTestServer(t)
	v := newSession(t, ts)
	resp := postJSON(t, ts.URL+"/api/sessions/"+v.ID+"/reports/resumo", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAskQuery(t *testing.T) {
	ts := newTestServer(t)
	v := newSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+v.ID+"/ask", map[string]string{"question": "qual a média de idade?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ans := decode[map[string]any](t, resp)
	assert.Equal(t, "31.25", ans["text"])
	assert.Equal(t, assistant.ToolQuery, ans["tool"])

	resp = postJSON(t, ts.URL+"/api/sessions/"+v.ID+"/ask", map[string]string{"question": " "})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestChartPage(t *testing.T) {
	ts := newTestServer(t)
	v := newSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+v.ID+"/charts", map[string]string{"question": "plot idade por nome"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ans := decode[map[string]any](t, resp)
	chartURL, _ := ans["chart_url"].(string)
	require.True(t, strings.HasPrefix(chartURL, "/artifacts/"), chartURL)

	resp, err := http.Get(ts.URL + chartURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))

	doc, err := html.Parse(resp.Body)
	require.NoError(t, err)

	div := findByID(doc, "chart")
	require.NotNil(t, div)
	assert.Equal(t, "1", attr(div, "data-series"))

	script := findByID(doc, "chart-option")
	require.NotNil(t, script)
	require.NotNil(t, script.FirstChild)
	var option map[string]any
	require.NoError(t, json.Unmarshal([]byte(script.FirstChild.Data), &option))
	assert.Contains(t, option, "series")
}

func TestChartMissingColumn(t *testing.T) {
	ts := newTestServer(t)
	v := newSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+v.ID+"/charts", map[string]string{"question": "histograma do peso"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, apperr.KindEvaluation, body.Kind)
	assert.True(t, body.Recoverable)
	assert.Contains(t, body.Error, "peso")
}

func TestChartEndpointRequiresChart(t *testing.T) {
	ts := newTestServer(t)
	v := newSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+v.ID+"/charts", map[string]string{"question": "qual a média de idade?"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Equal(t, apperr.KindRoutingParse, body.Kind)
}

func TestIndexPage(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	doc, err := html.Parse(resp.Body)
	require.NoError(t, err)

	var title string
	var kinds []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		if n.Data == "title" && n.FirstChild != nil {
			title = n.FirstChild.Data
		}
		if n.Data == "button" && attr(n, "class") == "report" {
			kinds = append(kinds, attr(n, "data-kind"))
		}
	})
	assert.Equal(t, "Assistente de análise de dados com IA", title)
	assert.Equal(t, []string{"general_info", "statistics"}, kinds)
	assert.NotNil(t, findByID(doc, "upload-form"))
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	v := newSession(t, ts)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+v.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/sessions/" + v.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(apperr.Newf(apperr.KindUpload, "x", "bad")))
	assert.Equal(t, http.StatusBadGateway, statusFor(apperr.Newf(apperr.KindGeneration, "x", "down")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(apperr.Newf(apperr.KindRoutingParse, "x", "?")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(apperr.Newf(apperr.KindConfig, "x", "key")))
	assert.Equal(t, http.StatusNotFound, statusFor(session.ErrNotFound))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(context.DeadlineExceeded))
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findByID(doc *html.Node, id string) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
		}
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
