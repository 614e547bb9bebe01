package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/golovatskygroup/data-lens/internal/apperr"
	"github.com/golovatskygroup/data-lens/internal/artifacts"
	"github.com/golovatskygroup/data-lens/internal/assistant"
	"github.com/golovatskygroup/data-lens/internal/audit"
	"github.com/golovatskygroup/data-lens/internal/dataset"
	"github.com/golovatskygroup/data-lens/internal/report"
	"github.com/golovatskygroup/data-lens/internal/session"
)

const previewRows = 5

type sessionView struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Rows    int                  `json:"rows"`
	Cols    int                  `json:"cols"`
	Columns []dataset.ColumnType `json:"columns"`
	Head    []map[string]any     `json:"head"`
	Reports []report.Kind        `json:"reports"`
}

func viewOf(s *session.Session) sessionView {
	rows, cols := s.Frame.Shape()
	v := sessionView{
		ID:      s.ID,
		Name:    s.Frame.Name(),
		Rows:    rows,
		Cols:    cols,
		Columns: s.Frame.ColumnTypes(),
		Head:    s.Frame.Head(previewRows),
		Reports: []report.Kind{},
	}
	for _, r := range s.Reports() {
		v.Reports = append(v.Reports, r.Kind)
	}
	return v
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.writeError(w, apperr.New(apperr.KindUpload, "upload", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, apperr.New(apperr.KindUpload, "upload", err))
		return
	}
	defer file.Close()

	f, err := dataset.Read(file, header.Filename, dataset.FormatFromName(header.Filename), dataset.Options{})
	if err != nil {
		s.writeError(w, err)
		return
	}
	sess := s.sessions.Create(f)
	s.log.Info("dataset uploaded", zap.String("session", sess.ID), zap.Stringer("dataset", f))
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.sessions.Delete(id) {
		s.writeError(w, session.ErrNotFound)
		return
	}
	if s.store != nil {
		s.store.DeleteSession(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

type reportView struct {
	Kind     report.Kind `json:"kind"`
	Title    string      `json:"title"`
	Text     string      `json:"text"`
	Download string      `json:"download"`
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	kind, err := report.ParseKind(r.PathValue("kind"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rep, _, err := s.asst.QuickReport(r.Context(), sess, kind)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportView{
		Kind:     rep.Kind,
		Title:    rep.Kind.Title(),
		Text:     rep.Text,
		Download: fmt.Sprintf("/api/sessions/%s/reports/%s/download", sess.ID, rep.Kind),
	})
}

func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	kind, err := report.ParseKind(r.PathValue("kind"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rep, ok := sess.Report(kind)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: fmt.Sprintf("no %s report generated yet", kind)})
		return
	}
	w.Header().Set("Content-Type", report.MIME+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", kind.Filename()))
	_, _ = io.WriteString(w, rep.Text)
}

type askRequest struct {
	Question string `json:"question"`
}

type answerView struct {
	*assistant.Answer
	ChartURL string `json:"chart_url,omitempty"`
}

func (s *Server) decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return "", false
	}
	q := strings.TrimSpace(req.Question)
	if q == "" {
		badRequest(w, "question is required")
		return "", false
	}
	return q, true
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}
	ans, err := s.asst.Ask(r.Context(), sess, q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answerView{Answer: ans, ChartURL: chartURL(ans)})
}

// handleChart is handleAsk for the chart box: the request is routed like any
// question, and an answer without a chart is reported as such.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q, ok := s.decodeQuestion(w, r)
	if !ok {
		return
	}
	ans, err := s.asst.Ask(r.Context(), sess, q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	u := chartURL(ans)
	if u == "" {
		s.writeError(w, apperr.New(apperr.KindRoutingParse, "chart",
			errors.New("the request did not produce a chart; rephrase it as a visualization")))
		return
	}
	writeJSON(w, http.StatusOK, answerView{Answer: ans, ChartURL: u})
}

func chartURL(ans *assistant.Answer) string {
	if ans == nil || ans.Tool != assistant.ToolChart {
		return ""
	}
	for _, it := range ans.Artifacts {
		if it.Mime == "text/html" {
			return artifacts.Path(it.ID)
		}
	}
	return ""
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.audit == nil {
		writeJSON(w, http.StatusOK, []audit.Entry{})
		return
	}
	entries, err := s.audit.List(r.Context(), sess.ID, 50)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.NotFound(w, r)
		return
	}
	b, it, ok := s.store.Read(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	ct := it.Mime
	if strings.HasPrefix(ct, "text/") || ct == "application/json" {
		ct += "; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	if r.URL.Query().Get("download") != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", it.Name))
	}
	_, _ = w.Write(b)
}
