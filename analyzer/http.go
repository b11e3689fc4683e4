package analyzer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/alttext/horosafe"
	"github.com/hazyhaar/alttext/kit"
	"github.com/hazyhaar/alttext/layout"
	"github.com/hazyhaar/alttext/observability"
	"github.com/hazyhaar/alttext/report"
	"github.com/hazyhaar/alttext/shield"
)

// Handler returns the HTTP API behind the shield middleware stack.
func (a *Analyzer) Handler() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(a.cfg.HTTP.MaxBody) {
		r.Use(mw)
	}
	a.RegisterHTTP(r)
	return r
}

// RegisterHTTP mounts the API routes on r:
//
//	POST /api/analyze         layout XML (or JSON {markup, source}) → report, ?format=json|html|md
//	POST /api/infer           layout.Element JSON → element result
//	GET  /api/rules           rule table statistics
//	POST /api/rules/reload    reload rule tables
//	GET  /api/runs            history, ?limit=N
//	GET  /api/runs/{id}       one stored analysis, ?format=json|html|md
//	DELETE /api/runs/{id}
//	GET  /api/metrics         recorded metrics, ?name=&since=1h&limit=N
//	GET  /health
func (a *Analyzer) RegisterHTTP(r chi.Router) {
	r.Get("/health", a.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", a.handleAnalyze)
		r.Post("/infer", a.handleInfer)
		r.Get("/rules", a.handleRules)
		r.Post("/rules/reload", a.handleReload)
		r.Get("/runs", a.handleRuns)
		r.Get("/runs/{id}", a.handleRun)
		r.Delete("/runs/{id}", a.handleDeleteRun)
		r.Get("/metrics", a.handleMetrics)
	})
}

func (a *Analyzer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"rules_version": a.rules.Version(),
	})
}

type analyzeBody struct {
	Markup string `json:"markup"`
	Source string `json:"source"`
}

func (a *Analyzer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	body, err := horosafe.LimitedReadAll(r.Body, a.cfg.HTTP.MaxBody)
	if err != nil {
		writeError(w, bodyStatus(err), err)
		return
	}

	source := r.URL.Query().Get("source")
	markup := body
	if isJSON(r) {
		var req analyzeBody
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
		markup = []byte(req.Markup)
		if req.Source != "" {
			source = req.Source
		}
	}
	if len(bytes.TrimSpace(markup)) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("empty layout"))
		return
	}

	ctx := kit.WithTransport(r.Context(), kit.TransportHTTP)
	an, err := a.Analyze(ctx, source, markup)
	if err != nil {
		shield.GetLogger(ctx).Error("analyzer: http analyze failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.writePage(w, format, an)
}

func (a *Analyzer) handleInfer(w http.ResponseWriter, r *http.Request) {
	var el layout.Element
	if err := json.NewDecoder(r.Body).Decode(&el); err != nil {
		writeError(w, bodyStatus(err), fmt.Errorf("invalid element: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, a.InferElement(el))
}

func (a *Analyzer) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.RulesInfo())
}

func (a *Analyzer) handleReload(w http.ResponseWriter, r *http.Request) {
	info, err := a.Reload(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *Analyzer) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.History(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, historyStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *Analyzer) handleRun(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	an, err := a.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, historyStatus(err), err)
		return
	}
	a.writePage(w, format, an)
}

func (a *Analyzer) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if err := a.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, historyStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Analyzer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	q := observability.Query{
		Name:  r.URL.Query().Get("name"),
		Limit: queryInt(r, "limit", 100),
	}
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid since: %w", err))
			return
		}
		q.Since = time.Now().Add(-d)
	}
	metrics, err := a.Metrics(r.Context(), q)
	if err != nil {
		writeError(w, historyStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"metrics": metrics})
}

func (a *Analyzer) writePage(w http.ResponseWriter, format report.Format, an *Analysis) {
	if format == report.FormatJSON {
		writeJSON(w, http.StatusOK, an)
		return
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, format, an.Page()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	ct := "text/html; charset=utf-8"
	if format == report.FormatMarkdown {
		ct = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, &buf)
}

func historyStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoHistory):
		return http.StatusNotImplemented
	case errors.Is(err, ErrRunNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func bodyStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) || errors.Is(err, horosafe.ErrTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// queryInt returns a positive integer query parameter, or def.
func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
