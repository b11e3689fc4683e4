// CLAUDE:SUMMARY Orchestrates parse → infer → report for one layout, with history, hot reload and MCP/HTTP surfaces.
// Package analyzer runs the accessibility pipeline over Android layouts:
//
//	markup → layout.Parse → infer.Engine (one rules snapshot) → report.Build
//
// It owns the rule table store, the optional SQLite history (with its
// metrics timeseries) and the rule watcher, and exposes the pipeline over MCP (RegisterMCP) and HTTP
// (RegisterHTTP).
//
// Usage:
//
//	a, err := analyzer.New(cfg, logger)
//	defer a.Close()
//	go a.Watch(ctx)
//	res, err := a.Analyze(ctx, "activity_main.xml", markup)
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/alttext/analyzer/internal/store"
	"github.com/hazyhaar/alttext/dbopen"
	"github.com/hazyhaar/alttext/horosafe"
	"github.com/hazyhaar/alttext/idgen"
	"github.com/hazyhaar/alttext/infer"
	"github.com/hazyhaar/alttext/layout"
	"github.com/hazyhaar/alttext/observability"
	"github.com/hazyhaar/alttext/report"
	"github.com/hazyhaar/alttext/rules"
	"github.com/hazyhaar/alttext/watch"
)

var (
	// ErrNoHistory is returned by history operations when no database is
	// configured.
	ErrNoHistory = errors.New("analyzer: history disabled")
	// ErrRunNotFound is returned for an unknown run id.
	ErrRunNotFound = store.ErrNotFound
	// ErrNoInputRoot is returned when a layout is requested by path but
	// Config.InputRoot is empty.
	ErrNoInputRoot = errors.New("analyzer: path access disabled")
)

// Analysis is the pipeline output for one layout.
type Analysis struct {
	RunID        string                 `json:"run_id"`
	Source       string                 `json:"source,omitempty"`
	CreatedAt    int64                  `json:"created_at"`
	RulesVersion int64                  `json:"rules_version"`
	Results      []report.ElementResult `json:"results"`
	Report       report.Report          `json:"report"`
}

// Page adapts a for the report renderers.
func (a *Analysis) Page() report.Page {
	return report.Page{RunID: a.RunID, Source: a.Source, Results: a.Results, Report: a.Report}
}

// RulesInfo describes the active rule snapshot.
type RulesInfo struct {
	Dir     string       `json:"dir"`
	Version int64        `json:"version"`
	Stats   rules.Stats  `json:"stats"`
	Watch   *watch.Stats `json:"watch,omitempty"`
}

// Analyzer is the pipeline orchestrator. Safe for concurrent use.
type Analyzer struct {
	cfg     *Config
	rules   *rules.Store
	store   *store.Store
	metrics *observability.Metrics
	watcher *watch.Watcher
	logger  *slog.Logger
	newID   idgen.Generator
}

// New loads the rule tables from cfg.RulesDir and, when cfg.DBPath is set,
// opens the history database and its metrics recorder. Missing or corrupt tables are logged and
// served empty.
func New(cfg *Config, logger *slog.Logger) (*Analyzer, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	a := &Analyzer{
		cfg:    cfg,
		rules:  rules.NewStore(cfg.RulesDir, logger),
		logger: logger,
		newID:  idgen.New,
	}
	if cfg.DBPath != "" {
		s, err := store.Open(cfg.DBPath, dbopen.WithSchema(observability.Schema))
		if err != nil {
			return nil, fmt.Errorf("analyzer: open history: %w", err)
		}
		a.store = s
		a.metrics = observability.NewMetrics(s.DB, observability.Options{Logger: logger})
	}
	a.watcher = watch.New(watch.Files(cfg.RulesDir, rules.Files()...), watch.Options{
		Interval: cfg.Watch.Interval,
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
	})
	return a, nil
}

// Close flushes pending metrics and releases the history database.
func (a *Analyzer) Close() error {
	if a.metrics != nil {
		a.metrics.Close()
	}
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Config returns the effective configuration.
func (a *Analyzer) Config() Config { return *a.cfg }

// Rules returns the rule table store.
func (a *Analyzer) Rules() *rules.Store { return a.rules }

// Analyze parses markup and infers every element against a single rules
// snapshot. Malformed markup is logged and yields an empty analysis. When
// history is enabled the analysis is stored; a storage failure is logged
// and does not fail the call.
func (a *Analyzer) Analyze(ctx context.Context, source string, markup []byte) (*Analysis, error) {
	start := time.Now()
	els, err := layout.ParseWithOptions(markup, layout.Options{AppContext: a.cfg.AppContext})
	if err != nil {
		var mal *layout.MalformedInputError
		if !errors.As(err, &mal) {
			return nil, fmt.Errorf("analyzer: parse: %w", err)
		}
		a.logger.Warn("analyzer: parse failed", "source", source, "line", mal.Line, "error", mal.Err)
		els = nil
	}

	version := a.rules.Version()
	engine := infer.New(a.rules.Current())

	results := make([]report.ElementResult, len(els))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)
	for i, el := range els {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = report.NewElementResult(el, engine.Infer(el))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyzer: analyze: %w", err)
	}

	an := &Analysis{
		RunID:        a.newID(),
		Source:       source,
		CreatedAt:    time.Now().UnixMilli(),
		RulesVersion: version,
		Results:      results,
		Report:       report.Build(results),
	}
	a.logger.Info("analyzer: analyzed",
		"run_id", an.RunID,
		"source", source,
		"elements", an.Report.Summary.TotalElements,
		"coverage", an.Report.Summary.CoveragePercentage,
	)
	a.persist(ctx, an)
	a.record(an, time.Since(start))
	return an, nil
}

func (a *Analyzer) record(an *Analysis, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}
	labels := map[string]string{"run_id": an.RunID}
	if an.Source != "" {
		labels["source"] = an.Source
	}
	now := time.Now()
	a.metrics.Record(observability.Metric{Name: observability.MetricAnalysisDurationMs, Timestamp: now, Value: float64(elapsed.Microseconds()) / 1000, Unit: "milliseconds", Labels: labels})
	a.metrics.Record(observability.Metric{Name: observability.MetricAnalysisElements, Timestamp: now, Value: float64(an.Report.Summary.TotalElements), Unit: "count", Labels: labels})
	a.metrics.Record(observability.Metric{Name: observability.MetricCoveragePercent, Timestamp: now, Value: an.Report.Summary.CoveragePercentage, Unit: "percent", Labels: labels})
}

func (a *Analyzer) persist(ctx context.Context, an *Analysis) {
	if a.store == nil {
		return
	}
	err := a.store.InsertRun(ctx, &store.Run{
		ID:           an.RunID,
		Source:       an.Source,
		CreatedAt:    an.CreatedAt,
		RulesVersion: an.RulesVersion,
		Report:       an.Report,
		Results:      an.Results,
	})
	if err != nil {
		a.logger.Error("analyzer: persist failed", "run_id", an.RunID, "error", err)
	}
}

// AnalyzeFile reads and analyzes the layout at path.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string) (*Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("analyzer: open layout: %w", err)
	}
	defer f.Close()
	markup, err := horosafe.LimitedReadAll(f, a.cfg.MaxInput)
	if err != nil {
		return nil, fmt.Errorf("analyzer: read layout %s: %w", path, err)
	}
	return a.Analyze(ctx, path, markup)
}

// AnalyzePath analyzes a layout addressed relative to Config.InputRoot.
func (a *Analyzer) AnalyzePath(ctx context.Context, rel string) (*Analysis, error) {
	if a.cfg.InputRoot == "" {
		return nil, ErrNoInputRoot
	}
	path, err := horosafe.SafePath(a.cfg.InputRoot, rel)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeFile(ctx, path)
}

// InferElement runs inference and suggestions for one element.
func (a *Analyzer) InferElement(el layout.Element) report.ElementResult {
	return report.NewElementResult(el, infer.New(a.rules.Current()).Infer(el))
}

// RulesInfo describes the active rule snapshot.
func (a *Analyzer) RulesInfo() RulesInfo {
	info := RulesInfo{
		Dir:     a.rules.Dir(),
		Version: a.rules.Version(),
		Stats:   a.rules.Current().Stats(),
	}
	if a.cfg.Watch.Enabled {
		st := a.watcher.Stats()
		info.Watch = &st
	}
	return info
}

// Reload re-reads the rule tables now.
func (a *Analyzer) Reload(ctx context.Context) (RulesInfo, error) {
	if err := a.reloadRules(ctx); err != nil {
		return RulesInfo{}, fmt.Errorf("analyzer: reload: %w", err)
	}
	return a.RulesInfo(), nil
}

func (a *Analyzer) reloadRules(ctx context.Context) error {
	start := time.Now()
	if _, err := a.rules.Reload(ctx); err != nil {
		return err
	}
	if a.metrics != nil {
		a.metrics.RecordSimple(observability.MetricRulesReloadMs, float64(time.Since(start).Microseconds())/1000, "milliseconds")
	}
	return nil
}

// Watch hot-reloads the rule tables when their files change. It blocks
// until ctx is done and returns at once when watching is disabled.
func (a *Analyzer) Watch(ctx context.Context) {
	if !a.cfg.Watch.Enabled {
		return
	}
	a.watcher.OnChange(ctx, a.reloadRules)
}

// History lists stored runs, newest first.
func (a *Analyzer) History(ctx context.Context, limit int) ([]store.RunSummary, error) {
	if a.store == nil {
		return nil, ErrNoHistory
	}
	return a.store.ListRuns(ctx, limit)
}

// GetRun loads a stored run.
func (a *Analyzer) GetRun(ctx context.Context, id string) (*Analysis, error) {
	if a.store == nil {
		return nil, ErrNoHistory
	}
	if canon, err := idgen.Parse(idgen.RunPrefix, id); err == nil {
		id = canon
	}
	r, err := a.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Analysis{
		RunID:        r.ID,
		Source:       r.Source,
		CreatedAt:    r.CreatedAt,
		RulesVersion: r.RulesVersion,
		Results:      r.Results,
		Report:       r.Report,
	}, nil
}

// DeleteRun removes a stored run.
func (a *Analyzer) DeleteRun(ctx context.Context, id string) error {
	if a.store == nil {
		return ErrNoHistory
	}
	if canon, err := idgen.Parse(idgen.RunPrefix, id); err == nil {
		id = canon
	}
	return a.store.DeleteRun(ctx, id)
}

// Metrics returns recorded metric datapoints, newest first.
func (a *Analyzer) Metrics(ctx context.Context, q observability.Query) ([]observability.Metric, error) {
	if a.metrics == nil {
		return nil, ErrNoHistory
	}
	return a.metrics.Query(ctx, q)
}
