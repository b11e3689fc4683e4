package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/alttext/kit"
	"github.com/hazyhaar/alttext/layout"
	"github.com/hazyhaar/alttext/observability"
)

// RegisterMCP registers the alttext tools on an MCP server.
func (a *Analyzer) RegisterMCP(srv *mcp.Server) {
	a.registerAnalyzeTool(srv)
	a.registerInferTool(srv)
	a.registerRulesStatsTool(srv)
	a.registerRulesReloadTool(srv)
	a.registerHistoryTool(srv)
	a.registerMetricsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (a *Analyzer) wrap(name string, ep kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Recover(a.logger), kit.Logging(a.logger, name))(ep)
}

// --- analyze ---

type analyzeReq struct {
	Markup string `json:"markup"`
	Path   string `json:"path"`
	Source string `json:"source"`
}

func (a *Analyzer) registerAnalyzeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "alttext_analyze",
		Description: "Analyze an Android layout XML: infer accessibility labels for every UI element and report missing contentDescription.",
		InputSchema: inputSchema(map[string]any{
			"markup": map[string]any{"type": "string", "description": "Layout XML document"},
			"path":   map[string]any{"type": "string", "description": "Layout file relative to the configured input root (instead of markup)"},
			"source": map[string]any{"type": "string", "description": "Name recorded for the analysis"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*analyzeReq)
		switch {
		case r.Markup != "":
			return a.Analyze(ctx, r.Source, []byte(r.Markup))
		case r.Path != "":
			return a.AnalyzePath(ctx, r.Path)
		}
		return nil, errors.New("markup or path is required")
	}

	kit.RegisterMCPTool(srv, tool, a.wrap(tool.Name, endpoint), kit.DecodeArgs[analyzeReq])
}

// --- infer ---

func (a *Analyzer) registerInferTool(srv *mcp.Server) {
	str := func(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
	tool := &mcp.Tool{
		Name:        "alttext_infer",
		Description: "Infer the accessibility label, alternatives, confidence and suggestions for a single UI element.",
		InputSchema: inputSchema(map[string]any{
			"resource_id":         str("View id without @+id/ prefix"),
			"class_name":          str("Widget class, simple or fully qualified"),
			"text":                str("Visible text"),
			"content_description": str("Current contentDescription"),
			"parent_context":      str("Parent summary, e.g. Toolbar:Settings"),
			"sibling_context":     str("Space-separated sibling summaries"),
			"app_context":         str("App or activity identifier"),
			"clickable":           map[string]any{"type": "boolean"},
		}, []string{"class_name"}),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		return a.InferElement(*req.(*layout.Element)), nil
	}

	kit.RegisterMCPTool(srv, tool, a.wrap(tool.Name, endpoint), kit.DecodeArgs[layout.Element])
}

// --- rules ---

func (a *Analyzer) registerRulesStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "alttext_rules_stats",
		Description: "Show the rules directory, snapshot version and per-table entry counts.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(context.Context, any) (any, error) {
		return a.RulesInfo(), nil
	}

	kit.RegisterMCPTool(srv, tool, a.wrap(tool.Name, endpoint), kit.DecodeArgs[struct{}])
}

func (a *Analyzer) registerRulesReloadTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "alttext_rules_reload",
		Description: "Reload the rule tables from disk and return the new statistics.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return a.Reload(ctx)
	}

	kit.RegisterMCPTool(srv, tool, a.wrap(tool.Name, endpoint), kit.DecodeArgs[struct{}])
}

// --- history ---

type historyReq struct {
	ID    string `json:"id"`
	Limit int    `json:"limit"`
}

func (a *Analyzer) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "alttext_history",
		Description: "List recent analyses, or fetch one analysis by run id.",
		InputSchema: inputSchema(map[string]any{
			"id":    map[string]any{"type": "string", "description": "Run id to fetch"},
			"limit": map[string]any{"type": "integer", "description": "Max runs to list (default 20)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*historyReq)
		if r.ID != "" {
			return a.GetRun(ctx, r.ID)
		}
		runs, err := a.History(ctx, r.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"runs": runs}, nil
	}

	kit.RegisterMCPTool(srv, tool, a.wrap(tool.Name, endpoint), kit.DecodeArgs[historyReq])
}

// --- metrics ---

type metricsReq struct {
	Name  string `json:"name"`
	Since string `json:"since"`
	Limit int    `json:"limit"`
}

func (a *Analyzer) registerMetricsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "alttext_metrics",
		Description: "Query recorded metrics: analysis duration, element count, coverage and rule reload time.",
		InputSchema: inputSchema(map[string]any{
			"name":  map[string]any{"type": "string", "description": "Metric name, e.g. analysis_coverage_percent (empty = all)"},
			"since": map[string]any{"type": "string", "description": "Look-back window as a Go duration, e.g. 24h"},
			"limit": map[string]any{"type": "integer", "description": "Max datapoints (default 100)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*metricsReq)
		q := observability.Query{Name: r.Name, Limit: r.Limit}
		if q.Limit <= 0 {
			q.Limit = 100
		}
		if r.Since != "" {
			d, err := time.ParseDuration(r.Since)
			if err != nil {
				return nil, fmt.Errorf("invalid since: %w", err)
			}
			q.Since = time.Now().Add(-d)
		}
		metrics, err := a.Metrics(ctx, q)
		if err != nil {
			return nil, err
		}
		return map[string]any{"metrics": metrics}, nil
	}

	kit.RegisterMCPTool(srv, tool, a.wrap(tool.Name, endpoint), kit.DecodeArgs[metricsReq])
}
