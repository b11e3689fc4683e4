// CLAUDE:SUMMARY CLI entry point for alttext: one-shot layout analysis, rule stats, history, HTTP+MCP server.
// Command alttext infers accessibility labels for Android layout XML.
//
// Usage:
//
//	alttext -rules comprehensive_rules -input activity_main.xml            # JSON report to stdout
//	alttext -input res/layout -format md -out report.md                     # every *.xml under a directory
//	alttext -config alttext.yaml -serve                                     # HTTP API + MCP on /mcp
//	alttext -rules comprehensive_rules -mcp                                 # MCP over stdio
//	alttext -db history.db -history -limit 10                               # list stored analyses
//	alttext -db history.db -run run_0190...                                 # print one stored analysis
//	alttext -rules comprehensive_rules -stats                               # rule table counts
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/alttext/analyzer"
	"github.com/hazyhaar/alttext/report"
)

const version = "0.1.0"

type options struct {
	configPath string
	rulesDir   string
	dbPath     string
	appContext string
	input      string
	format     string
	out        string
	serve      bool
	addr       string
	mcpStdio   bool
	watch      bool
	history    bool
	runID      string
	limit      int
	stats      bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to alttext.yaml config file")
	flag.StringVar(&o.rulesDir, "rules", "", "rules directory (default comprehensive_rules)")
	flag.StringVar(&o.dbPath, "db", "", "SQLite history database (empty disables history)")
	flag.StringVar(&o.appContext, "app-context", "", "app or activity identifier applied to every element")
	flag.StringVar(&o.input, "input", "", "layout XML file or directory to analyze")
	flag.StringVar(&o.format, "format", "json", "report format: json, html, md")
	flag.StringVar(&o.out, "out", "", "write the report to this file instead of stdout")
	flag.BoolVar(&o.serve, "serve", false, "run the HTTP API (MCP on /mcp)")
	flag.StringVar(&o.addr, "addr", "", "HTTP listen address (default :8087)")
	flag.BoolVar(&o.mcpStdio, "mcp", false, "serve MCP over stdio")
	flag.BoolVar(&o.watch, "watch", false, "hot-reload rule tables when their files change")
	flag.BoolVar(&o.history, "history", false, "list stored analyses and exit")
	flag.StringVar(&o.runID, "run", "", "print a stored analysis and exit")
	flag.IntVar(&o.limit, "limit", 20, "max runs listed by -history")
	flag.BoolVar(&o.stats, "stats", false, "show rule table statistics and exit")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "alttext: .env: %v\n", err)
	}
	if *logLevel == "" {
		*logLevel = os.Getenv("LOG_LEVEL")
	}

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("alttext: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := resolveConfig(o)
	if err != nil {
		return err
	}

	a, err := analyzer.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.Close()

	switch {
	case o.stats:
		return printJSON(os.Stdout, a.RulesInfo())

	case o.history:
		runs, err := a.History(ctx, o.limit)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		return printJSON(os.Stdout, runs)

	case o.runID != "":
		an, err := a.GetRun(ctx, o.runID)
		if err != nil {
			return fmt.Errorf("run %s: %w", o.runID, err)
		}
		return writeReport(o, []*analyzer.Analysis{an})

	case o.input != "":
		ans, err := analyzeInput(ctx, a, o.input)
		if err != nil {
			return err
		}
		return writeReport(o, ans)

	case o.mcpStdio:
		go a.Watch(ctx)
		srv := newMCPServer(a)
		logger.Info("alttext: mcp stdio", "rules", cfg.RulesDir)
		return srv.Run(ctx, &mcp.StdioTransport{})

	case o.serve:
		return serve(ctx, logger, a)
	}

	fmt.Fprintln(os.Stderr, "usage: alttext [-config FILE] [-rules DIR] -input PATH [-format json|html|md] [-out FILE]")
	fmt.Fprintln(os.Stderr, "       alttext -serve | -mcp | -history | -run ID | -stats")
	flag.PrintDefaults()
	return errors.New("no action given")
}

func resolveConfig(o options) (*analyzer.Config, error) {
	cfg := &analyzer.Config{}
	if o.configPath != "" {
		var err error
		if cfg, err = analyzer.LoadConfigFile(o.configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.LookupEnv)

	if o.rulesDir != "" {
		cfg.RulesDir = o.rulesDir
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	if o.appContext != "" {
		cfg.AppContext = o.appContext
	}
	if o.addr != "" {
		cfg.HTTP.Addr = o.addr
	}
	if o.watch {
		cfg.Watch.Enabled = true
	}
	return cfg, nil
}

// analyzeInput analyzes one file, or every *.xml file under a directory in
// lexical order.
func analyzeInput(ctx context.Context, a *analyzer.Analyzer, input string) ([]*analyzer.Analysis, error) {
	fi, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if !fi.IsDir() {
		an, err := a.AnalyzeFile(ctx, input)
		if err != nil {
			return nil, err
		}
		return []*analyzer.Analysis{an}, nil
	}

	var out []*analyzer.Analysis
	err = filepath.WalkDir(input, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}
		an, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			return err
		}
		out = append(out, an)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", input, err)
	}
	return out, nil
}

func writeReport(o options, ans []*analyzer.Analysis) (err error) {
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if format == report.FormatJSON {
		if len(ans) == 1 {
			return printJSON(w, ans[0])
		}
		return printJSON(w, ans)
	}
	for i, an := range ans {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := report.Render(w, format, an.Page()); err != nil {
			return err
		}
	}
	return nil
}

func newMCPServer(a *analyzer.Analyzer) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "alttext", Version: version}, nil)
	a.RegisterMCP(srv)
	return srv
}

func serve(ctx context.Context, logger *slog.Logger, a *analyzer.Analyzer) error {
	go a.Watch(ctx)

	mcpSrv := newMCPServer(a)
	r := chi.NewRouter()
	r.Mount("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
	r.Mount("/", a.Handler())

	cfg := a.Config()
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("alttext: listening", "addr", cfg.HTTP.Addr, "rules", cfg.RulesDir, "history", cfg.DBPath != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("alttext: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
