package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/alttext/analyzer/internal/store"
	"github.com/hazyhaar/alttext/dbopen"
	"github.com/hazyhaar/alttext/idgen"
	"github.com/hazyhaar/alttext/infer"
	"github.com/hazyhaar/alttext/layout"
	"github.com/hazyhaar/alttext/observability"
	"github.com/hazyhaar/alttext/report"
	"github.com/hazyhaar/alttext/rules"
)

const sampleLayout = `<?xml version="1.0" encoding="utf-8"?>
<LinearLayout xmlns:android="http://schemas.android.com/apk/res/android"
    android:layout_width="match_parent"
    android:layout_height="match_parent"
    android:orientation="vertical">
    <Button
        android:id="@+id/backBtn"
        android:layout_width="wrap_content"
        android:layout_height="wrap_content"
        android:text="뒤로"
        android:clickable="true" />
    <EditText
        android:id="@+id/searchInput"
        android:hint="검색어를 입력하세요" />
    <ImageView
        android:id="@+id/likeIcon"
        android:contentDescription="Like"
        android:clickable="true" />
    <ProgressBar android:id="@+id/loading" />
</LinearLayout>`

func testTables() *rules.Tables {
	t := rules.Empty()
	t.Resource.Set("backBtn", []string{"뒤로 가기", "Back"})
	return t
}

// testAnalyzer builds an Analyzer over static tables and an in-memory
// history and metrics database.
func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	cfg := &Config{}
	cfg.defaults()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema), dbopen.WithSchema(observability.Schema))
	m := observability.NewMetrics(db, observability.Options{FlushInterval: time.Hour})
	t.Cleanup(func() { m.Close() })
	return &Analyzer{
		cfg:     cfg,
		rules:   rules.NewStaticStore(testTables()),
		store:   &store.Store{DB: db},
		metrics: m,
		logger:  slog.Default(),
		newID:   idgen.New,
	}
}

func TestAnalyze_SampleLayout(t *testing.T) {
	a := testAnalyzer(t)
	an, err := a.Analyze(context.Background(), "main.xml", []byte(sampleLayout))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(an.RunID, idgen.RunPrefix) {
		t.Errorf("RunID: got %q", an.RunID)
	}

	wantIDs := []string{"backBtn", "searchInput", "likeIcon", "loading"}
	if len(an.Results) != len(wantIDs) {
		t.Fatalf("results: got %d, want %d", len(an.Results), len(wantIDs))
	}
	for i, id := range wantIDs {
		if an.Results[i].ResourceID != id {
			t.Errorf("results[%d]: got %q, want %q", i, an.Results[i].ResourceID, id)
		}
	}

	back := an.Results[0]
	if back.GeneratedLabel != "뒤로 가기" || back.ConfidenceTier != infer.TierResourceIDExact || back.ConfidenceScore != 0.95 {
		t.Errorf("backBtn: got %+v", back)
	}
	if back.Priority != report.PriorityHigh {
		t.Errorf("backBtn priority: got %s", back.Priority)
	}

	loading := an.Results[3]
	if loading.GeneratedLabel != string(infer.NounUIElement) || loading.ConfidenceScore != 0.1 {
		t.Errorf("loading: got %+v", loading)
	}

	sum := an.Report.Summary
	if sum.TotalElements != 4 || sum.WithDescription != 1 || sum.CoveragePercentage != 25 {
		t.Errorf("summary: got %+v", sum)
	}
	st := an.Report.Statistics
	if st.High != 2 || st.Medium != 3 || st.Low != 0 {
		t.Errorf("statistics: got %+v", st)
	}
}

func TestAnalyze_MalformedMarkup(t *testing.T) {
	a := testAnalyzer(t)
	an, err := a.Analyze(context.Background(), "broken.xml", []byte(`<LinearLayout><Button>`))
	if err != nil {
		t.Fatalf("malformed markup must not fail the analysis: %v", err)
	}
	if len(an.Results) != 0 || an.Report.Summary.TotalElements != 0 || an.Report.Summary.CoveragePercentage != 0 {
		t.Fatalf("got %+v", an)
	}
	if an.Results == nil {
		t.Fatal("Results must be an empty slice, not nil")
	}
}

func TestAnalyze_PreservesOrderUnderFanOut(t *testing.T) {
	a := testAnalyzer(t)
	a.cfg.Workers = 3

	var b strings.Builder
	b.WriteString(`<LinearLayout xmlns:android="http://schemas.android.com/apk/res/android">`)
	for i := range 60 {
		fmt.Fprintf(&b, `<Button android:id="@+id/b%d" />`, i)
	}
	b.WriteString(`</LinearLayout>`)

	an, err := a.Analyze(context.Background(), "", []byte(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(an.Results) != 60 {
		t.Fatalf("results: got %d", len(an.Results))
	}
	for i, r := range an.Results {
		if want := fmt.Sprintf("b%d", i); r.ResourceID != want {
			t.Fatalf("results[%d]: got %q, want %q", i, r.ResourceID, want)
		}
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	a := testAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Analyze(ctx, "", []byte(sampleLayout)); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestAnalyze_PersistsHistory(t *testing.T) {
	a := testAnalyzer(t)
	ctx := context.Background()
	an, err := a.Analyze(ctx, "main.xml", []byte(sampleLayout))
	if err != nil {
		t.Fatal(err)
	}

	runs, err := a.History(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != an.RunID || runs[0].Source != "main.xml" || runs[0].TotalElements != 4 {
		t.Fatalf("History: got %+v", runs)
	}

	upper := idgen.RunPrefix + strings.ToUpper(strings.TrimPrefix(an.RunID, idgen.RunPrefix))
	got, err := a.GetRun(ctx, upper)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Results, an.Results) || !reflect.DeepEqual(got.Report, an.Report) {
		t.Fatal("stored run differs from the analysis")
	}

	if _, err := a.GetRun(ctx, idgen.New()); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("unknown run: got %v", err)
	}
}

func TestAnalyze_RecordsMetrics(t *testing.T) {
	a := testAnalyzer(t)
	ctx := context.Background()
	an, err := a.Analyze(ctx, "main.xml", []byte(sampleLayout))
	if err != nil {
		t.Fatal(err)
	}

	got, err := a.Metrics(ctx, observability.Query{Name: observability.MetricCoveragePercent})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Value != 25 || got[0].Labels["run_id"] != an.RunID || got[0].Labels["source"] != "main.xml" {
		t.Fatalf("coverage metric: got %+v", got)
	}

	all, err := a.Metrics(ctx, observability.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("metrics per analysis: got %d, want 3", len(all))
	}

	if _, err := a.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	reloads, err := a.Metrics(ctx, observability.Query{Name: observability.MetricRulesReloadMs})
	if err != nil || len(reloads) != 1 {
		t.Fatalf("reload metric: %v, %v", reloads, err)
	}
}

func TestHistoryDisabled(t *testing.T) {
	a := testAnalyzer(t)
	a.store = nil
	a.metrics = nil
	if _, err := a.Analyze(context.Background(), "", []byte(sampleLayout)); err != nil {
		t.Fatal(err)
	}
	if _, err := a.History(context.Background(), 5); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("History: got %v", err)
	}
	if _, err := a.GetRun(context.Background(), "run_x"); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("GetRun: got %v", err)
	}
	if _, err := a.Metrics(context.Background(), observability.Query{}); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("Metrics: got %v", err)
	}
}

func TestAnalyzeFileAndPath(t *testing.T) {
	a := testAnalyzer(t)
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "res", "layout"), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(root, "res", "layout", "main.xml")
	if err := os.WriteFile(path, []byte(sampleLayout), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	an, err := a.AnalyzeFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if an.Source != path || len(an.Results) != 4 {
		t.Fatalf("AnalyzeFile: got source %q, %d results", an.Source, len(an.Results))
	}

	if _, err := a.AnalyzePath(ctx, "res/layout/main.xml"); !errors.Is(err, ErrNoInputRoot) {
		t.Fatalf("without input root: got %v", err)
	}
	a.cfg.InputRoot = root
	if _, err := a.AnalyzePath(ctx, "res/layout/main.xml"); err != nil {
		t.Fatalf("AnalyzePath: %v", err)
	}
	if _, err := a.AnalyzePath(ctx, "../etc/passwd"); err == nil {
		t.Fatal("traversal: expected error")
	}

	a.cfg.MaxInput = 10
	if _, err := a.AnalyzeFile(ctx, path); err == nil {
		t.Fatal("oversized layout: expected error")
	}
}

func TestNew_LoadsRulesAndHistory(t *testing.T) {
	dir := t.TempDir()
	rulesDir := filepath.Join(dir, "rules")
	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := rules.Save(rulesDir, testTables()); err != nil {
		t.Fatal(err)
	}

	a, err := New(&Config{RulesDir: rulesDir, DBPath: filepath.Join(dir, "db", "history.db")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	info := a.RulesInfo()
	if info.Stats.ResourceRules != 1 || info.Dir != rulesDir {
		t.Fatalf("RulesInfo: got %+v", info)
	}
	if info.Watch != nil {
		t.Fatal("watch stats only when watching is enabled")
	}

	res := a.InferElement(layout.Element{ResourceID: "backBtn", ClassName: "ImageButton", Clickable: true})
	if res.GeneratedLabel != "뒤로 가기" || len(res.Suggestions) != 2 {
		t.Fatalf("InferElement: got %+v", res)
	}

	if _, err := a.Analyze(context.Background(), "x.xml", []byte(sampleLayout)); err != nil {
		t.Fatal(err)
	}
	runs, err := a.History(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("History: %v, %v", runs, err)
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	a, err := New(&Config{RulesDir: dir}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.RulesInfo().Stats.ResourceRules != 0 {
		t.Fatal("expected empty tables before files exist")
	}
	if err := rules.Save(dir, testTables()); err != nil {
		t.Fatal(err)
	}
	info, err := a.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.Stats.ResourceRules != 1 || info.Version < 2 {
		t.Fatalf("Reload: got %+v", info)
	}
}

func TestWatch_HotReload(t *testing.T) {
	dir := t.TempDir()
	a, err := New(&Config{
		RulesDir: dir,
		Watch:    WatchConfig{Enabled: true, Interval: 10 * time.Millisecond, Debounce: 20 * time.Millisecond},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Watch(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for a.RulesInfo().Watch.Checks == 0 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never polled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := rules.Save(dir, testTables()); err != nil {
		t.Fatal(err)
	}
	for a.Rules().Current().Resource.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("rules were not hot-reloaded")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWatch_Disabled(t *testing.T) {
	a, err := New(&Config{RulesDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		a.Watch(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch should return when disabled")
	}
}
