// CLAUDE:SUMMARY Buffered SQLite timeseries for analysis metrics (durations, element counts, coverage, reloads).
// Package observability records pipeline metrics in SQLite.
//
// Datapoints are buffered and written in batches by a background goroutine;
// Record never blocks on the database. Apply Schema to the target database
// before use.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/alttext/dbopen"
)

// Metric names recorded by the analyzer.
const (
	MetricAnalysisDurationMs = "analysis_duration_ms"
	MetricAnalysisElements   = "analysis_elements"
	MetricCoveragePercent    = "analysis_coverage_percent"
	MetricRulesReloadMs      = "rules_reload_ms"
)

// Metric is a single timeseries datapoint.
type Metric struct {
	Name      string            `json:"name"`
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Unit      string            `json:"unit"`
}

// Options configures a Metrics recorder.
type Options struct {
	BufferSize    int           // flush when this many datapoints are pending (default 100)
	FlushInterval time.Duration // periodic flush (default 5s)
	Logger        *slog.Logger
}

// Metrics buffers datapoints and flushes them to SQLite in batches.
type Metrics struct {
	db   *sql.DB
	opts Options

	mu     sync.Mutex
	buffer []Metric

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMetrics starts a recorder writing to db.
func NewMetrics(db *sql.DB, opts Options) *Metrics {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Metrics{
		db:     db,
		opts:   opts,
		buffer: make([]Metric, 0, opts.BufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go m.flushLoop()
	return m
}

// Record queues a datapoint. A zero Timestamp means now.
func (m *Metrics) Record(mt Metric) {
	if mt.Timestamp.IsZero() {
		mt.Timestamp = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = append(m.buffer, mt)
	if len(m.buffer) >= m.opts.BufferSize {
		m.flushLocked()
	}
}

// RecordSimple queues an unlabelled datapoint stamped now.
func (m *Metrics) RecordSimple(name string, value float64, unit string) {
	m.Record(Metric{Name: name, Value: value, Unit: unit})
}

// Flush writes pending datapoints now.
func (m *Metrics) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
}

// Query selects datapoints, newest first.
type Query struct {
	Name  string    // empty = every metric
	Since time.Time // zero = unbounded
	Until time.Time // zero = unbounded
	Limit int       // <= 0 = no limit
}

// Query returns the stored datapoints matching q. Pending datapoints are
// flushed first.
func (m *Metrics) Query(ctx context.Context, q Query) ([]Metric, error) {
	m.Flush()

	var (
		where []string
		args  []any
	)
	if q.Name != "" {
		where = append(where, "metric_name = ?")
		args = append(args, q.Name)
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if !q.Until.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, q.Until.UnixMilli())
	}
	query := "SELECT metric_name, timestamp, value, labels, unit FROM metrics_timeseries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query metrics: %w", err)
	}
	defer rows.Close()

	out := []Metric{}
	for rows.Next() {
		var (
			mt     Metric
			ts     int64
			labels sql.NullString
		)
		if err := rows.Scan(&mt.Name, &ts, &mt.Value, &labels, &mt.Unit); err != nil {
			return nil, fmt.Errorf("observability: scan metric: %w", err)
		}
		mt.Timestamp = time.UnixMilli(ts)
		if labels.Valid {
			if err := json.Unmarshal([]byte(labels.String), &mt.Labels); err != nil {
				return nil, fmt.Errorf("observability: metric labels: %w", err)
			}
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// Cleanup deletes datapoints older than retention and returns how many were
// removed.
func (m *Metrics) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()
	res, err := dbopen.Exec(ctx, m.db, "DELETE FROM metrics_timeseries WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("observability: cleanup metrics: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes pending datapoints and stops the background goroutine. It is
// safe to call more than once.
func (m *Metrics) Close() error {
	m.closeOnce.Do(func() {
		close(m.stop)
		<-m.done
	})
	return nil
}

func (m *Metrics) flushLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			m.Flush()
			return
		case <-ticker.C:
			m.Flush()
		}
	}
}

// flushLocked writes the buffer in one transaction. A failed batch is
// logged and dropped.
func (m *Metrics) flushLocked() {
	if len(m.buffer) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := dbopen.RunTx(ctx, m.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO metrics_timeseries (metric_name, timestamp, value, labels, unit) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, mt := range m.buffer {
			var labels sql.NullString
			if len(mt.Labels) > 0 {
				b, err := json.Marshal(mt.Labels)
				if err != nil {
					return err
				}
				labels = sql.NullString{String: string(b), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, mt.Name, mt.Timestamp.UnixMilli(), mt.Value, labels, mt.Unit); err != nil {
				return fmt.Errorf("insert %s: %w", mt.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		m.opts.Logger.Error("observability: flush metrics", "datapoints", len(m.buffer), "error", err)
	}
	m.buffer = m.buffer[:0]
}
