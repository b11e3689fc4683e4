// CLAUDE:SUMMARY SQLite persistence of analysis runs: summary row plus one row per element.
// Package store keeps the analysis history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/alttext/dbopen"
	"github.com/hazyhaar/alttext/report"
)

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = errors.New("store: run not found")

// Store is the history database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the history database at path and applies Schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)
	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Run is one persisted analysis.
type Run struct {
	ID           string                 `json:"id"`
	Source       string                 `json:"source"`
	CreatedAt    int64                  `json:"created_at"`
	RulesVersion int64                  `json:"rules_version"`
	Report       report.Report          `json:"report"`
	Results      []report.ElementResult `json:"results"`
}

// RunSummary is a history listing entry.
type RunSummary struct {
	ID              string  `json:"id"`
	Source          string  `json:"source"`
	CreatedAt       int64   `json:"created_at"`
	RulesVersion    int64   `json:"rules_version"`
	TotalElements   int     `json:"total_elements"`
	WithDescription int     `json:"elements_with_content_description"`
	Coverage        float64 `json:"coverage_percentage"`
}

// InsertRun stores r and its element results in one transaction.
func (s *Store) InsertRun(ctx context.Context, r *Run) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	rep, err := json.Marshal(r.Report)
	if err != nil {
		return fmt.Errorf("store: marshal report: %w", err)
	}
	sum := r.Report.Summary

	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, source, created_at, rules_version, total_elements, with_description, coverage, report)
			VALUES (?,?,?,?,?,?,?,?)`,
			r.ID, r.Source, r.CreatedAt, r.RulesVersion,
			sum.TotalElements, sum.WithDescription, sum.CoveragePercentage, string(rep))
		if err != nil {
			return fmt.Errorf("store: insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO run_elements (run_id, position, resource_id, class_name, label, confidence_tier, confidence_score, priority, result)
			VALUES (?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return fmt.Errorf("store: prepare: %w", err)
		}
		defer stmt.Close()

		for i, er := range r.Results {
			data, err := json.Marshal(er)
			if err != nil {
				return fmt.Errorf("store: marshal element %d: %w", i, err)
			}
			if _, err := stmt.ExecContext(ctx, r.ID, i, er.ResourceID, er.ClassName, er.GeneratedLabel,
				string(er.ConfidenceTier), er.ConfidenceScore, string(er.Priority), string(data)); err != nil {
				return fmt.Errorf("store: insert element %d: %w", i, err)
			}
		}
		return nil
	})
}

// ListRuns returns the most recent runs first, at most limit (default 20).
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, source, created_at, rules_version, total_elements, with_description, coverage
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Source, &r.CreatedAt, &r.RulesVersion,
			&r.TotalElements, &r.WithDescription, &r.Coverage); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun loads a run with its element results in traversal order.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	r := &Run{ID: id}
	var rep string
	err := s.DB.QueryRowContext(ctx, `
		SELECT source, created_at, rules_version, report FROM runs WHERE id = ?`, id).
		Scan(&r.Source, &r.CreatedAt, &r.RulesVersion, &rep)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run: %w", err)
	}
	if err := json.Unmarshal([]byte(rep), &r.Report); err != nil {
		return nil, fmt.Errorf("store: decode report: %w", err)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT result FROM run_elements WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("store: get elements: %w", err)
	}
	defer rows.Close()

	r.Results = []report.ElementResult{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan element: %w", err)
		}
		var er report.ElementResult
		if err := json.Unmarshal([]byte(raw), &er); err != nil {
			return nil, fmt.Errorf("store: decode element: %w", err)
		}
		r.Results = append(r.Results, er)
	}
	return r, rows.Err()
}

// DeleteRun removes a run; its elements cascade.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
