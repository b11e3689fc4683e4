// CLAUDE:SUMMARY Rule table set, on-disk JSON schema, degraded loading and atomic saving.
// Package rules holds the five lookup tables the inference engine reads:
// candidates by resource id, class name, text-pattern category and owning
// app, plus action word frequencies.
//
// Tables are produced offline and persisted as one JSON object per file:
//
//	resource_id_rules.json   {"backBtn": ["Back", "Go back"], ...}
//	class_name_rules.json    {"ImageButton": ["Button"], ...}
//	text_pattern_rules.json  {"navigation": ["go back", "next"], ...}
//	app_specific_rules.json  {"com.example.app.Main": ["Menu"], ...}
//	action_rules.json        {"search": 120, "back": 87, ...}
//
// A missing or corrupt file degrades that table to empty; it never fails
// the whole load.
package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File names of the five tables inside a rules directory.
const (
	FileResource    = "resource_id_rules.json"
	FileClass       = "class_name_rules.json"
	FileTextPattern = "text_pattern_rules.json"
	FileApp         = "app_specific_rules.json"
	FileAction      = "action_rules.json"
)

// Files lists the table files in load order.
func Files() []string {
	return []string{FileResource, FileClass, FileTextPattern, FileApp, FileAction}
}

// Tables is one immutable snapshot of all rule tables. Callers must not
// mutate a snapshot once it has been handed to an engine or a Store.
type Tables struct {
	Resource    List
	Class       List
	TextPattern List
	App         List
	Action      Counts
}

// Empty returns a snapshot with every table empty.
func Empty() *Tables { return &Tables{} }

// Stats counts entries per table.
type Stats struct {
	ResourceRules    int `json:"resource_id_rules"`
	ClassRules       int `json:"class_name_rules"`
	TextPatternRules int `json:"text_pattern_rules"`
	AppRules         int `json:"app_specific_rules"`
	ActionRules      int `json:"action_rules"`
}

// Stats returns per-table entry counts.
func (t *Tables) Stats() Stats {
	return Stats{
		ResourceRules:    t.Resource.Len(),
		ClassRules:       t.Class.Len(),
		TextPatternRules: t.TextPattern.Len(),
		AppRules:         t.App.Len(),
		ActionRules:      t.Action.Len(),
	}
}

// MissingTableError reports a table file that does not exist.
type MissingTableError struct {
	File string
}

func (e *MissingTableError) Error() string {
	return fmt.Sprintf("rules: table %s missing", e.File)
}

// CorruptTableError reports a table file that exists but fails validation.
type CorruptTableError struct {
	File string
	Err  error
}

func (e *CorruptTableError) Error() string {
	return fmt.Sprintf("rules: table %s corrupt: %v", e.File, e.Err)
}

func (e *CorruptTableError) Unwrap() error { return e.Err }

// target returns the table a file decodes into.
func (t *Tables) target(file string) json.Unmarshaler {
	switch file {
	case FileResource:
		return &t.Resource
	case FileClass:
		return &t.Class
	case FileTextPattern:
		return &t.TextPattern
	case FileApp:
		return &t.App
	default:
		return &t.Action
	}
}

func (t *Tables) source(file string) json.Marshaler {
	switch file {
	case FileResource:
		return &t.Resource
	case FileClass:
		return &t.Class
	case FileTextPattern:
		return &t.TextPattern
	case FileApp:
		return &t.App
	default:
		return &t.Action
	}
}

// Load reads every table from dir. It always returns a usable snapshot; the
// error, when non-nil, joins one MissingTableError or CorruptTableError per
// degraded table and is meant to be logged, not treated as fatal.
func Load(dir string) (*Tables, error) {
	t := Empty()
	var errs []error
	for _, file := range Files() {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, &MissingTableError{File: file})
			continue
		}
		if err != nil {
			errs = append(errs, &CorruptTableError{File: file, Err: err})
			continue
		}
		// UnmarshalJSON leaves the table untouched on failure, so a bad
		// file never publishes a partial table.
		if err := t.target(file).UnmarshalJSON(bytes.TrimSpace(data)); err != nil {
			errs = append(errs, &CorruptTableError{File: file, Err: err})
		}
	}
	return t, errors.Join(errs...)
}

// Save writes every table to dir using the on-disk schema. Each file is
// written to a temporary name then renamed so readers never see a torn file.
func Save(dir string, t *Tables) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("rules: mkdir: %w", err)
	}
	for _, file := range Files() {
		raw, err := t.source(file).MarshalJSON()
		if err != nil {
			return fmt.Errorf("rules: marshal %s: %w", file, err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("rules: indent %s: %w", file, err)
		}
		buf.WriteByte('\n')

		path := filepath.Join(dir, file)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("rules: write %s: %w", file, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("rules: rename %s: %w", file, err)
		}
	}
	return nil
}
