package store

// Schema creates the analysis history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	source           TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	rules_version    INTEGER NOT NULL DEFAULT 0,
	total_elements   INTEGER NOT NULL,
	with_description INTEGER NOT NULL,
	coverage         REAL NOT NULL,
	report           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC);

CREATE TABLE IF NOT EXISTS run_elements (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	resource_id      TEXT NOT NULL DEFAULT '',
	class_name       TEXT NOT NULL DEFAULT '',
	label            TEXT NOT NULL DEFAULT '',
	confidence_tier  TEXT NOT NULL DEFAULT '',
	confidence_score REAL NOT NULL DEFAULT 0,
	priority         TEXT NOT NULL DEFAULT '',
	result           TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`
