package rules

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Store publishes the current Tables snapshot. Readers always get a complete
// snapshot; Reload builds a new one off to the side and swaps the pointer.
type Store struct {
	dir    string
	logger *slog.Logger
	cur    atomic.Pointer[Tables]
	group  singleflight.Group

	version atomic.Int64
}

// NewStore loads dir and returns a Store serving it. Degraded tables are
// logged as warnings; construction never fails because of them.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{dir: dir, logger: logger}
	s.publish(s.load())
	return s
}

// NewStaticStore serves a fixed snapshot with no backing directory.
func NewStaticStore(t *Tables) *Store {
	s := &Store{logger: slog.Default()}
	if t == nil {
		t = Empty()
	}
	s.publish(t)
	return s
}

// Dir returns the rules directory ("" for a static store).
func (s *Store) Dir() string { return s.dir }

// Current returns the active snapshot.
func (s *Store) Current() *Tables { return s.cur.Load() }

// Version counts the snapshots published since the Store was created.
func (s *Store) Version() int64 { return s.version.Load() }

// Swap publishes t as the active snapshot.
func (s *Store) Swap(t *Tables) {
	if t == nil {
		t = Empty()
	}
	s.publish(t)
}

// Reload re-reads the rules directory and publishes the result. Concurrent
// callers share one load.
func (s *Store) Reload(ctx context.Context) (*Tables, error) {
	if s.dir == "" {
		return s.Current(), nil
	}
	ch := s.group.DoChan("reload", func() (any, error) {
		t := s.load()
		s.publish(t)
		return t, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val.(*Tables), nil
	}
}

func (s *Store) load() *Tables {
	t, err := Load(s.dir)
	if err != nil {
		s.logger.Warn("rules: table degraded", "dir", s.dir, "error", err)
	}
	st := t.Stats()
	s.logger.Info("rules: loaded",
		"dir", s.dir,
		"resource_id_rules", st.ResourceRules,
		"class_name_rules", st.ClassRules,
		"text_pattern_rules", st.TextPatternRules,
		"app_specific_rules", st.AppRules,
		"action_rules", st.ActionRules,
	)
	return t
}

func (s *Store) publish(t *Tables) {
	s.cur.Store(t)
	s.version.Add(1)
}
