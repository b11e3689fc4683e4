// CLAUDE:SUMMARY Poll a change token, debounce, then run a reload action.
// Package watch runs a "poll, detect change, debounce, reload" loop. The
// analyzer uses it to hot-reload rule tables when their files change.
//
//	w := watch.New(watch.Files(dir, rules.Files()...), watch.Options{Interval: 2 * time.Second})
//	go w.OnChange(ctx, store.Reload)
package watch

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Detector returns a change token. Two different tokens mean something
// changed between the calls.
type Detector func(ctx context.Context) (int64, error)

// Options tunes the loop.
type Options struct {
	// Interval is the polling period. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period required after the last detected change
	// before the action fires. 0 fires on detection.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a Detector and runs an action on change. Safe for
// concurrent use; OnChange should run once per Watcher.
type Watcher struct {
	detect Detector
	opts   Options

	token atomic.Int64

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher over detect.
func New(detect Detector, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{detect: detect, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Token returns the last token whose action succeeded.
func (w *Watcher) Token() int64 { return w.token.Load() }

// OnChange blocks until ctx is done. A failed action leaves the token
// unchanged so the next poll retries it.
func (w *Watcher) OnChange(ctx context.Context, action func(context.Context) error) {
	log := w.opts.Logger

	if tok, err := w.detect(ctx); err != nil {
		log.Warn("watch: initial check failed", "error", err)
	} else {
		w.token.Store(tok)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		debounce *time.Timer
		fireCh   <-chan time.Time
		pending  int64
		waiting  bool
	)
	stopDebounce := func() {
		if debounce != nil {
			debounce.Stop()
		}
	}
	defer stopDebounce()

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)
	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			return

		case <-ticker.C:
			w.checks.Add(1)
			tok, err := w.detect(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: check failed", "error", err)
				continue
			}
			if tok == w.token.Load() || (waiting && tok == pending) {
				continue
			}
			w.changes.Add(1)
			pending, waiting = tok, true
			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, pending)
				waiting = false
				continue
			}
			stopDebounce()
			debounce = time.NewTimer(w.opts.Debounce)
			fireCh = debounce.C
			log.Debug("watch: change detected, debouncing", "token", tok)

		case <-fireCh:
			fireCh = nil
			if waiting {
				w.fire(ctx, action, pending)
				waiting = false
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func(context.Context) error, tok int64) {
	log := w.opts.Logger
	log.Info("watch: reloading", "token", tok)
	start := time.Now()
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		log.Error("watch: reload failed", "error", err)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.token.Store(tok)
	log.Info("watch: reload complete", "duration", elapsed)
}

// Files returns a Detector hashing the size and modification time of each
// named file under dir. A missing file hashes differently from any present
// one, so creating or deleting a table also counts as a change.
func Files(dir string, names ...string) Detector {
	return func(ctx context.Context) (int64, error) {
		h := fnv.New64a()
		var buf [16]byte
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			h.Write([]byte(name))
			fi, err := os.Stat(filepath.Join(dir, name))
			switch {
			case errors.Is(err, fs.ErrNotExist):
				h.Write([]byte{0})
				continue
			case err != nil:
				return 0, err
			}
			binary.LittleEndian.PutUint64(buf[:8], uint64(fi.ModTime().UnixNano()))
			binary.LittleEndian.PutUint64(buf[8:], uint64(fi.Size()))
			h.Write([]byte{1})
			h.Write(buf[:])
		}
		return int64(h.Sum64()), nil
	}
}
