package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// counter is a Detector whose token the test controls.
type counter struct{ v atomic.Int64 }

func (c *counter) detect(context.Context) (int64, error) { return c.v.Load(), nil }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOnChange_FiresOnTokenChange(t *testing.T) {
	var c counter
	var reloads atomic.Int32
	w := New(c.detect, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		reloads.Add(1)
		return nil
	})

	waitFor(t, "first check", func() bool { return w.Stats().Checks > 0 })
	c.v.Store(1)
	waitFor(t, "first reload", func() bool { return reloads.Load() == 1 })
	if w.Token() != 1 {
		t.Fatalf("Token: got %d, want 1", w.Token())
	}

	c.v.Store(2)
	waitFor(t, "second reload", func() bool { return reloads.Load() == 2 })

	checks := w.Stats().Checks
	waitFor(t, "more checks", func() bool { return w.Stats().Checks > checks+3 })
	if got := reloads.Load(); got != 2 {
		t.Fatalf("reloads without change: got %d, want 2", got)
	}
}

func TestOnChange_Debounce(t *testing.T) {
	var c counter
	var reloads atomic.Int32
	w := New(c.detect, Options{Interval: 10 * time.Millisecond, Debounce: 150 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		reloads.Add(1)
		return nil
	})

	waitFor(t, "first check", func() bool { return w.Stats().Checks > 0 })
	for i := int64(1); i <= 5; i++ {
		c.v.Store(i)
		time.Sleep(20 * time.Millisecond)
	}
	if got := reloads.Load(); got != 0 {
		t.Fatalf("reloads inside debounce window: got %d", got)
	}

	waitFor(t, "debounced reload", func() bool { return reloads.Load() == 1 })
	time.Sleep(200 * time.Millisecond)
	if got := reloads.Load(); got != 1 {
		t.Fatalf("reloads: got %d, want exactly 1", got)
	}
	if w.Token() != 5 {
		t.Fatalf("Token: got %d, want 5", w.Token())
	}
}

func TestOnChange_FailedActionRetries(t *testing.T) {
	var c counter
	var calls atomic.Int32
	w := New(c.detect, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.OnChange(ctx, func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("boom")
		}
		return nil
	})

	waitFor(t, "first check", func() bool { return w.Stats().Checks > 0 })
	c.v.Store(7)
	waitFor(t, "retry", func() bool { return w.Token() == 7 })

	s := w.Stats()
	if s.Errors == 0 || s.Reloads != 1 {
		t.Fatalf("Stats: got %+v", s)
	}
}

func TestOnChange_DetectorErrors(t *testing.T) {
	var checks atomic.Int32
	w := New(func(context.Context) (int64, error) {
		checks.Add(1)
		return 0, errors.New("unreadable")
	}, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.OnChange(ctx, func(context.Context) error { return nil })
		close(done)
	}()

	waitFor(t, "errors", func() bool { return w.Stats().Errors >= 2 })
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnChange did not return after cancel")
	}
	if w.Stats().Reloads != 0 {
		t.Fatal("no reload expected when detection fails")
	}
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	det := Files(dir, "a.json", "b.json")
	ctx := context.Background()

	empty, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "a.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	created, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if created == empty {
		t.Fatal("creating a file should change the token")
	}

	again, _ := det(ctx)
	if again != created {
		t.Fatal("token should be stable without changes")
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	touched, _ := det(ctx)
	if touched == created {
		t.Fatal("modification time change should change the token")
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	removed, _ := det(ctx)
	if removed != empty {
		t.Fatal("removing the file should restore the empty token")
	}
}
