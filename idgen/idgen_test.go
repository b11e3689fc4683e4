package idgen

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7(t *testing.T) {
	id := UUIDv7()()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("UUIDv7: %q does not parse: %v", id, err)
	}
	if u.Version() != 7 {
		t.Fatalf("UUIDv7: version %d", u.Version())
	}
}

func TestUUIDv7_SortsByCreation(t *testing.T) {
	gen := UUIDv7()
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = gen()
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatal("UUIDv7 ids should sort in creation order")
	}
}

func TestNew_RunPrefix(t *testing.T) {
	id := New()
	if !strings.HasPrefix(id, RunPrefix) {
		t.Fatalf("New: got %q, want prefix %q", id, RunPrefix)
	}
	if len(id) != len(RunPrefix)+36 {
		t.Fatalf("New: got length %d", len(id))
	}
	if New() == id {
		t.Fatal("New: duplicate id")
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("x_", func() string { return "1" })
	if got := gen(); got != "x_1" {
		t.Fatalf("got %q, want x_1", got)
	}
}

func TestParse(t *testing.T) {
	id := New()
	upper := RunPrefix + strings.ToUpper(strings.TrimPrefix(id, RunPrefix))
	got, err := Parse(RunPrefix, upper)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != id {
		t.Fatalf("Parse: got %q, want canonical %q", got, id)
	}

	for _, bad := range []string{"", "run_", "run_not-a-uuid", id[len(RunPrefix):]} {
		if _, err := Parse(RunPrefix, bad); err == nil {
			t.Errorf("Parse(%q): expected error", bad)
		}
	}
}
