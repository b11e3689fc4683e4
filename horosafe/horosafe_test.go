package horosafe

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestSafePath(t *testing.T) {
	base := filepath.FromSlash("/srv/layouts")
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"main.xml", "/srv/layouts/main.xml", false},
		{"res/layout/activity_main.xml", "/srv/layouts/res/layout/activity_main.xml", false},
		{"/abs/looking.xml", "/srv/layouts/abs/looking.xml", false},
		{"", "/srv/layouts", false},
		{"../etc/passwd", "", true},
		{"res/../../outside.xml", "", true},
		{"..", "", true},
	}
	for _, tt := range tests {
		got, err := SafePath(base, tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("SafePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrPathTraversal) {
				t.Errorf("SafePath(%q): got %v, want ErrPathTraversal", tt.input, err)
			}
			continue
		}
		if got != filepath.FromSlash(tt.want) {
			t.Errorf("SafePath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	// Dots inside a name are not traversal.
	if _, err := SafePath(base, "v1..2.xml"); err != nil {
		t.Errorf("SafePath(v1..2.xml): %v", err)
	}
	if _, err := SafePath("", "main.xml"); err == nil {
		t.Error("empty base: expected error")
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("<Button/>"), 9)
	if err != nil {
		t.Fatalf("at limit: %v", err)
	}
	if string(data) != "<Button/>" {
		t.Fatalf("got %q", data)
	}

	_, err = LimitedReadAll(strings.NewReader("<Button/>"), 8)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("over limit: got %v, want ErrTooLarge", err)
	}
}
