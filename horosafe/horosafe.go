// Package horosafe guards the inputs the analyzer accepts from untrusted
// callers: layout paths requested over MCP and bodies of bounded size.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MaxLayoutSize is the default cap for one layout document (4 MiB).
const MaxLayoutSize int64 = 4 << 20

var (
	// ErrPathTraversal is returned when a requested path escapes its base.
	ErrPathTraversal = errors.New("horosafe: path traversal detected")
	// ErrTooLarge is returned when a reader holds more than the allowed bytes.
	ErrTooLarge = errors.New("horosafe: input too large")
)

// SafePath joins userInput under base and rejects anything that would
// resolve outside it. The result is cleaned.
func SafePath(base, userInput string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("horosafe: empty base directory")
	}
	for _, part := range strings.FieldsFunc(userInput, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return "", ErrPathTraversal
		}
	}
	root := filepath.Clean(base)
	joined := filepath.Join(root, filepath.Clean("/"+userInput))
	if joined != root && !strings.HasPrefix(joined, root+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

// LimitedReadAll reads r to the end, failing with ErrTooLarge past maxBytes.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("horosafe: read: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}
