// CLAUDE:SUMMARY Order-preserving JSON tables (string → []string, string → int) with strict shape validation.
package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
)

// List maps keys to ordered candidate strings and remembers key order as it
// appeared on disk. Matching tie-breaks depend on that order.
type List struct {
	keys []string
	vals map[string][]string
}

// Set adds or replaces an entry. New keys are appended to the order.
func (l *List) Set(key string, candidates []string) {
	if l.vals == nil {
		l.vals = make(map[string][]string)
	}
	if _, ok := l.vals[key]; !ok {
		l.keys = append(l.keys, key)
	}
	l.vals[key] = append([]string(nil), candidates...)
}

// Get returns the candidates for key. The returned slice must not be modified.
func (l *List) Get(key string) ([]string, bool) {
	v, ok := l.vals[key]
	return v, ok
}

// Len returns the number of entries.
func (l *List) Len() int { return len(l.keys) }

// Keys returns the keys in table order.
func (l *List) Keys() []string { return append([]string(nil), l.keys...) }

// All iterates entries in table order.
func (l *List) All() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, k := range l.keys {
			if !yield(k, l.vals[k]) {
				return
			}
		}
	}
}

// MarshalJSON writes the object with keys in table order.
func (l *List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range l.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		vals := l.vals[k]
		if vals == nil {
			vals = []string{}
		}
		if err := writeJSON(&buf, vals); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts only an object whose values are arrays of strings.
// Empty keys are rejected. On error the receiver is left untouched.
func (l *List) UnmarshalJSON(data []byte) error {
	var out List
	err := decodeObject(data, func(dec *json.Decoder, key string) error {
		var vals []string
		if err := dec.Decode(&vals); err != nil {
			return fmt.Errorf("key %q: expected array of strings: %w", key, err)
		}
		if vals == nil {
			return fmt.Errorf("key %q: expected array of strings, got null", key)
		}
		out.Set(key, vals)
		return nil
	})
	if err != nil {
		return err
	}
	*l = out
	return nil
}

// Counts maps words to frequency counts, preserving table order.
type Counts struct {
	keys []string
	vals map[string]int
}

// Set adds or replaces a count.
func (c *Counts) Set(word string, n int) {
	if c.vals == nil {
		c.vals = make(map[string]int)
	}
	if _, ok := c.vals[word]; !ok {
		c.keys = append(c.keys, word)
	}
	c.vals[word] = n
}

// Get returns the count for word.
func (c *Counts) Get(word string) (int, bool) {
	n, ok := c.vals[word]
	return n, ok
}

// Has reports whether word is present.
func (c *Counts) Has(word string) bool {
	_, ok := c.vals[word]
	return ok
}

// Len returns the number of words.
func (c *Counts) Len() int { return len(c.keys) }

// Keys returns the words in table order.
func (c *Counts) Keys() []string { return append([]string(nil), c.keys...) }

// All iterates words in table order.
func (c *Counts) All() iter.Seq2[string, int] {
	return func(yield func(string, int) bool) {
		for _, k := range c.keys {
			if !yield(k, c.vals[k]) {
				return
			}
		}
	}
}

// MarshalJSON writes the object with words in table order.
func (c *Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, k); err != nil {
			return nil, err
		}
		fmt.Fprintf(&buf, ":%d", c.vals[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts only an object whose values are integers.
func (c *Counts) UnmarshalJSON(data []byte) error {
	var out Counts
	err := decodeObject(data, func(dec *json.Decoder, key string) error {
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return fmt.Errorf("key %q: expected integer: %w", key, err)
		}
		v, err := n.Int64()
		if err != nil {
			return fmt.Errorf("key %q: expected integer, got %s", key, n)
		}
		out.Set(key, int(v))
		return nil
	})
	if err != nil {
		return err
	}
	*c = out
	return nil
}

// decodeObject walks a top-level JSON object key by key, handing each value
// to fn. Duplicate keys keep the first position and the last value.
func decodeObject(data []byte, fn func(dec *json.Decoder, key string) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("expected JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected string key, got %v", tok)
		}
		if key == "" {
			return errors.New("empty key")
		}
		if err := fn(dec, key); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after object")
	}
	return nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
