package layout

import "fmt"

// MalformedInputError reports markup that is not a well-formed layout tree.
// Callers of the full pipeline treat it as "zero elements extracted".
type MalformedInputError struct {
	Line   int   // line reported by the XML decoder, 0 if unknown
	Offset int64 // byte offset where decoding stopped
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("layout: malformed input at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("layout: malformed input: %v", e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }
