// CLAUDE:SUMMARY Multi-tier alt-text inference: label pass, independent confidence pass, alternatives.
// Package infer guesses an accessibility label for a layout Element from the
// rule tables.
//
// The label comes from the first tier that yields a non-empty candidate:
//
//	content description → resource id (exact, then longest partial) →
//	app context → text pattern → class name → parent/sibling context → default
//
// The confidence is computed by a second, independent pass over the same
// precedence. The two passes can disagree (a label found by class-name
// containment has no confidence tier of its own) and must stay separate.
package infer

import (
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/alttext/layout"
	"github.com/hazyhaar/alttext/rules"
)

// MaxAlternatives caps the alternatives list.
const MaxAlternatives = 5

// Result is the outcome of inferring one element.
type Result struct {
	Label        string   `json:"label"`
	Alternatives []string `json:"alternatives"`
	Tier         Tier     `json:"confidence_tier"`
	Score        float64  `json:"confidence_score"`
}

// Engine runs inference against one immutable rule snapshot. It is safe for
// concurrent use.
type Engine struct {
	t *rules.Tables
}

// New creates an Engine over tables. A nil snapshot behaves as empty tables.
func New(tables *rules.Tables) *Engine {
	if tables == nil {
		tables = rules.Empty()
	}
	return &Engine{t: tables}
}

// Tables returns the snapshot the engine reads.
func (e *Engine) Tables() *rules.Tables { return e.t }

// Infer returns the label, alternatives and confidence for el.
func (e *Engine) Infer(el layout.Element) Result {
	tier, score := e.Confidence(el)
	return Result{
		Label:        e.Label(el),
		Alternatives: e.Alternatives(el),
		Tier:         tier,
		Score:        score,
	}
}

// Label runs the ordered label pipeline.
func (e *Engine) Label(el layout.Element) string {
	if strings.TrimSpace(el.ContentDescription) != "" {
		return el.ContentDescription
	}
	if el.ResourceID != "" {
		if s, ok := e.matchResourceID(el.ResourceID); ok {
			return s
		}
	}
	if el.AppContext != "" {
		if s, ok := e.matchAppContext(el.AppContext); ok {
			return s
		}
	}
	if el.Text != "" {
		if s, ok := e.matchTextPattern(el.Text); ok {
			return s
		}
	}
	if el.ClassName != "" {
		if s, ok := e.matchClassName(el.ClassName); ok {
			return s
		}
	}
	if s, ok := e.inferFromContext(el); ok {
		return s
	}
	return string(DefaultLabel(el.ClassName))
}

// Confidence re-derives tier applicability on its own, in precedence order.
// Note the content description check is on the raw value: a
// whitespace-only description scores 1.0 here while Label skips it.
func (e *Engine) Confidence(el layout.Element) (Tier, float64) {
	tier := e.confidenceTier(el)
	return tier, tier.Score()
}

func (e *Engine) confidenceTier(el layout.Element) Tier {
	if el.ContentDescription != "" {
		return TierContentDescription
	}
	if el.ResourceID != "" {
		if _, ok := e.t.Resource.Get(el.ResourceID); ok {
			return TierResourceIDExact
		}
		id := strings.ToLower(el.ResourceID)
		for key := range e.t.Resource.All() {
			if strings.Contains(id, strings.ToLower(key)) {
				return TierResourceIDPartial
			}
		}
	}
	if el.AppContext != "" {
		for key := range e.t.App.All() {
			if strings.Contains(el.AppContext, key) {
				return TierAppContext
			}
		}
	}
	if el.Text != "" {
		if _, ok := e.matchTextPattern(el.Text); ok {
			return TierTextPattern
		}
	}
	if el.ClassName != "" {
		if _, ok := e.t.Class.Get(el.ClassName); ok {
			return TierClassNameExact
		}
		if _, ok := e.t.Class.Get(layout.SimpleName(el.ClassName)); ok {
			return TierClassNameSimple
		}
	}
	if _, ok := e.inferFromContext(el); ok {
		return TierContextInference
	}
	return TierDefault
}

// Alternatives collects candidates from the exact resource entry, the exact
// class entry and every app entry whose key occurs in the app context.
// Duplicates are dropped, first occurrence wins, at most MaxAlternatives.
func (e *Engine) Alternatives(el layout.Element) []string {
	var all []string
	if el.ResourceID != "" {
		if c, ok := e.t.Resource.Get(el.ResourceID); ok {
			all = append(all, c...)
		}
	}
	if el.ClassName != "" {
		if c, ok := e.t.Class.Get(el.ClassName); ok {
			all = append(all, c...)
		}
	}
	if el.AppContext != "" {
		for key, c := range e.t.App.All() {
			if strings.Contains(el.AppContext, key) {
				all = append(all, c...)
			}
		}
	}

	out := make([]string, 0, MaxAlternatives)
	seen := make(map[string]struct{}, len(all))
	for _, s := range all {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == MaxAlternatives {
			break
		}
	}
	return out
}

// matchResourceID looks up the id exactly, then picks the longest table key
// contained in it (case-insensitive, length in characters, first key wins on
// equal length).
func (e *Engine) matchResourceID(id string) (string, bool) {
	if c, found := e.t.Resource.Get(id); found {
		s := first(c)
		return s, s != ""
	}

	lower := strings.ToLower(id)
	bestLen := -1
	var best []string
	for key, c := range e.t.Resource.All() {
		if len(c) == 0 {
			continue
		}
		if n := utf8.RuneCountInString(key); n > bestLen && strings.Contains(lower, strings.ToLower(key)) {
			bestLen = n
			best = c
		}
	}
	s := first(best)
	return s, s != ""
}

// matchAppContext uses the first app key contained in appContext.
func (e *Engine) matchAppContext(appContext string) (string, bool) {
	for key, c := range e.t.App.All() {
		if strings.Contains(appContext, key) {
			s := first(c)
			return s, s != ""
		}
	}
	return "", false
}

// matchTextPattern returns the first pattern contained in text, else, for
// each action word found among the text's tokens, the first pattern that
// itself contains that word.
func (e *Engine) matchTextPattern(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	if p, ok := e.patternIn(lower); ok {
		return p, true
	}
	for _, word := range strings.Fields(lower) {
		if !e.t.Action.Has(word) {
			continue
		}
		if p, ok := e.patternWith(word); ok {
			return p, true
		}
	}
	return "", false
}

// matchClassName tries the full name, the simple name, then any table key
// contained in the lowercased class name.
func (e *Engine) matchClassName(className string) (string, bool) {
	if c, ok := e.t.Class.Get(className); ok {
		s := first(c)
		return s, s != ""
	}
	if c, ok := e.t.Class.Get(layout.SimpleName(className)); ok {
		s := first(c)
		return s, s != ""
	}
	lower := strings.ToLower(className)
	for key, c := range e.t.Class.All() {
		if strings.Contains(lower, strings.ToLower(key)) {
			s := first(c)
			return s, s != ""
		}
	}
	return "", false
}

// inferFromContext searches the parent and sibling summaries: first for a
// pattern contained in them, then for an action word they contain that some
// pattern also contains.
func (e *Engine) inferFromContext(el layout.Element) (string, bool) {
	combined := strings.ToLower(el.ParentContext + " " + el.SiblingContext)
	if p, ok := e.patternIn(combined); ok {
		return p, true
	}
	for word := range e.t.Action.All() {
		if word == "" || !strings.Contains(combined, word) {
			continue
		}
		if p, ok := e.patternWith(word); ok {
			return p, true
		}
	}
	return "", false
}

// patternIn returns the first non-empty pattern, in category order, that
// occurs in the lowercased haystack.
func (e *Engine) patternIn(haystack string) (string, bool) {
	for _, patterns := range e.t.TextPattern.All() {
		for _, p := range patterns {
			if p != "" && strings.Contains(haystack, strings.ToLower(p)) {
				return p, true
			}
		}
	}
	return "", false
}

// patternWith returns the first pattern, in category order, containing word.
func (e *Engine) patternWith(word string) (string, bool) {
	for _, patterns := range e.t.TextPattern.All() {
		for _, p := range patterns {
			if strings.Contains(strings.ToLower(p), word) {
				return p, true
			}
		}
	}
	return "", false
}

// DefaultLabel maps a class name to a generic noun.
func DefaultLabel(className string) GenericNoun {
	lower := strings.ToLower(className)
	for _, g := range genericNouns {
		if strings.Contains(lower, g.fragment) {
			return g.noun
		}
	}
	return NounUIElement
}

func first(c []string) string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}
