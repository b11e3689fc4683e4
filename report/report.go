// CLAUDE:SUMMARY Per-element priority and suggestions, plus the aggregate coverage report.
// Package report turns inference results into remediation suggestions and an
// aggregate coverage report.
package report

import (
	"github.com/hazyhaar/alttext/infer"
	"github.com/hazyhaar/alttext/layout"
)

// Priority ranks an element or suggestion for remediation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// SuggestionType classifies a remediation suggestion.
type SuggestionType string

const (
	SuggestMissingDescription   SuggestionType = "missing_content_description"
	SuggestImprovement          SuggestionType = "improvement_suggestion"
	SuggestClickableWithoutDesc SuggestionType = "clickable_without_description"
)

// improvementThreshold is the score above which an inferred label is offered
// in place of an existing description.
const improvementThreshold = 0.7

// Suggestion is one proposed fix for an element.
type Suggestion struct {
	Type        SuggestionType `json:"type"`
	Description string         `json:"description"`
	Current     string         `json:"current"`
	Suggested   string         `json:"suggested"`
	Confidence  float64        `json:"confidence"`
	Priority    Priority       `json:"priority"`
}

// ElementResult is the per-element pipeline output.
type ElementResult struct {
	ResourceID         string       `json:"resource_id"`
	ClassName          string       `json:"class_name"`
	Text               string       `json:"text"`
	CurrentDescription string       `json:"current_content_description"`
	GeneratedLabel     string       `json:"generated_alt_text"`
	Alternatives       []string     `json:"alternatives"`
	ConfidenceTier     infer.Tier   `json:"confidence_type"`
	ConfidenceScore    float64      `json:"confidence_score"`
	Clickable          bool         `json:"clickable"`
	Focusable          bool         `json:"focusable"`
	Enabled            bool         `json:"enabled"`
	Bounds             string       `json:"bounds,omitempty"`
	Suggestions        []Suggestion `json:"suggestions"`
	Priority           Priority     `json:"priority"`
}

// ElementPriority is high for a clickable element with a strong match,
// medium for any clickable element or a fair match, low otherwise.
func ElementPriority(clickable bool, score float64) Priority {
	switch {
	case clickable && score > 0.8:
		return PriorityHigh
	case clickable || score > 0.6:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Suggest derives the suggestions for el given its inference result.
// A missing description and an improvement are mutually exclusive; a
// clickable element without description gets an extra suggestion.
func Suggest(el layout.Element, res infer.Result) []Suggestion {
	out := make([]Suggestion, 0, 2)
	switch {
	case el.ContentDescription == "":
		p := PriorityMedium
		if el.Clickable {
			p = PriorityHigh
		}
		out = append(out, Suggestion{
			Type:        SuggestMissingDescription,
			Description: "contentDescription attribute is missing",
			Suggested:   res.Label,
			Confidence:  res.Score,
			Priority:    p,
		})
	case res.Score > improvementThreshold:
		out = append(out, Suggestion{
			Type:        SuggestImprovement,
			Description: "a clearer accessibility label is available",
			Current:     el.ContentDescription,
			Suggested:   res.Label,
			Confidence:  res.Score,
			Priority:    PriorityMedium,
		})
	}
	if el.Clickable && el.ContentDescription == "" {
		out = append(out, Suggestion{
			Type:        SuggestClickableWithoutDesc,
			Description: "clickable element needs an accessibility description",
			Suggested:   res.Label,
			Confidence:  res.Score,
			Priority:    PriorityHigh,
		})
	}
	return out
}

// NewElementResult combines an element and its inference result.
func NewElementResult(el layout.Element, res infer.Result) ElementResult {
	alts := res.Alternatives
	if alts == nil {
		alts = []string{}
	}
	return ElementResult{
		ResourceID:         el.ResourceID,
		ClassName:          el.ClassName,
		Text:               el.Text,
		CurrentDescription: el.ContentDescription,
		GeneratedLabel:     res.Label,
		Alternatives:       alts,
		ConfidenceTier:     res.Tier,
		ConfidenceScore:    res.Score,
		Clickable:          el.Clickable,
		Focusable:          el.Focusable,
		Enabled:            el.Enabled,
		Bounds:             el.Bounds,
		Suggestions:        Suggest(el, res),
		Priority:           ElementPriority(el.Clickable, res.Score),
	}
}

// Entry is a suggestion as listed in a priority bucket.
type Entry struct {
	ResourceID string         `json:"resource_id"`
	Type       SuggestionType `json:"type"`
	Suggested  string         `json:"suggested"`
	Confidence float64        `json:"confidence"`
}

// Summary holds the coverage counts.
type Summary struct {
	TotalElements      int     `json:"total_elements"`
	WithDescription    int     `json:"elements_with_content_description"`
	WithoutDescription int     `json:"elements_without_content_description"`
	CoveragePercentage float64 `json:"coverage_percentage"`
}

// Buckets groups suggestions by their own priority, in element order.
type Buckets struct {
	High   []Entry `json:"high_priority"`
	Medium []Entry `json:"medium_priority"`
	Low    []Entry `json:"low_priority"`
}

// Statistics counts the entries of each bucket.
type Statistics struct {
	High   int `json:"high_priority_count"`
	Medium int `json:"medium_priority_count"`
	Low    int `json:"low_priority_count"`
}

// Report is the aggregate over one layout.
type Report struct {
	Summary     Summary    `json:"summary"`
	Suggestions Buckets    `json:"suggestions"`
	Statistics  Statistics `json:"statistics"`
}

// Build aggregates results. An empty set yields zero counts and 0% coverage.
func Build(results []ElementResult) Report {
	var r Report
	r.Suggestions = Buckets{High: []Entry{}, Medium: []Entry{}, Low: []Entry{}}

	r.Summary.TotalElements = len(results)
	for _, res := range results {
		if res.CurrentDescription != "" {
			r.Summary.WithDescription++
		}
		for _, s := range res.Suggestions {
			e := Entry{
				ResourceID: res.ResourceID,
				Type:       s.Type,
				Suggested:  s.Suggested,
				Confidence: s.Confidence,
			}
			switch s.Priority {
			case PriorityHigh:
				r.Suggestions.High = append(r.Suggestions.High, e)
			case PriorityMedium:
				r.Suggestions.Medium = append(r.Suggestions.Medium, e)
			default:
				r.Suggestions.Low = append(r.Suggestions.Low, e)
			}
		}
	}
	r.Summary.WithoutDescription = r.Summary.TotalElements - r.Summary.WithDescription
	if r.Summary.TotalElements > 0 {
		r.Summary.CoveragePercentage = float64(r.Summary.WithDescription) / float64(r.Summary.TotalElements) * 100
	}

	r.Statistics = Statistics{
		High:   len(r.Suggestions.High),
		Medium: len(r.Suggestions.Medium),
		Low:    len(r.Suggestions.Low),
	}
	return r
}
