package infer

import (
	"reflect"
	"testing"

	"github.com/hazyhaar/alttext/layout"
	"github.com/hazyhaar/alttext/rules"
)

func testTables() *rules.Tables {
	t := rules.Empty()
	t.Resource.Set("backBtn", []string{"뒤로 가기", "Back"})
	t.Resource.Set("btn", []string{"Button"})
	t.Resource.Set("back_btn", []string{"Go back"})
	t.Resource.Set("back", []string{"Back arrow"})
	t.Class.Set("ImageButton", []string{"Image button", "Back"})
	t.Class.Set("android.widget.Switch", []string{"Toggle"})
	t.TextPattern.Set("navigation", []string{"Go Back", "next page"})
	t.TextPattern.Set("search", []string{"search for items"})
	t.App.Set("com.example.app", []string{"Menu", "Home"})
	t.Action.Set("search", 120)
	t.Action.Set("open", 40)
	return t
}

func TestInfer_ContentDescriptionWins(t *testing.T) {
	e := New(testTables())
	el := layout.Element{ResourceID: "backBtn", ClassName: "ImageButton", ContentDescription: "Close dialog"}
	res := e.Infer(el)
	if res.Label != "Close dialog" {
		t.Errorf("Label: got %q, want %q", res.Label, "Close dialog")
	}
	if res.Tier != TierContentDescription || res.Score != 1.0 {
		t.Errorf("confidence: got %s %.2f", res.Tier, res.Score)
	}
	// Table candidates are still offered for review.
	want := []string{"뒤로 가기", "Back", "Image button"}
	if !reflect.DeepEqual(res.Alternatives, want) {
		t.Errorf("Alternatives: got %v, want %v", res.Alternatives, want)
	}
}

func TestInfer_BackButtonScenario(t *testing.T) {
	e := New(testTables())
	el := layout.Element{ResourceID: "backBtn", ClassName: "ImageButton", Clickable: true}
	res := e.Infer(el)
	if res.Label != "뒤로 가기" {
		t.Errorf("Label: got %q", res.Label)
	}
	if res.Tier != TierResourceIDExact || res.Score != 0.95 {
		t.Errorf("confidence: got %s %.2f", res.Tier, res.Score)
	}
}

func TestInfer_ResourcePartialLongest(t *testing.T) {
	e := New(testTables())
	res := e.Infer(layout.Element{ResourceID: "toolbar_back_btn", ClassName: "ImageView"})
	if res.Label != "Go back" {
		t.Errorf("Label: got %q, want longest partial match %q", res.Label, "Go back")
	}
	if res.Tier != TierResourceIDPartial || res.Score != 0.8 {
		t.Errorf("confidence: got %s %.2f", res.Tier, res.Score)
	}
}

func TestInfer_ResourcePartialTieUsesTableOrder(t *testing.T) {
	tables := rules.Empty()
	tables.Resource.Set("abc", []string{"first"})
	tables.Resource.Set("xyz", []string{"second"})
	e := New(tables)
	if got := e.Label(layout.Element{ResourceID: "XYZ_ABC"}); got != "first" {
		t.Errorf("Label: got %q, want %q", got, "first")
	}
}

func TestInfer_ResourcePartialCountsCharacters(t *testing.T) {
	tables := rules.Empty()
	tables.Resource.Set("ab", []string{"by-ab"})
	tables.Resource.Set("뒤", []string{"by-korean"})
	e := New(tables)
	// "뒤" is three bytes but one character; "ab" is longer.
	if got := e.Label(layout.Element{ResourceID: "x_ab_뒤"}); got != "by-ab" {
		t.Errorf("Label: got %q, want %q", got, "by-ab")
	}
}

func TestInfer_AppContext(t *testing.T) {
	e := New(testTables())
	res := e.Infer(layout.Element{ClassName: "ImageView", AppContext: "com.example.app.MainActivity"})
	if res.Label != "Menu" || res.Tier != TierAppContext || res.Score != 0.7 {
		t.Errorf("got %+v", res)
	}
	if !reflect.DeepEqual(res.Alternatives, []string{"Menu", "Home"}) {
		t.Errorf("Alternatives: got %v", res.Alternatives)
	}
}

func TestInfer_TextPattern(t *testing.T) {
	e := New(testTables())

	direct := e.Infer(layout.Element{ClassName: "TextView", Text: "Tap to go back"})
	if direct.Label != "Go Back" || direct.Tier != TierTextPattern || direct.Score != 0.6 {
		t.Errorf("direct: got %+v", direct)
	}

	// No pattern occurs in the text, but "search" is an action word that a
	// pattern contains.
	viaAction := e.Infer(layout.Element{ClassName: "TextView", Text: "Search now"})
	if viaAction.Label != "search for items" || viaAction.Tier != TierTextPattern {
		t.Errorf("via action: got %+v", viaAction)
	}

	// "open" is an action word but no pattern contains it.
	miss := e.Infer(layout.Element{ClassName: "TextView", Text: "open sesame"})
	if miss.Tier == TierTextPattern {
		t.Errorf("miss: got %+v", miss)
	}
}

func TestInfer_ClassName(t *testing.T) {
	e := New(testTables())

	exact := e.Infer(layout.Element{ClassName: "android.widget.Switch"})
	if exact.Label != "Toggle" || exact.Tier != TierClassNameExact || exact.Score != 0.5 {
		t.Errorf("exact: got %+v", exact)
	}

	simple := e.Infer(layout.Element{ClassName: "android.widget.ImageButton"})
	if simple.Label != "Image button" || simple.Tier != TierClassNameSimple || simple.Score != 0.4 {
		t.Errorf("simple: got %+v", simple)
	}
}

func TestInfer_LabelAndConfidenceDiverge(t *testing.T) {
	tables := rules.Empty()
	tables.Class.Set("Button", []string{"Action"})
	e := New(tables)

	// Class containment supplies the label but is not a confidence tier.
	res := e.Infer(layout.Element{ClassName: "com.vendor.MaterialButtonCompat"})
	if res.Label != "Action" {
		t.Errorf("Label: got %q, want %q", res.Label, "Action")
	}
	if res.Tier != TierDefault || res.Score != 0.1 {
		t.Errorf("confidence: got %s %.2f, want default 0.10", res.Tier, res.Score)
	}
}

func TestInfer_WhitespaceDescription(t *testing.T) {
	e := New(testTables())
	res := e.Infer(layout.Element{ResourceID: "backBtn", ClassName: "ImageButton", ContentDescription: "   "})
	if res.Label != "뒤로 가기" {
		t.Errorf("Label: got %q, whitespace description must not be the label", res.Label)
	}
	if res.Tier != TierContentDescription {
		t.Errorf("Tier: got %s, the confidence pass checks the raw description", res.Tier)
	}
}

func TestInfer_ContextInference(t *testing.T) {
	e := New(testTables())
	res := e.Infer(layout.Element{
		ClassName:     "ImageView",
		ParentContext: "Toolbar:Go Back",
	})
	if res.Label != "Go Back" || res.Tier != TierContextInference || res.Score != 0.3 {
		t.Errorf("pattern in context: got %+v", res)
	}

	res = e.Infer(layout.Element{
		ClassName:      "ImageView",
		SiblingContext: "EditText:search_field",
	})
	if res.Label != "search for items" || res.Tier != TierContextInference {
		t.Errorf("action word in context: got %+v", res)
	}
}

func TestInfer_DefaultScenario(t *testing.T) {
	e := New(rules.Empty())
	res := e.Infer(layout.Element{ClassName: "ProgressBar"})
	if res.Label != string(NounUIElement) {
		t.Errorf("Label: got %q, want %q", res.Label, NounUIElement)
	}
	if res.Tier != TierDefault || res.Score != 0.1 {
		t.Errorf("confidence: got %s %.2f", res.Tier, res.Score)
	}
	if len(res.Alternatives) != 0 {
		t.Errorf("Alternatives: got %v", res.Alternatives)
	}
}

func TestDefaultLabel(t *testing.T) {
	tests := []struct {
		class string
		want  GenericNoun
	}{
		{"Button", NounButton},
		{"ImageButton", NounButton},
		{"FloatingActionButton", NounButton},
		{"ImageView", NounImage},
		{"EditText", NounInputField},
		{"TextView", NounText},
		{"CheckBox", NounCheckbox},
		{"RadioButton", NounButton},
		{"android.widget.RadioGroup", NounRadioButton},
		{"Switch", NounSwitch},
		{"SeekBar", NounSlider},
		{"Spinner", NounUIElement},
		{"", NounUIElement},
	}
	for _, tt := range tests {
		if got := DefaultLabel(tt.class); got != tt.want {
			t.Errorf("DefaultLabel(%q) = %q, want %q", tt.class, got, tt.want)
		}
	}
}

func TestAlternatives_CapAndDedup(t *testing.T) {
	tables := rules.Empty()
	tables.Resource.Set("x", []string{"a", "b", "c"})
	tables.Class.Set("Button", []string{"c", "d"})
	tables.App.Set("com", []string{"e", "f", "a"})
	tables.App.Set("example", []string{"g"})
	e := New(tables)

	got := e.Alternatives(layout.Element{ResourceID: "x", ClassName: "Button", AppContext: "com.example"})
	want := []string{"a", "b", "c", "d", "e"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Alternatives: got %v, want %v", got, want)
	}
}

func TestTierScoresMonotonic(t *testing.T) {
	prev := 1.0
	for i, tier := range Tiers() {
		s := tier.Score()
		if s < 0 || s > 1 {
			t.Errorf("%s: score %.2f outside [0,1]", tier, s)
		}
		if i > 0 && s > prev {
			t.Errorf("%s: score %.2f exceeds previous tier %.2f", tier, s, prev)
		}
		prev = s
	}
	if Tier("bogus").Score() != 0 {
		t.Error("unknown tier should score 0")
	}
}

func TestInfer_Idempotent(t *testing.T) {
	e := New(testTables())
	elems := []layout.Element{
		{ResourceID: "backBtn", ClassName: "ImageButton"},
		{ClassName: "TextView", Text: "Search now", AppContext: "com.example.app"},
		{ClassName: "ProgressBar"},
	}
	for _, el := range elems {
		a, b := e.Infer(el), e.Infer(el)
		if !reflect.DeepEqual(a, b) {
			t.Errorf("Infer(%+v) not idempotent: %+v vs %+v", el, a, b)
		}
	}
}

func TestNew_NilTables(t *testing.T) {
	e := New(nil)
	if res := e.Infer(layout.Element{ClassName: "Button"}); res.Label != string(NounButton) {
		t.Errorf("Label: got %q", res.Label)
	}
}
