package infer

// Tier names the matching strategy behind a confidence score.
type Tier string

const (
	TierContentDescription Tier = "content_description"
	TierResourceIDExact    Tier = "resource_id_exact"
	TierResourceIDPartial  Tier = "resource_id_partial"
	TierAppContext         Tier = "app_context"
	TierTextPattern        Tier = "text_pattern"
	TierClassNameExact     Tier = "class_name_exact"
	TierClassNameSimple    Tier = "class_name_simple"
	TierContextInference   Tier = "context_inference"
	TierDefault            Tier = "default"
)

// tiers lists every tier from most to least reliable.
var tiers = []Tier{
	TierContentDescription,
	TierResourceIDExact,
	TierResourceIDPartial,
	TierAppContext,
	TierTextPattern,
	TierClassNameExact,
	TierClassNameSimple,
	TierContextInference,
	TierDefault,
}

var tierScores = map[Tier]float64{
	TierContentDescription: 1.0,
	TierResourceIDExact:    0.95,
	TierResourceIDPartial:  0.8,
	TierAppContext:         0.7,
	TierTextPattern:        0.6,
	TierClassNameExact:     0.5,
	TierClassNameSimple:    0.4,
	TierContextInference:   0.3,
	TierDefault:            0.1,
}

// Tiers returns every tier in precedence order.
func Tiers() []Tier { return append([]Tier(nil), tiers...) }

// Score returns the fixed confidence score of a tier; unknown tiers score 0.
func (t Tier) Score() float64 { return tierScores[t] }

// GenericNoun is the fallback label chosen from the element's class.
type GenericNoun string

const (
	NounButton      GenericNoun = "버튼"
	NounImage       GenericNoun = "이미지"
	NounInputField  GenericNoun = "입력 필드"
	NounText        GenericNoun = "텍스트"
	NounCheckbox    GenericNoun = "체크박스"
	NounRadioButton GenericNoun = "라디오 버튼"
	NounSwitch      GenericNoun = "스위치"
	NounSlider      GenericNoun = "슬라이더"
	NounUIElement   GenericNoun = "UI 요소"
)

// genericNouns is checked in order against the lowercased class name;
// the first substring hit wins.
var genericNouns = []struct {
	fragment string
	noun     GenericNoun
}{
	{"button", NounButton},
	{"image", NounImage},
	{"edittext", NounInputField},
	{"textview", NounText},
	{"checkbox", NounCheckbox},
	{"radio", NounRadioButton},
	{"switch", NounSwitch},
	{"seekbar", NounSlider},
}
