// CLAUDE:SUMMARY Element record and closed UI class set produced by the layout parser.
package layout

import (
	"encoding/json"
	"strings"
)

// Element is the normalized description of one interactive node of a layout.
type Element struct {
	ResourceID         string   `json:"resource_id"`
	ClassName          string   `json:"class_name"`
	Text               string   `json:"text"`
	ContentDescription string   `json:"content_description"`
	Hint               string   `json:"hint,omitempty"`
	Clickable          bool     `json:"clickable"`
	Focusable          bool     `json:"focusable"`
	Enabled            bool     `json:"enabled"`
	Bounds             string   `json:"bounds"`
	ParentID           string   `json:"parent_id,omitempty"`
	SiblingIDs         []string `json:"sibling_ids,omitempty"`
	ParentContext      string   `json:"parent_context"`
	SiblingContext     string   `json:"sibling_context"`
	AppContext         string   `json:"app_context"`
}

// UnmarshalJSON decodes an Element, defaulting Enabled to true when the
// field is absent as the parser does for a missing attribute.
func (e *Element) UnmarshalJSON(data []byte) error {
	type plain Element
	v := plain{Enabled: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = Element(v)
	return nil
}

// UIClass is the simple name of a widget type that yields an Element.
type UIClass string

const (
	ClassButton               UIClass = "Button"
	ClassImageButton          UIClass = "ImageButton"
	ClassTextView             UIClass = "TextView"
	ClassEditText             UIClass = "EditText"
	ClassImageView            UIClass = "ImageView"
	ClassCheckBox             UIClass = "CheckBox"
	ClassRadioButton          UIClass = "RadioButton"
	ClassSwitch               UIClass = "Switch"
	ClassSeekBar              UIClass = "SeekBar"
	ClassToggleButton         UIClass = "ToggleButton"
	ClassFloatingActionButton UIClass = "FloatingActionButton"
	ClassToolbar              UIClass = "Toolbar"
	ClassBottomNavigationView UIClass = "BottomNavigationView"
	ClassTabLayout            UIClass = "TabLayout"
	ClassRecyclerView         UIClass = "RecyclerView"
	ClassListView             UIClass = "ListView"
	ClassSpinner              UIClass = "Spinner"
	ClassProgressBar          UIClass = "ProgressBar"
)

var uiClasses = []UIClass{
	ClassButton, ClassImageButton, ClassTextView, ClassEditText, ClassImageView,
	ClassCheckBox, ClassRadioButton, ClassSwitch, ClassSeekBar, ClassToggleButton,
	ClassFloatingActionButton, ClassToolbar, ClassBottomNavigationView,
	ClassTabLayout, ClassRecyclerView, ClassListView, ClassSpinner, ClassProgressBar,
}

var uiClassSet = func() map[UIClass]struct{} {
	m := make(map[UIClass]struct{}, len(uiClasses))
	for _, c := range uiClasses {
		m[c] = struct{}{}
	}
	return m
}()

// UIClasses returns the allow-list in declaration order.
func UIClasses() []UIClass {
	out := make([]UIClass, len(uiClasses))
	copy(out, uiClasses)
	return out
}

// Valid reports whether c belongs to the allow-list.
func (c UIClass) Valid() bool {
	_, ok := uiClassSet[c]
	return ok
}

// SimpleName returns the last dot-separated segment of a class name,
// e.g. "com.google.android.material.button.MaterialButton" → "MaterialButton".
func SimpleName(className string) string {
	if i := strings.LastIndexByte(className, '.'); i >= 0 {
		return className[i+1:]
	}
	return className
}

// IsUIClass reports whether a (possibly fully qualified) class name is in the
// allow-list. Structural containers always return false.
func IsUIClass(className string) bool {
	return UIClass(SimpleName(className)).Valid()
}
