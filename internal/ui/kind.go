package ui

import "strings"

// Kind is the closed set of element kinds a page can render
type Kind int

const (
	Generic Kind = iota
	Input
	Checkbox
	Slider
	Textarea
	Button
)

var kindNames = map[Kind]string{
	Generic:  "generic",
	Input:    "input",
	Checkbox: "checkbox",
	Slider:   "slider",
	Textarea: "textarea",
	Button:   "button",
}

// ParseKind maps a configured element name to its kind.
// Names without a dedicated kind, such as "label", are Generic.
func ParseKind(name string) Kind {
	lower := strings.ToLower(name)
	for kind, n := range kindNames {
		if n == lower {
			return kind
		}
	}
	return Generic
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Generic]
}

// ChangeEvent is the event an element of this kind emits when the user
// edits it. Generic elements report changes of the bound property.
func (k Kind) ChangeEvent(prop string) string {
	switch k {
	case Input, Slider, Textarea:
		return "update:model-value"
	case Checkbox:
		return "update:model-checked"
	case Button:
		return "click"
	default:
		return "update:model-" + prop
	}
}

// Tag is the CSS selector matching the rendered control of this kind
func (k Kind) Tag() string {
	switch k {
	case Input:
		return "input"
	case Checkbox:
		return `input[type="checkbox"]`
	case Slider:
		return `input[type="range"]`
	case Textarea:
		return "textarea"
	case Button:
		return "button"
	default:
		return "*"
	}
}

// DOMEvent is the browser event forwarded to the server, or "" when the
// control is not interactive
func (k Kind) DOMEvent() string {
	switch k {
	case Input, Slider, Textarea:
		return "input"
	case Checkbox:
		return "change"
	case Button:
		return "click"
	default:
		return ""
	}
}
