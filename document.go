package walkthrough

// ElementKind identifies a rendered document element.
type ElementKind string

const (
	ElementHeading   ElementKind = "heading"
	ElementBanner    ElementKind = "banner"
	ElementParagraph ElementKind = "paragraph"
	ElementCaption   ElementKind = "caption"
	ElementLatex     ElementKind = "latex"
	ElementCode      ElementKind = "code"
	ElementLive      ElementKind = "live"
	ElementDivider   ElementKind = "divider"
	ElementWidget    ElementKind = "widget"
	ElementExpander  ElementKind = "expander"
	ElementError     ElementKind = "error"
)

// Document is the linear output of rendering a page.
type Document struct {
	PageID   string    `json:"pageID"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
}

// Element is one rendered unit. Live and expander elements carry children:
// the output of the live func, or the nested blocks.
type Element struct {
	Kind      ElementKind `json:"kind"`
	BlockID   string      `json:"blockID,omitempty"`
	Level     int         `json:"level,omitempty"`
	Text      string      `json:"text,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	Language  string      `json:"language,omitempty"`
	Format    TextFormat  `json:"format,omitempty"`
	AllowHTML bool        `json:"allowHTML,omitempty"`
	Color     string      `json:"color,omitempty"`
	Expanded  bool        `json:"expanded,omitempty"`
	Widget    *WidgetView `json:"widget,omitempty"`
	Children  []Element   `json:"children,omitempty"`
	Err       string      `json:"error,omitempty"`
}

// WidgetView is a widget bound to the value it displays.
type WidgetView struct {
	ID    string     `json:"id"`
	Spec  WidgetSpec `json:"spec"`
	Value any        `json:"value"`
}

// Find returns the top-level or nested element rendered for a block.
func (d *Document) Find(blockID string) (*Element, bool) {
	return findElement(d.Elements, blockID)
}

func findElement(elems []Element, blockID string) (*Element, bool) {
	for i := range elems {
		if elems[i].BlockID == blockID {
			return &elems[i], true
		}
		if e, ok := findElement(elems[i].Children, blockID); ok {
			return e, true
		}
	}
	return nil, false
}

// Failed returns the live elements that reported an error, depth-first.
func (d *Document) Failed() []*Element {
	var out []*Element
	var visit func([]Element)
	visit = func(elems []Element) {
		for i := range elems {
			if elems[i].Kind == ElementLive && elems[i].Err != "" {
				out = append(out, &elems[i])
			}
			visit(elems[i].Children)
		}
	}
	visit(d.Elements)
	return out
}
