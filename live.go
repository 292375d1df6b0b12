package walkthrough

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
)

// LiveFunc is the executable half of a live code sample. It receives a Frame
// and appends the UI its source text describes.
type LiveFunc func(f *Frame) error

// Registry maps live block IDs to their funcs. Pages reference live code by
// ID from markdown (```go live id=...).
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]LiveFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]LiveFunc)}
}

// Register adds a live func. It panics if fn is nil or id is already taken.
func (r *Registry) Register(id string, fn LiveFunc) {
	if fn == nil {
		panic("walkthrough: Register func is nil for " + id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.funcs[id]; dup {
		panic("walkthrough: Register called twice for " + id)
	}
	r.funcs[id] = fn
}

// Lookup returns the live func registered under id.
func (r *Registry) Lookup(id string) (LiveFunc, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[id]
	return fn, ok
}

// IDs returns the registered IDs in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.funcs))
	for id := range r.funcs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Frame collects the elements a live func produces.
type Frame struct {
	ctx      context.Context
	page     *Page
	state    StateReader
	elements []Element
}

// NewFrame creates a frame for one live block execution.
func NewFrame(ctx context.Context, page *Page, state StateReader) *Frame {
	return &Frame{ctx: ctx, page: page, state: state}
}

// Context returns the render context.
func (f *Frame) Context() context.Context { return f.ctx }

// Elements returns what the live func has emitted so far.
func (f *Frame) Elements() []Element { return f.elements }

func (f *Frame) emit(e Element) { f.elements = append(f.elements, e) }

// Title emits a level 1 heading.
func (f *Frame) Title(text string) {
	f.emit(Element{Kind: ElementHeading, Level: 1, Text: text})
}

// Header emits a level 2 heading.
func (f *Frame) Header(text string) {
	f.emit(Element{Kind: ElementHeading, Level: 2, Text: text})
}

// Subheader emits a level 3 heading.
func (f *Frame) Subheader(text string) {
	f.emit(Element{Kind: ElementHeading, Level: 3, Text: text})
}

// SubheaderWithDivider emits a level 3 heading underlined in color
// ("rainbow" cycles through the palette).
func (f *Frame) SubheaderWithDivider(text, color string) {
	f.emit(Element{Kind: ElementHeading, Level: 3, Text: text, Color: color})
}

// Banner emits a coloured section header.
func (f *Frame) Banner(title, description, color string) {
	f.emit(Element{Kind: ElementBanner, Text: title, Detail: description, Color: color})
}

// Markdown emits markdown text. Raw HTML is escaped.
func (f *Frame) Markdown(text string) {
	f.emit(Element{Kind: ElementParagraph, Text: text, Format: FormatMarkdown})
}

// MarkdownHTML emits markdown text that may contain raw HTML.
func (f *Frame) MarkdownHTML(text string) {
	f.emit(Element{Kind: ElementParagraph, Text: text, Format: FormatMarkdown, AllowHTML: true})
}

// Text emits plain, unformatted text.
func (f *Frame) Text(text string) {
	f.emit(Element{Kind: ElementParagraph, Text: text, Format: FormatPlain})
}

// Code emits a code listing.
func (f *Frame) Code(source, language string) {
	f.emit(Element{Kind: ElementCode, Text: source, Language: language})
}

// Latex emits a display math expression.
func (f *Frame) Latex(expr string) {
	f.emit(Element{Kind: ElementLatex, Text: expr})
}

// Caption emits small explanatory text.
func (f *Frame) Caption(text string) {
	f.emit(Element{Kind: ElementCaption, Text: text})
}

// Divider emits a horizontal rule.
func (f *Frame) Divider() {
	f.emit(Element{Kind: ElementDivider})
}

// Error emits an inline error message.
func (f *Frame) Error(err error) {
	f.emit(Element{Kind: ElementError, Err: err.Error()})
}

// Write displays each value according to its type: strings as markdown,
// errors inline, scalars and Stringers as plain text, anything else as JSON.
func (f *Frame) Write(values ...any) {
	for _, v := range values {
		switch val := v.(type) {
		case string:
			f.Markdown(val)
		case error:
			f.Error(val)
		case fmt.Stringer:
			f.Text(val.String())
		case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			f.Text(fmt.Sprint(val))
		case nil:
			f.Text("None")
		default:
			data, err := json.MarshalIndent(val, "", "  ")
			if err != nil {
				f.Text(fmt.Sprintf("%+v", val))
				continue
			}
			f.Code(string(data), "json")
		}
	}
}

// Value returns the current value of a widget on the page, or nil when the
// page has no such widget.
func (f *Frame) Value(widgetID string) any {
	if f.page == nil {
		return nil
	}
	w, ok := f.page.Widget(widgetID)
	if !ok {
		return nil
	}
	return CurrentValue(f.state, w)
}
