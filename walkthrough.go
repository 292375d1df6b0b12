// Package walkthrough provides the core library for building tutorial pages:
// ordered content blocks rendered top to bottom, code samples that can echo
// and run themselves, and input widget demos bound to per-session state.
package walkthrough

// Page represents a parsed tutorial page.
type Page struct {
	ID          string
	Title       string
	Description string
	SourceFile  string // Absolute path to source .md file (for error messages)
	Config      PageConfig
	Blocks      []Block
}

// PageConfig contains configuration for a page.
type PageConfig struct {
	// AllowHTML lets markdown paragraphs carry raw HTML (sanitized on output).
	AllowHTML bool
	Theme     string
}

// New creates a new Page with the given ID.
func New(id string) *Page {
	return &Page{
		ID:     id,
		Blocks: make([]Block, 0),
	}
}

// Widgets returns every widget on the page, including those nested in
// expanders, in document order.
func (p *Page) Widgets() []*Widget {
	var out []*Widget
	Walk(p.Blocks, func(b Block) {
		if w, ok := b.(*Widget); ok {
			out = append(out, w)
		}
	})
	return out
}

// Widget looks up a widget by ID.
func (p *Page) Widget(id string) (*Widget, bool) {
	for _, w := range p.Widgets() {
		if w.ID == id {
			return w, true
		}
	}
	return nil, false
}

// LiveBlocks returns every live code sample on the page in document order.
func (p *Page) LiveBlocks() []*CodeSample {
	var out []*CodeSample
	Walk(p.Blocks, func(b Block) {
		if cs, ok := b.(*CodeSample); ok && cs.Live {
			out = append(out, cs)
		}
	})
	return out
}
