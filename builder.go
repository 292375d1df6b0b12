package walkthrough

import (
	"errors"
	"fmt"
)

// Builder assembles a page in Go, block by block, in display order.
//
//	page, err := walkthrough.NewBuilder("intro").
//		Title("Introduction").
//		Paragraph("Hello").
//		Live("title-demo", src, "go", fn).
//		Build()
type Builder struct {
	page   *Page
	blocks *[]Block
	index  *int
	errs   *[]error
}

// NewBuilder starts a page with the given ID.
func NewBuilder(id string) *Builder {
	page := New(id)
	return &Builder{
		page:   page,
		blocks: &page.Blocks,
		index:  new(int),
		errs:   new([]error),
	}
}

func (b *Builder) nextID(kind BlockKind) string {
	id := fmt.Sprintf("%s-%d", kind, *b.index)
	*b.index++
	return id
}

func (b *Builder) add(blk Block) *Builder {
	*b.blocks = append(*b.blocks, blk)
	return b
}

// PageTitle sets the page title shown in the browser and CLI.
func (b *Builder) PageTitle(title string) *Builder {
	b.page.Title = title
	return b
}

// AllowHTML lets subsequent markdown paragraphs carry raw HTML.
func (b *Builder) AllowHTML(allow bool) *Builder {
	b.page.Config.AllowHTML = allow
	return b
}

// Heading adds a heading at level (1-6).
func (b *Builder) Heading(text string, level int) *Builder {
	if level < 1 || level > 6 {
		*b.errs = append(*b.errs, fmt.Errorf("heading %q: level %d out of range 1-6", text, level))
	}
	return b.add(&Heading{ID: b.nextID(KindHeading), Text: text, Level: level})
}

// Title adds a level 1 heading.
func (b *Builder) Title(text string) *Builder { return b.Heading(text, 1) }

// Header adds a level 2 heading.
func (b *Builder) Header(text string) *Builder { return b.Heading(text, 2) }

// Subheader adds a level 3 heading, optionally underlined in color.
func (b *Builder) Subheader(text, divider string) *Builder {
	b.Heading(text, 3)
	(*b.blocks)[len(*b.blocks)-1].(*Heading).Divider = divider
	return b
}

// Banner adds a coloured section header.
func (b *Builder) Banner(title, description, color string) *Builder {
	return b.add(&Banner{ID: b.nextID(KindBanner), Title: title, Description: description, Color: color})
}

// Paragraph adds markdown text.
func (b *Builder) Paragraph(text string) *Builder {
	return b.add(&Paragraph{
		ID:        b.nextID(KindParagraph),
		Text:      text,
		Format:    FormatMarkdown,
		AllowHTML: b.page.Config.AllowHTML,
	})
}

// Plain adds unformatted text.
func (b *Builder) Plain(text string) *Builder {
	return b.add(&Paragraph{ID: b.nextID(KindParagraph), Text: text, Format: FormatPlain})
}

// Caption adds small explanatory text.
func (b *Builder) Caption(text string) *Builder {
	return b.add(&Caption{ID: b.nextID(KindCaption), Text: text})
}

// Latex adds a display math expression.
func (b *Builder) Latex(expr string) *Builder {
	return b.add(&Latex{ID: b.nextID(KindLatex), Expr: expr})
}

// Code adds a display-only code sample.
func (b *Builder) Code(source, language string) *Builder {
	return b.add(&CodeSample{ID: b.nextID(KindCode), Source: source, Language: language})
}

// Live adds a code sample whose source is shown and whose fn is run inline.
func (b *Builder) Live(id, source, language string, fn LiveFunc) *Builder {
	if fn == nil {
		*b.errs = append(*b.errs, fmt.Errorf("live block %s: func is nil", id))
	}
	return b.add(&CodeSample{ID: id, Source: source, Language: language, Live: true, LiveID: id, Func: fn})
}

// Divider adds a horizontal rule.
func (b *Builder) Divider() *Builder {
	return b.add(&Divider{ID: b.nextID(KindDivider)})
}

// Widget adds an input widget demo.
func (b *Builder) Widget(id string, spec WidgetSpec) *Builder {
	if err := spec.Validate(); err != nil {
		*b.errs = append(*b.errs, fmt.Errorf("widget %s: %w", id, err))
	}
	return b.add(&Widget{ID: id, Spec: spec})
}

// Expander adds a collapsible section; fill adds its nested blocks.
func (b *Builder) Expander(title string, expanded bool, fill func(*Builder)) *Builder {
	exp := &Expander{ID: b.nextID(KindExpander), Title: title, Expanded: expanded}
	b.add(exp)

	child := &Builder{page: b.page, blocks: &exp.Blocks, index: b.index, errs: b.errs}
	if fill != nil {
		fill(child)
	}
	return b
}

// Build validates the page and returns it.
func (b *Builder) Build() (*Page, error) {
	errs := append([]error(nil), *b.errs...)

	seen := make(map[string]bool)
	Walk(b.page.Blocks, func(blk Block) {
		id := blk.BlockID()
		if seen[id] {
			errs = append(errs, fmt.Errorf("duplicate block id %q", id))
		}
		seen[id] = true
	})

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if b.page.Title == "" {
		b.page.Title = firstHeading(b.page.Blocks)
	}
	return b.page, nil
}
