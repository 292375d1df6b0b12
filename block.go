package walkthrough

// BlockKind identifies a block variant.
type BlockKind string

const (
	KindHeading   BlockKind = "heading"
	KindBanner    BlockKind = "banner"
	KindParagraph BlockKind = "paragraph"
	KindCaption   BlockKind = "caption"
	KindLatex     BlockKind = "latex"
	KindCode      BlockKind = "code"
	KindDivider   BlockKind = "divider"
	KindWidget    BlockKind = "widget"
	KindExpander  BlockKind = "expander"
)

// Block is one static or interactive unit of a tutorial page.
// The set of implementations is closed; blocks are immutable once a page is built.
type Block interface {
	BlockID() string
	Kind() BlockKind
	block()
}

// TextFormat determines how paragraph text is interpreted.
type TextFormat string

const (
	FormatPlain    TextFormat = "plain"
	FormatMarkdown TextFormat = "markdown"
)

// Heading is a title (level 1), header (level 2) or subheader (level 3+).
type Heading struct {
	ID      string
	Text    string
	Level   int
	Divider string // Optional colour of a rule drawn under the heading
}

// Banner is a coloured section header with a short description.
type Banner struct {
	ID          string
	Title       string
	Description string
	Color       string
}

// Paragraph is a block of prose.
type Paragraph struct {
	ID        string
	Text      string
	Format    TextFormat
	AllowHTML bool
}

// Caption is small explanatory text.
type Caption struct {
	ID   string
	Text string
}

// Latex is a display math expression.
type Latex struct {
	ID   string
	Expr string
}

// CodeSample is a literal code listing. Live samples are also executed:
// Source is shown, then Func runs and its output is appended inline.
type CodeSample struct {
	ID       string
	Source   string
	Language string
	Live     bool
	LiveID   string // Registry key the live func was resolved from
	Func     LiveFunc
}

// Divider is a horizontal rule.
type Divider struct {
	ID string
}

// Widget is an input widget demo bound to the session's widget state.
type Widget struct {
	ID   string
	Spec WidgetSpec
}

// Expander is a collapsible section holding nested blocks.
type Expander struct {
	ID       string
	Title    string
	Expanded bool
	Blocks   []Block
}

func (b *Heading) BlockID() string    { return b.ID }
func (b *Banner) BlockID() string     { return b.ID }
func (b *Paragraph) BlockID() string  { return b.ID }
func (b *Caption) BlockID() string    { return b.ID }
func (b *Latex) BlockID() string      { return b.ID }
func (b *CodeSample) BlockID() string { return b.ID }
func (b *Divider) BlockID() string    { return b.ID }
func (b *Widget) BlockID() string     { return b.ID }
func (b *Expander) BlockID() string   { return b.ID }

func (*Heading) Kind() BlockKind    { return KindHeading }
func (*Banner) Kind() BlockKind     { return KindBanner }
func (*Paragraph) Kind() BlockKind  { return KindParagraph }
func (*Caption) Kind() BlockKind    { return KindCaption }
func (*Latex) Kind() BlockKind      { return KindLatex }
func (*CodeSample) Kind() BlockKind { return KindCode }
func (*Divider) Kind() BlockKind    { return KindDivider }
func (*Widget) Kind() BlockKind     { return KindWidget }
func (*Expander) Kind() BlockKind   { return KindExpander }

func (*Heading) block()    {}
func (*Banner) block()     {}
func (*Paragraph) block()  {}
func (*Caption) block()    {}
func (*Latex) block()      {}
func (*CodeSample) block() {}
func (*Divider) block()    {}
func (*Widget) block()     {}
func (*Expander) block()   {}

// Walk visits blocks depth-first in document order, descending into expanders.
func Walk(blocks []Block, fn func(Block)) {
	for _, b := range blocks {
		fn(b)
		if exp, ok := b.(*Expander); ok {
			Walk(exp.Blocks, fn)
		}
	}
}
