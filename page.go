package walkthrough

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRegistry is the registry used when no other is supplied.
var DefaultRegistry = NewRegistry()

// Register adds a live func to DefaultRegistry.
func Register(id string, fn LiveFunc) {
	DefaultRegistry.Register(id, fn)
}

// ParseOption configures page parsing.
type ParseOption func(*parseOptions)

type parseOptions struct {
	registry *Registry
}

// WithRegistry resolves live blocks against r instead of DefaultRegistry.
func WithRegistry(r *Registry) ParseOption {
	return func(o *parseOptions) {
		o.registry = r
	}
}

func newParseOptions(opts []ParseOption) *parseOptions {
	o := &parseOptions{registry: DefaultRegistry}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ParseFile parses a markdown file and creates a Page.
func ParseFile(path string, opts ...ParseOption) (*Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// Absolute path for better error messages
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	return parse(content, pageID(filepath.Base(path)), absPath, newParseOptions(opts))
}

// ParseFS parses a markdown file from fsys.
func ParseFS(fsys fs.FS, name string, opts ...ParseOption) (*Page, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return parse(content, pageID(path.Base(name)), name, newParseOptions(opts))
}

// ParseString parses markdown content from a string and creates a Page.
func ParseString(content string, opts ...ParseOption) (*Page, error) {
	return parse([]byte(content), "inline", "", newParseOptions(opts))
}

func pageID(base string) string {
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func parse(content []byte, id, sourceFile string, o *parseOptions) (*Page, error) {
	page, err := parseContent(content, id, sourceFile, o)
	var perr *ParseError
	if errors.As(err, &perr) {
		perr.withSource(content)
	}
	return page, err
}

func parseContent(content []byte, id, sourceFile string, o *parseOptions) (*Page, error) {
	fm, raw, err := ParseMarkdown(content)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.File = sourceFile
			return nil, perr
		}
		return nil, NewParseError(sourceFile, 1, fmt.Sprintf("Failed to parse markdown: %v", err))
	}

	page := New(id)
	page.Title = fm.Title
	page.Description = fm.Description
	page.SourceFile = sourceFile
	page.Config = PageConfig{
		AllowHTML: fm.AllowHTML,
		Theme:     fm.Theme,
	}

	b := &blockBuilder{
		page:       page,
		registry:   o.registry,
		sourceFile: sourceFile,
		seen:       make(map[string]int),
	}
	blocks, err := b.build(raw)
	if err != nil {
		return nil, err
	}
	page.Blocks = blocks

	if page.Title == "" {
		page.Title = firstHeading(blocks)
	}

	return page, nil
}

// blockBuilder converts raw markdown blocks into typed blocks.
type blockBuilder struct {
	page       *Page
	registry   *Registry
	sourceFile string
	index      int
	seen       map[string]int // block ID -> line first defined
}

func (b *blockBuilder) build(raw []*RawBlock) ([]Block, error) {
	blocks := make([]Block, 0, len(raw))
	for _, rb := range raw {
		blk, err := b.buildOne(rb)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}

func (b *blockBuilder) buildOne(rb *RawBlock) (Block, error) {
	index := b.index
	b.index++

	var blk Block
	switch rb.Type {
	case rawHeading:
		blk = &Heading{
			ID:      b.blockID(rb, "heading", index),
			Text:    rb.Content,
			Level:   rb.Level,
			Divider: rb.Metadata["divider"],
		}

	case rawDivider:
		blk = &Divider{ID: b.blockID(rb, "divider", index)}

	case rawProse:
		blk = &Paragraph{
			ID:        b.blockID(rb, "paragraph", index),
			Text:      rb.Content,
			Format:    FormatMarkdown,
			AllowHTML: b.page.Config.AllowHTML,
		}

	case rawFence:
		var err error
		blk, err = b.buildFence(rb, index)
		if err != nil {
			return nil, err
		}

	default:
		return nil, NewParseError(b.sourceFile, rb.Line, fmt.Sprintf("Unknown block type: %s", rb.Type))
	}

	id := blk.BlockID()
	if first, dup := b.seen[id]; dup {
		return nil, NewParseError(b.sourceFile, rb.Line, fmt.Sprintf("Duplicate block id %q", id)).
			WithHint("Give each block a unique id=... value").
			WithRelated(fmt.Sprintf("%q first defined at line %d", id, first))
	}
	b.seen[id] = rb.Line

	return blk, nil
}

// widgetBody is the YAML body of a ```widget fence.
type widgetBody struct {
	ID         string `yaml:"id"`
	WidgetSpec `yaml:",inline"`
}

// bannerBody is the YAML body of a ```banner fence.
type bannerBody struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Color       string `yaml:"color"`
}

func (b *blockBuilder) buildFence(rb *RawBlock, index int) (Block, error) {
	switch rb.Directive {
	case DirectiveWidget:
		var body widgetBody
		if err := yaml.Unmarshal([]byte(rb.Content), &body); err != nil {
			return nil, NewParseError(b.sourceFile, rb.Line, fmt.Sprintf("Invalid widget definition: %v", err)).
				WithHint("The widget body is YAML: kind, label, min, max, options, default")
		}
		if body.ID != "" && rb.Metadata["id"] == "" {
			rb.Metadata["id"] = body.ID
		}
		if err := body.WidgetSpec.Validate(); err != nil {
			return nil, NewParseError(b.sourceFile, rb.Line, fmt.Sprintf("Invalid widget: %v", err)).
				WithHint(fmt.Sprintf("Valid widget kinds are: %v", WidgetKinds))
		}
		id := rb.Metadata["id"]
		if id == "" {
			id = slugify(body.Label)
		}
		if id == "" {
			id = fmt.Sprintf("widget-%d", index)
		}
		return &Widget{ID: id, Spec: body.WidgetSpec}, nil

	case DirectiveBanner:
		var body bannerBody
		if err := yaml.Unmarshal([]byte(rb.Content), &body); err != nil {
			return nil, NewParseError(b.sourceFile, rb.Line, fmt.Sprintf("Invalid banner definition: %v", err)).
				WithHint("The banner body is YAML: title, description, color")
		}
		return &Banner{
			ID:          b.blockID(rb, "banner", index),
			Title:       body.Title,
			Description: body.Description,
			Color:       body.Color,
		}, nil

	case DirectiveLatex:
		return &Latex{
			ID:   b.blockID(rb, "latex", index),
			Expr: strings.TrimSpace(rb.Content),
		}, nil

	case DirectiveCaption:
		return &Caption{
			ID:   b.blockID(rb, "caption", index),
			Text: strings.TrimSpace(rb.Content),
		}, nil

	case DirectiveExpander:
		id := b.blockID(rb, "expander", index)
		children, err := b.build(rb.Children)
		if err != nil {
			return nil, err
		}
		title := rb.Metadata["title"]
		if title == "" {
			title = "Details"
		}
		return &Expander{
			ID:       id,
			Title:    title,
			Expanded: rb.HasFlag("expanded"),
			Blocks:   children,
		}, nil

	case DirectiveLive:
		liveID := rb.Metadata["id"]
		if liveID == "" {
			return nil, NewParseError(b.sourceFile, rb.Line, "Live code block has no id").
				WithHint(fmt.Sprintf("Add id=... naming a registered live block. Available: %v", b.registry.IDs()))
		}
		fn, ok := b.registry.Lookup(liveID)
		if !ok {
			return nil, NewParseError(b.sourceFile, rb.Line, fmt.Sprintf("Live code block references unknown id %q", liveID)).
				WithHint(b.liveHint(liveID))
		}
		return &CodeSample{
			ID:       liveID,
			Source:   rb.Content,
			Language: rb.Language,
			Live:     true,
			LiveID:   liveID,
			Func:     fn,
		}, nil

	default:
		return &CodeSample{
			ID:       b.blockID(rb, "code", index),
			Source:   rb.Content,
			Language: rb.Language,
		}, nil
	}
}

// liveHint suggests a similarly named live block, or lists them all.
func (b *blockBuilder) liveHint(liveID string) string {
	ids := b.registry.IDs()
	for _, id := range ids {
		if strings.Contains(id, liveID) || strings.Contains(liveID, id) {
			return fmt.Sprintf("Did you mean id=%q?", id)
		}
	}
	return fmt.Sprintf("Available live blocks: %v", ids)
}

// blockID extracts or generates a block ID.
func (b *blockBuilder) blockID(rb *RawBlock, kind string, index int) string {
	if id, ok := rb.Metadata["id"]; ok && id != "" {
		return id
	}
	return fmt.Sprintf("%s-%d", kind, index)
}

func firstHeading(blocks []Block) string {
	for _, blk := range blocks {
		switch h := blk.(type) {
		case *Heading:
			return h.Text
		case *Banner:
			return h.Title
		}
	}
	return ""
}

var slugPattern = regexp.MustCompile(`[^a-z0-9-]`)

// slugify converts text to a URL-safe slug (GitHub-style).
func slugify(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, " ", "-")
	return strings.Trim(slugPattern.ReplaceAllString(text, ""), "-")
}
