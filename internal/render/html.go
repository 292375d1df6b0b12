package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/livetemplate/walkthrough"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	goldhtml "github.com/yuin/goldmark/renderer/html"
)

// HTML renders documents as HTML fragments and full pages.
type HTML struct {
	md        goldmark.Markdown // raw HTML omitted
	unsafeMD  goldmark.Markdown // raw HTML kept, then sanitized
	policy    *bluemonday.Policy
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

// HTMLOption configures an HTML renderer.
type HTMLOption func(*HTML)

// WithCodeStyle selects the chroma style used for code samples.
func WithCodeStyle(name string) HTMLOption {
	return func(h *HTML) {
		h.style = styles.Get(name)
	}
}

// NewHTML creates an HTML renderer.
func NewHTML(opts ...HTMLOption) *HTML {
	exts := goldmark.WithExtensions(extension.GFM, emoji.Emoji, colorSpans{})

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Globally()
	policy.AllowStyles("color", "background-color", "font-size", "font-weight", "font-style", "text-align").Globally()

	h := &HTML{
		md: goldmark.New(exts),
		unsafeMD: goldmark.New(exts,
			goldmark.WithRendererOptions(goldhtml.WithUnsafe()),
		),
		policy:    policy,
		formatter: chromahtml.New(chromahtml.WithClasses(true), chromahtml.TabWidth(4)),
		style:     styles.Get("github"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CodeCSS returns the stylesheet for highlighted code.
func (h *HTML) CodeCSS() ([]byte, error) {
	var buf bytes.Buffer
	if err := h.formatter.WriteCSS(&buf, h.style); err != nil {
		return nil, fmt.Errorf("failed to write code css: %w", err)
	}
	return buf.Bytes(), nil
}

// Fragment renders the document body: every element in order, without the
// page shell.
func (h *HTML) Fragment(doc *walkthrough.Document) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.writeElements(&buf, doc.PageID, doc.Elements); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// NavLink is one entry of the page navigation.
type NavLink struct {
	Title  string
	Path   string
	Active bool
}

// PageData is the page shell around a rendered document.
type PageData struct {
	Title        string
	Description  string
	Nav          []NavLink
	Theme        string // see ResolveTheme
	PrimaryColor string
	Font         string
	LiveReload   bool
}

type pageView struct {
	PageData
	PageID    string
	Body      template.HTML
	Vars      template.CSS
	ResetPage string
}

var themes = []string{"clean", "dark"}

// ResolveTheme returns the first known theme name in names, most specific
// first, or "clean" when none is known.
func ResolveTheme(names ...string) string {
	for _, name := range names {
		if slices.Contains(themes, name) {
			return name
		}
	}
	return themes[0]
}

// WritePage writes a complete HTML document.
func (h *HTML) WritePage(w io.Writer, doc *walkthrough.Document, data PageData) error {
	body, err := h.Fragment(doc)
	if err != nil {
		return err
	}
	if data.Title == "" {
		data.Title = doc.Title
	}
	data.Theme = ResolveTheme(data.Theme)

	view := pageView{
		PageData:  data,
		PageID:    doc.PageID,
		Body:      body,
		Vars:      themeCSS(data.PrimaryColor, data.Font),
		ResetPage: walkthrough.PageBlockID,
	}
	if err := templates.ExecuteTemplate(w, "page", view); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}

var (
	cssColorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]+)$`)
	cssFontPattern  = regexp.MustCompile(`^[a-zA-Z0-9 ,\-"']+$`)
)

func themeCSS(color, font string) template.CSS {
	var b strings.Builder
	if cssColorPattern.MatchString(color) {
		fmt.Fprintf(&b, "--wt-primary: %s;", color)
	}
	if cssFontPattern.MatchString(font) {
		fmt.Fprintf(&b, "--wt-font: %s;", font)
	}
	return template.CSS(b.String())
}

func (h *HTML) writeElements(buf *bytes.Buffer, pageID string, elems []walkthrough.Element) error {
	for i := range elems {
		if err := h.writeElement(buf, pageID, &elems[i]); err != nil {
			return err
		}
	}
	return nil
}

func (h *HTML) writeElement(buf *bytes.Buffer, pageID string, el *walkthrough.Element) error {
	idAttr := ""
	if el.BlockID != "" {
		idAttr = fmt.Sprintf(` id="%s"`, html.EscapeString(el.BlockID))
	}

	switch el.Kind {
	case walkthrough.ElementHeading:
		level := min(max(el.Level, 1), 6)
		text, err := h.inline(el.Text)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "<h%d%s>%s</h%d>\n", level, idAttr, text, level)
		if el.Color != "" {
			fmt.Fprintf(buf, "<hr class=\"wt-divider%s\">\n", colorClass("wt-divider-", el.Color))
		}

	case walkthrough.ElementBanner:
		desc, err := h.inline(el.Detail)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "<header class=\"wt-banner%s\"%s><h2>%s</h2>", colorClass("wt-banner-", el.Color), idAttr, html.EscapeString(el.Text))
		if desc != "" {
			fmt.Fprintf(buf, "<p>%s</p>", desc)
		}
		buf.WriteString("</header>\n")

	case walkthrough.ElementParagraph:
		if el.Format == walkthrough.FormatPlain {
			fmt.Fprintf(buf, "<div class=\"wt-text\"%s>%s</div>\n", idAttr, html.EscapeString(el.Text))
			return nil
		}
		body, err := h.markdown(el.Text, el.AllowHTML)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "<div class=\"wt-markdown\"%s>%s</div>\n", idAttr, body)

	case walkthrough.ElementCaption:
		text, err := h.inline(el.Text)
		if err != nil {
			return err
		}
		fmt.Fprintf(buf, "<p class=\"wt-caption\"%s>%s</p>\n", idAttr, text)

	case walkthrough.ElementLatex:
		fmt.Fprintf(buf, "<div class=\"wt-latex\"%s>\\[%s\\]</div>\n", idAttr, html.EscapeString(el.Text))

	case walkthrough.ElementCode:
		fmt.Fprintf(buf, "<div class=\"wt-code\"%s>", idAttr)
		if err := h.highlight(buf, el.Text, el.Language); err != nil {
			return err
		}
		buf.WriteString("</div>\n")

	case walkthrough.ElementLive:
		fmt.Fprintf(buf, "<section class=\"wt-live\"%s><div class=\"wt-code wt-source\">", idAttr)
		if err := h.highlight(buf, el.Text, el.Language); err != nil {
			return err
		}
		buf.WriteString("</div>\n<div class=\"wt-output\">\n")
		if err := h.writeElements(buf, pageID, el.Children); err != nil {
			return err
		}
		if el.Err != "" {
			fmt.Fprintf(buf, "<div class=\"wt-error\" role=\"alert\">%s</div>\n", html.EscapeString(el.Err))
		}
		buf.WriteString("</div></section>\n")

	case walkthrough.ElementDivider:
		fmt.Fprintf(buf, "<hr%s>\n", idAttr)

	case walkthrough.ElementWidget:
		if el.Widget == nil {
			return fmt.Errorf("widget element %s has no widget", el.BlockID)
		}
		if err := templates.ExecuteTemplate(buf, "widget", newWidgetView(pageID, el.Widget)); err != nil {
			return fmt.Errorf("failed to render widget %s: %w", el.BlockID, err)
		}

	case walkthrough.ElementExpander:
		open := ""
		if el.Expanded {
			open = " open"
		}
		fmt.Fprintf(buf, "<details class=\"wt-expander\"%s%s><summary>%s</summary>\n", idAttr, open, html.EscapeString(el.Text))
		if err := h.writeElements(buf, pageID, el.Children); err != nil {
			return err
		}
		buf.WriteString("</details>\n")

	case walkthrough.ElementError:
		fmt.Fprintf(buf, "<div class=\"wt-error\" role=\"alert\"%s>%s</div>\n", idAttr, html.EscapeString(el.Err))

	default:
		return fmt.Errorf("unsupported element kind %q", el.Kind)
	}
	return nil
}

// markdown converts a markdown paragraph. Raw HTML survives only when
// allowHTML is set, and even then passes through the sanitizer.
func (h *HTML) markdown(text string, allowHTML bool) (string, error) {
	var buf bytes.Buffer
	md := h.md
	if allowHTML {
		md = h.unsafeMD
	}
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown: %w", err)
	}
	out := buf.String()
	if allowHTML {
		out = h.policy.Sanitize(out)
	}
	return out, nil
}

// inline converts a single line of markdown without the wrapping paragraph.
func (h *HTML) inline(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	out, err := h.markdown(text, false)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = out[len("<p>") : len(out)-len("</p>")]
	}
	return out, nil
}

func (h *HTML) highlight(w io.Writer, source, language string) error {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	it, err := lexer.Tokenise(nil, source)
	if err != nil {
		return fmt.Errorf("failed to tokenise %s: %w", language, err)
	}
	if err := h.formatter.Format(w, h.style, it); err != nil {
		return fmt.Errorf("failed to highlight %s: %w", language, err)
	}
	return nil
}

func colorClass(prefix, color string) string {
	if !textColors[color] {
		return ""
	}
	return " " + prefix + color
}
