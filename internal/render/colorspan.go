package render

import (
	"fmt"
	"regexp"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Colours accepted in :color[text] spans and divider/banner colours.
var textColors = map[string]bool{
	"blue": true, "green": true, "orange": true, "red": true,
	"violet": true, "gray": true, "grey": true, "rainbow": true,
}

// KindColorSpan is the AST kind of a :color[text] span.
var KindColorSpan = ast.NewNodeKind("ColorSpan")

// ColorSpan is inline text drawn in one of the named colours.
type ColorSpan struct {
	ast.BaseInline
	Color string
}

func (n *ColorSpan) Kind() ast.NodeKind { return KindColorSpan }

func (n *ColorSpan) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Color": n.Color}, nil)
}

var colorSpanSyntax = regexp.MustCompile(`^:([a-z]+)\[([^\]\n]+)\]`)

type colorSpanParser struct{}

func (colorSpanParser) Trigger() []byte { return []byte{':'} }

func (colorSpanParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, seg := block.PeekLine()
	m := colorSpanSyntax.FindSubmatchIndex(line)
	if m == nil {
		return nil
	}
	color := string(line[m[2]:m[3]])
	if !textColors[color] {
		return nil
	}

	span := &ColorSpan{Color: color}
	span.AppendChild(span, ast.NewTextSegment(text.NewSegment(seg.Start+m[4], seg.Start+m[5])))
	block.Advance(m[1])
	return span
}

type colorSpanRenderer struct{}

func (r colorSpanRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindColorSpan, r.render)
}

func (colorSpanRenderer) render(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = fmt.Fprintf(w, `<span class="wt-color-%s">`, n.(*ColorSpan).Color)
	} else {
		_, _ = w.WriteString("</span>")
	}
	return ast.WalkContinue, nil
}

// colorSpans is a goldmark extension for :color[text]. Being an inline
// parser, it never sees the inside of code spans or fenced code.
type colorSpans struct{}

func (colorSpans) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(util.Prioritized(colorSpanParser{}, 500)))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(util.Prioritized(colorSpanRenderer{}, 500)))
}
