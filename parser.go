package walkthrough

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

// Frontmatter represents the YAML frontmatter at the top of a markdown file.
type Frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	AllowHTML   bool   `yaml:"allow_html"`
	Theme       string `yaml:"theme"`
}

// Raw block types produced by the scanner.
const (
	rawHeading = "heading"
	rawProse   = "prose"
	rawDivider = "divider"
	rawFence   = "fence"
)

// Fence directives. A fence whose language is one of these is a directive;
// any other fence is a code sample, live when its info string has "live".
const (
	DirectiveLive     = "live"
	DirectiveWidget   = "widget"
	DirectiveBanner   = "banner"
	DirectiveLatex    = "latex"
	DirectiveCaption  = "caption"
	DirectiveExpander = "expander"
)

var directiveLanguages = map[string]bool{
	DirectiveWidget:   true,
	DirectiveBanner:   true,
	DirectiveLatex:    true,
	DirectiveCaption:  true,
	DirectiveExpander: true,
}

// RawBlock is a top-level chunk of markdown before it is resolved into a Block.
type RawBlock struct {
	Type      string            // heading, prose, divider, fence
	Language  string            // fence language ("python", "widget", ...)
	Directive string            // live, widget, banner, latex, caption, expander; "" for plain code
	Flags     []string          // bare words after the language ("live", "expanded")
	Metadata  map[string]string // key=value pairs from the info string or heading attributes
	Content   string
	Level     int         // heading level
	Line      int         // line number in the source file
	Children  []*RawBlock // expander body
}

var (
	fenceOpenPattern  = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})\\s*(.*)$")
	atxHeadingPattern = regexp.MustCompile(`^ {0,3}#{1,6}(\s|$)`)
	breakPattern      = regexp.MustCompile(`^ {0,3}([-*_])(\s*([-*_]))+\s*$`)
)

// headingParser parses single heading lines, with {key=value} attributes enabled.
var headingParser = goldmark.New(
	goldmark.WithParserOptions(parser.WithAttribute()),
).Parser()

// ParseMarkdown splits a markdown document into frontmatter and raw blocks.
func ParseMarkdown(content []byte) (*Frontmatter, []*RawBlock, error) {
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))

	frontmatter, remaining, err := extractFrontmatter(content)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	lineOffset := bytes.Count(content[:len(content)-len(remaining)], []byte("\n"))

	blocks, err := scanBlocks(string(remaining), lineOffset)
	if err != nil {
		return nil, nil, err
	}

	return frontmatter, blocks, nil
}

// extractFrontmatter extracts YAML frontmatter from the beginning of content.
// Returns the parsed frontmatter and the remaining content.
func extractFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	// Find the closing ---
	rest := content[4:]
	var yamlContent []byte
	switch {
	case bytes.HasPrefix(rest, []byte("---\n")):
		yamlContent, rest = nil, rest[4:]
	default:
		endIdx := bytes.Index(rest, []byte("\n---\n"))
		if endIdx == -1 {
			if bytes.HasSuffix(rest, []byte("\n---")) {
				endIdx = len(rest) - 4
				yamlContent, rest = rest[:endIdx], nil
				break
			}
			return nil, nil, fmt.Errorf("unclosed frontmatter")
		}
		yamlContent, rest = rest[:endIdx], rest[endIdx+5:]
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(yamlContent, &fm); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &fm, rest, nil
}

// scanBlocks splits markdown into headings, dividers, fences and prose runs.
// lineOffset is the number of source lines preceding src.
func scanBlocks(src string, lineOffset int) ([]*RawBlock, error) {
	lines := strings.Split(src, "\n")

	var blocks []*RawBlock
	var prose []string
	proseStart := 0
	prevBlank := true

	flush := func() {
		body := strings.Trim(strings.Join(prose, "\n"), "\n")
		if strings.TrimSpace(body) != "" {
			blocks = append(blocks, &RawBlock{
				Type:    rawProse,
				Content: body,
				Line:    proseStart,
			})
		}
		prose = prose[:0]
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineNum := lineOffset + i + 1

		if m := fenceOpenPattern.FindStringSubmatch(line); m != nil && !strings.Contains(m[2], "`") {
			flush()
			end := findFenceClose(lines, i+1, m[1])
			if end == -1 {
				return nil, NewParseError("", lineNum, "Unclosed code fence").
					WithHint(fmt.Sprintf("Close the block with a line containing %s", m[1]))
			}

			block, err := newFenceBlock(m[2], lines[i+1:end], lineNum)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)

			i = end
			prevBlank = true
			continue
		}

		if atxHeadingPattern.MatchString(line) {
			flush()
			txt, level, attrs := parseHeading(line)
			blocks = append(blocks, &RawBlock{
				Type:     rawHeading,
				Content:  txt,
				Level:    level,
				Metadata: attrs,
				Line:     lineNum,
			})
			prevBlank = true
			continue
		}

		// "---" directly under prose is a setext underline, not a divider
		if m := breakPattern.FindStringSubmatch(line); m != nil && isThematicBreak(line) && (prevBlank || m[1] != "-") {
			flush()
			blocks = append(blocks, &RawBlock{Type: rawDivider, Line: lineNum})
			prevBlank = true
			continue
		}

		if len(prose) == 0 {
			if strings.TrimSpace(line) == "" {
				prevBlank = true
				continue
			}
			proseStart = lineNum
		}
		prose = append(prose, line)
		prevBlank = strings.TrimSpace(line) == ""
	}
	flush()

	return blocks, nil
}

// isThematicBreak reports whether every non-space character is the same
// marker and there are at least three of them.
func isThematicBreak(line string) bool {
	var marker rune
	count := 0
	for _, r := range strings.TrimSpace(line) {
		switch r {
		case ' ', '\t':
			continue
		case '-', '*', '_':
			if marker == 0 {
				marker = r
			}
			if r != marker {
				return false
			}
			count++
		default:
			return false
		}
	}
	return count >= 3
}

// findFenceClose returns the index of the line closing a fence opened with
// marker, or -1. The closing fence uses the same character, at least as many.
func findFenceClose(lines []string, from int, marker string) int {
	for j := from; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if len(trimmed) < len(marker) || trimmed[0] != marker[0] {
			continue
		}
		if strings.Trim(trimmed, string(marker[0])) == "" {
			return j
		}
	}
	return -1
}

// newFenceBlock parses a fence's info string and body.
// Info string format: "python", "go live id=title-demo", `expander title="More" expanded`.
func newFenceBlock(info string, body []string, line int) (*RawBlock, error) {
	parts := splitInfo(info)

	block := &RawBlock{
		Type:     rawFence,
		Metadata: make(map[string]string),
		Line:     line,
	}
	if len(body) > 0 {
		block.Content = strings.Join(body, "\n") + "\n"
	}

	if len(parts) > 0 && !strings.Contains(parts[0], "=") {
		block.Language = parts[0]
		parts = parts[1:]
	}

	for _, part := range parts {
		if k, v, ok := strings.Cut(part, "="); ok {
			block.Metadata[k] = strings.Trim(v, `"'`)
			continue
		}
		block.Flags = append(block.Flags, part)
	}

	switch {
	case directiveLanguages[block.Language]:
		block.Directive = block.Language
	case block.HasFlag(DirectiveLive):
		block.Directive = DirectiveLive
	}

	if block.Directive == DirectiveExpander {
		children, err := scanBlocks(strings.TrimSuffix(block.Content, "\n"), line)
		if err != nil {
			return nil, err
		}
		block.Children = children
	}

	return block, nil
}

// HasFlag reports whether the info string carried the bare word flag.
func (b *RawBlock) HasFlag(flag string) bool {
	for _, f := range b.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// splitInfo splits an info string on whitespace, keeping quoted values intact.
func splitInfo(info string) []string {
	var parts []string
	var cur strings.Builder
	var quote rune

	for _, r := range info {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t':
			if cur.Len() > 0 {
				parts = append(parts, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}

// parseHeading parses an ATX heading line, returning its inline markdown
// text, level and {key=value} attributes.
func parseHeading(line string) (string, int, map[string]string) {
	src := []byte(strings.TrimSpace(line))
	attrs := make(map[string]string)

	doc := headingParser.Parse(text.NewReader(src))
	h, ok := doc.FirstChild().(*ast.Heading)
	if !ok {
		trimmed := strings.TrimLeft(string(src), "#")
		return strings.TrimSpace(trimmed), len(src) - len(trimmed), attrs
	}

	var b strings.Builder
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}

	for _, attr := range h.Attributes() {
		attrs[string(attr.Name)] = attributeString(attr.Value)
	}

	return strings.TrimSpace(b.String()), h.Level, attrs
}

func attributeString(v any) string {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
