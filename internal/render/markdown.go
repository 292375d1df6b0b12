package render

import (
	"fmt"
	"strings"

	"github.com/livetemplate/walkthrough"
)

// Markdown renders a document as markdown, for terminals and plain files.
// Widgets appear as their label and current value.
func Markdown(doc *walkthrough.Document) string {
	var parts []string
	appendMarkdown(&parts, doc.Elements)
	return strings.Join(parts, "\n\n") + "\n"
}

func appendMarkdown(parts *[]string, elems []walkthrough.Element) {
	for i := range elems {
		el := &elems[i]
		switch el.Kind {
		case walkthrough.ElementHeading:
			level := min(max(el.Level, 1), 6)
			*parts = append(*parts, strings.Repeat("#", level)+" "+el.Text)
			if el.Color != "" {
				*parts = append(*parts, "---")
			}

		case walkthrough.ElementBanner:
			*parts = append(*parts, "## "+el.Text)
			if el.Detail != "" {
				*parts = append(*parts, quote(el.Detail))
			}

		case walkthrough.ElementParagraph:
			*parts = append(*parts, el.Text)

		case walkthrough.ElementCaption:
			*parts = append(*parts, "_"+el.Text+"_")

		case walkthrough.ElementLatex:
			*parts = append(*parts, "$$\n"+el.Text+"\n$$")

		case walkthrough.ElementCode:
			*parts = append(*parts, fence(el.Text, el.Language))

		case walkthrough.ElementLive:
			*parts = append(*parts, fence(el.Text, el.Language))
			appendMarkdown(parts, el.Children)
			if el.Err != "" {
				*parts = append(*parts, quote("**Error:** "+el.Err))
			}

		case walkthrough.ElementDivider:
			*parts = append(*parts, "---")

		case walkthrough.ElementWidget:
			line := fmt.Sprintf("**%s:** `%s`", el.Text, el.Detail)
			if el.Widget != nil && len(el.Widget.Spec.Options) > 0 {
				line += " (" + strings.Join(el.Widget.Spec.Options, ", ") + ")"
			}
			*parts = append(*parts, line)

		case walkthrough.ElementExpander:
			marker := "▸"
			if el.Expanded {
				marker = "▾"
			}
			*parts = append(*parts, fmt.Sprintf("**%s %s**", marker, el.Text))
			appendMarkdown(parts, el.Children)

		case walkthrough.ElementError:
			*parts = append(*parts, quote("**Error:** "+el.Err))
		}
	}
}

// fence wraps source in a code fence longer than any backtick run inside it.
func fence(source, language string) string {
	longest, run := 0, 0
	for _, r := range source {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	marker := strings.Repeat("`", max(3, longest+1))
	return marker + language + "\n" + strings.TrimRight(source, "\n") + "\n" + marker
}

func quote(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = "> " + l
	}
	return strings.Join(lines, "\n")
}
