package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/livetemplate/walkthrough"
	"github.com/spf13/cobra"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks <file|page>",
	Short: "List a page's blocks in display order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := loadPage(args[0], newRegistry())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n\n", page.Title, page.ID)
		printBlocks(out, page.Blocks, 0)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(blocksCmd)
}

func printBlocks(w io.Writer, blocks []walkthrough.Block, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, blk := range blocks {
		kind := string(blk.Kind())
		if cs, ok := blk.(*walkthrough.CodeSample); ok && cs.Live {
			kind = "live"
		}
		fmt.Fprintf(w, "%s%-10s %-20s %s\n", indent, kind, blk.BlockID(), describe(blk))
		if exp, ok := blk.(*walkthrough.Expander); ok {
			printBlocks(w, exp.Blocks, depth+1)
		}
	}
}

func describe(blk walkthrough.Block) string {
	switch b := blk.(type) {
	case *walkthrough.Heading:
		return fmt.Sprintf("h%d %s", b.Level, b.Text)
	case *walkthrough.Banner:
		return b.Title
	case *walkthrough.Paragraph:
		return summarize(b.Text)
	case *walkthrough.Caption:
		return summarize(b.Text)
	case *walkthrough.Latex:
		return summarize(b.Expr)
	case *walkthrough.CodeSample:
		return b.Language
	case *walkthrough.Widget:
		s := fmt.Sprintf("%s %q = %s", b.Spec.Kind, b.Spec.Label, walkthrough.FormatValue(b.Spec.DefaultValue()))
		if len(b.Spec.Options) > 0 {
			s += " [" + strings.Join(b.Spec.Options, ", ") + "]"
		}
		return s
	case *walkthrough.Expander:
		if b.Expanded {
			return b.Title + " (expanded)"
		}
		return b.Title
	default:
		return ""
	}
}

// summarize returns the first line of text, cut to 50 runes.
func summarize(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if r := []rune(line); len(r) > 50 {
		return string(r[:49]) + "…"
	}
	return line
}
