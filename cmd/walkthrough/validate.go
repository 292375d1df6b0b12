package main

import (
	"errors"
	"fmt"

	"github.com/livetemplate/walkthrough"
	"github.com/livetemplate/walkthrough/internal/render"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [directory]",
	Short: "Check pages for authoring errors",
	Long: `Parses every markdown page and renders it once with default widget values.
Reports malformed widgets, unknown live block ids, duplicate block ids and
live blocks that fail at their defaults.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("no-render", false, "Only parse; do not run live blocks")
}

func runValidate(cmd *cobra.Command, args []string) error {
	src, err := resolveContent(args)
	if err != nil {
		return err
	}
	noRender, _ := cmd.Flags().GetBool("no-render")

	files, err := markdownFiles(src.fsys)
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", src, err)
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fmt.Fprintf(out, "Validating %s\n\n", src)

	registry := newRegistry()
	renderer := render.New(render.WithLogger(logger))
	failed := 0

	for _, file := range files {
		page, err := walkthrough.ParseFS(src.fsys, file, walkthrough.WithRegistry(registry))
		if err != nil {
			failed++
			var perr *walkthrough.ParseError
			if errors.As(err, &perr) {
				fmt.Fprintln(errOut, perr.Format())
			} else {
				fmt.Fprintf(errOut, "%s: %v\n", file, err)
			}
			continue
		}

		if !noRender {
			doc, err := renderer.Render(cmd.Context(), page, nil)
			if err != nil {
				failed++
				fmt.Fprintf(errOut, "%s: %v\n", file, err)
				continue
			}
			if broken := doc.Failed(); len(broken) > 0 {
				failed++
				for _, el := range broken {
					fmt.Fprintf(errOut, "%s: live block %s failed: %s\n", file, el.BlockID, el.Err)
				}
				continue
			}
		}

		fmt.Fprintf(out, "ok  %s (%d blocks, %d widgets, %d live)\n",
			file, countBlocks(page.Blocks), len(page.Widgets()), len(page.LiveBlocks()))
	}

	fmt.Fprintf(out, "\n%d files, %d with errors\n", len(files), failed)
	if failed > 0 {
		return fmt.Errorf("validation failed for %d of %d files", failed, len(files))
	}
	return nil
}

func countBlocks(blocks []walkthrough.Block) int {
	n := 0
	walkthrough.Walk(blocks, func(walkthrough.Block) { n++ })
	return n
}
