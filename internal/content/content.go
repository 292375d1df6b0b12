// Package content ships the Tech Trek tutorial: its markdown pages and the
// live funcs those pages reference.
package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/livetemplate/walkthrough"
)

//go:embed tutorial/*.md
var tutorialFS embed.FS

// FS returns the tutorial pages, rooted at the tutorial directory.
func FS() fs.FS {
	sub, err := fs.Sub(tutorialFS, "tutorial")
	if err != nil {
		panic(err)
	}
	return sub
}

// Registry returns a registry holding every live func the tutorial uses.
func Registry() *walkthrough.Registry {
	r := walkthrough.NewRegistry()
	Register(r)
	return r
}

// Register adds the tutorial's live funcs to r.
func Register(r *walkthrough.Registry) {
	r.Register("title-demo", titleDemo)
	r.Register("subheader-demo", subheaderDemo)
	r.Register("markdown-demo", markdownDemo)
	r.Register("write-demo", writeDemo)
	r.Register("latex-demo", latexDemo)
	r.Register("caption-demo", captionDemo)
	r.Register("number-demo", numberDemo)
	r.Register("settings-demo", settingsDemo)
}

func titleDemo(f *walkthrough.Frame) error {
	f.Title("**This** is how we can *add* `Title`") // similar to h1 in html
	return nil
}

func subheaderDemo(f *walkthrough.Frame) error {
	f.SubheaderWithDivider("This is a subheader with a divider", "rainbow")
	f.Subheader("_Walkthrough_ is :blue[cool] :sunglasses:")
	f.Subheader("This is a **Bold Header**, This is an *Italic Header*") // similar to h3 in html
	return nil
}

func markdownDemo(f *walkthrough.Frame) error {
	f.MarkdownHTML("This is a Markdown, <mark>highlighted using html</mark>, <del>Cut out</del>")
	f.Markdown("*Walkthrough* is **really** ***cool***.")
	f.Markdown(`
:red[Walkthrough] :orange[can] :green[write] :blue[text] :violet[in]
:gray[pretty] :rainbow[colors].`)
	f.Markdown("Here's a bouquet &mdash; :tulip::cherry_blossom::rose::hibiscus::sunflower::blossom:")

	multi := "If you end a line with two spaces,  \n" +
		"a soft return is used for the next line.\n\n" +
		"Two (or more) newline characters in a row will result in a hard return.\n"
	f.Markdown(multi)
	return nil
}

func writeDemo(f *walkthrough.Frame) error {
	f.Write("This is a Write, It displays any text element based on its data type")
	f.Write(42, true, errors.New("errors are shown inline"))
	f.Write(map[string]any{"workshop": "Tech Trek", "models": []string{"gpt-3.5-turbo"}})
	return nil
}

func latexDemo(f *walkthrough.Frame) error {
	f.Latex(`e^{i\pi} + 1 = 0`)
	return nil
}

func captionDemo(f *walkthrough.Frame) error {
	f.Caption("This is a string that explains something above.")
	f.Caption("A caption with _italics_ :blue[colors] and emojis :sunglasses:")
	return nil
}

func numberDemo(f *walkthrough.Frame) error {
	f.Write("The current number is ", f.Value("number"))
	return nil
}

func settingsDemo(f *walkthrough.Frame) error {
	f.Code(fmt.Sprintf(`chat_engine = index.as_chat_engine(chat_mode=%q, verbose=%s)
response = OpenAI(model=%q, temperature=%s).complete(%q)`,
		f.Value("chat-mode"), pyBool(f.Value("verbose")),
		f.Value("model"), walkthrough.FormatValue(f.Value("temperature")), f.Value("prompt")), "python")
	return nil
}

func pyBool(v any) string {
	if b, _ := v.(bool); b {
		return "True"
	}
	return "False"
}
