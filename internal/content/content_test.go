package content

import (
	"context"
	"io/fs"
	"testing"

	"github.com/livetemplate/walkthrough"
	"github.com/livetemplate/walkthrough/internal/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAll(t *testing.T) map[string]*walkthrough.Page {
	t.Helper()
	names, err := fs.Glob(FS(), "*.md")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	reg := Registry()
	pages := make(map[string]*walkthrough.Page)
	for _, name := range names {
		page, err := walkthrough.ParseFS(FS(), name, walkthrough.WithRegistry(reg))
		require.NoError(t, err, name)
		pages[page.ID] = page
	}
	return pages
}

func TestTutorialPagesParse(t *testing.T) {
	pages := parseAll(t)
	assert.Contains(t, pages, "index")
	assert.Contains(t, pages, "basics")
	assert.Contains(t, pages, "customizing")
	assert.Contains(t, pages, "elements")
	assert.Equal(t, "Tech Trek", pages["index"].Title)
}

func TestEveryLiveFuncIsUsed(t *testing.T) {
	used := make(map[string]bool)
	for _, page := range parseAll(t) {
		for _, cs := range page.LiveBlocks() {
			used[cs.LiveID] = true
		}
	}
	for _, id := range Registry().IDs() {
		assert.True(t, used[id], "live func %s is not referenced by any page", id)
	}
}

func TestTutorialRendersWithoutFailures(t *testing.T) {
	r := render.New()
	for id, page := range parseAll(t) {
		doc, err := r.Render(context.Background(), page, nil)
		require.NoError(t, err, id)
		assert.Empty(t, doc.Failed(), id)
	}
}

func TestNumberDemoFollowsWidget(t *testing.T) {
	page := parseAll(t)["elements"]
	w, ok := page.Widget("number")
	require.True(t, ok)
	assert.Equal(t, 10.0, w.Spec.DefaultValue())

	state := walkthrough.NewWidgetState()
	v, err := state.Set(w, 15)
	require.NoError(t, err)
	assert.Equal(t, 10.0, v)

	_, err = state.Set(w, 4)
	require.NoError(t, err)
	doc, err := render.New().Render(context.Background(), page, state)
	require.NoError(t, err)

	el, ok := doc.Find("number-demo")
	require.True(t, ok)
	require.Len(t, el.Children, 2)
	assert.Equal(t, "The current number is ", el.Children[0].Text)
	assert.Equal(t, "4", el.Children[1].Text)
}

func TestSettingsDemoReadsEveryWidget(t *testing.T) {
	page := parseAll(t)["elements"]
	state := walkthrough.NewWidgetState()
	for id, v := range map[string]any{"chat-mode": "context", "verbose": "on", "model": "gpt-4", "temperature": 0.2} {
		require.NoError(t, state.Apply(page, walkthrough.Interaction{BlockID: id, Action: walkthrough.ActionSet, Value: v}))
	}

	doc, err := render.New().Render(context.Background(), page, state)
	require.NoError(t, err)
	el, ok := doc.Find("settings-demo")
	require.True(t, ok)
	require.Len(t, el.Children, 1)
	assert.Contains(t, el.Children[0].Text, `chat_mode="context", verbose=True`)
	assert.Contains(t, el.Children[0].Text, `model="gpt-4", temperature=0.2`)
}
