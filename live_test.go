package walkthrough

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	noop := func(f *Frame) error { return nil }

	reg.Register("b", noop)
	reg.Register("a", noop)

	_, ok := reg.Lookup("a")
	assert.True(t, ok)
	_, ok = reg.Lookup("c")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, reg.IDs())

	assert.Panics(t, func() { reg.Register("a", noop) }, "duplicate id")
	assert.Panics(t, func() { reg.Register("nil", nil) }, "nil func")

	var nilReg *Registry
	_, ok = nilReg.Lookup("a")
	assert.False(t, ok)
	assert.Nil(t, nilReg.IDs())
}

type celsius float64

func (c celsius) String() string { return "warm" }

func TestFrameWrite(t *testing.T) {
	f := NewFrame(context.Background(), nil, nil)

	f.Write(
		"**bold**",
		errors.New("boom"),
		42,
		true,
		nil,
		celsius(21),
		time.Second,
		map[string]int{"x": 1},
	)

	els := f.Elements()
	require.Len(t, els, 8)

	assert.Equal(t, ElementParagraph, els[0].Kind)
	assert.Equal(t, FormatMarkdown, els[0].Format)
	assert.Equal(t, "**bold**", els[0].Text)

	assert.Equal(t, ElementError, els[1].Kind)
	assert.Equal(t, "boom", els[1].Err)

	assert.Equal(t, "42", els[2].Text)
	assert.Equal(t, FormatPlain, els[2].Format)
	assert.Equal(t, "true", els[3].Text)
	assert.Equal(t, "None", els[4].Text)
	assert.Equal(t, "warm", els[5].Text)
	assert.Equal(t, "1s", els[6].Text)

	assert.Equal(t, ElementCode, els[7].Kind)
	assert.Equal(t, "json", els[7].Language)
	assert.JSONEq(t, `{"x": 1}`, els[7].Text)
}

func TestFrameEmitters(t *testing.T) {
	f := NewFrame(context.Background(), nil, nil)

	f.Title("T")
	f.Header("H")
	f.SubheaderWithDivider("S", "rainbow")
	f.Banner("B", "desc", "red")
	f.MarkdownHTML("<b>x</b>")
	f.Caption("c")
	f.Latex("x^2")
	f.Divider()

	els := f.Elements()
	require.Len(t, els, 8)
	assert.Equal(t, []int{1, 2, 3}, []int{els[0].Level, els[1].Level, els[2].Level})
	assert.Equal(t, "rainbow", els[2].Color)
	assert.Equal(t, ElementBanner, els[3].Kind)
	assert.Equal(t, "desc", els[3].Detail)
	assert.True(t, els[4].AllowHTML)
	assert.Equal(t, ElementCaption, els[5].Kind)
	assert.Equal(t, ElementLatex, els[6].Kind)
	assert.Equal(t, ElementDivider, els[7].Kind)
}

func TestFrameValue(t *testing.T) {
	page, err := NewBuilder("p").
		Widget("count", WidgetSpec{Kind: WidgetNumber, Min: ptr(0), Max: ptr(10), Default: 5}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 5.0, NewFrame(context.Background(), page, nil).Value("count"), "default without state")

	ws := NewWidgetState()
	require.NoError(t, ws.Apply(page, Interaction{BlockID: "count", Action: ActionSet, Value: 99}))

	f := NewFrame(context.Background(), page, ws)
	assert.Equal(t, 10.0, f.Value("count"))
	assert.Nil(t, f.Value("missing"))
	assert.Nil(t, NewFrame(context.Background(), nil, ws).Value("count"))
}

func TestFrameContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := NewFrame(ctx, nil, nil)
	cancel()
	assert.ErrorIs(t, f.Context().Err(), context.Canceled)
}
