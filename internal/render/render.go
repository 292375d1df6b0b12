// Package render turns a page and a session's widget state into a Document,
// and a Document into HTML, markdown or terminal output.
package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/livetemplate/walkthrough"
	"github.com/livetemplate/walkthrough/internal/logging"
	"github.com/livetemplate/walkthrough/internal/metrics"
)

// Isolation decides what a failing live block does to the rest of a render.
type Isolation string

const (
	// IsolationBlock reports the failure on the live block's element and
	// carries on with its siblings.
	IsolationBlock Isolation = "block"
	// IsolationPage aborts the render with a *walkthrough.LiveBlockError.
	IsolationPage Isolation = "page"
)

// ParseIsolation accepts "block", "page" or "" (block).
func ParseIsolation(s string) (Isolation, error) {
	switch Isolation(s) {
	case "", IsolationBlock:
		return IsolationBlock, nil
	case IsolationPage:
		return IsolationPage, nil
	default:
		return "", fmt.Errorf("unknown isolation policy %q", s)
	}
}

// errLivePanic marks a live func that panicked.
var errLivePanic = errors.New("live block panicked")

// Renderer walks a page's blocks top to bottom and produces a Document.
// It holds no per-render state and is safe for concurrent use.
type Renderer struct {
	logger    *slog.Logger
	isolation Isolation
	metrics   *metrics.Recorder
	timeout   time.Duration
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for live block failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// WithIsolation sets the live block failure policy.
func WithIsolation(iso Isolation) Option {
	return func(r *Renderer) {
		r.isolation = iso
	}
}

// WithMetrics records render counts and timings.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Renderer) {
		r.metrics = m
	}
}

// WithTimeout bounds each render.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		r.timeout = d
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		logger:    logging.NewNop(),
		isolation: IsolationBlock,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the document for page given the session's widget state.
// A nil state renders every widget at its default. Rendering the same page
// with the same state always yields the same document.
func (r *Renderer) Render(ctx context.Context, page *walkthrough.Page, state walkthrough.StateReader) (*walkthrough.Document, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	rc := &renderContext{Renderer: r, page: page, state: state}

	elems, err := rc.blocks(ctx, page.Blocks)
	if err != nil {
		return nil, err
	}

	r.metrics.ObserveRender(page.ID, time.Since(start))
	return &walkthrough.Document{
		PageID:   page.ID,
		Title:    page.Title,
		Elements: elems,
	}, nil
}

// renderContext carries one render's page and state.
type renderContext struct {
	*Renderer
	page  *walkthrough.Page
	state walkthrough.StateReader
}

func (rc *renderContext) blocks(ctx context.Context, blocks []walkthrough.Block) ([]walkthrough.Element, error) {
	elems := make([]walkthrough.Element, 0, len(blocks))
	for _, blk := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("render %s: %w", rc.page.ID, err)
		}
		el, err := rc.block(ctx, blk)
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
	}
	return elems, nil
}

func (rc *renderContext) block(ctx context.Context, blk walkthrough.Block) (walkthrough.Element, error) {
	id := blk.BlockID()

	switch b := blk.(type) {
	case *walkthrough.Heading:
		return walkthrough.Element{Kind: walkthrough.ElementHeading, BlockID: id, Level: b.Level, Text: b.Text, Color: b.Divider}, nil

	case *walkthrough.Banner:
		return walkthrough.Element{Kind: walkthrough.ElementBanner, BlockID: id, Text: b.Title, Detail: b.Description, Color: b.Color}, nil

	case *walkthrough.Paragraph:
		return walkthrough.Element{Kind: walkthrough.ElementParagraph, BlockID: id, Text: b.Text, Format: b.Format, AllowHTML: b.AllowHTML}, nil

	case *walkthrough.Caption:
		return walkthrough.Element{Kind: walkthrough.ElementCaption, BlockID: id, Text: b.Text}, nil

	case *walkthrough.Latex:
		return walkthrough.Element{Kind: walkthrough.ElementLatex, BlockID: id, Text: b.Expr}, nil

	case *walkthrough.Divider:
		return walkthrough.Element{Kind: walkthrough.ElementDivider, BlockID: id}, nil

	case *walkthrough.CodeSample:
		if !b.Live {
			return walkthrough.Element{Kind: walkthrough.ElementCode, BlockID: id, Text: b.Source, Language: b.Language}, nil
		}
		return rc.live(ctx, b)

	case *walkthrough.Widget:
		v := walkthrough.CurrentValue(rc.state, b)
		return walkthrough.Element{
			Kind:    walkthrough.ElementWidget,
			BlockID: id,
			Text:    b.Spec.Label,
			Detail:  walkthrough.FormatValue(v),
			Widget:  &walkthrough.WidgetView{ID: b.ID, Spec: b.Spec, Value: v},
		}, nil

	case *walkthrough.Expander:
		children, err := rc.blocks(ctx, b.Blocks)
		if err != nil {
			return walkthrough.Element{}, err
		}
		return walkthrough.Element{Kind: walkthrough.ElementExpander, BlockID: id, Text: b.Title, Expanded: b.Expanded, Children: children}, nil

	default:
		return walkthrough.Element{}, fmt.Errorf("render %s: unsupported block %T", rc.page.ID, blk)
	}
}

// live shows the sample's source and appends whatever its func emits.
func (rc *renderContext) live(ctx context.Context, cs *walkthrough.CodeSample) (walkthrough.Element, error) {
	el := walkthrough.Element{
		Kind:     walkthrough.ElementLive,
		BlockID:  cs.ID,
		Text:     cs.Source,
		Language: cs.Language,
	}

	frame := walkthrough.NewFrame(ctx, rc.page, rc.state)
	err := call(cs.Func, frame)
	el.Children = frame.Elements()
	if err == nil {
		return el, nil
	}

	el.Err = err.Error()
	rc.metrics.LiveBlockFailed(rc.page.ID, cs.ID)
	rc.logger.Warn("live block failed",
		"page", rc.page.ID,
		"block", cs.ID,
		"error", err,
	)

	if rc.isolation == IsolationPage {
		return el, &walkthrough.LiveBlockError{BlockID: cs.ID, Err: err}
	}
	return el, nil
}

// call runs fn, turning a panic into an error.
func call(fn walkthrough.LiveFunc, f *walkthrough.Frame) (err error) {
	if fn == nil {
		return errors.New("live block has no func")
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errLivePanic, rec)
		}
	}()
	return fn(f)
}
