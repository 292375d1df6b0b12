package walkthrough

import (
	"encoding/json"
	"fmt"
	"maps"
	"sync"
)

// StateReader exposes current widget values to the renderer.
type StateReader interface {
	Lookup(widgetID string) (any, bool)
}

// WidgetState holds the current value of every widget a session has touched.
// Values are only written through Set, so they are always normalized.
type WidgetState struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewWidgetState creates an empty widget state for a session.
func NewWidgetState() *WidgetState {
	return &WidgetState{
		values: make(map[string]any),
	}
}

// NewWidgetStateFrom restores a widget state from a snapshot.
func NewWidgetStateFrom(values map[string]any) *WidgetState {
	ws := NewWidgetState()
	maps.Copy(ws.values, values)
	return ws
}

// Lookup returns the stored value for a widget, if the session set one.
func (ws *WidgetState) Lookup(widgetID string) (any, bool) {
	if ws == nil {
		return nil, false
	}
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	v, ok := ws.values[widgetID]
	return v, ok
}

// Value returns the widget's current value, falling back to its default.
func (ws *WidgetState) Value(w *Widget) any {
	return CurrentValue(ws, w)
}

// Set normalizes raw for the widget and records it. The stored value is
// returned; on error the state is unchanged.
func (ws *WidgetState) Set(w *Widget, raw any) (any, error) {
	v, err := w.Spec.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("widget %s: %w", w.ID, err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.values[w.ID] = v
	return v, nil
}

// Reset clears every value so widgets show their defaults again.
func (ws *WidgetState) Reset() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.values = make(map[string]any)
}

// Len returns the number of widgets with a stored value.
func (ws *WidgetState) Len() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return len(ws.values)
}

// Snapshot returns a copy of the stored values.
func (ws *WidgetState) Snapshot() map[string]any {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return maps.Clone(ws.values)
}

// MarshalJSON encodes the stored values.
func (ws *WidgetState) MarshalJSON() ([]byte, error) {
	return json.Marshal(ws.Snapshot())
}

// UnmarshalJSON replaces the stored values.
func (ws *WidgetState) UnmarshalJSON(data []byte) error {
	values := make(map[string]any)
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.values = values
	return nil
}

// CurrentValue resolves a widget value from any StateReader. Stored values
// are normalized against the widget as it is defined now; the default is used
// when the reader is nil, has no entry, or holds a value the widget rejects.
func CurrentValue(state StateReader, w *Widget) any {
	if state != nil {
		if v, ok := state.Lookup(w.ID); ok {
			if nv, err := w.Spec.Normalize(v); err == nil {
				return nv
			}
		}
	}
	return w.Spec.DefaultValue()
}

// Interaction actions.
const (
	ActionSet   = "set"
	ActionReset = "reset"
)

// PageBlockID addresses page-level actions rather than a single widget.
const PageBlockID = "_page"

// Interaction is one user event against a page.
type Interaction struct {
	BlockID string
	Action  string
	Value   any
}

// Apply routes an interaction to the widget it targets and updates the state.
func (ws *WidgetState) Apply(page *Page, ix Interaction) error {
	if ix.BlockID == PageBlockID {
		switch ix.Action {
		case ActionReset:
			ws.Reset()
			return nil
		default:
			return fmt.Errorf("%w: %q on page", ErrUnknownAction, ix.Action)
		}
	}

	w, ok := page.Widget(ix.BlockID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWidget, ix.BlockID)
	}

	switch ix.Action {
	case ActionSet, "":
		_, err := ws.Set(w, ix.Value)
		return err
	case ActionReset:
		ws.mu.Lock()
		delete(ws.values, w.ID)
		ws.mu.Unlock()
		return nil
	default:
		return fmt.Errorf("%w: %q on widget %s", ErrUnknownAction, ix.Action, ix.BlockID)
	}
}
