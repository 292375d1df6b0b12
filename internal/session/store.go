// Package session keeps per-session widget state and serializes access to it.
package session

import (
	"context"
	"errors"

	"github.com/livetemplate/walkthrough"
)

// ErrNotFound is returned when a session has no stored state.
var ErrNotFound = errors.New("session not found")

// Store persists widget state by session ID.
type Store interface {
	Load(ctx context.Context, sessionID string) (*walkthrough.WidgetState, error)
	Save(ctx context.Context, sessionID string, state *walkthrough.WidgetState) error
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context) ([]string, error)
	Close() error
}
