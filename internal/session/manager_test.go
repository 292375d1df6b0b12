package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/livetemplate/walkthrough"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke races if locking is missing.
type slowStore struct {
	*MemoryStore
}

func (s slowStore) Load(ctx context.Context, id string) (*walkthrough.WidgetState, error) {
	time.Sleep(2 * time.Millisecond)
	return s.MemoryStore.Load(ctx, id)
}

func (s slowStore) Save(ctx context.Context, id string, state *walkthrough.WidgetState) error {
	time.Sleep(2 * time.Millisecond)
	return s.MemoryStore.Save(ctx, id, state)
}

var counter = &walkthrough.Widget{
	ID:   "n",
	Spec: walkthrough.WidgetSpec{Kind: walkthrough.WidgetNumber},
}

func TestManager_UpdateSerializes(t *testing.T) {
	mem := NewMemoryStore()
	defer mem.Close()
	m := NewManager(slowStore{mem})
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Update(ctx, "race", func(ws *walkthrough.WidgetState) error {
				n := ws.Value(counter).(float64)
				_, err := ws.Set(counter, n+1)
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := m.Get(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, float64(writers), state.Value(counter))

	m.mu.Lock()
	assert.Empty(t, m.locks, "locks should be released")
	m.mu.Unlock()
}

func TestManager_GetUnknownIsEmptyAndUnsaved(t *testing.T) {
	mem := NewMemoryStore()
	defer mem.Close()
	m := NewManager(mem)

	state, err := m.Get(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, 0, state.Len())
	assert.Equal(t, 0, mem.Len())
}

func TestManager_UpdateErrorSavesNothing(t *testing.T) {
	mem := NewMemoryStore()
	defer mem.Close()
	m := NewManager(mem)
	boom := errors.New("boom")

	_, err := m.Update(context.Background(), "s", func(ws *walkthrough.WidgetState) error {
		_, _ = ws.Set(counter, 3)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, mem.Len())
}

func TestManager_CanceledContext(t *testing.T) {
	mem := NewMemoryStore()
	defer mem.Close()
	m := NewManager(mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Update(ctx, "s", func(*walkthrough.WidgetState) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_Delete(t *testing.T) {
	mem := NewMemoryStore()
	defer mem.Close()
	m := NewManager(mem)
	ctx := context.Background()

	_, err := m.Update(ctx, "s", func(ws *walkthrough.WidgetState) error {
		_, err := ws.Set(counter, 1)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "s"))

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEqual(t, a, b)
	assert.True(t, ValidID(a))
	assert.False(t, ValidID("not-a-session"))
}
