package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqreplay/pkg/model"
)

type memStore struct {
	mu      sync.Mutex
	saved   []model.Persisted
	loaded  model.Persisted
	loadErr error
	saveErr error
}

func (m *memStore) Load(context.Context) (model.Persisted, error) {
	return m.loaded, m.loadErr
}

func (m *memStore) Save(_ context.Context, p model.Persisted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, p)
	return m.saveErr
}

func (m *memStore) saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

func drain(ch <-chan model.Event) []model.Event {
	var out []model.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestManagerDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := &memStore{}
	m := NewManager(nil, WithStore(st), WithEnv(testEnv()))

	res := m.Dispatch(ctx, CreateAndRecord{Tab: "tab", SourceURL: "https://x.com/"})
	require.NoError(t, res.Err)
	require.NotEmpty(t, res.RecordingID)
	assert.Equal(t, 1, st.saves())

	assert.True(t, m.Dispatch(ctx, Captured{Entry: fetchEntry("https://x.com/api"), Tab: "tab"}).Accepted)
	assert.False(t, m.Dispatch(ctx, Captured{Entry: fetchEntry("https://x.com/api"), Tab: "other"}).Accepted)
	assert.Equal(t, 1, st.saves())
	assert.Len(t, m.Summary().RecordEntries, 1)

	into := m.Dispatch(ctx, StopRecordInto{ID: res.RecordingID})
	assert.Equal(t, res.RecordingID, into.RecordingID)
	assert.Equal(t, 2, st.saves())

	r, ok := m.Recording(res.RecordingID)
	require.True(t, ok)
	assert.Len(t, r.Entries, 1)

	bad := m.Dispatch(ctx, StartReplay{ID: "ghost", Target: "tab"})
	assert.ErrorIs(t, bad.Err, ErrRecordingNotFound)
	assert.Equal(t, 2, st.saves())
}

func TestManagerEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewManager(nil, WithEnv(testEnv()))
	id := m.Dispatch(ctx, ImportRecording{Name: "r", Entries: []model.Entry{fetchEntry("https://x.com/a")}}).RecordingID
	assert.Empty(t, drain(m.Events()))

	m.Dispatch(ctx, StartReplay{ID: id, Target: "tab"})
	events := drain(m.Events())
	require.Len(t, events, 1)
	assert.Equal(t, model.Event{Type: model.EventMode, Target: "tab", Mode: model.ModeReplay, Timestamp: 1_700_000_000_000}, events[0])

	m.Dispatch(ctx, ToggleEntry{ID: id, Index: 0})
	events = drain(m.Events())
	require.Len(t, events, 1)
	assert.Equal(t, model.ModeReplay, events[0].Mode)

	m.Dispatch(ctx, RenameRecording{ID: id, Name: "renamed"})
	assert.Empty(t, drain(m.Events()))

	m.Dispatch(ctx, DeleteRecording{ID: id})
	events = drain(m.Events())
	require.Len(t, events, 1)
	assert.Equal(t, model.ModeNone, events[0].Mode)
	assert.Equal(t, model.ModeNone, m.ResolveModeFor("tab").Mode)
}

func TestManagerEventsDropWhenFull(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewManager(nil, WithEventBuffer(1))
	m.Dispatch(ctx, StartRecord{Tab: "a"})
	m.Dispatch(ctx, StopRecord{})
	assert.Len(t, drain(m.Events()), 1)
}

func TestManagerHydrate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("loads_snapshot", func(t *testing.T) {
		st := &memStore{loaded: model.Persisted{
			Recordings:    []model.Recording{rec("r1", fetchEntry("https://x.com/a"))},
			ActiveReplays: map[model.RecordingID]model.TargetID{"r1": "tab"},
		}}
		m := NewManager(nil, WithStore(st))
		require.NoError(t, m.Hydrate(ctx))
		assert.Equal(t, model.ModeReplay, m.ResolveModeFor("tab").Mode)
		assert.Equal(t, model.DefaultRecordFilters(), m.Snapshot().RecordFilters)
	})

	t.Run("load_error", func(t *testing.T) {
		m := NewManager(nil, WithStore(&memStore{loadErr: errors.New("disk")}))
		assert.Error(t, m.Hydrate(ctx))
	})

	t.Run("no_store", func(t *testing.T) {
		assert.NoError(t, NewManager(nil).Hydrate(ctx))
	})
}

func TestManagerSaveErrorKeepsState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewManager(nil, WithStore(&memStore{saveErr: errors.New("disk full")}))
	m.Dispatch(ctx, AddIgnore{Pattern: "ads"})
	assert.Equal(t, []string{"ads"}, m.Summary().IgnorePatterns)
}

func TestManagerSnapshotIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewManager(nil)
	id := m.Dispatch(ctx, ImportRecording{Entries: []model.Entry{fetchEntry("https://x.com/a")}}).RecordingID

	snap := m.Snapshot()
	snap.Recordings[0].Entries[0].URL = "mutated"
	r, _ := m.Recording(id)
	assert.Equal(t, "https://x.com/a", r.Entries[0].URL)

	p := m.ResolveModeFor("tab")
	assert.Equal(t, model.ModeNone, p.Mode)
}

func TestManagerConcurrentDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewManager(nil)
	m.Dispatch(ctx, StartRecord{Tab: "tab"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Dispatch(ctx, Captured{Entry: fetchEntry("https://x.com/api"), Tab: "tab"})
			_ = m.Summary()
		}()
	}
	wg.Wait()
	assert.Len(t, m.Summary().RecordEntries, 50)
}
