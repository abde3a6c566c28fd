package state

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon/persona-responder/internal/memory"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newSQLiteStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	backend, err := NewSQLiteBackend(path, quietLogger())
	require.NoError(t, err)
	store := NewStore(backend, DefaultPolicy(), quietLogger())
	store.SetClock(func() time.Time { return now })
	t.Cleanup(func() { store.Close() })
	return store, path
}

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	store := NewStore(backend, DefaultPolicy(), quietLogger())
	store.SetClock(func() time.Time { return now })
	return store, path
}

func sampleState() *State {
	st := New()
	st.MarkHandled("<a@example.com>")
	st.MarkHandled("<b@example.com>")
	st.RecordSend(SendEvent{Time: now.Add(-30 * time.Minute), Sender: "alice@example.com", MessageID: "<r1@askian.net>"})
	st.RecordSend(SendEvent{Time: now.Add(-10 * time.Minute), Sender: "bob@example.com", MessageID: "<r2@askian.net>"})
	st.Conversations.Record("alice@example.com", "henry", "hello", "Henry R", now.Add(-30*time.Minute), memory.DefaultOptions())
	st.Conversations.Record("alice@example.com", "henry", "again", "Henry R again", now.Add(-20*time.Minute), memory.DefaultOptions())
	st.Conversations.Record("bob@example.com", "tesla", "volts?", "N. Tesla", now.Add(-10*time.Minute), memory.DefaultOptions())
	return st
}

func TestBackendsRoundTrip(t *testing.T) {
	for name, open := range map[string]func(*testing.T) (*Store, string){
		"sqlite": newSQLiteStore,
		"file":   newFileStore,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := open(t)

			want := sampleState()
			require.NoError(t, store.Save(ctx, want))

			got := store.Load(ctx)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadThenSaveIsIdempotent(t *testing.T) {
	for name, open := range map[string]func(*testing.T) (*Store, string){
		"sqlite": newSQLiteStore,
		"file":   newFileStore,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, _ := open(t)
			require.NoError(t, store.Save(ctx, sampleState()))

			first := store.Load(ctx)
			require.NoError(t, store.Save(ctx, first))
			second := store.Load(ctx)

			if diff := cmp.Diff(first, second); diff != "" {
				t.Errorf("load-save changed state (-first +second):\n%s", diff)
			}
		})
	}
}

func TestLoadMissingStartsEmpty(t *testing.T) {
	store, _ := newFileStore(t)
	st := store.Load(context.Background())
	assert.Empty(t, st.HandledIDs)
	assert.Empty(t, st.SendLog)
	assert.Empty(t, st.Conversations)

	sqliteStore, _ := newSQLiteStore(t)
	st = sqliteStore.Load(context.Background())
	assert.Empty(t, st.HandledIDs)
	assert.NotNil(t, st.Conversations)
}

func TestLoadCorruptFileStartsEmpty(t *testing.T) {
	store, path := newFileStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	st := store.Load(context.Background())
	assert.Empty(t, st.HandledIDs)
	assert.Empty(t, st.SendLog)
}

func TestLoadLegacyFileFormat(t *testing.T) {
	store, path := newFileStore(t)
	legacy := `{
  "replied_ids": ["<x@example.com>"],
  "reply_log": [{"time": "2026-03-01T11:30:00.123456", "sender": "alice@example.com", "message_id": "<x@example.com>"}]
}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	st := store.Load(context.Background())
	assert.True(t, st.HasHandled("<x@example.com>"))
	require.Len(t, st.SendLog, 1)
	assert.Equal(t, "alice@example.com", st.SendLog[0].Sender)
	assert.True(t, st.SendLog[0].Time.Equal(time.Date(2026, 3, 1, 11, 30, 0, 123456000, time.UTC)))
	assert.NotNil(t, st.Conversations)
}

func TestSaveCompacts(t *testing.T) {
	ctx := context.Background()
	store, _ := newSQLiteStore(t)

	st := New()
	for i := 0; i < 1005; i++ {
		st.MarkHandled(fmt.Sprintf("<%d@example.com>", i))
	}
	st.RecordSend(SendEvent{Time: now.Add(-25 * time.Hour), Sender: "old@example.com"})
	st.RecordSend(SendEvent{Time: now.Add(-23 * time.Hour), Sender: "recent@example.com"})
	st.Conversations.Record("old@example.com", "henry", "in", "out", now.Add(-181*24*time.Hour), memory.DefaultOptions())
	st.Conversations.Record("new@example.com", "henry", "in", "out", now.Add(-time.Hour), memory.DefaultOptions())

	require.NoError(t, store.Save(ctx, st))
	got := store.Load(ctx)

	require.Len(t, got.HandledIDs, 1000)
	assert.Equal(t, "<5@example.com>", got.HandledIDs[0])
	assert.Equal(t, "<1004@example.com>", got.HandledIDs[999])
	assert.False(t, got.HasHandled("<0@example.com>"))

	require.Len(t, got.SendLog, 1)
	assert.Equal(t, "recent@example.com", got.SendLog[0].Sender)

	_, hasOld := got.Conversations["old@example.com"]
	assert.False(t, hasOld)
	assert.Len(t, got.Conversations["new@example.com"]["henry"], 1)
}

func TestHandledSet(t *testing.T) {
	st := New()
	assert.False(t, st.HasHandled(""))
	st.MarkHandled("")
	assert.Empty(t, st.HandledIDs)

	st.MarkHandled("<a@x>")
	st.MarkHandled("<a@x>")
	assert.Equal(t, []string{"<a@x>"}, st.HandledIDs)
	assert.True(t, st.HasHandled("<a@x>"))
}

func TestSendsSince(t *testing.T) {
	st := New()
	st.RecordSend(SendEvent{Time: now.Add(-2 * time.Hour), Sender: "a@x"})
	st.RecordSend(SendEvent{Time: now.Add(-time.Hour), Sender: "b@x"})
	st.RecordSend(SendEvent{Time: now.Add(-time.Minute), Sender: "c@x"})

	recent := st.SendsSince(now.Add(-time.Hour))
	require.Len(t, recent, 2)
	assert.Equal(t, "b@x", recent[0].Sender)
}
