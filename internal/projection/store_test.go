package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rowsync-core/internal/changefeed"
	corelog "rowsync-core/internal/core/log"
)

func newTestStore(t *testing.T, tombstones int) *Store {
	t.Helper()
	s, err := NewStore(Options{TombstoneSize: tombstones, Logger: corelog.NewTestLogger(t)})
	require.NoError(t, err)
	return s
}

func insert(id string, fields ...any) changefeed.Event {
	return changefeed.NewEvent(changefeed.KindInsert, id, entity(id, fields...))
}

func update(id string, fields ...any) changefeed.Event {
	return changefeed.NewEvent(changefeed.KindUpdate, id, entity(id, fields...))
}

func del(id string) changefeed.Event {
	return changefeed.NewEvent(changefeed.KindDelete, id, nil)
}

func entity(id string, fields ...any) changefeed.Entity {
	e := changefeed.Entity{"id": id}
	for i := 0; i+1 < len(fields); i += 2 {
		e[fields[i].(string)] = fields[i+1]
	}
	return e
}

func ids(entities []changefeed.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		id, _ := e.ID()
		out = append(out, id)
	}
	return out
}

func TestStore_PostsScenario(t *testing.T) {
	s := newTestStore(t, 0)

	s.Apply(insert("1"))
	s.Apply(insert("2"))
	s.Apply(update("1", "text", "hi"))
	s.Apply(del("2"))

	assert.Equal(t, []changefeed.Entity{{"id": "1", "text": "hi"}}, s.Snapshot())
}

func TestStore_InsertPrependsNewestFirst(t *testing.T) {
	s := newTestStore(t, 0)
	for _, id := range []string{"a", "b", "c"} {
		s.Apply(insert(id))
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids(s.Snapshot()))
}

func TestStore_InsertOfExistingIDActsAsUpdate(t *testing.T) {
	s := newTestStore(t, 0)
	s.Apply(insert("a"))
	s.Apply(insert("b"))
	s.Apply(insert("a", "text", "redelivered"))

	assert.Equal(t, []string{"b", "a"}, ids(s.Snapshot()), "position must not change")
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "redelivered", got["text"])
}

func TestStore_UpdateKeepsPosition(t *testing.T) {
	s := newTestStore(t, 0)
	s.Apply(insert("a"))
	s.Apply(insert("b"))
	s.Apply(insert("c"))
	s.Apply(update("b", "text", "x"))

	assert.Equal(t, []string{"c", "b", "a"}, ids(s.Snapshot()))
}

func TestStore_UnknownIDsAreNoOps(t *testing.T) {
	s := newTestStore(t, 0)
	s.Apply(insert("a"))
	before := s.Version()

	assert.False(t, s.Apply(update("ghost", "text", "boo")))
	assert.False(t, s.Apply(del("ghost")))

	assert.Equal(t, 1, s.Len())
	_, ok := s.Get("ghost")
	assert.False(t, ok, "update must not create a ghost entity")
	assert.Equal(t, before, s.Version())
}

func TestStore_IdempotentReapplication(t *testing.T) {
	events := []changefeed.Event{
		insert("1", "text", "a"),
		insert("2"),
		update("1", "text", "b"),
		del("2"),
		insert("3", "n", 1),
		update("3", "n", 2),
		del("1"),
	}

	once := newTestStore(t, 0)
	twice := newTestStore(t, 0)
	for _, ev := range events {
		once.Apply(ev)
		twice.Apply(ev)
		assert.False(t, twice.Apply(ev), "second application of %v must be a no-op", ev)
	}
	assert.Equal(t, once.Snapshot(), twice.Snapshot())
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newTestStore(t, 0)
	s.Apply(insert("a", "text", "orig"))

	snap := s.Snapshot()
	snap[0]["text"] = "mutated"

	got, _ := s.Get("a")
	assert.Equal(t, "orig", got["text"])
}

func TestStore_TombstonesIgnoreLateInsert(t *testing.T) {
	s := newTestStore(t, 8)
	s.Apply(insert("a"))
	s.Apply(del("a"))
	assert.False(t, s.Apply(insert("a")), "late redelivery must not resurrect a deleted row")

	s.Apply(del("b"))
	assert.False(t, s.Apply(insert("b")), "delete seen before insert still wins")
	assert.Equal(t, 0, s.Len())

	plain := newTestStore(t, 0)
	plain.Apply(insert("a"))
	plain.Apply(del("a"))
	assert.True(t, plain.Apply(insert("a")), "without tombstones the insert is accepted")
}

func TestStore_Replace(t *testing.T) {
	s := newTestStore(t, 4)
	s.Apply(insert("old"))
	s.Apply(del("x"))

	s.Replace([]changefeed.Entity{
		{"id": "3"}, {"id": "2"}, {"text": "no id"}, {"id": "3", "dup": true}, {"id": "x"},
	})

	assert.Equal(t, []string{"3", "2", "x"}, ids(s.Snapshot()))
	got, _ := s.Get("3")
	assert.NotContains(t, got, "dup")
	assert.True(t, s.Apply(update("x", "text", "back")), "tombstones are cleared by a resync")
}

func TestStore_WatchReceivesChanges(t *testing.T) {
	s := newTestStore(t, 0)
	ch, cancel := s.Watch(8)

	s.Apply(insert("a"))
	s.Apply(update("ghost"))
	s.Apply(del("a"))

	first := <-ch
	assert.Equal(t, changefeed.KindInsert, first.Event.Kind)
	assert.Equal(t, uint64(1), first.Version)
	second := <-ch
	assert.Equal(t, changefeed.KindDelete, second.Event.Kind)
	assert.Equal(t, uint64(2), second.Version)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestStore_SlowWatcherDoesNotBlock(t *testing.T) {
	s := newTestStore(t, 0)
	ch, cancel := s.Watch(1)
	defer cancel()

	for i := 0; i < 10; i++ {
		s.Apply(insert(string(rune('a' + i))))
	}
	assert.Equal(t, 10, s.Len())
	c := <-ch
	assert.Equal(t, uint64(1), c.Version)
	assert.Equal(t, uint64(10), s.Version())
}

func TestNewStore_RejectsNegativeTombstones(t *testing.T) {
	_, err := NewStore(Options{TombstoneSize: -1})
	assert.Error(t, err)
}
