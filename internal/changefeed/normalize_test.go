package changefeed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "rowsync-core/internal/core/errors"
)

func TestNormalize_Insert(t *testing.T) {
	raw := Record{Type: "INSERT", Table: "posts", Record: map[string]any{"id": "p1", "text": "hello"}}

	ev, err := Normalize(raw, KindInsert)
	require.NoError(t, err)
	assert.Equal(t, KindInsert, ev.Kind)
	assert.Equal(t, "p1", ev.EntityID)
	assert.Equal(t, Entity{"id": "p1", "text": "hello"}, ev.Payload)

	raw.Record["text"] = "changed"
	assert.Equal(t, "hello", ev.Payload["text"], "event payload must not alias the raw record")
}

func TestNormalize_DeleteUsesOldRecord(t *testing.T) {
	raw := Record{Type: "DELETE", OldRecord: map[string]any{"id": float64(2)}}

	ev, err := Normalize(raw, KindDelete)
	require.NoError(t, err)
	assert.Equal(t, Event{Kind: KindDelete, EntityID: "2"}, ev)
}

func TestNormalize_DeleteFallsBackToRecord(t *testing.T) {
	raw := Record{Type: "DELETE", Record: map[string]any{"id": "x"}}

	ev, err := Normalize(raw, KindDelete)
	require.NoError(t, err)
	assert.Equal(t, "x", ev.EntityID)
}

func TestNormalize_MissingIDIsApplicationError(t *testing.T) {
	tests := []struct {
		name string
		raw  Record
		kind Kind
	}{
		{"insert without id", Record{Record: map[string]any{"text": "x"}}, KindInsert},
		{"update with empty id", Record{Record: map[string]any{"id": "  "}}, KindUpdate},
		{"update with object id", Record{Record: map[string]any{"id": map[string]any{}}}, KindUpdate},
		{"delete without anything", Record{}, KindDelete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.raw, tt.kind)
			require.Error(t, err)
			assert.True(t, coreerrors.IsApplicationError(err))
			assert.ErrorIs(t, err, coreerrors.ErrMalformedRecord)
		})
	}
}

func TestNormalize_UnknownKind(t *testing.T) {
	_, err := Normalize(Record{Record: map[string]any{"id": 1}}, Kind(42))
	assert.ErrorIs(t, err, coreerrors.ErrUnknownKind)
}

func TestNormalizeRecord_UsesTypeField(t *testing.T) {
	ev, err := NormalizeRecord(Record{Type: "update", Record: map[string]any{"id": 7, "text": "hi"}})
	require.NoError(t, err)
	assert.Equal(t, KindUpdate, ev.Kind)
	assert.Equal(t, "7", ev.EntityID)

	_, err = NormalizeRecord(Record{Type: "TRUNCATE"})
	assert.True(t, coreerrors.IsApplicationError(err))
}

func TestDecode_NumericIDsMatchStringIDs(t *testing.T) {
	rec, err := Decode([]byte(`{"type":"INSERT","table":"posts","record":{"id":1,"text":"a"}}`))
	require.NoError(t, err)

	ev, err := NormalizeRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "1", ev.EntityID)
	assert.Equal(t, int64(1), ev.Payload["id"])

	other, err := Normalize(Record{Record: map[string]any{"id": "1"}}, KindUpdate)
	require.NoError(t, err)
	assert.Equal(t, ev.EntityID, other.EntityID)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	assert.True(t, coreerrors.IsApplicationError(err))
}

func TestEncodeDecodeKeepsTimestamp(t *testing.T) {
	data := []byte(`{"type":"DELETE","table":"posts","old_record":{"id":"9"},"commit_timestamp":"2024-05-01T10:00:00Z"}`)
	rec, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, rec.CommitTimestamp)

	out, err := Encode(rec)
	require.NoError(t, err)
	var back map[string]any
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "2024-05-01T10:00:00Z", back["commit_timestamp"])
}

func TestKindText(t *testing.T) {
	k, err := ParseKind(" delete ")
	require.NoError(t, err)
	assert.Equal(t, KindDelete, k)

	text, err := KindInsert.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "INSERT", string(text))

	_, err = Kind(0).MarshalText()
	assert.Error(t, err)

	var parsed Kind
	require.NoError(t, json.Unmarshal([]byte(`"UPDATE"`), &parsed))
	assert.Equal(t, KindUpdate, parsed)
}

func TestEntityID(t *testing.T) {
	id, ok := Entity{"id": 3.0}.ID()
	assert.True(t, ok)
	assert.Equal(t, "3", id)

	id, ok = Entity{"id": 1.5}.ID()
	assert.True(t, ok)
	assert.Equal(t, "1.5", id)

	_, ok = Entity{"text": "no id"}.ID()
	assert.False(t, ok)
}

func TestDecodeEntity(t *testing.T) {
	e, err := DecodeEntity([]byte(`{"id":7,"text":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(7), e["id"])
	id, ok := e.ID()
	assert.True(t, ok)
	assert.Equal(t, "7", id)

	_, err = DecodeEntity([]byte(`{"text":"no id"}`))
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeMalformedRecord))

	_, err = DecodeEntity([]byte(`[1,2]`))
	assert.True(t, coreerrors.IsApplicationError(err))
}
