package statestore

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djlord-it/eoflow/internal/testutil"
)

type record struct {
	ID   string `json:"id"`
	Size int    `json:"size"`
}

func TestCollection_PersistsAcrossInstances(t *testing.T) {
	backend := NewMemoryBackend()
	store := New(backend, true, testutil.DiscardLogger())

	c := NewCollection[record](store, "records")
	c.Put("a", record{ID: "a", Size: 1})
	c.Put("b", record{ID: "b", Size: 2})
	require.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	reopened := NewCollection[record](New(backend, true, testutil.DiscardLogger()), "records")
	assert.Equal(t, 1, reopened.Len())
	got, ok := reopened.Get("b")
	require.True(t, ok)
	assert.Equal(t, record{ID: "b", Size: 2}, got)
}

func TestCollection_DropsUndecodableRecords(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Write("records", []byte(`{"ok":{"id":"ok","size":3},"bad":{"size":"three"}}`)))

	c := NewCollection[record](New(backend, true, testutil.DiscardLogger()), "records")
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestCollection_Values(t *testing.T) {
	c := NewCollection[record](New(NewMemoryBackend(), true, testutil.DiscardLogger()), "records")
	c.Put("x", record{ID: "x"})
	c.Put("y", record{ID: "y"})

	ids := []string{}
	for _, r := range c.Values() {
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	assert.Equal(t, []string{"x", "y"}, ids)
}

func TestCollection_DisabledStoreStillServesMemory(t *testing.T) {
	backend := NewMemoryBackend()
	c := NewCollection[record](New(backend, false, testutil.DiscardLogger()), "records")
	c.Put("a", record{ID: "a"})

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, err := backend.Read("records")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestCollection_EmptyAfterDeleteWritesEmptyObject(t *testing.T) {
	backend := NewMemoryBackend()
	c := NewCollection[record](New(backend, true, testutil.DiscardLogger()), "records")
	c.Put("a", record{ID: "a"})
	c.Delete("a")

	data, err := backend.Read("records")
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, decoded)
}
