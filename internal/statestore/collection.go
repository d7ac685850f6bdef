package statestore

import "encoding/json"

// Collection is a typed in-memory view of one named map, written through
// to the Store on every mutation. It is not safe for concurrent use; the
// owner serializes access.
type Collection[T any] struct {
	name    string
	store   *Store
	records map[string]T
}

// NewCollection loads name from store, dropping records that do not decode
// into T.
func NewCollection[T any](store *Store, name string) *Collection[T] {
	c := &Collection[T]{name: name, store: store, records: make(map[string]T)}
	for id, raw := range store.Load(name) {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			store.logger.Warn("statestore: dropping undecodable record", "name", name, "id", id, "error", err)
			continue
		}
		c.records[id] = rec
	}
	return c
}

func (c *Collection[T]) Get(id string) (T, bool) {
	rec, ok := c.records[id]
	return rec, ok
}

func (c *Collection[T]) Put(id string, rec T) {
	c.records[id] = rec
	c.persist()
}

func (c *Collection[T]) Delete(id string) bool {
	if _, ok := c.records[id]; !ok {
		return false
	}
	delete(c.records, id)
	c.persist()
	return true
}

func (c *Collection[T]) Len() int {
	return len(c.records)
}

// Values returns the records in no particular order.
func (c *Collection[T]) Values() []T {
	out := make([]T, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	return out
}

func (c *Collection[T]) persist() {
	if !c.store.Enabled() {
		return
	}
	encoded := make(map[string]json.RawMessage, len(c.records))
	for id, rec := range c.records {
		raw, err := json.Marshal(rec)
		if err != nil {
			c.store.logger.Error("statestore: encode record failed", "name", c.name, "id", id, "error", err)
			continue
		}
		encoded[id] = raw
	}
	c.store.Save(c.name, encoded)
}
