// Package statestore persists named maps of JSON records. Every failure is
// absorbed: a store that cannot read behaves as empty, and a store that
// cannot write keeps serving from memory.
package statestore

import (
	"encoding/json"
	"errors"
	"log/slog"
)

// ErrNotExist is returned by a Backend when nothing was ever written under a name.
var ErrNotExist = errors.New("statestore: no such map")

// Backend moves whole serialized maps in and out of durable storage. Write
// must replace the previous content atomically.
type Backend interface {
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
}

type Store struct {
	backend Backend
	enabled bool
	logger  *slog.Logger
}

// New returns a Store over backend. With enabled false, or a nil backend,
// Load always returns an empty map and Save does nothing.
func New(backend Backend, enabled bool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, enabled: enabled && backend != nil, logger: logger}
}

func (s *Store) Enabled() bool {
	return s.enabled
}

// Load returns the records saved under name. Entries that are not JSON
// objects are dropped.
func (s *Store) Load(name string) map[string]json.RawMessage {
	records := make(map[string]json.RawMessage)
	if !s.enabled {
		return records
	}

	data, err := s.backend.Read(name)
	if err != nil {
		if !errors.Is(err, ErrNotExist) {
			s.logger.Warn("statestore: read failed", "name", name, "error", err)
		}
		return records
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("statestore: corrupt map ignored", "name", name, "error", err)
		return records
	}

	for id, rec := range raw {
		if !isObject(rec) {
			s.logger.Warn("statestore: dropping non-object record", "name", name, "id", id)
			continue
		}
		records[id] = rec
	}
	return records
}

// Save replaces the map stored under name.
func (s *Store) Save(name string, records map[string]json.RawMessage) {
	if !s.enabled {
		return
	}
	if records == nil {
		records = map[string]json.RawMessage{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		s.logger.Error("statestore: encode failed", "name", name, "error", err)
		return
	}
	if err := s.backend.Write(name, data); err != nil {
		s.logger.Error("statestore: write failed", "name", name, "error", err)
	}
}

func isObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && obj != nil
}
