package statestore

import "sync"

// MemoryBackend keeps maps in process memory. Useful in tests and when a
// process should behave like it persists without touching disk.
type MemoryBackend struct {
	mu   sync.Mutex
	maps map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{maps: make(map[string][]byte)}
}

func (b *MemoryBackend) Read(name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.maps[name]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (b *MemoryBackend) Write(name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maps[name] = append([]byte(nil), data...)
	return nil
}
