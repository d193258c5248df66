package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
)

// MemoryVideoStorage holds videos in memory; the service and HTTP tests use it.
type MemoryVideoStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func NewMemoryVideoStorage() *MemoryVideoStorage {
	return &MemoryVideoStorage{files: map[string][]byte{}}
}

func (s *MemoryVideoStorage) Upload(_ context.Context, path string, r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = buf.Bytes()
	return nil
}

func (s *MemoryVideoStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

// Paths lists stored paths in sorted order.
func (s *MemoryVideoStorage) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s *MemoryVideoStorage) Contents(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[path]
	return b, ok
}
