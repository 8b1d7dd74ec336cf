package memory

import "sync"

// Store is a key→value cache for agent context. Entries are populated
// lazily (cached timeline reads and the like) and cleared when the
// agent stops.
type Store struct {
	entries map[string]any
	mu      sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]any),
	}
}

func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]any)
}

// History is a capacity-bounded stream of recent events. Oldest entries
// are evicted first once capacity is reached.
type History struct {
	stream   []string
	capacity int
	mu       sync.RWMutex
}

func NewHistory(capacity int) *History {
	return &History{
		stream:   make([]string, 0, capacity),
		capacity: capacity,
	}
}

// All returns a copy of the stream, oldest first.
func (h *History) All() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := make([]string, len(h.stream))
	copy(entries, h.stream)
	return entries
}

func (h *History) Add(entry string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stream = append(h.stream, entry)

	// TODO: eviction should likely weigh entries by token count rather
	// than dropping the single oldest line
	if len(h.stream) > h.capacity {
		h.stream = h.stream[1:]
	}
}
