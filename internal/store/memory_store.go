package store

import (
	"sync"

	"github.com/mathivegas/unistream-client/internal/domain"
)

// MemoryStore implements Store in memory. Used by tests and as a fallback
// when no writable path exists.
type MemoryStore struct {
	mu       sync.RWMutex
	logs     map[string][]domain.ChatMessage
	selected string
	darkMode bool
	token    string
	user     *domain.UserSnapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		logs: make(map[string][]domain.ChatMessage),
	}
}

func (s *MemoryStore) ChatLog(roomID string) ([]domain.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]domain.ChatMessage, len(s.logs[roomID]))
	copy(msgs, s.logs[roomID])
	return msgs, nil
}

func (s *MemoryStore) SaveChatLog(roomID string, msgs []domain.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]domain.ChatMessage, len(msgs))
	copy(cp, msgs)
	s.logs[roomID] = cp
	return nil
}

func (s *MemoryStore) SelectedStreamer() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, nil
}

func (s *MemoryStore) SetSelectedStreamer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = id
	return nil
}

func (s *MemoryStore) DarkMode() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.darkMode, nil
}

func (s *MemoryStore) SetDarkMode(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.darkMode = enabled
	return nil
}

func (s *MemoryStore) AuthSnapshot() (string, *domain.UserSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.user, nil
}

func (s *MemoryStore) SaveAuthSnapshot(token string, user domain.UserSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	u := user
	s.user = &u
	return nil
}

func (s *MemoryStore) ClearAuthSnapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return nil
}

func (s *MemoryStore) Close() error { return nil }
