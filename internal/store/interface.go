package store

import "github.com/mathivegas/unistream-client/internal/domain"

// Store is the client's best-effort local cache. Server state always wins on
// reconciliation; everything here exists so the UI has something to show
// before the backend answers, and so chat survives restarts.
type Store interface {
	// ChatLog returns the persisted log for a room, oldest first. A room
	// with no log yields an empty slice, not an error.
	ChatLog(roomID string) ([]domain.ChatMessage, error)
	// SaveChatLog replaces the persisted log for a room.
	SaveChatLog(roomID string, msgs []domain.ChatMessage) error

	SelectedStreamer() (string, error)
	SetSelectedStreamer(id string) error

	DarkMode() (bool, error)
	SetDarkMode(enabled bool) error

	AuthSnapshot() (token string, user *domain.UserSnapshot, err error)
	SaveAuthSnapshot(token string, user domain.UserSnapshot) error
	ClearAuthSnapshot() error

	Close() error
}
