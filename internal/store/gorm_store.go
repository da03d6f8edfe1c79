package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mathivegas/unistream-client/internal/domain"
)

const (
	prefSelectedStreamer = "selected_streamer"
	prefDarkMode         = "dark_mode"
	prefAuthToken        = "auth_token"
	prefAuthUser         = "auth_user"
)

// ChatLogModel is the DB row for one room's chat log. The whole log is one
// JSON payload per room: the log has a single writer path (the deduplicating
// append) and is always read and written whole.
type ChatLogModel struct {
	RoomID  string `gorm:"primaryKey"`
	Payload []byte
}

func (ChatLogModel) TableName() string { return "chat_logs" }

// PrefModel is a key/value preference row.
type PrefModel struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

func (PrefModel) TableName() string { return "prefs" }

// GormStore implements Store on a local sqlite file.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm opens (and migrates) the sqlite cache at path.
func OpenGorm(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	if err := db.AutoMigrate(&ChatLogModel{}, &PrefModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate local store: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) ChatLog(roomID string) ([]domain.ChatMessage, error) {
	var row ChatLogModel
	result := s.db.First(&row, "room_id = ?", roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return []domain.ChatMessage{}, nil
		}
		return nil, result.Error
	}
	var msgs []domain.ChatMessage
	if err := json.Unmarshal(row.Payload, &msgs); err != nil {
		// A corrupt cache entry is not fatal; start the room's log over.
		return []domain.ChatMessage{}, nil
	}
	return msgs, nil
}

func (s *GormStore) SaveChatLog(roomID string, msgs []domain.ChatMessage) error {
	payload, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	row := ChatLogModel{RoomID: roomID, Payload: payload}
	return s.db.Save(&row).Error
}

func (s *GormStore) SelectedStreamer() (string, error) {
	return s.pref(prefSelectedStreamer)
}

func (s *GormStore) SetSelectedStreamer(id string) error {
	return s.setPref(prefSelectedStreamer, id)
}

func (s *GormStore) DarkMode() (bool, error) {
	v, err := s.pref(prefDarkMode)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *GormStore) SetDarkMode(enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	return s.setPref(prefDarkMode, v)
}

func (s *GormStore) AuthSnapshot() (string, *domain.UserSnapshot, error) {
	token, err := s.pref(prefAuthToken)
	if err != nil {
		return "", nil, err
	}
	raw, err := s.pref(prefAuthUser)
	if err != nil || raw == "" {
		return token, nil, err
	}
	var user domain.UserSnapshot
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return token, nil, nil
	}
	return token, &user, nil
}

func (s *GormStore) SaveAuthSnapshot(token string, user domain.UserSnapshot) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.setPref(prefAuthToken, token); err != nil {
		return err
	}
	return s.setPref(prefAuthUser, string(raw))
}

func (s *GormStore) ClearAuthSnapshot() error {
	if err := s.db.Delete(&PrefModel{}, "key = ?", prefAuthToken).Error; err != nil {
		return err
	}
	return s.db.Delete(&PrefModel{}, "key = ?", prefAuthUser).Error
}

func (s *GormStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func (s *GormStore) pref(key string) (string, error) {
	var row PrefModel
	result := s.db.First(&row, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return row.Value, nil
}

func (s *GormStore) setPref(key, value string) error {
	return s.db.Save(&PrefModel{Key: key, Value: value}).Error
}
