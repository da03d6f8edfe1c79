package domain

import (
	"fmt"
	"time"
)

// Role distinguishes the two account types on the platform.
type Role string

const (
	RoleSpectator Role = "spectator"
	RoleStreamer  Role = "streamer"
)

// SystemLevel marks a chat line as a system message rather than a user one.
const SystemLevel = -1

// ChatMessage is a single line in a room's chat log. Identity is the
// (TS, UserID) pair: duplicate deliveries of the same pair must not be
// appended twice.
type ChatMessage struct {
	TS              int64  `json:"ts"`
	UserID          string `json:"userId"`
	UserName        string `json:"userName"`
	UserLevelAtSend int    `json:"userLevelAtSend"`
	Text            string `json:"text"`
}

// Key returns the deduplication key for the message.
func (m ChatMessage) Key() string {
	return fmt.Sprintf("%d:%s", m.TS, m.UserID)
}

// IsSystem reports whether the line was produced by the client itself
// (gift announcements and similar), not typed by a user.
func (m ChatMessage) IsSystem() bool {
	return m.UserLevelAtSend == SystemLevel
}

// SystemMessage builds a system chat line with the current timestamp.
func SystemMessage(text string) ChatMessage {
	return ChatMessage{
		TS:              time.Now().UnixMilli(),
		UserID:          "system",
		UserLevelAtSend: SystemLevel,
		Text:            text,
	}
}

// GiftNotification is the ephemeral broadcast describing a gift transfer.
// It is distinct from the persisted catalog entry and is never stored
// client-side beyond transient display.
type GiftNotification struct {
	SenderName string `json:"senderName"`
	GiftEmoji  string `json:"giftEmoji"`
	GiftName   string `json:"giftName"`
	GiftPoints int    `json:"giftPoints"`
}

// Gift is a catalog entry owned by a streamer.
type Gift struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Emoji       string `json:"emoji"`
	Cost        int    `json:"cost"`
	Points      int    `json:"points"`
	Description string `json:"description,omitempty"`
}

// StreamerStatus is the server-pushed liveness event for a streamer.
type StreamerStatus struct {
	StreamerID      string `json:"streamerId"`
	IsLive          bool   `json:"isLive"`
	LiveChannelName string `json:"liveChannelName"`
}

// LevelThreshold is one entry of a streamer's viewer-level ladder.
type LevelThreshold struct {
	LevelNumber    int    `json:"levelNumber"`
	LevelName      string `json:"levelName,omitempty"`
	RequiredPoints int    `json:"requiredPoints"`
}

// Streamer is a list entry from the backend's streamer directory.
type Streamer struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	Avatar          string `json:"avatar,omitempty"`
	Bio             string `json:"bio,omitempty"`
	IsLive          bool   `json:"isLive"`
	LiveChannelName string `json:"liveChannelName"`
	Level           int    `json:"level"`
	Points          int    `json:"points"`
}

// UserSnapshot is the locally cached view of the signed-in account. It is a
// best-effort cache: server values win on reconciliation.
type UserSnapshot struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            Role      `json:"role"`
	Coins           int       `json:"coins"`
	Points          int       `json:"points"`
	Level           int       `json:"level"`
	HoursStreamed   float64   `json:"hoursStreamed,omitempty"`
	IsLive          bool      `json:"isLive,omitempty"`
	LiveChannelName string    `json:"liveChannelName,omitempty"`
	LiveStartedAt   time.Time `json:"liveStartedAt,omitempty"`
}

// GiftHistoryEntry is one received gift in a streamer's history.
type GiftHistoryEntry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"createdAt"`
	SenderName string    `json:"senderName"`
	GiftName   string    `json:"giftName"`
	GiftEmoji  string    `json:"giftEmoji"`
	GiftPoints int       `json:"giftPoints"`
}
