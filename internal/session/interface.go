// Package session reconciles the three surfaces a participant touches at
// once: the media channel, the realtime room and the REST backend.
package session

import (
	"context"
	"time"

	"github.com/mathivegas/unistream-client/internal/api"
	"github.com/mathivegas/unistream-client/internal/domain"
)

// Broadcaster is the media channel membership a watcher drives.
type Broadcaster interface {
	Join(ctx context.Context, channel string) error
	Leave(ctx context.Context) error
	Joined() bool
}

// StreamBroadcaster adds the publisher-only operations.
type StreamBroadcaster interface {
	Broadcaster
	StartScreenShare(ctx context.Context) error
	StopScreenShare(ctx context.Context) error
}

// RoomChannel is the realtime room surface shared by both roles.
type RoomChannel interface {
	Join(streamerID string) error
	Leave()
	StreamerID() string
}

// ViewerRoom is the room surface a spectator uses.
type ViewerRoom interface {
	RoomChannel
	Send(msg domain.ChatMessage) error
	AddLocal(msg domain.ChatMessage)
	NotifyGift(streamerID string, gift domain.GiftNotification) error
}

// StreamerRoom is the room surface a broadcaster uses.
type StreamerRoom interface {
	RoomChannel
	AnnounceLive(streamerID, channelName string) error
	AnnounceOffline(streamerID string) error
	NotifyCatalogChange(streamerID string, gift domain.Gift) error
	StartHeartbeat(streamerID string, interval time.Duration) func()
}

// ViewerBackend is the REST surface a spectator session needs.
type ViewerBackend interface {
	MyProgress(ctx context.Context, streamerID string) (*api.Progress, error)
	AddPoints(ctx context.Context, pointsToAdd int, streamerID string) (*api.Progress, error)
	SendGift(ctx context.Context, receiverID, giftID string, amount int) (*api.SendGiftResult, error)
	Levels(ctx context.Context, streamerID string) ([]domain.LevelThreshold, error)
}

// StreamerBackend is the REST surface a broadcaster session needs.
type StreamerBackend interface {
	StartStream(ctx context.Context, channelName string) error
	StopStream(ctx context.Context) error
	AddHours(ctx context.Context, streamerID string, hoursToAdd float64) (*api.HoursResult, error)
	CreateGift(ctx context.Context, gift domain.Gift) (*domain.Gift, error)
	UpdateGift(ctx context.Context, gift domain.Gift) (*domain.Gift, error)
	DeleteGift(ctx context.Context, giftID string) error
	SaveLevels(ctx context.Context, streamerID string, levels []domain.LevelThreshold) error
}
