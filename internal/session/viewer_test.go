package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathivegas/unistream-client/internal/api"
	"github.com/mathivegas/unistream-client/internal/config"
	"github.com/mathivegas/unistream-client/internal/domain"
)

type fakeViewerBackend struct {
	mu            sync.Mutex
	progress      api.Progress
	progressErr   error
	addPointsErr  error
	sendGiftRes   *api.SendGiftResult
	sendGiftErr   error
	levels        []domain.LevelThreshold
	pointsAwarded []int
}

func (b *fakeViewerBackend) MyProgress(context.Context, string) (*api.Progress, error) {
	if b.progressErr != nil {
		return nil, b.progressErr
	}
	p := b.progress
	return &p, nil
}

func (b *fakeViewerBackend) AddPoints(_ context.Context, pointsToAdd int, _ string) (*api.Progress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.addPointsErr != nil {
		return nil, b.addPointsErr
	}
	b.pointsAwarded = append(b.pointsAwarded, pointsToAdd)
	b.progress.Points += pointsToAdd
	p := b.progress
	return &p, nil
}

func (b *fakeViewerBackend) SendGift(context.Context, string, string, int) (*api.SendGiftResult, error) {
	if b.sendGiftErr != nil {
		return nil, b.sendGiftErr
	}
	return b.sendGiftRes, nil
}

func (b *fakeViewerBackend) Levels(context.Context, string) ([]domain.LevelThreshold, error) {
	return b.levels, nil
}

type fakeViewerRoom struct {
	current string
	sent    []domain.ChatMessage
	local   []domain.ChatMessage
	gifts   []domain.GiftNotification
	sendErr error
}

func (r *fakeViewerRoom) Join(streamerID string) error { r.current = streamerID; return nil }
func (r *fakeViewerRoom) Leave()                       { r.current = "" }
func (r *fakeViewerRoom) StreamerID() string           { return r.current }

func (r *fakeViewerRoom) Send(msg domain.ChatMessage) error {
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *fakeViewerRoom) AddLocal(msg domain.ChatMessage) {
	r.local = append(r.local, msg)
}

func (r *fakeViewerRoom) NotifyGift(_ string, gift domain.GiftNotification) error {
	r.gifts = append(r.gifts, gift)
	return nil
}

type recordNotifier struct {
	alerts   []string
	banners  []string
	levelUps []int
}

func (n *recordNotifier) Alert(m string)                   { n.alerts = append(n.alerts, m) }
func (n *recordNotifier) Banner(m string, _ time.Duration) { n.banners = append(n.banners, m) }
func (n *recordNotifier) LevelUp(l int)                    { n.levelUps = append(n.levelUps, l) }

func levelingConfig() config.LevelingConfig {
	return config.LevelingConfig{
		HoursPerLevel:          5,
		TimeAcceleration:       360,
		PointsPerMessage:       1,
		LevelUpBannerTime:      2 * time.Second,
		LevelRecomputeInterval: time.Minute,
	}
}

func newTestViewer(backend *fakeViewerBackend, room *fakeViewerRoom, notifier *recordNotifier, coins int) *Viewer {
	user := domain.UserSnapshot{ID: "u1", Name: "Ada", Coins: coins}
	v := NewViewer(backend, room, notifier, levelingConfig(), user)
	v.timeNow = func() time.Time { return time.UnixMilli(1000) }
	return v
}

func TestSendChatAwardsPoint(t *testing.T) {
	backend := &fakeViewerBackend{progress: api.Progress{Points: 10, Level: 1}}
	room := &fakeViewerRoom{}
	v := newTestViewer(backend, room, &recordNotifier{}, 100)
	require.NoError(t, v.SetStreamer(context.Background(), "s1"))

	require.NoError(t, v.SendChat(context.Background(), "hello"))

	require.Len(t, room.sent, 1)
	assert.Equal(t, "hello", room.sent[0].Text)
	assert.Equal(t, int64(1000), room.sent[0].TS)
	assert.Equal(t, 1, room.sent[0].UserLevelAtSend)
	assert.Equal(t, []int{1}, backend.pointsAwarded)
	assert.Equal(t, 11, v.Points())
}

func TestSendChatKeepsMessageWhenAwardFails(t *testing.T) {
	backend := &fakeViewerBackend{progress: api.Progress{Points: 10, Level: 1}}
	room := &fakeViewerRoom{}
	v := newTestViewer(backend, room, &recordNotifier{}, 100)
	require.NoError(t, v.SetStreamer(context.Background(), "s1"))

	backend.addPointsErr = errors.New("backend down")
	require.NoError(t, v.SendChat(context.Background(), "still here"))

	require.Len(t, room.sent, 1)
	// Local fallback keeps the counter moving.
	assert.Equal(t, 11, v.Points())
}

func TestSendGiftDebitsServerBalance(t *testing.T) {
	backend := &fakeViewerBackend{
		progress:    api.Progress{Points: 0, Level: 1},
		sendGiftRes: &api.SendGiftResult{SenderCoins: 58},
	}
	room := &fakeViewerRoom{}
	v := newTestViewer(backend, room, &recordNotifier{}, 100)
	require.NoError(t, v.SetStreamer(context.Background(), "s1"))

	gift := domain.Gift{ID: "g1", Name: "Rose", Emoji: "🌹", Cost: 42, Points: 5}
	require.NoError(t, v.SendGift(context.Background(), gift))

	// The server's balance wins over local arithmetic.
	assert.Equal(t, 58, v.Coins())
	require.Len(t, room.gifts, 1)
	assert.Equal(t, "Rose", room.gifts[0].GiftName)
	assert.Equal(t, "Ada", room.gifts[0].SenderName)
	require.Len(t, room.local, 1)
	assert.True(t, room.local[0].IsSystem())
	assert.Equal(t, []int{5}, backend.pointsAwarded)
}

func TestSendGiftRejectedOnLowBalance(t *testing.T) {
	backend := &fakeViewerBackend{}
	room := &fakeViewerRoom{}
	notifier := &recordNotifier{}
	v := newTestViewer(backend, room, notifier, 10)
	require.NoError(t, v.SetStreamer(context.Background(), "s1"))

	gift := domain.Gift{ID: "g1", Name: "Castle", Cost: 500, Points: 100}
	err := v.SendGift(context.Background(), gift)

	require.ErrorIs(t, err, api.ErrInsufficientCoins)
	assert.Len(t, notifier.alerts, 1)
	assert.Empty(t, room.gifts)
	assert.Equal(t, 10, v.Coins())
}

func TestSendGiftBackendRejection(t *testing.T) {
	backend := &fakeViewerBackend{sendGiftErr: api.ErrInsufficientCoins}
	room := &fakeViewerRoom{}
	notifier := &recordNotifier{}
	v := newTestViewer(backend, room, notifier, 1000)
	require.NoError(t, v.SetStreamer(context.Background(), "s1"))

	err := v.SendGift(context.Background(), domain.Gift{ID: "g1", Name: "Rose", Cost: 42})

	require.ErrorIs(t, err, api.ErrInsufficientCoins)
	assert.Len(t, notifier.alerts, 1)
	// The local balance is untouched when the transfer never settled.
	assert.Equal(t, 1000, v.Coins())
}

func TestLevelUpFiresOncePerIncrease(t *testing.T) {
	backend := &fakeViewerBackend{progress: api.Progress{Points: 48, Level: 1}}
	room := &fakeViewerRoom{}
	notifier := &recordNotifier{}
	v := newTestViewer(backend, room, notifier, 100)
	require.NoError(t, v.SetStreamer(context.Background(), "s1"))

	// Two chat messages push the server past the level boundary.
	backend.progress.Level = 1
	require.NoError(t, v.SendChat(context.Background(), "one"))
	backend.progress.Level = 2
	require.NoError(t, v.SendChat(context.Background(), "two"))
	require.NoError(t, v.SendChat(context.Background(), "three"))

	assert.Equal(t, []int{2}, notifier.levelUps)
	assert.Len(t, notifier.banners, 1)
}

func TestSetStreamerResetsLedger(t *testing.T) {
	backend := &fakeViewerBackend{progress: api.Progress{Points: 70, Level: 3}}
	room := &fakeViewerRoom{}
	notifier := &recordNotifier{}
	v := newTestViewer(backend, room, notifier, 100)

	require.NoError(t, v.SetStreamer(context.Background(), "s1"))
	assert.Equal(t, 70, v.Points())
	assert.Equal(t, 3, v.Level())

	// Switching to a streamer where the viewer is lower must not fire a
	// level-up.
	backend.progress = api.Progress{Points: 5, Level: 1}
	require.NoError(t, v.SetStreamer(context.Background(), "s2"))
	assert.Equal(t, 5, v.Points())
	assert.Empty(t, notifier.levelUps)
}

func TestSetStreamerToleratesFetchFailure(t *testing.T) {
	backend := &fakeViewerBackend{progressErr: errors.New("backend down")}
	room := &fakeViewerRoom{}
	v := newTestViewer(backend, room, &recordNotifier{}, 100)

	require.NoError(t, v.SetStreamer(context.Background(), "s1"))
	assert.Zero(t, v.Points())
}

func TestProgressResolvesAgainstLadder(t *testing.T) {
	backend := &fakeViewerBackend{
		progress: api.Progress{Points: 60, Level: 2},
		levels: []domain.LevelThreshold{
			{LevelNumber: 1, RequiredPoints: 0},
			{LevelNumber: 2, RequiredPoints: 50},
			{LevelNumber: 3, RequiredPoints: 150},
		},
	}
	room := &fakeViewerRoom{}
	v := newTestViewer(backend, room, &recordNotifier{}, 100)
	require.NoError(t, v.SetStreamer(context.Background(), "s1"))

	p, err := v.Progress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, 10, p.PointsIntoLevel)
	assert.Equal(t, 100, p.PointsForNext)
}
