package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/internal/api"
	"github.com/mathivegas/unistream-client/internal/config"
	"github.com/mathivegas/unistream-client/internal/domain"
	"github.com/mathivegas/unistream-client/internal/leveling"
	"github.com/mathivegas/unistream-client/internal/notify"
	"github.com/mathivegas/unistream-client/pkg/log"
)

// Viewer is a spectator's interactive session with one streamer: chatting,
// gifting and the points ledger behind both. The server's numbers win
// whenever they arrive; local increments only bridge the gap when a points
// award cannot reach the backend.
type Viewer struct {
	backend  ViewerBackend
	room     ViewerRoom
	notifier notify.Notifier
	cfg      config.LevelingConfig
	logger   zerolog.Logger

	detector *leveling.Detector

	mu         sync.Mutex
	user       domain.UserSnapshot
	streamerID string
	points     int
	level      int

	// injectable for tests
	timeNow func() time.Time
}

// NewViewer creates a session for the signed-in spectator.
func NewViewer(backend ViewerBackend, room ViewerRoom, notifier notify.Notifier, cfg config.LevelingConfig, user domain.UserSnapshot) *Viewer {
	v := &Viewer{
		backend:  backend,
		room:     room,
		notifier: notifier,
		cfg:      cfg,
		logger:   log.L().With().Str(log.FieldComponent, "session.viewer").Str(log.FieldUserID, user.ID).Logger(),
		user:     user,
		timeNow:  time.Now,
	}
	v.detector = leveling.NewDetector(func(level int) {
		notifier.LevelUp(level)
		notifier.Banner(fmt.Sprintf("Level %d reached!", level), cfg.LevelUpBannerTime)
	})
	return v
}

// SetStreamer points the session at a streamer and seeds the points ledger
// from the backend. A fetch failure starts the ledger at zero; the next
// successful reconciliation corrects it.
func (v *Viewer) SetStreamer(ctx context.Context, streamerID string) error {
	v.mu.Lock()
	v.streamerID = streamerID
	v.points = 0
	v.level = 0
	v.mu.Unlock()
	v.detector.Reset()

	progress, err := v.backend.MyProgress(ctx, streamerID)
	if err != nil {
		v.logger.Warn().Err(err).Str(log.FieldStreamerID, streamerID).Msg("progress fetch failed, starting at zero")
		return nil
	}

	v.mu.Lock()
	v.points = progress.Points
	v.level = progress.Level
	v.mu.Unlock()
	v.detector.Observe(progress.Level)
	return nil
}

// Coins returns the locally known coin balance.
func (v *Viewer) Coins() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.user.Coins
}

// Points returns the locally known points with the current streamer.
func (v *Viewer) Points() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.points
}

// Level returns the locally known level with the current streamer.
func (v *Viewer) Level() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.level
}

// SendChat posts a chat line. The line lands in the room immediately; the
// points award travels separately and a failed award never takes the line
// back or surfaces an error.
func (v *Viewer) SendChat(ctx context.Context, text string) error {
	v.mu.Lock()
	streamerID := v.streamerID
	msg := domain.ChatMessage{
		TS:              v.timeNow().UnixMilli(),
		UserID:          v.user.ID,
		UserName:        v.user.Name,
		UserLevelAtSend: v.level,
		Text:            text,
	}
	v.mu.Unlock()
	if streamerID == "" {
		return nil
	}

	if err := v.room.Send(msg); err != nil {
		return err
	}

	v.awardPoints(ctx, v.cfg.PointsPerMessage)
	return nil
}

// SendGift transfers a gift to the watched streamer. The balance is checked
// locally first; the server's debit result overwrites the local balance on
// success. The gift's points are awarded like chat points, with the same
// local fallback.
func (v *Viewer) SendGift(ctx context.Context, gift domain.Gift) error {
	v.mu.Lock()
	streamerID := v.streamerID
	coins := v.user.Coins
	senderName := v.user.Name
	v.mu.Unlock()
	if streamerID == "" {
		return nil
	}

	if coins < gift.Cost {
		v.notifier.Alert(fmt.Sprintf("Not enough coins for %s (%d needed)", gift.Name, gift.Cost))
		return api.ErrInsufficientCoins
	}

	res, err := v.backend.SendGift(ctx, streamerID, gift.ID, 1)
	if err != nil {
		v.notifier.Alert(fmt.Sprintf("Could not send %s: %v", gift.Name, err))
		return err
	}

	v.mu.Lock()
	v.user.Coins = res.SenderCoins
	v.mu.Unlock()

	notification := domain.GiftNotification{
		SenderName: senderName,
		GiftEmoji:  gift.Emoji,
		GiftName:   gift.Name,
		GiftPoints: gift.Points,
	}
	if err := v.room.NotifyGift(streamerID, notification); err != nil {
		v.logger.Warn().Err(err).Msg("gift announce failed, transfer already settled")
	}
	v.room.AddLocal(domain.SystemMessage(fmt.Sprintf("%s sent %s %s!", senderName, gift.Emoji, gift.Name)))

	v.awardPoints(ctx, gift.Points)
	return nil
}

// Progress resolves the local points against the streamer's ladder.
func (v *Viewer) Progress(ctx context.Context) (leveling.Progress, error) {
	v.mu.Lock()
	streamerID := v.streamerID
	points := v.points
	v.mu.Unlock()

	thresholds, err := v.backend.Levels(ctx, streamerID)
	if err != nil {
		return leveling.Progress{}, err
	}
	return leveling.ViewerProgress(thresholds, points), nil
}

// awardPoints reconciles a points award with the backend. On success the
// server totals replace the local ones; on failure the award is applied
// locally so the on-screen number keeps moving.
func (v *Viewer) awardPoints(ctx context.Context, points int) {
	if points <= 0 {
		return
	}
	v.mu.Lock()
	streamerID := v.streamerID
	v.mu.Unlock()

	progress, err := v.backend.AddPoints(ctx, points, streamerID)
	if err != nil {
		v.logger.Warn().Err(err).Int("points", points).Msg("points award failed, applying locally")
		v.mu.Lock()
		v.points += points
		v.mu.Unlock()
		return
	}

	v.mu.Lock()
	v.points = progress.Points
	v.level = progress.Level
	v.mu.Unlock()
	v.detector.Observe(progress.Level)
}
