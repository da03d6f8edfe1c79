package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/internal/config"
	"github.com/mathivegas/unistream-client/internal/domain"
	"github.com/mathivegas/unistream-client/internal/leveling"
	"github.com/mathivegas/unistream-client/internal/notify"
	"github.com/mathivegas/unistream-client/pkg/log"
)

// NewChannelName derives a fresh channel name from the streamer identity
// and the current time, unique per go-live.
func NewChannelName(userID string, now time.Time) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("stream_%s_%d", short, now.UnixMilli())
}

// Streamer is a broadcaster's session: going live, the liveness heartbeat,
// streamed-hours accounting and gift catalog management.
type Streamer struct {
	backend  StreamerBackend
	media    StreamBroadcaster
	room     StreamerRoom
	notifier notify.Notifier
	cfg      config.LevelingConfig
	interval time.Duration
	logger   zerolog.Logger

	detector *leveling.Detector

	mu            sync.Mutex
	user          domain.UserSnapshot
	live          bool
	channel       string
	liveStarted   time.Time
	stopHeartbeat func()
	stopLevelTick func()

	// injectable for tests
	timeNow func() time.Time
}

// NewStreamer creates a session for the signed-in broadcaster.
func NewStreamer(backend StreamerBackend, media StreamBroadcaster, room StreamerRoom, notifier notify.Notifier, cfg config.LevelingConfig, heartbeat time.Duration, user domain.UserSnapshot) *Streamer {
	s := &Streamer{
		backend:  backend,
		media:    media,
		room:     room,
		notifier: notifier,
		cfg:      cfg,
		interval: heartbeat,
		logger:   log.L().With().Str(log.FieldComponent, "session.streamer").Str(log.FieldUserID, user.ID).Logger(),
		user:     user,
		timeNow:  time.Now,
	}
	s.detector = leveling.NewDetector(func(level int) {
		notifier.LevelUp(level)
		notifier.Banner(fmt.Sprintf("Level %d reached!", level), cfg.LevelUpBannerTime)
	})
	return s
}

// Live reports whether a broadcast is running.
func (s *Streamer) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Channel returns the live channel name, empty when offline.
func (s *Streamer) Channel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Snapshot returns the locally known account state.
func (s *Streamer) Snapshot() domain.UserSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// GoLive starts a broadcast on a freshly derived channel: publish media,
// register the stream with the backend, announce it and begin heartbeats.
// A backend registration failure rolls the media membership back so the
// platform never lists a stream nobody can reach.
func (s *Streamer) GoLive(ctx context.Context) error {
	s.mu.Lock()
	if s.live {
		s.mu.Unlock()
		s.logger.Debug().Msg("already live, ignoring")
		return nil
	}
	channel := NewChannelName(s.user.ID, s.timeNow())
	streamerID := s.user.ID
	s.mu.Unlock()

	return s.goLiveOn(ctx, streamerID, channel)
}

// Resume re-attaches to a broadcast the backend still lists as live, e.g.
// after a client restart. The heartbeat keeps the listing alive.
func (s *Streamer) Resume(ctx context.Context) error {
	s.mu.Lock()
	if s.live || !s.user.IsLive || s.user.LiveChannelName == "" {
		s.mu.Unlock()
		return nil
	}
	channel := s.user.LiveChannelName
	streamerID := s.user.ID
	s.mu.Unlock()

	s.logger.Info().Str(log.FieldChannel, channel).Msg("resuming live stream")
	return s.goLiveOn(ctx, streamerID, channel)
}

func (s *Streamer) goLiveOn(ctx context.Context, streamerID, channel string) error {
	if err := s.room.Join(streamerID); err != nil {
		s.logger.Warn().Err(err).Msg("own room join failed")
	}

	if err := s.media.Join(ctx, channel); err != nil {
		s.notifier.Alert(fmt.Sprintf("Could not start broadcasting: %v", err))
		return err
	}

	if err := s.backend.StartStream(ctx, channel); err != nil {
		_ = s.media.Leave(ctx)
		s.notifier.Alert(fmt.Sprintf("Could not register the stream: %v", err))
		return err
	}

	if err := s.room.AnnounceLive(streamerID, channel); err != nil {
		s.logger.Warn().Err(err).Msg("live announce failed")
	}

	stop := s.room.StartHeartbeat(streamerID, s.interval)
	stopLevel := make(chan struct{})

	s.mu.Lock()
	s.live = true
	s.channel = channel
	s.liveStarted = s.timeNow()
	s.stopHeartbeat = stop
	s.stopLevelTick = func() { close(stopLevel) }
	s.user.IsLive = true
	s.user.LiveChannelName = channel
	level := s.user.Level
	s.mu.Unlock()

	// Baseline the level-up detector so going live never announces the
	// level already held.
	s.detector.Reset()
	s.detector.Observe(level)
	go s.levelLoop(stopLevel)

	s.logger.Info().Str(log.FieldChannel, channel).Msg("live")
	return nil
}

// LiveLevel returns the level including the running session's accelerated
// hours. Off air it is the confirmed level.
func (s *Streamer) LiveLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live {
		return s.user.Level
	}
	sessionHours := leveling.ScaledSessionHours(s.timeNow().Sub(s.liveStarted), s.cfg.TimeAcceleration)
	return leveling.StreamerLevel(s.user.Level, s.user.HoursStreamed, sessionHours, s.cfg.HoursPerLevel)
}

// RecomputeLevel feeds the current live level through the level-up detector,
// so a boundary crossed mid-session celebrates while still on air.
func (s *Streamer) RecomputeLevel() {
	s.detector.Observe(s.LiveLevel())
}

func (s *Streamer) levelLoop(stop chan struct{}) {
	interval := s.cfg.LevelRecomputeInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RecomputeLevel()
		}
	}
}

// GoOffline stops the broadcast. Every teardown step runs regardless of
// earlier failures; the session's streamed hours are credited under the
// configured time acceleration, locally when the backend cannot confirm.
func (s *Streamer) GoOffline(ctx context.Context) error {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return nil
	}
	stop := s.stopHeartbeat
	stopLevel := s.stopLevelTick
	started := s.liveStarted
	streamerID := s.user.ID
	s.live = false
	s.channel = ""
	s.stopHeartbeat = nil
	s.stopLevelTick = nil
	s.user.IsLive = false
	s.user.LiveChannelName = ""
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if stopLevel != nil {
		stopLevel()
	}

	var firstErr error
	if err := s.media.Leave(ctx); err != nil {
		firstErr = err
	}

	if err := s.backend.StopStream(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("stream deregistration failed")
		if firstErr == nil {
			firstErr = err
		}
	}

	sessionHours := leveling.ScaledSessionHours(s.timeNow().Sub(started), s.cfg.TimeAcceleration)
	s.creditHours(ctx, streamerID, sessionHours)

	if err := s.room.AnnounceOffline(streamerID); err != nil {
		s.logger.Warn().Err(err).Msg("offline announce failed")
	}

	s.logger.Info().Float64("session_hours", sessionHours).Msg("offline")
	return firstErr
}

func (s *Streamer) creditHours(ctx context.Context, streamerID string, sessionHours float64) {
	res, err := s.backend.AddHours(ctx, streamerID, sessionHours)
	if err == nil {
		s.mu.Lock()
		s.user.HoursStreamed = res.HoursStreamed
		s.user.Level = res.Level
		s.mu.Unlock()
		s.detector.Observe(res.Level)
		return
	}

	s.logger.Warn().Err(err).Msg("hours credit failed, applying locally")
	s.mu.Lock()
	s.user.Level = leveling.StreamerLevel(s.user.Level, s.user.HoursStreamed, sessionHours, s.cfg.HoursPerLevel)
	s.user.HoursStreamed += sessionHours
	level := s.user.Level
	s.mu.Unlock()
	s.detector.Observe(level)
}

// StartScreenShare swaps the camera for the screen.
func (s *Streamer) StartScreenShare(ctx context.Context) error {
	if !s.Live() {
		return nil
	}
	return s.media.StartScreenShare(ctx)
}

// StopScreenShare restores the camera.
func (s *Streamer) StopScreenShare(ctx context.Context) error {
	return s.media.StopScreenShare(ctx)
}

// CreateGift adds a catalog entry and announces the catalog change to the
// room's viewers.
func (s *Streamer) CreateGift(ctx context.Context, gift domain.Gift) (*domain.Gift, error) {
	created, err := s.backend.CreateGift(ctx, gift)
	if err != nil {
		return nil, err
	}
	s.announceCatalog(*created)
	return created, nil
}

// UpdateGift edits a catalog entry and announces the change.
func (s *Streamer) UpdateGift(ctx context.Context, gift domain.Gift) (*domain.Gift, error) {
	updated, err := s.backend.UpdateGift(ctx, gift)
	if err != nil {
		return nil, err
	}
	s.announceCatalog(*updated)
	return updated, nil
}

// DeleteGift removes a catalog entry.
func (s *Streamer) DeleteGift(ctx context.Context, giftID string) error {
	return s.backend.DeleteGift(ctx, giftID)
}

// SaveLevels replaces the viewer-level ladder.
func (s *Streamer) SaveLevels(ctx context.Context, levels []domain.LevelThreshold) error {
	s.mu.Lock()
	streamerID := s.user.ID
	s.mu.Unlock()
	return s.backend.SaveLevels(ctx, streamerID, levels)
}

func (s *Streamer) announceCatalog(gift domain.Gift) {
	s.mu.Lock()
	streamerID := s.user.ID
	s.mu.Unlock()
	if err := s.room.NotifyCatalogChange(streamerID, gift); err != nil {
		s.logger.Warn().Err(err).Msg("catalog announce failed")
	}
}
