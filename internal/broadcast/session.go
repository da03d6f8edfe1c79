package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/internal/config"
	"github.com/mathivegas/unistream-client/pkg/log"
)

// State is the session's lifecycle position. Illegal combinations (watching
// with no joined channel, camera and screen published together) are
// unrepresentable.
type State int

const (
	// StateIdle: no channel membership, no tracks.
	StateIdle State = iota
	// StateJoined: channel membership without local media (audience, or
	// publisher before media came up).
	StateJoined
	// StatePublishing: camera and microphone published.
	StatePublishing
	// StateScreenSharing: screen published in place of the camera.
	StateScreenSharing
)

// Session owns one participant's membership in a broadcast channel: local
// track lifecycle, remote subscriptions and the screen-share substitution.
type Session struct {
	engine Engine
	cfg    config.BroadcastConfig
	role   Role
	binder Binder
	logger zerolog.Logger

	mu            sync.Mutex
	state         State
	channel       string
	participantID string
	camera        LocalTrack
	mic           LocalTrack
	screen        []LocalTrack
	remotes       []RemoteParticipant
	audioBlocked  bool

	// injectable for tests
	afterFunc func(d time.Duration, fn func()) *time.Timer
}

// NewSession configures the engine for the given role and registers remote
// event handlers.
func NewSession(engine Engine, cfg config.BroadcastConfig, role Role, binder Binder) (*Session, error) {
	if err := engine.SetRole(role); err != nil {
		return nil, transportErr("set role", err)
	}
	s := &Session{
		engine:    engine,
		cfg:       cfg,
		role:      role,
		binder:    binder,
		logger:    log.L().With().Str(log.FieldComponent, "broadcast").Logger(),
		afterFunc: time.AfterFunc,
	}
	engine.OnRemotePublished(s.handleRemotePublished)
	engine.OnRemoteUnpublished(s.handleRemoteGone)
	engine.OnRemoteLeft(s.handleRemoteGone)
	return s, nil
}

// Joined reports whether the session holds a channel membership.
func (s *Session) Joined() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateIdle
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel returns the joined channel name, empty when idle.
func (s *Session) Channel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// AudioBlocked reports whether the platform refused audio autoplay.
func (s *Session) AudioBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioBlocked
}

// Join enters a channel under a fresh random participant identifier. A
// publisher additionally acquires camera and microphone with the configured
// encoder profile and publishes them; failure there is fatal and the
// membership is rolled back so the session never reports joined without the
// media a publisher requires.
func (s *Session) Join(ctx context.Context, channel string) error {
	s.mu.Lock()
	if channel == "" || s.state != StateIdle {
		s.logger.Warn().
			Str(log.FieldChannel, channel).
			Bool("joined", s.state != StateIdle).
			Msg("join ignored: empty channel or already joined")
		s.mu.Unlock()
		return nil
	}
	participantID := uuid.NewString()
	s.mu.Unlock()

	if err := s.engine.Join(ctx, s.cfg.AppID, channel, "", participantID); err != nil {
		return transportErr("join", err)
	}

	s.mu.Lock()
	s.state = StateJoined
	s.channel = channel
	s.participantID = participantID
	s.mu.Unlock()

	s.logger.Info().
		Str(log.FieldChannel, channel).
		Str(log.FieldParticipant, participantID).
		Msg("joined channel")

	if s.role != RolePublisher {
		return nil
	}

	if err := s.publishLocalMedia(ctx); err != nil {
		// Publisher without media is useless: roll the membership back.
		_ = s.Leave(ctx)
		return err
	}
	return nil
}

func (s *Session) publishLocalMedia(ctx context.Context) error {
	camera, err := s.engine.CreateCameraTrack(s.cfg.Camera)
	if err != nil {
		return err
	}
	mic, err := s.engine.CreateMicrophoneTrack()
	if err != nil {
		camera.Close()
		return err
	}
	if err := s.engine.Publish(ctx, camera, mic); err != nil {
		camera.Close()
		mic.Close()
		return transportErr("publish", err)
	}

	s.mu.Lock()
	s.camera = camera
	s.mic = mic
	s.state = StatePublishing
	s.mu.Unlock()

	s.bindLocalWithRetry(camera)
	return nil
}

// Leave tears the session down. Every cleanup step runs even when an earlier
// one fails, and the state always resets to idle; the first error observed
// is returned.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		s.logger.Debug().Msg("leave ignored: not joined")
		return nil
	}
	camera, mic, screen := s.camera, s.mic, s.screen
	remotes := s.remotes
	channel := s.channel
	s.camera, s.mic, s.screen = nil, nil, nil
	s.remotes = nil
	s.channel = ""
	s.participantID = ""
	s.state = StateIdle
	s.audioBlocked = false
	s.mu.Unlock()

	var firstErr error

	for _, p := range remotes {
		if t := p.VideoTrack(); t != nil {
			t.Stop()
		}
		if t := p.AudioTrack(); t != nil {
			t.Stop()
		}
	}
	for _, t := range []LocalTrack{camera, mic} {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, t := range screen {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.binder.UnbindLocal()
	s.binder.UnbindRemote()

	if err := s.engine.Leave(ctx); err != nil {
		if firstErr == nil {
			firstErr = transportErr("leave", err)
		}
	}

	s.logger.Info().Str(log.FieldChannel, channel).Msg("left channel")
	return firstErr
}

// StartScreenShare replaces the published camera video with a screen track.
// The screen track may bundle system audio as a second published track. When
// the platform ends the capture (the user stopped sharing from the native
// UI) the camera is restored exactly as an explicit stop would.
func (s *Session) StartScreenShare(ctx context.Context) error {
	if !s.engine.ScreenShareSupported() {
		return ErrScreenShareUnsupported
	}

	s.mu.Lock()
	if s.role != RolePublisher || s.state != StatePublishing {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn().Int("state", int(state)).Msg("screen share ignored: not publishing")
		return nil
	}
	camera := s.camera
	s.mu.Unlock()

	tracks, err := s.engine.CreateScreenTracks(s.cfg.Screen)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			// The user cancelled the picker; nothing to restore.
			s.logger.Debug().Msg("screen share cancelled by user")
			return ErrPermissionDenied
		}
		return err
	}
	screenVideo := tracks[0]
	screenVideo.OnEnded(func() {
		s.logger.Info().Msg("screen capture ended by platform")
		_ = s.StopScreenShare(context.Background())
	})

	if camera != nil {
		if err := s.engine.Unpublish(ctx, camera); err != nil {
			closeAll(tracks)
			return transportErr("unpublish camera", err)
		}
	}
	if err := s.engine.Publish(ctx, tracks...); err != nil {
		closeAll(tracks)
		if camera != nil {
			_ = s.engine.Publish(ctx, camera)
		}
		return transportErr("publish screen", err)
	}

	s.mu.Lock()
	if s.state != StatePublishing {
		// The channel was left while the screen tracks were coming up;
		// committing now would mark an idle session as sharing.
		s.mu.Unlock()
		_ = s.engine.Unpublish(ctx, tracks...)
		closeAll(tracks)
		s.logger.Warn().Msg("screen share abandoned: no longer publishing")
		return nil
	}
	s.screen = tracks
	s.state = StateScreenSharing
	s.mu.Unlock()

	s.bindLocalWithRetry(screenVideo)
	s.logger.Info().Int("tracks", len(tracks)).Msg("screen share started")
	return nil
}

// StopScreenShare unpublishes the screen and restores the camera as the
// published video source when one exists.
func (s *Session) StopScreenShare(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateScreenSharing {
		s.mu.Unlock()
		return nil
	}
	screen := s.screen
	camera := s.camera
	s.screen = nil
	s.state = StatePublishing
	s.mu.Unlock()

	var firstErr error
	if err := s.engine.Unpublish(ctx, screen...); err != nil {
		firstErr = transportErr("unpublish screen", err)
	}
	closeAll(screen)

	if camera != nil {
		if err := s.engine.Publish(ctx, camera); err != nil && firstErr == nil {
			firstErr = transportErr("republish camera", err)
		}
		s.bindLocalWithRetry(camera)
	}

	s.logger.Info().Msg("screen share stopped")
	return firstErr
}

// EnableAudio restarts playback for every known remote audio track after the
// platform blocked autoplay.
func (s *Session) EnableAudio() {
	s.mu.Lock()
	remotes := make([]RemoteParticipant, len(s.remotes))
	copy(remotes, s.remotes)
	s.audioBlocked = false
	s.mu.Unlock()

	for _, p := range remotes {
		if t := p.AudioTrack(); t != nil {
			if err := t.Play(); err != nil {
				s.logger.Warn().Err(err).Msg("manual audio start failed")
			}
		}
	}
}

func (s *Session) handleRemotePublished(p RemoteParticipant, kind TrackKind) {
	if err := s.engine.Subscribe(context.Background(), p, kind); err != nil {
		if errors.Is(err, ErrSubscriptionUnavailable) {
			s.logger.Debug().Str("remote", p.ID()).Msg("stream not available yet, ignoring")
			return
		}
		s.logger.Error().Err(err).Str("remote", p.ID()).Msg("subscribe failed")
		return
	}

	s.mu.Lock()
	known := false
	for _, r := range s.remotes {
		if r.ID() == p.ID() {
			known = true
			break
		}
	}
	if !known {
		s.remotes = append(s.remotes, p)
	}
	first := len(s.remotes) > 0 && s.remotes[0].ID() == p.ID()
	s.mu.Unlock()

	switch kind {
	case KindVideo:
		// Only the first remote participant is rendered; the layout has a
		// single remote surface.
		if first {
			if err := s.binder.BindRemote(p); err != nil {
				s.logger.Warn().Err(err).Msg("remote bind failed")
			}
		}
	case KindAudio:
		if t := p.AudioTrack(); t != nil {
			if err := t.Play(); err != nil {
				if errors.Is(err, ErrAutoplayBlocked) {
					s.logger.Warn().Msg("platform blocked audio autoplay")
					s.mu.Lock()
					s.audioBlocked = true
					s.mu.Unlock()
					return
				}
				s.logger.Warn().Err(err).Msg("audio playback failed")
			}
		}
	}
}

func (s *Session) handleRemoteGone(p RemoteParticipant) {
	s.mu.Lock()
	wasFirst := len(s.remotes) > 0 && s.remotes[0].ID() == p.ID()
	kept := s.remotes[:0]
	for _, r := range s.remotes {
		if r.ID() != p.ID() {
			kept = append(kept, r)
		}
	}
	s.remotes = kept
	var next RemoteParticipant
	if wasFirst && len(kept) > 0 {
		next = kept[0]
	}
	s.mu.Unlock()

	if t := p.VideoTrack(); t != nil {
		t.Stop()
	}
	if t := p.AudioTrack(); t != nil {
		t.Stop()
	}

	if wasFirst {
		s.binder.UnbindRemote()
		if next != nil {
			if err := s.binder.BindRemote(next); err != nil {
				s.logger.Warn().Err(err).Msg("remote rebind failed")
			}
		}
	}
}

// bindLocalWithRetry binds the local preview, retrying once after a short
// delay: the surface may not exist yet on the first attempt.
func (s *Session) bindLocalWithRetry(t LocalTrack) {
	if err := s.binder.BindLocal(t); err == nil {
		return
	}
	s.afterFunc(s.cfg.BindRetryDelay, func() {
		if err := s.binder.BindLocal(t); err != nil {
			s.logger.Warn().Err(err).Msg("local preview bind failed after retry")
		}
	})
}

func closeAll(tracks []LocalTrack) {
	for _, t := range tracks {
		_ = t.Close()
	}
}
