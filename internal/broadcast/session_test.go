package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathivegas/unistream-client/internal/config"
)

type fakeTrack struct {
	id      string
	kind    TrackKind
	onEnded func()
	closed  bool
}

func (t *fakeTrack) ID() string        { return t.id }
func (t *fakeTrack) Kind() TrackKind   { return t.kind }
func (t *fakeTrack) OnEnded(fn func()) { t.onEnded = fn }
func (t *fakeTrack) Close() error      { t.closed = true; return nil }

type fakeRemoteTrack struct {
	id      string
	kind    TrackKind
	playErr error
	plays   int
	stopped bool
}

func (t *fakeRemoteTrack) ID() string      { return t.id }
func (t *fakeRemoteTrack) Kind() TrackKind { return t.kind }
func (t *fakeRemoteTrack) Play() error {
	t.plays++
	err := t.playErr
	t.playErr = nil
	return err
}
func (t *fakeRemoteTrack) Stop() { t.stopped = true }

type fakeRemote struct {
	id    string
	video *fakeRemoteTrack
	audio *fakeRemoteTrack
}

func (r *fakeRemote) ID() string { return r.id }
func (r *fakeRemote) VideoTrack() RemoteTrack {
	if r.video == nil {
		return nil
	}
	return r.video
}
func (r *fakeRemote) AudioTrack() RemoteTrack {
	if r.audio == nil {
		return nil
	}
	return r.audio
}

type fakeEngine struct {
	role         Role
	joined       bool
	joinErr      error
	leaveErr     error
	publishErr   error
	cameraErr    error
	micErr       error
	screenErr    error
	subscribeErr error
	screenOK     bool
	withAudio    bool

	published   []LocalTrack
	unpublished []LocalTrack
	leaves      int
	publishHook func(tracks []LocalTrack)

	onPublished func(p RemoteParticipant, kind TrackKind)
	onGone      func(p RemoteParticipant)
	onLeft      func(p RemoteParticipant)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{screenOK: true}
}

func (e *fakeEngine) SetRole(role Role) error { e.role = role; return nil }

func (e *fakeEngine) Join(ctx context.Context, appID, channel, token, participantID string) error {
	if e.joinErr != nil {
		return e.joinErr
	}
	e.joined = true
	return nil
}

func (e *fakeEngine) Leave(ctx context.Context) error {
	e.leaves++
	e.joined = false
	return e.leaveErr
}

func (e *fakeEngine) Publish(ctx context.Context, tracks ...LocalTrack) error {
	if e.publishErr != nil {
		return e.publishErr
	}
	e.published = append(e.published, tracks...)
	if e.publishHook != nil {
		e.publishHook(tracks)
	}
	return nil
}

func (e *fakeEngine) Unpublish(ctx context.Context, tracks ...LocalTrack) error {
	e.unpublished = append(e.unpublished, tracks...)
	return nil
}

func (e *fakeEngine) Subscribe(ctx context.Context, p RemoteParticipant, kind TrackKind) error {
	return e.subscribeErr
}

func (e *fakeEngine) CreateCameraTrack(profile config.EncoderProfile) (LocalTrack, error) {
	if e.cameraErr != nil {
		return nil, e.cameraErr
	}
	return &fakeTrack{id: "camera", kind: KindVideo}, nil
}

func (e *fakeEngine) CreateMicrophoneTrack() (LocalTrack, error) {
	if e.micErr != nil {
		return nil, e.micErr
	}
	return &fakeTrack{id: "mic", kind: KindAudio}, nil
}

func (e *fakeEngine) CreateScreenTracks(profile config.EncoderProfile) ([]LocalTrack, error) {
	if e.screenErr != nil {
		return nil, e.screenErr
	}
	tracks := []LocalTrack{&fakeTrack{id: "screen", kind: KindVideo}}
	if e.withAudio {
		tracks = append(tracks, &fakeTrack{id: "screen-audio", kind: KindAudio})
	}
	return tracks, nil
}

func (e *fakeEngine) ScreenShareSupported() bool { return e.screenOK }

func (e *fakeEngine) OnRemotePublished(fn func(p RemoteParticipant, kind TrackKind)) {
	e.onPublished = fn
}
func (e *fakeEngine) OnRemoteUnpublished(fn func(p RemoteParticipant)) { e.onGone = fn }
func (e *fakeEngine) OnRemoteLeft(fn func(p RemoteParticipant))        { e.onLeft = fn }

type recordBinder struct {
	local         []string
	remote        []string
	localErr      error
	localUnbinds  int
	remoteUnbinds int
}

func (b *recordBinder) BindLocal(t LocalTrack) error {
	if b.localErr != nil {
		err := b.localErr
		b.localErr = nil
		return err
	}
	b.local = append(b.local, t.ID())
	return nil
}

func (b *recordBinder) BindRemote(p RemoteParticipant) error {
	b.remote = append(b.remote, p.ID())
	return nil
}

func (b *recordBinder) UnbindLocal()  { b.localUnbinds++ }
func (b *recordBinder) UnbindRemote() { b.remoteUnbinds++ }

func testBroadcastConfig() config.BroadcastConfig {
	return config.BroadcastConfig{
		Camera:         config.EncoderProfile{Width: 640, Height: 480, FrameRate: 30},
		Screen:         config.EncoderProfile{Width: 1920, Height: 1080, FrameRate: 30},
		BindRetryDelay: time.Millisecond,
	}
}

func newTestSession(t *testing.T, engine *fakeEngine, role Role, binder Binder) *Session {
	t.Helper()
	s, err := NewSession(engine, testBroadcastConfig(), role, binder)
	require.NoError(t, err)
	// Run bind retries inline so tests stay synchronous.
	s.afterFunc = func(d time.Duration, fn func()) *time.Timer {
		fn()
		return nil
	}
	return s
}

func TestAudienceJoinHasNoLocalMedia(t *testing.T) {
	engine := newFakeEngine()
	s := newTestSession(t, engine, RoleAudience, &recordBinder{})

	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	assert.Equal(t, StateJoined, s.State())
	assert.Equal(t, "stream_abc_1", s.Channel())
	assert.Empty(t, engine.published)
}

func TestJoinIgnoredWhenAlreadyJoinedOrEmpty(t *testing.T) {
	engine := newFakeEngine()
	s := newTestSession(t, engine, RoleAudience, &recordBinder{})

	require.NoError(t, s.Join(context.Background(), ""))
	assert.Equal(t, StateIdle, s.State())

	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))
	require.NoError(t, s.Join(context.Background(), "stream_other_2"))
	assert.Equal(t, "stream_abc_1", s.Channel())
}

func TestPublisherJoinPublishesCameraAndMic(t *testing.T) {
	engine := newFakeEngine()
	binder := &recordBinder{}
	s := newTestSession(t, engine, RolePublisher, binder)

	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	assert.Equal(t, StatePublishing, s.State())
	require.Len(t, engine.published, 2)
	assert.Equal(t, "camera", engine.published[0].ID())
	assert.Equal(t, "mic", engine.published[1].ID())
	assert.Equal(t, []string{"camera"}, binder.local)
}

func TestPublisherJoinRollsBackOnMediaFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.cameraErr = ErrPermissionDenied
	s := newTestSession(t, engine, RolePublisher, &recordBinder{})

	err := s.Join(context.Background(), "stream_abc_1")

	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 1, engine.leaves)
	assert.Empty(t, s.Channel())
}

func TestPublisherJoinRollsBackOnPublishFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.publishErr = errors.New("publish refused")
	s := newTestSession(t, engine, RolePublisher, &recordBinder{})

	err := s.Join(context.Background(), "stream_abc_1")

	require.Error(t, err)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, 1, engine.leaves)
}

func TestLeaveResetsEvenWhenTransportFails(t *testing.T) {
	engine := newFakeEngine()
	engine.leaveErr = errors.New("transport gone")
	binder := &recordBinder{}
	s := newTestSession(t, engine, RolePublisher, binder)

	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))
	camera := engine.published[0].(*fakeTrack)
	mic := engine.published[1].(*fakeTrack)

	err := s.Leave(context.Background())

	require.Error(t, err)
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Channel())
	assert.True(t, camera.closed)
	assert.True(t, mic.closed)
	assert.Equal(t, 1, binder.localUnbinds)
	assert.Equal(t, 1, binder.remoteUnbinds)

	// A new join works after the failed leave.
	engine.leaveErr = nil
	require.NoError(t, s.Join(context.Background(), "stream_next_2"))
	assert.Equal(t, StatePublishing, s.State())
}

func TestLeaveWhenIdleIsNoOp(t *testing.T) {
	engine := newFakeEngine()
	s := newTestSession(t, engine, RoleAudience, &recordBinder{})

	require.NoError(t, s.Leave(context.Background()))
	assert.Zero(t, engine.leaves)
}

func TestScreenShareSwapsCameraForScreen(t *testing.T) {
	engine := newFakeEngine()
	binder := &recordBinder{}
	s := newTestSession(t, engine, RolePublisher, binder)
	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	require.NoError(t, s.StartScreenShare(context.Background()))

	assert.Equal(t, StateScreenSharing, s.State())
	require.Len(t, engine.unpublished, 1)
	assert.Equal(t, "camera", engine.unpublished[0].ID())
	assert.Equal(t, "screen", engine.published[len(engine.published)-1].ID())
	assert.Equal(t, []string{"camera", "screen"}, binder.local)

	require.NoError(t, s.StopScreenShare(context.Background()))

	assert.Equal(t, StatePublishing, s.State())
	assert.Equal(t, "screen", engine.unpublished[1].ID())
	assert.Equal(t, "camera", engine.published[len(engine.published)-1].ID())
}

func TestScreenShareStopsWhenCaptureEnds(t *testing.T) {
	engine := newFakeEngine()
	s := newTestSession(t, engine, RolePublisher, &recordBinder{})
	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))
	require.NoError(t, s.StartScreenShare(context.Background()))

	screen := engine.published[len(engine.published)-1].(*fakeTrack)
	require.NotNil(t, screen.onEnded)
	screen.onEnded()

	assert.Equal(t, StatePublishing, s.State())
	assert.True(t, screen.closed)
}

func TestScreenShareAbandonedWhenLeftDuringStart(t *testing.T) {
	engine := newFakeEngine()
	s := newTestSession(t, engine, RolePublisher, &recordBinder{})
	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	// The channel is left between the screen publish and the state commit.
	engine.publishHook = func(tracks []LocalTrack) {
		if tracks[0].ID() == "screen" {
			engine.publishHook = nil
			require.NoError(t, s.Leave(context.Background()))
		}
	}

	require.NoError(t, s.StartScreenShare(context.Background()))

	assert.Equal(t, StateIdle, s.State())
	screen := engine.published[len(engine.published)-1].(*fakeTrack)
	assert.True(t, screen.closed)
	// The orphaned screen track was unpublished, not left on the wire.
	assert.Equal(t, "screen", engine.unpublished[len(engine.unpublished)-1].ID())
}

func TestScreenShareCancelKeepsCamera(t *testing.T) {
	engine := newFakeEngine()
	engine.screenErr = ErrPermissionDenied
	s := newTestSession(t, engine, RolePublisher, &recordBinder{})
	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	err := s.StartScreenShare(context.Background())

	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, StatePublishing, s.State())
	assert.Empty(t, engine.unpublished)
}

func TestScreenShareUnsupported(t *testing.T) {
	engine := newFakeEngine()
	engine.screenOK = false
	s := newTestSession(t, engine, RolePublisher, &recordBinder{})
	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	err := s.StartScreenShare(context.Background())
	require.ErrorIs(t, err, ErrScreenShareUnsupported)
}

func TestRemoteSubscriptionUnavailableIgnored(t *testing.T) {
	engine := newFakeEngine()
	binder := &recordBinder{}
	s := newTestSession(t, engine, RoleAudience, binder)
	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	engine.subscribeErr = ErrSubscriptionUnavailable
	engine.onPublished(&fakeRemote{id: "streamer", video: &fakeRemoteTrack{id: "v", kind: KindVideo}}, KindVideo)

	assert.Empty(t, binder.remote)
	assert.Equal(t, StateJoined, s.State())
}

func TestOnlyFirstRemoteIsBound(t *testing.T) {
	engine := newFakeEngine()
	binder := &recordBinder{}
	s := newTestSession(t, engine, RoleAudience, binder)
	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	first := &fakeRemote{id: "first", video: &fakeRemoteTrack{id: "v1", kind: KindVideo}}
	second := &fakeRemote{id: "second", video: &fakeRemoteTrack{id: "v2", kind: KindVideo}}
	engine.onPublished(first, KindVideo)
	engine.onPublished(second, KindVideo)

	assert.Equal(t, []string{"first"}, binder.remote)

	// When the first leaves, the next one takes the surface.
	engine.onLeft(first)
	assert.Equal(t, 1, binder.remoteUnbinds)
	assert.Equal(t, []string{"first", "second"}, binder.remote)
	assert.True(t, first.video.stopped)
}

func TestAutoplayBlockedThenEnableAudio(t *testing.T) {
	engine := newFakeEngine()
	s := newTestSession(t, engine, RoleAudience, &recordBinder{})
	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	audio := &fakeRemoteTrack{id: "a1", kind: KindAudio, playErr: ErrAutoplayBlocked}
	remote := &fakeRemote{id: "streamer", audio: audio}
	engine.onPublished(remote, KindAudio)

	assert.True(t, s.AudioBlocked())
	assert.Equal(t, 1, audio.plays)

	s.EnableAudio()

	assert.False(t, s.AudioBlocked())
	assert.Equal(t, 2, audio.plays)
}

func TestLocalBindRetriesAfterSurfaceNotReady(t *testing.T) {
	engine := newFakeEngine()
	binder := &recordBinder{localErr: ErrSurfaceNotReady}
	s := newTestSession(t, engine, RolePublisher, binder)

	require.NoError(t, s.Join(context.Background(), "stream_abc_1"))

	// First attempt failed, the inline retry succeeded.
	assert.Equal(t, []string{"camera"}, binder.local)
}
