package broadcast

import (
	"context"
	"io"

	"github.com/mathivegas/unistream-client/internal/config"
)

// Role is a participant's direction in a channel.
type Role int

const (
	// RoleAudience receives media only.
	RoleAudience Role = iota
	// RolePublisher sends camera and microphone (or screen) media.
	RolePublisher
)

// TrackKind is the media kind of a track.
type TrackKind string

const (
	KindVideo TrackKind = "video"
	KindAudio TrackKind = "audio"
)

// LocalTrack is a locally produced media track owned by the session.
type LocalTrack interface {
	ID() string
	Kind() TrackKind
	// OnEnded registers a callback fired when the track terminates on its
	// own (the platform stopped the capture, e.g. screen share ended).
	OnEnded(fn func())
	Close() error
}

// RemoteTrack is a subscribed track belonging to a remote participant.
type RemoteTrack interface {
	ID() string
	Kind() TrackKind
	// Play starts rendering. Audio playback may be refused by the
	// platform's autoplay policy, reported as ErrAutoplayBlocked.
	Play() error
	Stop()
}

// RemoteParticipant is a handle to another member of the channel.
type RemoteParticipant interface {
	ID() string
	// VideoTrack and AudioTrack are nil until the corresponding kind has
	// been subscribed.
	VideoTrack() RemoteTrack
	AudioTrack() RemoteTrack
}

// Engine is the third-party broadcast transport. Exactly one channel
// membership exists per engine at a time.
type Engine interface {
	SetRole(role Role) error
	Join(ctx context.Context, appID, channel, token, participantID string) error
	Leave(ctx context.Context) error

	Publish(ctx context.Context, tracks ...LocalTrack) error
	Unpublish(ctx context.Context, tracks ...LocalTrack) error
	Subscribe(ctx context.Context, p RemoteParticipant, kind TrackKind) error

	CreateCameraTrack(profile config.EncoderProfile) (LocalTrack, error)
	CreateMicrophoneTrack() (LocalTrack, error)
	// CreateScreenTracks returns the screen video track first, optionally
	// followed by a bundled system-audio track.
	CreateScreenTracks(profile config.EncoderProfile) ([]LocalTrack, error)
	ScreenShareSupported() bool

	OnRemotePublished(fn func(p RemoteParticipant, kind TrackKind))
	OnRemoteUnpublished(fn func(p RemoteParticipant))
	OnRemoteLeft(fn func(p RemoteParticipant))
}

// Binder attaches tracks to whatever renders them. The local preview surface
// may not exist yet when a track first appears; BindLocal reports that with
// ErrSurfaceNotReady and the session retries after a short delay.
type Binder interface {
	BindLocal(t LocalTrack) error
	BindRemote(p RemoteParticipant) error
	UnbindLocal()
	UnbindRemote()
}

// Renderer consumes remote media payloads. OpenAudio may refuse with
// ErrAutoplayBlocked, in which case playback is retried manually through
// Session.EnableAudio.
type Renderer interface {
	OpenAudio(trackID string) (io.WriteCloser, error)
	OpenVideo(trackID string) (io.WriteCloser, error)
}
