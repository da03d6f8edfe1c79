package broadcast

import (
	"errors"
	"fmt"
)

var (
	// ErrSubscriptionUnavailable means a remote stream is not ready to be
	// subscribed yet. Logged and ignored, never fatal.
	ErrSubscriptionUnavailable = errors.New("remote stream not yet available")

	// ErrPermissionDenied means the platform refused camera, microphone
	// or screen capture.
	ErrPermissionDenied = errors.New("media permission denied")

	// ErrAutoplayBlocked means the platform refused to start audio
	// playback without user interaction.
	ErrAutoplayBlocked = errors.New("audio autoplay blocked")

	// ErrSurfaceNotReady means the render surface does not exist yet.
	ErrSurfaceNotReady = errors.New("render surface not ready")

	// ErrScreenShareUnsupported means the platform cannot capture the
	// screen at all.
	ErrScreenShareUnsupported = errors.New("screen capture not supported on this platform")
)

// TransportError wraps a fatal join/publish/leave failure from the
// underlying transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("broadcast transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportErr(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
