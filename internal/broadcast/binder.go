package broadcast

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/pkg/log"
)

// LogBinder binds tracks by starting playback and logging the surface
// assignment. It is the binder a headless run uses: media flows into the
// renderer, there is no visual layout to manage.
type LogBinder struct {
	logger zerolog.Logger

	mu     sync.Mutex
	local  LocalTrack
	remote RemoteParticipant
}

// NewLogBinder creates a binder logging under the broadcast component.
func NewLogBinder() *LogBinder {
	return &LogBinder{
		logger: log.L().With().Str(log.FieldComponent, "broadcast.binder").Logger(),
	}
}

func (b *LogBinder) BindLocal(t LocalTrack) error {
	b.mu.Lock()
	b.local = t
	b.mu.Unlock()
	b.logger.Info().Str("track", t.ID()).Msg("local preview bound")
	return nil
}

func (b *LogBinder) BindRemote(p RemoteParticipant) error {
	b.mu.Lock()
	b.remote = p
	b.mu.Unlock()

	if t := p.VideoTrack(); t != nil {
		if err := t.Play(); err != nil {
			return err
		}
	}
	b.logger.Info().Str("remote", p.ID()).Msg("remote surface bound")
	return nil
}

func (b *LogBinder) UnbindLocal() {
	b.mu.Lock()
	b.local = nil
	b.mu.Unlock()
}

func (b *LogBinder) UnbindRemote() {
	b.mu.Lock()
	remote := b.remote
	b.remote = nil
	b.mu.Unlock()

	if remote == nil {
		return
	}
	if t := remote.VideoTrack(); t != nil {
		t.Stop()
	}
}

// NopBinder discards every binding. Useful for audience sessions that only
// consume audio, and in tests.
type NopBinder struct{}

func (NopBinder) BindLocal(LocalTrack) error         { return nil }
func (NopBinder) BindRemote(RemoteParticipant) error { return nil }
func (NopBinder) UnbindLocal()                       {}
func (NopBinder) UnbindRemote()                      {}
