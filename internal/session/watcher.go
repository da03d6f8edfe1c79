package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/internal/store"
	"github.com/mathivegas/unistream-client/pkg/log"
)

// WatchState is the watcher's lifecycle position.
type WatchState int

const (
	WatchIdle WatchState = iota
	WatchConnecting
	Watching
	WatchSwitching
)

// Watcher drives what a spectator is looking at: one media channel plus the
// matching chat room. Switching streamers tears the old membership down
// completely, lets the transport settle, and only then joins the new one,
// so the two memberships never overlap.
type Watcher struct {
	media  Broadcaster
	room   RoomChannel
	store  store.Store
	settle time.Duration
	logger zerolog.Logger

	mu         sync.Mutex
	state      WatchState
	streamerID string
	channel    string
	onTarget   func(ctx context.Context, streamerID string)

	// injectable for tests
	sleep func(d time.Duration)
}

// NewWatcher creates a watcher with the given settle delay between leave
// and rejoin.
func NewWatcher(media Broadcaster, room RoomChannel, st store.Store, settle time.Duration) *Watcher {
	return &Watcher{
		media:  media,
		room:   room,
		store:  st,
		settle: settle,
		logger: log.L().With().Str(log.FieldComponent, "session.watcher").Logger(),
		sleep:  time.Sleep,
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() WatchState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// OnTarget registers a callback invoked before joining whenever the watch
// moves to a different streamer. The spectator session seeds its points
// ledger here; a restart of the same streamer keeps the ledger.
func (w *Watcher) OnTarget(fn func(ctx context.Context, streamerID string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onTarget = fn
}

// Current returns the watched streamer and channel, empty when idle.
func (w *Watcher) Current() (streamerID, channel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.streamerID, w.channel
}

// Watch points the spectator at a streamer's live channel. Re-watching the
// exact same target is a no-op; any other target first fully releases the
// previous one. The selection is persisted before joining so it survives a
// failed join and a restart.
func (w *Watcher) Watch(ctx context.Context, streamerID, channel string) error {
	w.mu.Lock()
	if w.state == Watching && w.streamerID == streamerID && w.channel == channel {
		w.mu.Unlock()
		w.logger.Debug().Str(log.FieldStreamerID, streamerID).Msg("already watching, ignoring")
		return nil
	}
	switching := w.state == Watching || w.state == WatchConnecting
	if switching {
		w.state = WatchSwitching
	} else {
		w.state = WatchConnecting
	}
	changed := w.streamerID != streamerID
	onTarget := w.onTarget
	w.streamerID = streamerID
	w.channel = channel
	w.mu.Unlock()

	if err := w.store.SetSelectedStreamer(streamerID); err != nil {
		w.logger.Warn().Err(err).Msg("selection persist failed")
	}

	if switching {
		if err := w.media.Leave(ctx); err != nil {
			w.logger.Warn().Err(err).Msg("leave during switch failed, continuing")
		}
		w.room.Leave()
		w.sleep(w.settle)

		// The target may have changed again during the settle window.
		w.mu.Lock()
		stale := w.streamerID != streamerID || w.channel != channel
		if !stale {
			w.state = WatchConnecting
		}
		w.mu.Unlock()
		if stale {
			return nil
		}
	}

	if changed && onTarget != nil {
		onTarget(ctx, streamerID)
	}

	if err := w.room.Join(streamerID); err != nil {
		w.logger.Warn().Err(err).Str(log.FieldStreamerID, streamerID).Msg("room join failed")
	}

	if err := w.media.Join(ctx, channel); err != nil {
		// Selection stays so a retry or restart can pick it back up.
		w.mu.Lock()
		w.state = WatchIdle
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	w.state = Watching
	w.mu.Unlock()
	w.logger.Info().
		Str(log.FieldStreamerID, streamerID).
		Str(log.FieldChannel, channel).
		Msg("watching")
	return nil
}

// Stop releases both memberships and returns the watcher to idle. The
// selection in the store is kept.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.state == WatchIdle {
		w.mu.Unlock()
		return nil
	}
	w.state = WatchIdle
	w.streamerID = ""
	w.channel = ""
	w.mu.Unlock()

	err := w.media.Leave(ctx)
	w.room.Leave()
	return err
}
