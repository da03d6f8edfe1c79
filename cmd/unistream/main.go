package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mathivegas/unistream-client/internal/api"
	"github.com/mathivegas/unistream-client/internal/broadcast"
	"github.com/mathivegas/unistream-client/internal/config"
	"github.com/mathivegas/unistream-client/internal/domain"
	"github.com/mathivegas/unistream-client/internal/notify"
	"github.com/mathivegas/unistream-client/internal/realtime"
	"github.com/mathivegas/unistream-client/internal/session"
	"github.com/mathivegas/unistream-client/internal/store"
	"github.com/mathivegas/unistream-client/pkg/log"
)

func main() {
	var (
		email      = flag.String("email", os.Getenv("UNISTREAM_EMAIL"), "account email")
		password   = flag.String("password", os.Getenv("UNISTREAM_PASSWORD"), "account password")
		roleFlag   = flag.String("role", "spectator", "account role: spectator or streamer")
		streamerID = flag.String("watch", "", "streamer to watch (spectator role)")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}
	log.Init(cfg.Log)
	logger := log.L()

	role := domain.Role(*roleFlag)
	if role != domain.RoleSpectator && role != domain.RoleStreamer {
		logger.Fatal().Str("role", *roleFlag).Msg("unknown role")
	}

	// Open the local store
	st, err := store.OpenGorm(cfg.Store.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open local store")
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(log.WithLogger(context.Background(), logger))
	defer cancel()

	// Sign in, reusing a persisted token when it is still valid
	backend := api.New(cfg.Backend)
	user, err := signIn(ctx, backend, st, *email, *password, role)
	if err != nil {
		logger.Fatal().Err(err).Msg("sign in failed")
	}
	logger.Info().
		Str(log.FieldUserID, user.ID).
		Str("role", string(role)).
		Msg("signed in")

	// Bring up the shared realtime channel
	manager := realtime.NewManager(cfg.Realtime)
	conn, release := manager.Acquire()
	defer release()
	room := realtime.NewRoom(conn, st, user.Name)

	notifier := notify.NewLogNotifier()

	switch role {
	case domain.RoleStreamer:
		runStreamer(ctx, cfg, backend, room, notifier, *user)
	default:
		runSpectator(ctx, cfg, backend, st, room, notifier, *user, *streamerID)
	}
}

func signIn(ctx context.Context, backend *api.Client, st store.Store, email, password string, role domain.Role) (*domain.UserSnapshot, error) {
	logger := log.L()
	token, cached, err := st.AuthSnapshot()
	if err == nil && cached != nil && cached.Role == role && api.TokenUsable(token) {
		backend.SetToken(token)
		// Refresh the snapshot; fall back to the cache when offline.
		var fresh *domain.UserSnapshot
		if role == domain.RoleStreamer {
			fresh, err = backend.Streamer(ctx, cached.ID)
		} else {
			fresh, err = backend.Me(ctx)
		}
		if err == nil {
			return fresh, nil
		}
		logger.Warn().Err(err).Msg("profile refresh failed, using cached snapshot")
		return cached, nil
	}

	if email == "" || password == "" {
		return nil, fmt.Errorf("no usable session: set -email and -password")
	}
	res, err := backend.Login(ctx, email, password, role)
	if err != nil {
		return nil, err
	}
	if err := st.SaveAuthSnapshot(res.Token, res.User); err != nil {
		logger.Warn().Err(err).Msg("session persist failed")
	}
	return &res.User, nil
}

func runSpectator(ctx context.Context, cfg *config.Config, backend *api.Client, st store.Store, room *realtime.Room, notifier notify.Notifier, user domain.UserSnapshot, streamerID string) {
	logger := log.L()

	engine := broadcast.NewPionEngine(cfg.Broadcast, broadcast.NewUDPCaptureProvider(cfg.Broadcast.Capture), broadcast.DiscardRenderer{})
	media, err := broadcast.NewSession(engine, cfg.Broadcast, broadcast.RoleAudience, broadcast.NewLogBinder())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up media session")
	}

	watcher := session.NewWatcher(media, room, st, cfg.Broadcast.SwitchSettleDelay)
	viewer := session.NewViewer(backend, room, notifier, cfg.Leveling, user)
	watcher.OnTarget(func(ctx context.Context, streamerID string) {
		if err := viewer.SetStreamer(ctx, streamerID); err != nil {
			logger.Warn().Err(err).Str(log.FieldStreamerID, streamerID).Msg("progress load failed")
		}
	})

	if streamerID == "" {
		if selected, err := st.SelectedStreamer(); err == nil {
			streamerID = selected
		}
	}

	room.OnMessage(func(m domain.ChatMessage) {
		logger.Info().Str("from", m.UserName).Msg(m.Text)
	})
	room.OnGift(func(g domain.GiftNotification) {
		logger.Info().Str("from", g.SenderName).Msgf("%s %s", g.GiftEmoji, g.GiftName)
	})

	// Follow the watched streamer across restarts: a fresh channel name on
	// the same streamer means the stream restarted.
	room.OnStatus(func(status domain.StreamerStatus) {
		current, channel := watcher.Current()
		if current == "" {
			// Nothing watched yet: the selected streamer may just be
			// coming online.
			current = streamerID
		}
		if current == "" || status.StreamerID != current {
			return
		}
		switch {
		case !status.IsLive:
			logger.Info().Str(log.FieldStreamerID, status.StreamerID).Msg("streamer went offline")
			if err := watcher.Stop(ctx); err != nil {
				logger.Warn().Err(err).Msg("stop failed")
			}
		case status.LiveChannelName != channel:
			if err := watcher.Watch(ctx, status.StreamerID, status.LiveChannelName); err != nil {
				logger.Warn().Err(err).Msg("rejoin failed")
			}
		}
	})

	if streamerID != "" {
		target, err := backend.Streamer(ctx, streamerID)
		if err != nil {
			logger.Fatal().Err(err).Str(log.FieldStreamerID, streamerID).Msg("streamer lookup failed")
		}
		if !target.IsLive {
			logger.Info().Str(log.FieldStreamerID, streamerID).Msg("streamer is offline, waiting for status events")
		} else {
			if err := watcher.Watch(ctx, streamerID, target.LiveChannelName); err != nil {
				logger.Error().Err(err).Msg("watch failed")
			}
		}
	} else {
		logger.Info().Msg("no streamer selected, waiting for status events")
	}

	waitForSignal()

	if err := watcher.Stop(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("teardown failed")
	}
	logger.Info().Msg("goodbye")
}

func runStreamer(ctx context.Context, cfg *config.Config, backend *api.Client, room *realtime.Room, notifier notify.Notifier, user domain.UserSnapshot) {
	logger := log.L()

	engine := broadcast.NewPionEngine(cfg.Broadcast, broadcast.NewUDPCaptureProvider(cfg.Broadcast.Capture), broadcast.DiscardRenderer{})
	media, err := broadcast.NewSession(engine, cfg.Broadcast, broadcast.RolePublisher, broadcast.NewLogBinder())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up media session")
	}

	streamer := session.NewStreamer(backend, media, room, notifier, cfg.Leveling, cfg.Realtime.HeartbeatInterval, user)

	room.OnGift(func(g domain.GiftNotification) {
		logger.Info().Str("from", g.SenderName).Int("points", g.GiftPoints).Msgf("received %s %s", g.GiftEmoji, g.GiftName)
		history, err := backend.GiftHistory(ctx, user.ID)
		if err != nil {
			logger.Warn().Err(err).Msg("gift history refresh failed")
			return
		}
		logger.Info().Int("gifts_received", len(history)).Msg("gift history updated")
	})

	// Pick the broadcast back up if the backend still lists it as live.
	if err := streamer.Resume(ctx); err != nil {
		logger.Warn().Err(err).Msg("resume failed, starting fresh")
	}
	if !streamer.Live() {
		if err := streamer.GoLive(ctx); err != nil {
			logger.Fatal().Err(err).Msg("go live failed")
		}
	}
	logger.Info().Str(log.FieldChannel, streamer.Channel()).Msg("broadcasting")

	waitForSignal()

	if err := streamer.GoOffline(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("teardown failed")
	}
	logger.Info().Msg("goodbye")
}

func waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
