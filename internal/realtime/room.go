package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mathivegas/unistream-client/internal/domain"
	"github.com/mathivegas/unistream-client/internal/store"
	"github.com/mathivegas/unistream-client/pkg/log"
)

// Channel is what a Room needs from the shared connection.
type Channel interface {
	Emit(event string, payload interface{}) error
	On(event string, h Handler)
	OnConnect(fn func())
	Connected() bool
}

// Room is the chat room of the currently observed streamer, layered over the
// shared connection. Inbound room-scoped events are filtered by the room's
// streamer identity; switching rooms swaps the filter and reloads the log
// from the local store. Every append runs through one deduplicating path so
// an optimistic local echo and the server broadcast of the same message
// never double up.
type Room struct {
	ch     Channel
	store  store.Store
	logger zerolog.Logger

	mu         sync.Mutex
	streamerID string
	userName   string
	messages   []domain.ChatMessage
	seen       map[string]struct{}

	onMessage func(domain.ChatMessage)
	onGift    func(domain.GiftNotification)
	onCatalog func(domain.Gift)
	onStatus  func(domain.StreamerStatus)
}

// NewRoom wires a room onto the shared connection. Handlers are registered
// once; membership is re-announced after every reconnect.
func NewRoom(ch Channel, st store.Store, userName string) *Room {
	r := &Room{
		ch:       ch,
		store:    st,
		logger:   log.L().With().Str(log.FieldComponent, "realtime.room").Logger(),
		userName: userName,
		seen:     make(map[string]struct{}),
	}

	ch.On(domain.EvtNewMessage, r.handleNewMessage)
	ch.On(domain.EvtGiftReceived, r.handleGiftReceived)
	ch.On(domain.EvtGiftListUpdated, r.handleGiftListUpdated)
	ch.On(domain.EvtStatusChanged, r.handleStatusChanged)
	ch.OnConnect(r.announceJoin)

	return r
}

// Join switches the room to a streamer: the in-memory log is replaced by the
// streamer's cached log and membership is announced when the transport is up.
func (r *Room) Join(streamerID string) error {
	r.mu.Lock()
	r.streamerID = streamerID
	r.messages = nil
	r.seen = make(map[string]struct{})
	r.mu.Unlock()

	if streamerID == "" {
		return nil
	}

	cached, err := r.store.ChatLog(streamerID)
	if err != nil {
		r.logger.Warn().Err(err).Str(log.FieldStreamerID, streamerID).Msg("chat log load failed, starting empty")
	} else {
		r.mu.Lock()
		// The room may have switched again while loading.
		if r.streamerID == streamerID {
			for _, m := range cached {
				key := m.Key()
				if _, dup := r.seen[key]; dup {
					continue
				}
				r.seen[key] = struct{}{}
				r.messages = append(r.messages, m)
			}
		}
		r.mu.Unlock()
	}

	r.announceJoin()
	return nil
}

// Leave detaches from the current room without touching the cached log.
func (r *Room) Leave() {
	r.mu.Lock()
	r.streamerID = ""
	r.messages = nil
	r.seen = make(map[string]struct{})
	r.mu.Unlock()
}

// StreamerID returns the joined room's streamer, empty when detached.
func (r *Room) StreamerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamerID
}

// Messages returns a copy of the current log.
func (r *Room) Messages() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// Send appends the message locally first and then emits it. The local append
// stands even when the emit fails; the message is already on screen and the
// server copy would be deduplicated anyway.
func (r *Room) Send(msg domain.ChatMessage) error {
	r.mu.Lock()
	streamerID := r.streamerID
	r.mu.Unlock()
	if streamerID == "" {
		return nil
	}

	r.append(streamerID, msg)

	if err := r.ch.Emit(domain.EvtSendMessage, domain.SendMessagePayload{
		StreamerID: streamerID,
		Message:    msg,
	}); err != nil {
		r.logger.Warn().Err(err).Msg("chat emit failed, message kept locally")
	}
	return nil
}

// AddLocal appends a message without emitting it, e.g. system lines.
func (r *Room) AddLocal(msg domain.ChatMessage) {
	r.mu.Lock()
	streamerID := r.streamerID
	r.mu.Unlock()
	if streamerID == "" {
		return
	}
	r.append(streamerID, msg)
}

// NotifyGift announces a sent gift to the room.
func (r *Room) NotifyGift(streamerID string, gift domain.GiftNotification) error {
	return r.ch.Emit(domain.EvtSendGift, domain.SendGiftPayload{
		StreamerID: streamerID,
		GiftData:   gift,
	})
}

// NotifyCatalogChange announces a gift catalog update to the room's viewers.
func (r *Room) NotifyCatalogChange(streamerID string, gift domain.Gift) error {
	return r.ch.Emit(domain.EvtNewGiftAdded, domain.NewGiftPayload{
		StreamerID: streamerID,
		Gift:       gift,
	})
}

// AnnounceLive broadcasts that a streamer went live on a channel.
func (r *Room) AnnounceLive(streamerID, channelName string) error {
	return r.ch.Emit(domain.EvtWentLive, domain.WentLivePayload{
		StreamerID:  streamerID,
		ChannelName: channelName,
	})
}

// AnnounceOffline broadcasts that a streamer stopped.
func (r *Room) AnnounceOffline(streamerID string) error {
	return r.ch.Emit(domain.EvtWentOffline, domain.WentOfflinePayload{
		StreamerID: streamerID,
	})
}

// StartHeartbeat emits liveness beacons on the given cadence until the
// returned stop function is called.
func (r *Room) StartHeartbeat(streamerID string, interval time.Duration) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				err := r.ch.Emit(domain.EvtHeartbeat, domain.HeartbeatPayload{
					StreamerID: streamerID,
					Timestamp:  time.Now().UnixMilli(),
				})
				if err != nil {
					r.logger.Debug().Err(err).Msg("heartbeat skipped, channel down")
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// OnMessage registers the new-chat-message callback.
func (r *Room) OnMessage(fn func(domain.ChatMessage)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onMessage = fn
}

// OnGift registers the gift-received callback.
func (r *Room) OnGift(fn func(domain.GiftNotification)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onGift = fn
}

// OnCatalog registers the gift-catalog-updated callback.
func (r *Room) OnCatalog(fn func(domain.Gift)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onCatalog = fn
}

// OnStatus registers the streamer-status callback. Status events are not
// room-scoped; the callback sees every streamer's transitions.
func (r *Room) OnStatus(fn func(domain.StreamerStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStatus = fn
}

func (r *Room) announceJoin() {
	r.mu.Lock()
	streamerID := r.streamerID
	userName := r.userName
	r.mu.Unlock()
	if streamerID == "" || !r.ch.Connected() {
		return
	}
	err := r.ch.Emit(domain.EvtJoinChat, domain.JoinChatPayload{
		StreamerID: streamerID,
		UserName:   userName,
	})
	if err != nil {
		r.logger.Warn().Err(err).Str(log.FieldStreamerID, streamerID).Msg("join announce failed")
	}
}

// append is the single write path into the log: deduplicate, grow, persist.
func (r *Room) append(streamerID string, msg domain.ChatMessage) bool {
	key := msg.Key()

	r.mu.Lock()
	if r.streamerID != streamerID {
		r.mu.Unlock()
		return false
	}
	if _, dup := r.seen[key]; dup {
		r.mu.Unlock()
		return false
	}
	r.seen[key] = struct{}{}
	r.messages = append(r.messages, msg)
	snapshot := make([]domain.ChatMessage, len(r.messages))
	copy(snapshot, r.messages)
	r.mu.Unlock()

	if err := r.store.SaveChatLog(streamerID, snapshot); err != nil {
		r.logger.Warn().Err(err).Str(log.FieldStreamerID, streamerID).Msg("chat log persist failed")
	}
	return true
}

func (r *Room) handleNewMessage(payload json.RawMessage) {
	var p domain.NewMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Warn().Err(err).Msg("malformed new-message payload")
		return
	}
	r.mu.Lock()
	current := r.streamerID
	fn := r.onMessage
	r.mu.Unlock()
	if p.StreamerID != current {
		return
	}
	if !r.append(p.StreamerID, p.Message) {
		return
	}
	if fn != nil {
		fn(p.Message)
	}
}

func (r *Room) handleGiftReceived(payload json.RawMessage) {
	var p domain.GiftReceivedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Warn().Err(err).Msg("malformed gift-received payload")
		return
	}
	r.mu.Lock()
	current := r.streamerID
	fn := r.onGift
	r.mu.Unlock()
	if p.StreamerID != current || fn == nil {
		return
	}
	fn(p.GiftData)
}

func (r *Room) handleGiftListUpdated(payload json.RawMessage) {
	var p domain.GiftListUpdatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Warn().Err(err).Msg("malformed gift-list-updated payload")
		return
	}
	r.mu.Lock()
	current := r.streamerID
	fn := r.onCatalog
	r.mu.Unlock()
	if p.StreamerID != current || fn == nil {
		return
	}
	fn(p.Gift)
}

func (r *Room) handleStatusChanged(payload json.RawMessage) {
	var p domain.StreamerStatus
	if err := json.Unmarshal(payload, &p); err != nil {
		r.logger.Warn().Err(err).Msg("malformed status payload")
		return
	}
	r.mu.Lock()
	fn := r.onStatus
	r.mu.Unlock()
	if fn == nil {
		return
	}
	fn(p)
}
