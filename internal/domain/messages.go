package domain

import "encoding/json"

// Realtime events from client.
const (
	EvtJoinChat     = "join-chat"
	EvtSendMessage  = "send-message"
	EvtSendGift     = "send-gift"
	EvtNewGiftAdded = "new-gift-added"
	EvtWentLive     = "streamer-went-live"
	EvtWentOffline  = "streamer-went-offline"
	EvtHeartbeat    = "stream-heartbeat"
)

// Realtime events to client.
const (
	EvtNewMessage      = "new-message"
	EvtGiftReceived    = "gift-received"
	EvtGiftListUpdated = "gift-list-updated"
	EvtStatusChanged   = "streamer-status-changed"
)

// Envelope is the wire frame for every realtime event.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope.
func NewEnvelope(event string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// Client -> Server payloads

type JoinChatPayload struct {
	StreamerID string `json:"streamerId"`
	UserName   string `json:"userName"`
}

type SendMessagePayload struct {
	StreamerID string      `json:"streamerId"`
	Message    ChatMessage `json:"message"`
}

type SendGiftPayload struct {
	StreamerID string           `json:"streamerId"`
	GiftData   GiftNotification `json:"giftData"`
}

type NewGiftPayload struct {
	StreamerID string `json:"streamerId"`
	Gift       Gift   `json:"gift"`
}

type WentLivePayload struct {
	StreamerID  string `json:"streamerId"`
	ChannelName string `json:"channelName"`
}

type WentOfflinePayload struct {
	StreamerID string `json:"streamerId"`
}

type HeartbeatPayload struct {
	StreamerID string `json:"streamerId"`
	Timestamp  int64  `json:"timestamp"`
}

// Server -> Client payloads. Room-scoped events carry the streamer identity
// so a shared connection can route them to the observed room.

type NewMessagePayload struct {
	StreamerID string      `json:"streamerId"`
	Message    ChatMessage `json:"message"`
}

type GiftReceivedPayload struct {
	StreamerID string           `json:"streamerId"`
	GiftData   GiftNotification `json:"giftData"`
}

type GiftListUpdatedPayload struct {
	StreamerID string `json:"streamerId"`
	Gift       Gift   `json:"gift"`
}

// StreamerStatus doubles as the streamer-status-changed payload; it is not
// room-scoped, every connected client may observe it.
