package log

const (
	// Component emitting the entry (broadcast, realtime, session, ...).
	FieldComponent = "component"

	// Live session
	FieldChannel     = "channel"
	FieldParticipant = "participant_id"
	FieldRoomID      = "room_id"

	// Actors
	FieldUserID     = "user_id"
	FieldStreamerID = "streamer_id"

	// Client instance
	FieldClient = "client"
)
