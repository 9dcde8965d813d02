package realtime

import "encoding/json"

// Outbound events (client -> server)
const (
	EventRoomJoin      = "room:join"
	EventRoomLeave     = "room:leave"
	EventMessageSend   = "message:send"
	EventMessageEdit   = "message:edit"
	EventMessageDelete = "message:delete"
	EventTypingStart   = "typing:start"
	EventTypingStop    = "typing:stop"
	EventMessagesRead  = "messages:read"
)

// Inbound events (server -> client)
const (
	EventMessageNew          = "message:new"
	EventMessageEdited       = "message:edited"
	EventMessageDeleted      = "message:deleted"
	EventNotificationMessage = "notification:message"
	EventUsersOnline         = "users:online"
	EventUserOnline          = "user:online"
	EventUserOffline         = "user:offline"
)

// Envelope is the wire format for every event in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler is an inbound event callback. Handlers run on the read loop
// goroutine in arrival order; a panicking handler is recovered and never
// takes the connection down.
type Handler func(data json.RawMessage)

// PresencePayload carries incremental online/offline events
type PresencePayload struct {
	UserId string `json:"user_id"`
}

// RoomPayload carries room join/leave and read-receipt events
type RoomPayload struct {
	ConversationId string `json:"conversation_id"`
}
