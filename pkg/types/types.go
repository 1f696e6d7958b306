package types

import (
	"time"
)

// Event names delivered to clients. Payload shapes are defined in
// events.go; the transport layer is agnostic about both.
const (
	EventRoomList              = "RoomList"
	EventRoomJoined            = "RoomJoined"
	EventMessageHistory        = "MessageHistory"
	EventUserJoinedRoom        = "UserJoinedRoom"
	EventUserLeftRoom          = "UserLeftRoom"
	EventRoomCreated           = "RoomCreated"
	EventReceiveMessage        = "ReceiveMessage"
	EventReceivePrivateMessage = "ReceivePrivateMessage"
	EventUserTyping            = "UserTyping"
	EventUserStoppedTyping     = "UserStoppedTyping"
	EventReactionUpdated       = "ReactionUpdated"
	EventError                 = "Error"
	EventRateLimitError        = "RateLimitError"
)

// Room is chat room metadata. Name is the lowercase registry key and is
// immutable once created; DisplayName is what clients render.
type Room struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	IsPrivate   bool   `json:"isPrivate"`
	Creator     string `json:"creator"`
}

// Message is a persisted chat message. Seq is the log-assigned sequential
// identifier; ID is the opaque message id reactions attach to.
type Message struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"messageId"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	RoomName  string    `json:"roomName"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReactionSummary aggregates one emoji's reactions on a message.
type ReactionSummary struct {
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// Event is the JSON envelope written to client connections.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}
