package types

import "time"

// TimestampFormat is the wall-clock format clients render next to
// messages and private messages.
const TimestampFormat = "15:04:05"

// RoomJoinedPayload confirms a join to the caller with the room's
// metadata and current member usernames.
type RoomJoinedPayload struct {
	Room  Room     `json:"room"`
	Users []string `json:"users"`
}

// RoomEventPayload announces a membership change to a room's members.
type RoomEventPayload struct {
	Username string `json:"username"`
	RoomName string `json:"roomName"`
}

// ReceiveMessagePayload carries a relayed room message.
type ReceiveMessagePayload struct {
	Username  string `json:"username"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
	MessageID string `json:"messageId"`
}

// PrivateMessagePayload carries a direct message. From is the sender's
// username on the target's copy and "To <target>" on the sender's echo.
type PrivateMessagePayload struct {
	From      string `json:"from"`
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
}

// TypingPayload identifies who started or stopped typing.
type TypingPayload struct {
	Username string `json:"username"`
}

// HistoryMessage is one entry of a MessageHistory payload, ordered
// oldest first.
type HistoryMessage struct {
	MessageID string    `json:"messageId"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	RoomName  string    `json:"roomName"`
	Timestamp time.Time `json:"timestamp"`
}

// ReactionUpdatedPayload is the full reaction snapshot for a message
// after a toggle, not just the changed emoji.
type ReactionUpdatedPayload struct {
	MessageID string                     `json:"messageId"`
	Reactions map[string]ReactionSummary `json:"reactions"`
}

// ErrorPayload is a user-facing error delivered to the caller only.
type ErrorPayload struct {
	Message string `json:"message"`
}

// RateLimitPayload explains a refused send.
type RateLimitPayload struct {
	Reason      string     `json:"reason"`
	Banned      bool       `json:"banned"`
	BannedUntil *time.Time `json:"bannedUntil,omitempty"`
}
