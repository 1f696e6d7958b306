package chat

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"chatrelay/internal/metrics"
	"chatrelay/internal/presence"
	"chatrelay/internal/ratelimit"
	"chatrelay/internal/reaction"
	"chatrelay/internal/room"
	"chatrelay/pkg/interfaces"
	"chatrelay/pkg/types"
)

// Coordinator is the session/room coordination engine. Every client
// intent enters here; the coordinator is the sole mutator of the
// supporting stores and the only component that emits outbound events.
//
// A connection moves Anonymous -> Identified (username bound) ->
// InRoom (membership set); Disconnect unbinds everything from any
// state. Intents whose precondition is not met are dropped without any
// client-visible effect; only a metric records them.
//
// Locking: each room has its own mutex, taken around a room's
// membership mutation together with the notifications it triggers, so
// any member observes join/leave/message events in application order.
// Unrelated rooms, users, and messages never share a lock. Intents from
// one connection arrive in order and non-reentrant (transport
// guarantee), so no per-connection lock is needed.
type Coordinator struct {
	rooms     *room.Registry
	presence  *presence.Tracker
	reactions *reaction.Store
	limiter   *ratelimit.Limiter
	msgLog    interfaces.MessageLog
	bcast     interfaces.Broadcaster
	cipher    interfaces.Cipher // nil disables body encryption

	defaultRoom  string
	historyLimit int

	roomLocks sync.Map // roomName -> *sync.Mutex
}

// Options carries coordinator tuning and the optional payload cipher.
type Options struct {
	DefaultRoom  string
	HistoryLimit int
	Cipher       interfaces.Cipher
}

func NewCoordinator(
	rooms *room.Registry,
	tracker *presence.Tracker,
	reactions *reaction.Store,
	limiter *ratelimit.Limiter,
	msgLog interfaces.MessageLog,
	bcast interfaces.Broadcaster,
	opts Options,
) *Coordinator {
	return &Coordinator{
		rooms:        rooms,
		presence:     tracker,
		reactions:    reactions,
		limiter:      limiter,
		msgLog:       msgLog,
		bcast:        bcast,
		cipher:       opts.Cipher,
		defaultRoom:  opts.DefaultRoom,
		historyLimit: opts.HistoryLimit,
	}
}

func (c *Coordinator) roomLock(roomName string) *sync.Mutex {
	lock, _ := c.roomLocks.LoadOrStore(roomName, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Identify binds a username to the connection, auto-joins the default
// room, and delivers the public room list to the caller only.
func (c *Coordinator) Identify(ctx context.Context, connID, username string) {
	c.presence.Bind(connID, username)

	c.JoinRoom(ctx, connID, c.defaultRoom)

	if err := c.bcast.SendToConnection(connID, types.EventRoomList, c.rooms.ListPublic()); err != nil {
		log.Printf("room list delivery failed: conn=%s err=%v", connID, err)
	}
}

// JoinRoom moves the connection into roomName. An unknown room yields an
// error event to the caller and no state change. Switching rooms emits
// the departure to the old room's remaining members before any arrival
// event in the new room.
func (c *Coordinator) JoinRoom(ctx context.Context, connID, roomName string) {
	username, ok := c.presence.Username(connID)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropNotIdentified).Inc()
		return
	}

	target, err := c.rooms.Get(roomName)
	if err != nil {
		c.sendError(connID, "Room does not exist")
		return
	}

	if current, inRoom := c.presence.CurrentRoom(connID); inRoom {
		lock := c.roomLock(current)
		lock.Lock()
		c.presence.ClearRoom(connID)
		c.bcast.SendToRoom(current, types.EventUserLeftRoom, types.RoomEventPayload{
			Username: username,
			RoomName: current,
		})
		lock.Unlock()
	}

	lock := c.roomLock(target.Name)
	lock.Lock()
	c.presence.SetRoom(connID, target.Name)
	c.bcast.SendToRoom(target.Name, types.EventUserJoinedRoom, types.RoomEventPayload{
		Username: username,
		RoomName: target.Name,
	})
	users := c.presence.UsersInRoom(target.Name)
	lock.Unlock()

	if err := c.bcast.SendToConnection(connID, types.EventRoomJoined, types.RoomJoinedPayload{
		Room:  *target,
		Users: users,
	}); err != nil {
		log.Printf("join confirmation failed: conn=%s room=%s err=%v", connID, target.Name, err)
	}

	history, err := c.msgLog.RecentByRoom(ctx, target.Name, c.historyLimit)
	if err != nil {
		log.Printf("history load failed: room=%s err=%v", target.Name, err)
		return
	}
	if len(history) == 0 {
		return
	}

	payload := make([]types.HistoryMessage, len(history))
	for i, msg := range history {
		body := msg.Body
		if c.cipher != nil {
			body = c.cipher.Decrypt(body)
		}
		payload[i] = types.HistoryMessage{
			MessageID: msg.ID,
			Username:  msg.Username,
			Body:      body,
			RoomName:  msg.RoomName,
			Timestamp: msg.CreatedAt,
		}
	}
	if err := c.bcast.SendToConnection(connID, types.EventMessageHistory, payload); err != nil {
		log.Printf("history delivery failed: conn=%s room=%s err=%v", connID, target.Name, err)
	}
}

// CreateRoom registers a room and auto-joins the creator. Public rooms
// are announced to everyone, private rooms to the creator only.
func (c *Coordinator) CreateRoom(ctx context.Context, connID, roomName string, isPrivate bool) {
	username, ok := c.presence.Username(connID)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropNotIdentified).Inc()
		return
	}

	created, err := c.rooms.Create(roomName, isPrivate, username)
	switch err {
	case nil:
	case types.ErrInvalidRoomName:
		c.sendError(connID, "Invalid room name (1-20 characters)")
		return
	case types.ErrRoomExists:
		c.sendError(connID, "Room already exists")
		return
	default:
		c.sendError(connID, "Failed to create room")
		return
	}

	metrics.RoomsTotal.Set(float64(c.rooms.Count()))

	if created.IsPrivate {
		if err := c.bcast.SendToConnection(connID, types.EventRoomCreated, created); err != nil {
			log.Printf("room created notice failed: conn=%s err=%v", connID, err)
		}
	} else {
		c.bcast.SendToAll(types.EventRoomCreated, created)
	}

	c.JoinRoom(ctx, connID, created.Name)
}

// SendMessage relays a message to the sender's current room. The rate
// limiter is consulted first; an admitted message is persisted before it
// is broadcast, and a persistence failure surfaces to the caller only.
func (c *Coordinator) SendMessage(ctx context.Context, connID, body string) {
	username, ok := c.presence.Username(connID)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropNotIdentified).Inc()
		return
	}
	roomName, ok := c.presence.CurrentRoom(connID)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropNotInRoom).Inc()
		return
	}

	verdict := c.limiter.Check(username)
	if !verdict.Allowed {
		metrics.RateLimited.Inc()
		payload := types.RateLimitPayload{
			Reason: verdict.Reason,
			Banned: verdict.Banned,
		}
		if verdict.Banned {
			until := verdict.BannedUntil
			payload.BannedUntil = &until
		}
		if err := c.bcast.SendToConnection(connID, types.EventRateLimitError, payload); err != nil {
			log.Printf("rate limit notice failed: conn=%s err=%v", connID, err)
		}
		return
	}

	now := time.Now()
	msg := &types.Message{
		ID:        newMessageID(),
		Username:  username,
		Body:      body,
		RoomName:  roomName,
		CreatedAt: now,
	}
	if c.cipher != nil {
		msg.Body = c.cipher.Encrypt(body)
	}

	if err := c.msgLog.Append(ctx, msg); err != nil {
		log.Printf("message persist failed: room=%s user=%s err=%v", roomName, username, err)
		metrics.PersistenceFailures.Inc()
		c.sendError(connID, "Failed to send message")
		return
	}

	lock := c.roomLock(roomName)
	lock.Lock()
	c.bcast.SendToRoom(roomName, types.EventReceiveMessage, types.ReceiveMessagePayload{
		Username:  username,
		Body:      body,
		Timestamp: now.Format(types.TimestampFormat),
		MessageID: msg.ID,
	})
	lock.Unlock()

	metrics.MessagesRelayed.Inc()
}

// SendPrivateMessage delivers a direct message to some connection bound
// to targetUsername, with an echo to the sender. An unknown target drops
// the message silently.
func (c *Coordinator) SendPrivateMessage(connID, targetUsername, body string) {
	sender, ok := c.presence.Username(connID)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropNotIdentified).Inc()
		return
	}

	targetConn, ok := c.presence.FindConnection(targetUsername)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropTargetOffline).Inc()
		return
	}

	timestamp := time.Now().Format(types.TimestampFormat)
	if err := c.bcast.SendToConnection(targetConn, types.EventReceivePrivateMessage, types.PrivateMessagePayload{
		From:      sender,
		Body:      body,
		Timestamp: timestamp,
	}); err != nil {
		log.Printf("private delivery failed: target=%s err=%v", targetUsername, err)
	}
	if err := c.bcast.SendToConnection(connID, types.EventReceivePrivateMessage, types.PrivateMessagePayload{
		From:      "To " + targetUsername,
		Body:      body,
		Timestamp: timestamp,
	}); err != nil {
		log.Printf("private echo failed: conn=%s err=%v", connID, err)
	}

	metrics.PrivateMessages.Inc()
}

// StartTyping notifies the other members of the sender's current room.
// No state is retained; the client owns debounce timing.
func (c *Coordinator) StartTyping(connID string) {
	c.notifyTyping(connID, types.EventUserTyping)
}

// StopTyping notifies the other members of the sender's current room.
func (c *Coordinator) StopTyping(connID string) {
	c.notifyTyping(connID, types.EventUserStoppedTyping)
}

func (c *Coordinator) notifyTyping(connID, event string) {
	username, ok := c.presence.Username(connID)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropNotIdentified).Inc()
		return
	}
	roomName, ok := c.presence.CurrentRoom(connID)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropNotInRoom).Inc()
		return
	}

	lock := c.roomLock(roomName)
	lock.Lock()
	c.bcast.SendToOthersInRoom(roomName, connID, event, types.TypingPayload{Username: username})
	lock.Unlock()
}

// ToggleReaction toggles (messageID, emoji, username) and broadcasts the
// resulting snapshot to all connections. The coordinator keeps no
// message-to-room index, so the broadcast is global.
func (c *Coordinator) ToggleReaction(connID, messageID, emoji string) {
	username, ok := c.presence.Username(connID)
	if !ok {
		metrics.IntentsDropped.WithLabelValues(metrics.DropNotIdentified).Inc()
		return
	}

	snapshot := c.reactions.Toggle(messageID, emoji, username)
	c.bcast.SendToAll(types.EventReactionUpdated, types.ReactionUpdatedPayload{
		MessageID: messageID,
		Reactions: snapshot,
	})

	metrics.ReactionsToggled.Inc()
}

// Disconnect tears down the connection's state from any lifecycle
// stage: leaves the current room with a departure notice to its
// remaining members, then unbinds the username. Idempotent.
func (c *Coordinator) Disconnect(connID string) {
	username, ok := c.presence.Username(connID)
	if !ok {
		return
	}

	if roomName, inRoom := c.presence.CurrentRoom(connID); inRoom {
		lock := c.roomLock(roomName)
		lock.Lock()
		c.presence.ClearRoom(connID)
		c.bcast.SendToRoom(roomName, types.EventUserLeftRoom, types.RoomEventPayload{
			Username: username,
			RoomName: roomName,
		})
		lock.Unlock()
	}

	c.presence.Unbind(connID)
}

func (c *Coordinator) sendError(connID, message string) {
	if err := c.bcast.SendToConnection(connID, types.EventError, types.ErrorPayload{Message: message}); err != nil {
		log.Printf("error notice failed: conn=%s err=%v", connID, err)
	}
}

// newMessageID builds the opaque message id: "msg_" plus the first eight
// hex characters of a UUID.
func newMessageID() string {
	return "msg_" + uuid.New().String()[:8]
}
