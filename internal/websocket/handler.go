package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/chat"
	"chatrelay/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is the deployment's concern.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

const maxIntentSize = 64 * 1024

// Intent is one decoded client request. Action selects the operation;
// the remaining fields are read per action.
type Intent struct {
	Action    string `json:"action"`
	Username  string `json:"username,omitempty"`
	Room      string `json:"room,omitempty"`
	Private   bool   `json:"private,omitempty"`
	Body      string `json:"body,omitempty"`
	Target    string `json:"target,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
}

// Client intent actions.
const (
	ActionIdentify       = "identify"
	ActionJoinRoom       = "join_room"
	ActionCreateRoom     = "create_room"
	ActionSendMessage    = "send_message"
	ActionPrivateMessage = "private_message"
	ActionStartTyping    = "start_typing"
	ActionStopTyping     = "stop_typing"
	ActionToggleReaction = "toggle_reaction"
)

// Handler upgrades HTTP requests to WebSocket sessions and pumps each
// connection's intents into the coordinator. Intents from one connection
// are dispatched sequentially from its read pump, which is what gives
// the coordinator its in-order, non-reentrant per-connection guarantee.
type Handler struct {
	registry    *Registry
	coordinator *chat.Coordinator
	cfg         config.WebSocketConfig
}

func NewHandler(registry *Registry, coordinator *chat.Coordinator, cfg config.WebSocketConfig) *Handler {
	return &Handler{
		registry:    registry,
		coordinator: coordinator,
		cfg:         cfg,
	}
}

// HandleWebSocket upgrades the request and runs the connection until the
// client goes away.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	wsConn := NewConnection(conn, h.cfg.SendBuffer, h.cfg.WriteTimeout)
	h.registry.Add(wsConn)

	go h.readPump(wsConn)
}

func (h *Handler) readPump(conn *Connection) {
	defer func() {
		h.coordinator.Disconnect(conn.ID())
		h.registry.Remove(conn.ID())
		_ = conn.Close()
	}()

	conn.conn.SetReadLimit(maxIntentSize)
	if err := conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	go h.pingLoop(conn)

	for {
		msgType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: conn=%s err=%v", conn.ID(), err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var intent Intent
		if err := json.Unmarshal(data, &intent); err != nil {
			log.Printf("invalid intent: conn=%s err=%v", conn.ID(), err)
			continue
		}

		h.dispatch(conn.ID(), intent)
	}
}

func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-conn.ctx.Done():
			return
		}
	}
}

func (h *Handler) dispatch(connID string, intent Intent) {
	ctx := context.Background()

	switch intent.Action {
	case ActionIdentify:
		h.coordinator.Identify(ctx, connID, intent.Username)
	case ActionJoinRoom:
		h.coordinator.JoinRoom(ctx, connID, intent.Room)
	case ActionCreateRoom:
		h.coordinator.CreateRoom(ctx, connID, intent.Room, intent.Private)
	case ActionSendMessage:
		h.coordinator.SendMessage(ctx, connID, intent.Body)
	case ActionPrivateMessage:
		h.coordinator.SendPrivateMessage(connID, intent.Target, intent.Body)
	case ActionStartTyping:
		h.coordinator.StartTyping(connID)
	case ActionStopTyping:
		h.coordinator.StopTyping(connID)
	case ActionToggleReaction:
		h.coordinator.ToggleReaction(connID, intent.MessageID, intent.Emoji)
	default:
		log.Printf("unknown action: conn=%s action=%q", connID, intent.Action)
	}
}
