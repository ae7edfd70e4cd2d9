package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"taskhub/internal/auth"
	"taskhub/internal/hub"
	"taskhub/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sseHeartbeat   = 25 * time.Second
)

var errForbiddenGroup = errors.New("cannot join another user's group")

type RealtimeHandler struct {
	hub            *hub.Hub
	tokens         *auth.TokenManager
	allowAnonymous bool
	buffer         int
	upgrader       websocket.Upgrader
}

// NewRealtimeHandler accepts browser handshakes from the serving host and
// from origins, the same list the CORS middleware allows.
func NewRealtimeHandler(h *hub.Hub, tokens *auth.TokenManager, allowAnonymous bool, buffer int, origins []string) *RealtimeHandler {
	return &RealtimeHandler{
		hub:            h,
		tokens:         tokens,
		allowAnonymous: allowAnonymous,
		buffer:         buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     middleware.OriginChecker(origins),
		},
	}
}

// ConnectedData is the payload of the "connected" control message.
type ConnectedData struct {
	SubscriptionID string   `json:"subscriptionId"`
	UserID         string   `json:"userId,omitempty"`
	Groups         []string `json:"groups"`
}

type clientMessage struct {
	Action string `json:"action"`
	Group  string `json:"group"`
}

// identify resolves the handshake credential. An empty user id is an
// anonymous subscription.
func (h *RealtimeHandler) identify(c *gin.Context) (string, bool) {
	token := middleware.TokenFromRequest(c)
	if token == "" {
		if h.allowAnonymous {
			return "", true
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
		return "", false
	}

	userID, err := h.tokens.Authenticate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return "", false
	}
	return userID.String(), true
}

func (h *RealtimeHandler) subscribe(userID string) *hub.Client {
	client := hub.NewClient(userID, h.buffer)
	h.hub.Register(client)

	groups := []string{}
	if userID != "" {
		groups = append(groups, hub.UserGroup(userID))
	}
	h.hub.SendTo(client, hub.MessageConnected, ConnectedData{
		SubscriptionID: client.ID,
		UserID:         userID,
		Groups:         groups,
	})
	return client
}

// ServeWS
// @Summary      Live task events over WebSocket
// @Description  Frames are {"event": "...", "data": ...}. Send {"action": "join", "group": "..."} to join a group.
// @Tags         Realtime
// @Param        token  query  string  false  "Session token when no cookie or header can be sent"
// @Success      101
// @Failure      401  {object}  map[string]string
// @Router       /ws [get]
func (h *RealtimeHandler) ServeWS(c *gin.Context) {
	userID, ok := h.identify(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[hub] ❌ WebSocket upgrade failed: %v", err)
		return
	}

	client := h.subscribe(userID)
	go h.writePump(conn, client)
	h.readPump(conn, client)
}

// readPump owns the connection's reads and unregisters the client when the
// peer goes away, which in turn stops writePump.
func (h *RealtimeHandler) readPump(conn *websocket.Conn, client *hub.Client) {
	defer h.hub.Unregister(client)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[hub] ⚠️  Client %s read error: %v", client.ID, err)
			}
			return
		}
		h.handleMessage(client, data)
	}
}

func (h *RealtimeHandler) handleMessage(client *hub.Client, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.hub.SendTo(client, hub.MessageError, gin.H{"message": "invalid message"})
		return
	}

	switch msg.Action {
	case "join":
		group := strings.TrimSpace(msg.Group)
		if err := h.join(client, group); err != nil {
			h.hub.SendTo(client, hub.MessageError, gin.H{"message": err.Error()})
			return
		}
		h.hub.SendTo(client, hub.MessageJoined, gin.H{"group": group})
	default:
		h.hub.SendTo(client, hub.MessageError, gin.H{"message": "unknown action"})
	}
}

func (h *RealtimeHandler) join(client *hub.Client, group string) error {
	if strings.HasPrefix(group, hub.UserGroup("")) && group != hub.UserGroup(client.UserID) {
		return errForbiddenGroup
	}
	return h.hub.Join(client.ID, group)
}

// writePump is the only writer of conn.
func (h *RealtimeHandler) writePump(conn *websocket.Conn, client *hub.Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeSSE
// @Summary      Live task events as Server-Sent Events
// @Description  Read-only variant of the WebSocket channel. The SSE event name is the event kind.
// @Tags         Realtime
// @Produce      text/event-stream
// @Param        token  query  string  false  "Session token when no cookie or header can be sent"
// @Success      200
// @Failure      401  {object}  map[string]string
// @Router       /events [get]
func (h *RealtimeHandler) ServeSSE(c *gin.Context) {
	userID, ok := h.identify(c)
	if !ok {
		return
	}

	client := h.subscribe(userID)
	defer h.hub.Unregister(client)

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case frame, ok := <-client.Outbound():
			if !ok {
				return false
			}
			var msg struct {
				Event string          `json:"event"`
				Data  json.RawMessage `json:"data"`
			}
			if err := json.Unmarshal(frame, &msg); err != nil {
				return true
			}
			c.SSEvent(msg.Event, msg.Data)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
