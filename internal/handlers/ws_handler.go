package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ldco/PuppetMaster2-sub001/internal/auth"
	"github.com/ldco/PuppetMaster2-sub001/internal/config"
	"github.com/ldco/PuppetMaster2-sub001/internal/hub"
	"github.com/ldco/PuppetMaster2-sub001/internal/middleware"
	"github.com/ldco/PuppetMaster2-sub001/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// wsClient implements hub.Transport by wrapping a websocket connection.
// Writes are serialized by a mutex because the hub's engine and the ping
// goroutine may push frames concurrently.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(message []byte) bool {
	if c == nil || c.conn == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(config.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return false
	}
	return true
}

func (c *wsClient) Close() {
	if c != nil && c.conn != nil {
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is already handled at Gin level; allow upgrade from any origin here
		return true
	},
}

// clientFrame is the inbound message shape: {type, payload}.
type clientFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomRequest struct {
	Room string `json:"room"`
}

type publishRequest struct {
	Room string          `json:"room"`
	Data json.RawMessage `json:"data"`
}

// relayedMessage is what room subscribers receive for a PUBLISH frame.
type relayedMessage struct {
	Room string          `json:"room"`
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data"`
}

// WebSocketHandler upgrades the connection and admits it to the hub.
// GET /ws
//
// A token (query param or Authorization header) is optional: with a valid
// one the connection is identified, without one it is anonymous. An invalid
// token is rejected rather than silently downgraded to anonymous.
func WebSocketHandler(h *hub.Hub, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var identity *models.Identity
		if tokenString := middleware.ExtractToken(c); tokenString != "" {
			claims, err := auth.ValidateToken(tokenString)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			role, ok := models.ParseRole(claims.Role)
			if !ok {
				role = models.RoleViewer
			}
			identity = &models.Identity{UserID: claims.UserID, Role: role}
		}

		// Upgrade HTTP connection to WebSocket
		wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("websocket upgrade error:", err)
			return
		}

		client := &wsClient{conn: wsConn}
		conn := h.Admit(client, identity)

		// Heartbeat: send periodic pings; close on error
		pingTicker := time.NewTicker(config.PingInterval)
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					return
				case <-pingTicker.C:
					if err := wsConn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(config.WriteTimeout)); err != nil {
						// ping failed; reader loop will exit on next error
						return
					}
				}
			}
		}()
		defer func() {
			close(done)
			pingTicker.Stop()
			h.Remove(conn.ID)
			client.Close()
		}()

		wsConn.SetReadLimit(config.MaxFrameSize)
		wsConn.SetReadDeadline(time.Now().Add(config.PongWait))
		wsConn.SetPongHandler(func(string) error {
			wsConn.SetReadDeadline(time.Now().Add(config.PongWait))
			return nil
		})

		for {
			_, raw, err := wsConn.ReadMessage()
			if err != nil {
				// Normal close or error; exit loop
				return
			}
			dispatchFrame(h, cfg, conn, raw)
		}
	}
}

// dispatchFrame routes one decoded inbound frame: SUBSCRIBE/UNSUBSCRIBE to
// the subscription manager, PUBLISH to the room relay, everything else is
// dropped. Each class carries its own rate budget; the limiter's verdict is
// turned into an ERROR frame here because the limiter itself stays a pure
// boolean.
func dispatchFrame(h *hub.Hub, cfg *config.Config, conn *hub.Conn, raw []byte) {
	var frame clientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Printf("ws: undecodable frame from %s", conn.ID)
		return
	}

	switch frame.Type {
	case "SUBSCRIBE", "UNSUBSCRIBE":
		if !h.RateLimiter().Allow(hub.BucketKey(conn.ID, "subscribe"), cfg.SubscribeRate.MaxMessages, cfg.SubscribeRate.Window) {
			h.SendTo(conn.ID, hub.NewErrorMessage(hub.CodeRateLimited, "too many subscription changes"))
			return
		}
		var req roomRequest
		if err := json.Unmarshal(frame.Payload, &req); err != nil || req.Room == "" {
			log.Printf("ws: %s frame without room from %s", frame.Type, conn.ID)
			return
		}
		if frame.Type == "SUBSCRIBE" {
			h.Subscribe(conn.ID, req.Room)
		} else {
			h.Unsubscribe(conn.ID, req.Room)
		}

	case "PUBLISH":
		if !h.RateLimiter().Allow(hub.BucketKey(conn.ID, "publish"), cfg.PublishRate.MaxMessages, cfg.PublishRate.Window) {
			h.SendTo(conn.ID, hub.NewErrorMessage(hub.CodeRateLimited, "too many messages"))
			return
		}
		var req publishRequest
		if err := json.Unmarshal(frame.Payload, &req); err != nil || req.Room == "" {
			log.Printf("ws: PUBLISH frame without room from %s", conn.ID)
			return
		}
		// Only subscribers may publish into a room.
		if !h.InRoom(conn.ID, req.Room) {
			h.SendTo(conn.ID, hub.NewErrorMessage(hub.CodeForbidden, "not subscribed to room"))
			return
		}
		payload, _ := json.Marshal(relayedMessage{
			Room: req.Room,
			From: conn.UserID(),
			Data: req.Data,
		})
		h.BroadcastToRoom(req.Room, hub.NewMessage("MESSAGE", payload), conn.ID)

	default:
		log.Printf("ws: unknown frame type %q from %s", frame.Type, conn.ID)
	}
}
