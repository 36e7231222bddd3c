package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ldco/PuppetMaster2-sub001/internal/auth"
	"github.com/ldco/PuppetMaster2-sub001/internal/config"
	"github.com/ldco/PuppetMaster2-sub001/internal/hub"
	"github.com/ldco/PuppetMaster2-sub001/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxConnectionsPerUser: 4,
		MaxRoomsPerConnection: 16,
		SubscribeRate:         config.RateLimit{MaxMessages: 100, Window: time.Second},
		PublishRate:           config.RateLimit{MaxMessages: 100, Window: time.Second},
	}
}

func wsServer(t *testing.T, h *hub.Hub, cfg *config.Config) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", WebSocketHandler(h, cfg))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsDial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frameType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(clientFrame{Type: frameType, Payload: raw})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg hub.Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	payload := make(map[string]any)
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	return msg.Type, payload
}

func TestWebSocket_AnonymousSubscribeFlow(t *testing.T) {
	h := hub.New(hub.Options{})
	srv := wsServer(t, h, testConfig())
	conn := wsDial(t, srv, "")

	sendFrame(t, conn, "SUBSCRIBE", roomRequest{Room: "lobby"})
	msgType, payload := readEnvelope(t, conn)
	require.Equal(t, hub.TypeSubscribed, msgType)
	require.Equal(t, "lobby", payload["room"])

	sendFrame(t, conn, "UNSUBSCRIBE", roomRequest{Room: "lobby"})
	msgType, _ = readEnvelope(t, conn)
	require.Equal(t, hub.TypeUnsubscribed, msgType)
}

func TestWebSocket_AnonymousRejectedFromRestrictedRoom(t *testing.T) {
	h := hub.New(hub.Options{Policies: map[string]hub.RoomPolicy{
		"admin-ops": {MinRole: models.RoleAdmin},
	}})
	srv := wsServer(t, h, testConfig())
	conn := wsDial(t, srv, "")

	sendFrame(t, conn, "SUBSCRIBE", roomRequest{Room: "admin-ops"})
	msgType, payload := readEnvelope(t, conn)
	require.Equal(t, hub.TypeError, msgType)
	require.Equal(t, string(hub.CodeAuthRequired), payload["code"])
}

func TestWebSocket_TokenGrantsIdentity(t *testing.T) {
	h := hub.New(hub.Options{Policies: map[string]hub.RoomPolicy{
		"admin-ops": {MinRole: models.RoleAdmin},
	}})
	srv := wsServer(t, h, testConfig())

	token, err := auth.GenerateToken("u-adm", "root", "admin")
	require.NoError(t, err)
	conn := wsDial(t, srv, "?token="+token)

	sendFrame(t, conn, "SUBSCRIBE", roomRequest{Room: "admin-ops"})
	msgType, _ := readEnvelope(t, conn)
	require.Equal(t, hub.TypeSubscribed, msgType)
}

func TestWebSocket_InvalidTokenRejected(t *testing.T) {
	h := hub.New(hub.Options{})
	srv := wsServer(t, h, testConfig())

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)
}

func TestWebSocket_PublishRelaysToRoomPeers(t *testing.T) {
	h := hub.New(hub.Options{})
	srv := wsServer(t, h, testConfig())

	sender := wsDial(t, srv, "")
	receiver := wsDial(t, srv, "")

	sendFrame(t, sender, "SUBSCRIBE", roomRequest{Room: "chat"})
	msgType, _ := readEnvelope(t, sender)
	require.Equal(t, hub.TypeSubscribed, msgType)
	sendFrame(t, receiver, "SUBSCRIBE", roomRequest{Room: "chat"})
	msgType, _ = readEnvelope(t, receiver)
	require.Equal(t, hub.TypeSubscribed, msgType)

	sendFrame(t, sender, "PUBLISH", publishRequest{Room: "chat", Data: json.RawMessage(`{"text":"hi"}`)})

	msgType, payload := readEnvelope(t, receiver)
	require.Equal(t, "MESSAGE", msgType)
	require.Equal(t, "chat", payload["room"])
}

func TestWebSocket_PublishRequiresSubscription(t *testing.T) {
	h := hub.New(hub.Options{})
	srv := wsServer(t, h, testConfig())
	conn := wsDial(t, srv, "")

	sendFrame(t, conn, "PUBLISH", publishRequest{Room: "chat", Data: json.RawMessage(`{}`)})
	msgType, payload := readEnvelope(t, conn)
	require.Equal(t, hub.TypeError, msgType)
	require.Equal(t, string(hub.CodeForbidden), payload["code"])
}

func TestWebSocket_SubscribeRateLimited(t *testing.T) {
	h := hub.New(hub.Options{})
	cfg := testConfig()
	cfg.SubscribeRate = config.RateLimit{MaxMessages: 1, Window: time.Minute}
	srv := wsServer(t, h, cfg)
	conn := wsDial(t, srv, "")

	sendFrame(t, conn, "SUBSCRIBE", roomRequest{Room: "a"})
	msgType, _ := readEnvelope(t, conn)
	require.Equal(t, hub.TypeSubscribed, msgType)

	sendFrame(t, conn, "SUBSCRIBE", roomRequest{Room: "b"})
	msgType, payload := readEnvelope(t, conn)
	require.Equal(t, hub.TypeError, msgType)
	require.Equal(t, string(hub.CodeRateLimited), payload["code"])
}

func TestWebSocket_DisconnectCleansUp(t *testing.T) {
	h := hub.New(hub.Options{})
	srv := wsServer(t, h, testConfig())
	conn := wsDial(t, srv, "")

	sendFrame(t, conn, "SUBSCRIBE", roomRequest{Room: "lobby"})
	msgType, _ := readEnvelope(t, conn)
	require.Equal(t, hub.TypeSubscribed, msgType)
	require.Equal(t, 1, h.Stats().TotalConnections)

	conn.Close()

	require.Eventually(t, func() bool {
		s := h.Stats()
		return s.TotalConnections == 0 && s.TotalRooms == 0
	}, 2*time.Second, 10*time.Millisecond)
}
