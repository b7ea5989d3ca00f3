package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Desktop clients connect from app:// origins; access control happens via
	// the bearer token, not the Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClient is the gorilla-backed Client. Writes are serialized by a mutex so
// the tick broadcaster and direct replies never interleave frames.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{conn: conn}
}

func (c *wsClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) CloseWithCode(code int, reason string) {
	c.mu.Lock()
	message := websocket.FormatCloseMessage(code, reason)
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, message)
	c.mu.Unlock()
	c.conn.Close()
}

// HandleWS upgrades a connection and binds it to a room. The first message
// must be a join (bearer token) or rejoin (session id + token) within
// joinWait; anything else closes the connection before any room state exists.
func (m *RoomManager) HandleWS(w http.ResponseWriter, req *http.Request) {
	roomID := req.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "missing room query", http.StatusBadRequest)
		return
	}

	room, err := m.GetOrCreateRoom(roomID)
	if err != nil {
		http.Error(w, "room unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	client := newWSClient(conn)

	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(joinWait))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}

	var first clientMessage
	if err := json.Unmarshal(payload, &first); err != nil {
		client.CloseWithCode(CloseBadRequest, reasonInvalidPayload)
		return
	}

	var sessionID string
	switch first.Type {
	case msgJoin:
		sessionID, err = room.Join(req.Context(), first.Token, client)
	case msgRejoin:
		sessionID = first.SessionID
		err = room.Rejoin(req.Context(), first.SessionID, first.Token, client)
	default:
		client.CloseWithCode(CloseBadRequest, reasonInvalidPayload)
		return
	}
	if err != nil {
		if code, reason, ok := AsJoinError(err); ok {
			client.CloseWithCode(code, reason)
		} else {
			client.CloseWithCode(CloseInternalServerError, "join failed")
		}
		return
	}

	conn.SetReadDeadline(time.Time{})
	readLoop(room, client, sessionID)
}

// readLoop pumps inbound messages into the room until the connection drops.
// A normal close frame from the client counts as a consented leave.
func readLoop(room *Room, client *wsClient, sessionID string) {
	defer client.conn.Close()

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			consented := false
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				consented = true
			}
			room.HandleDisconnect(sessionID, consented)
			return
		}
		room.HandleMessage(sessionID, payload)
	}
}
