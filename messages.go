package server

import "encoding/json"

// Close codes surfaced to clients. The client maps SUCCESS to its results
// screen, the transient codes to retry-with-backoff, and the permanent codes
// straight back to the menu.
const (
	CloseSuccess             = 1000
	CloseInternalServerError = 1011
	CloseUnauthorized        = 3000
	CloseForbidden           = 3003
	CloseBadRequest          = 3004
	CloseTimeout             = 3008
	CloseNotFound            = 4004
)

// Eviction reasons, sent as the close frame text.
const (
	reasonInvalidToken       = "invalid token"
	reasonProfileNotFound    = "profile not found"
	reasonTokenExpired       = "token expired"
	reasonInactivity         = "player inactivity"
	reasonNewConnection      = "new connection found"
	reasonConnectionNotFound = "connection not found"
	reasonInvalidPayload     = "invalid payload"
	reasonUserIDChanged      = "user id changed"
	reasonIntentionalLeave   = "intentional leave"
	reasonRoomFull           = "room full"
)

// Message types accepted from clients.
const (
	msgJoin         = "join"
	msgRejoin       = "rejoin"
	msgPing         = "ping"
	msgLeaveRoom    = "leaveRoom"
	msgPlayerInput  = "playerInput"
	msgRefreshToken = "refreshToken"
)

// clientMessage is the envelope for every inbound websocket message.
type clientMessage struct {
	Type string `json:"type"`
	// join, rejoin, refreshToken
	Token string `json:"token,omitempty"`
	// rejoin
	SessionID string `json:"sessionId,omitempty"`
	// ping
	ClientTime int64 `json:"clientTime,omitempty"`
	// playerInput; validated separately so shape errors are detectable
	Input json.RawMessage `json:"input,omitempty"`
}

type pongMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime,omitempty"`
}

// keyframeMessage carries the full room projection, sent once on (re)join.
type keyframeMessage struct {
	Ver        int      `json:"ver"`
	Type       string   `json:"type"`
	SessionID  string   `json:"sessionId"`
	Tick       uint64   `json:"tick"`
	ServerTime int64    `json:"serverTime"`
	Players    []Player `json:"players"`
	Enemies    []Enemy  `json:"enemies"`
}

// stateMessage carries the incremental patches for one network tick.
type stateMessage struct {
	Ver        int     `json:"ver"`
	Type       string  `json:"type"`
	Tick       uint64  `json:"tick"`
	ServerTime int64   `json:"serverTime"`
	Patches    []Patch `json:"patches"`
}
