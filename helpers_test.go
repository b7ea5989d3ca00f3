package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"punchgrounds/server/internal/auth"
	"punchgrounds/server/internal/profile"
)

// testClock is a manually advanced clock shared by a room and its test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubValidator resolves tokens from a fixed table.
type stubValidator struct {
	claims map[string]auth.Claims
}

func (v *stubValidator) Validate(token string) (auth.Claims, error) {
	claims, ok := v.claims[token]
	if !ok {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	return claims, nil
}

// fakeClient records everything the room sends and mirrors the transport's
// behavior of reporting a disconnect back to the room after a server-side
// close.
type fakeClient struct {
	mu          sync.Mutex
	room        *Room
	sessionID   string
	sent        [][]byte
	failSends   bool
	closed      bool
	closeCode   int
	closeReason string
}

func (c *fakeClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSends {
		return fmt.Errorf("send failed")
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	c.sent = append(c.sent, copied)
	return nil
}

func (c *fakeClient) CloseWithCode(code int, reason string) {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	room, sessionID := c.room, c.sessionID
	c.mu.Unlock()

	if !alreadyClosed && room != nil && sessionID != "" {
		room.HandleDisconnect(sessionID, false)
	}
}

func (c *fakeClient) closedWith() (bool, int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode, c.closeReason
}

func (c *fakeClient) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// messagesOfType decodes the recorded frames and keeps those matching type.
func (c *fakeClient) messagesOfType(t *testing.T, msgType string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, raw := range c.messages() {
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		if decoded["type"] == msgType {
			out = append(out, decoded)
		}
	}
	return out
}

type roomFixture struct {
	room      *Room
	clock     *testClock
	validator *stubValidator
	profiles  *profile.MemoryStore
}

// addAccount registers a profile and returns a token resolving to it.
func (f *roomFixture) addAccount(userID, username string, tokenTTL time.Duration) string {
	f.profiles.Put(profile.Profile{UserID: userID, Username: username})
	token := "token-" + userID + "-" + fmt.Sprint(len(f.validator.claims))
	f.validator.claims[token] = auth.Claims{UserID: userID, ExpiresAt: f.clock.Now().Add(tokenTTL)}
	return token
}

func newRoomFixture(t *testing.T, mutate func(*RoomConfig)) *roomFixture {
	t.Helper()

	clock := newTestClock()
	validator := &stubValidator{claims: make(map[string]auth.Claims)}
	profiles := profile.NewMemoryStore()

	cfg := DefaultRoomConfig()
	cfg.Validator = validator
	cfg.Profiles = profiles
	cfg.Clock = clock.Now
	cfg.Seed = 1
	if mutate != nil {
		mutate(&cfg)
	}

	room, err := NewRoom("room-test", cfg)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return &roomFixture{room: room, clock: clock, validator: validator, profiles: profiles}
}

// join binds a fresh fake client for the given token.
func (f *roomFixture) join(t *testing.T, token string) (*fakeClient, string) {
	t.Helper()
	client := &fakeClient{room: f.room}
	sessionID, err := f.room.Join(context.Background(), token, client)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	client.mu.Lock()
	client.sessionID = sessionID
	client.mu.Unlock()
	return client, sessionID
}

// playerBySession reads the internal player state under the room mutex.
func (f *roomFixture) playerBySession(sessionID string) *playerState {
	f.room.mu.Lock()
	defer f.room.mu.Unlock()
	return f.room.players[sessionID]
}

func (f *roomFixture) setPosition(sessionID string, x, y float64) {
	f.room.mu.Lock()
	defer f.room.mu.Unlock()
	if p, ok := f.room.players[sessionID]; ok {
		p.x = x
		p.y = y
	}
}

// suspendEnemySpawns pushes the spawn cooldown far into the future so tests
// control the enemy population explicitly.
func (f *roomFixture) suspendEnemySpawns() {
	f.room.mu.Lock()
	f.room.lastEnemySpawn = f.clock.Now().Add(1000 * time.Hour)
	f.room.mu.Unlock()
}

func (f *roomFixture) addEnemy(id string, x, y float64) {
	f.room.mu.Lock()
	defer f.room.mu.Unlock()
	f.room.enemies[id] = &enemyState{id: id, x: x, y: y}
}

// step advances the clock and the simulation by exactly one fixed tick.
func (f *roomFixture) step() {
	f.clock.Advance(simulationStep)
	f.room.Advance(f.clock.Now(), simulationStep)
}

// sendInput routes one playerInput message through the normal message path.
func (f *roomFixture) sendInput(t *testing.T, sessionID string, in InputPayload) {
	t.Helper()
	f.room.HandleMessage(sessionID, inputMsg(t, in))
}

func inputMsg(t *testing.T, in InputPayload) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"type": msgPlayerInput,
		"input": map[string]any{
			"seq":    in.Seq,
			"left":   in.Left,
			"right":  in.Right,
			"up":     in.Up,
			"down":   in.Down,
			"attack": in.Attack,
		},
	})
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	return payload
}
