package server

import (
	"fmt"
	"sync"
	"time"
)

// RoomManager owns the lifecycle of every room in the process. Rooms are
// created on demand, run independently, and are retired once they empty;
// their results stay readable for a short grace period after teardown.
type RoomManager struct {
	cfg RoomConfig

	mu      sync.Mutex
	rooms   map[string]*Room
	retired map[string]*ResultsStore
}

func NewRoomManager(cfg RoomConfig) *RoomManager {
	return &RoomManager{
		cfg:     cfg,
		rooms:   make(map[string]*Room),
		retired: make(map[string]*ResultsStore),
	}
}

// GetOrCreateRoom returns the live room with the given id, creating and
// starting it when absent.
func (m *RoomManager) GetOrCreateRoom(id string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[id]; ok {
		return room, nil
	}

	room, err := NewRoom(id, m.cfg)
	if err != nil {
		return nil, fmt.Errorf("create room %s: %w", id, err)
	}
	room.SetOnDispose(m.retire)
	m.rooms[id] = room
	go room.Run()
	return room, nil
}

// Lookup returns a live room without creating one.
func (m *RoomManager) Lookup(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	return room, ok
}

// Results returns the scoreboard for a live or recently retired room.
func (m *RoomManager) Results(id string) ([]ResultEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[id]; ok {
		return room.Results().Scoreboard(), true
	}
	if store, ok := m.retired[id]; ok {
		return store.Scoreboard(), true
	}
	return nil, false
}

// retire moves an emptied room's results into the grace window and forgets
// the room itself.
func (m *RoomManager) retire(room *Room) {
	m.mu.Lock()
	delete(m.rooms, room.ID)
	m.retired[room.ID] = room.Results()
	m.mu.Unlock()

	grace := m.cfg.ResultsGrace
	if grace <= 0 {
		grace = DefaultRoomConfig().ResultsGrace
	}
	time.AfterFunc(grace, func() {
		m.mu.Lock()
		delete(m.retired, room.ID)
		m.mu.Unlock()
	})
}

// DiagnosticsSnapshot summarizes every live room.
func (m *RoomManager) DiagnosticsSnapshot() []map[string]any {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.Unlock()

	out := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, room.DiagnosticsSnapshot())
	}
	return out
}

// Shutdown stops every live room.
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.mu.Unlock()

	for _, room := range rooms {
		room.Stop()
	}
}
