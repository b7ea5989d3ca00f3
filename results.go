package server

import (
	"sort"
	"sync"
)

// ResultEntry is one account's scoreboard line for a room.
type ResultEntry struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	AttackCount int    `json:"attackCount"`
	KillCount   int    `json:"killCount"`
}

// ResultsStore tracks per-account results for the lifetime of one room plus a
// short grace period after teardown. It is owned by the room rather than
// living in ambient global state, and readers only ever see copies.
type ResultsStore struct {
	mu      sync.Mutex
	entries map[string]*ResultEntry
}

func NewResultsStore() *ResultsStore {
	return &ResultsStore{entries: make(map[string]*ResultEntry)}
}

// Ensure seeds an entry at spawn time, carrying over counters when a player
// re-binds to an existing state.
func (s *ResultsStore) Ensure(userID, username string, attackCount, killCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[userID]
	if !ok {
		entry = &ResultEntry{UserID: userID}
		s.entries[userID] = entry
	}
	entry.Username = username
	entry.AttackCount = attackCount
	entry.KillCount = killCount
}

// AddKill credits a confirmed enemy kill.
func (s *ResultsStore) AddKill(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[userID]; ok {
		entry.KillCount++
	}
}

// AddAttack credits an attack attempt.
func (s *ResultsStore) AddAttack(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[userID]; ok {
		entry.AttackCount++
	}
}

// Lookup returns a copy of one account's entry.
func (s *ResultsStore) Lookup(userID string) (ResultEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[userID]
	if !ok {
		return ResultEntry{}, false
	}
	return *entry, true
}

// Scoreboard returns all entries ordered by kills, then attacks, then name.
func (s *ResultsStore) Scoreboard() []ResultEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	board := make([]ResultEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		board = append(board, *entry)
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].KillCount != board[j].KillCount {
			return board[i].KillCount > board[j].KillCount
		}
		if board[i].AttackCount != board[j].AttackCount {
			return board[i].AttackCount > board[j].AttackCount
		}
		return board[i].Username < board[j].Username
	})
	return board
}
