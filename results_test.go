package server

import "testing"

func TestResultsStoreCounters(t *testing.T) {
	s := NewResultsStore()
	s.Ensure("user-1", "alice", 0, 0)

	s.AddAttack("user-1")
	s.AddAttack("user-1")
	s.AddKill("user-1")
	// Credits for unknown accounts are dropped, not auto-created.
	s.AddKill("user-unknown")

	entry, ok := s.Lookup("user-1")
	if !ok {
		t.Fatalf("missing entry for user-1")
	}
	if entry.AttackCount != 2 || entry.KillCount != 1 {
		t.Fatalf("entry = %+v", entry)
	}
	if _, ok := s.Lookup("user-unknown"); ok {
		t.Fatalf("unknown account gained an entry")
	}
}

func TestResultsEnsureCarriesCountersAcrossRebind(t *testing.T) {
	s := NewResultsStore()
	s.Ensure("user-1", "alice", 0, 0)
	s.AddAttack("user-1")
	s.AddKill("user-1")

	// A re-bind seeds the entry from the transferred player counters.
	s.Ensure("user-1", "alice", 1, 1)
	entry, _ := s.Lookup("user-1")
	if entry.AttackCount != 1 || entry.KillCount != 1 {
		t.Fatalf("entry after rebind = %+v", entry)
	}
}

func TestScoreboardOrdering(t *testing.T) {
	s := NewResultsStore()
	s.Ensure("user-1", "carol", 4, 2)
	s.Ensure("user-2", "alice", 9, 5)
	s.Ensure("user-3", "bob", 7, 2)
	s.Ensure("user-4", "dave", 4, 2)

	board := s.Scoreboard()
	wantOrder := []string{"alice", "bob", "carol", "dave"}
	if len(board) != len(wantOrder) {
		t.Fatalf("board size = %d, want %d", len(board), len(wantOrder))
	}
	for i, want := range wantOrder {
		if board[i].Username != want {
			t.Fatalf("board[%d] = %s, want %s (full board: %+v)", i, board[i].Username, want, board)
		}
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	s := NewResultsStore()
	s.Ensure("user-1", "alice", 0, 0)

	entry, _ := s.Lookup("user-1")
	entry.KillCount = 99

	fresh, _ := s.Lookup("user-1")
	if fresh.KillCount != 0 {
		t.Fatalf("caller mutation leaked into the store")
	}
}
