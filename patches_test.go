package server

import "testing"

func TestDiffProjectionEmitsOnlyChanges(t *testing.T) {
	prev := newRoomProjection()
	prev.players["s1"] = Player{ID: "s1", Username: "alice", X: 100, Y: 100}
	prev.players["s2"] = Player{ID: "s2", Username: "bob", X: 200, Y: 200}
	prev.enemies["e1"] = Enemy{ID: "e1", X: 300, Y: 300}

	next := newRoomProjection()
	// s1 unchanged, s2 moved, e1 gone, e2 new.
	next.players["s1"] = Player{ID: "s1", Username: "alice", X: 100, Y: 100}
	next.players["s2"] = Player{ID: "s2", Username: "bob", X: 204, Y: 200}
	next.enemies["e2"] = Enemy{ID: "e2", X: 500, Y: 500}

	patches := diffProjection(prev, next)
	byKey := make(map[string]Patch, len(patches))
	for _, patch := range patches {
		byKey[string(patch.Kind)+"/"+patch.EntityID] = patch
	}

	if len(patches) != 3 {
		t.Fatalf("patches = %+v, want exactly 3", patches)
	}
	if _, ok := byKey["player_upsert/s2"]; !ok {
		t.Fatalf("missing upsert for moved player: %+v", patches)
	}
	if _, ok := byKey["enemy_removed/e1"]; !ok {
		t.Fatalf("missing removal for dead enemy: %+v", patches)
	}
	if _, ok := byKey["enemy_upsert/e2"]; !ok {
		t.Fatalf("missing upsert for new enemy: %+v", patches)
	}
}

func TestDiffProjectionEmptyWhenIdentical(t *testing.T) {
	x, y := 421.0, 388.0
	view := Player{ID: "s1", Username: "alice", X: 400, Y: 400, AttackFrameX: &x, AttackFrameY: &y}

	prev := newRoomProjection()
	prev.players["s1"] = view

	// A fresh snapshot allocates new pointers for the same frame values.
	x2, y2 := 421.0, 388.0
	next := newRoomProjection()
	next.players["s1"] = Player{ID: "s1", Username: "alice", X: 400, Y: 400, AttackFrameX: &x2, AttackFrameY: &y2}

	if patches := diffProjection(prev, next); len(patches) != 0 {
		t.Fatalf("identical projections produced patches: %+v", patches)
	}
}

func TestDiffProjectionDetectsFrameTransitions(t *testing.T) {
	x, y := 421.0, 388.0

	prev := newRoomProjection()
	prev.players["s1"] = Player{ID: "s1", X: 400, Y: 400}
	next := newRoomProjection()
	next.players["s1"] = Player{ID: "s1", X: 400, Y: 400, AttackFrameX: &x, AttackFrameY: &y}

	if patches := diffProjection(prev, next); len(patches) != 1 {
		t.Fatalf("frame appearing produced %d patches, want 1", len(patches))
	}
	// And the reverse transition, frame expiring, is also a change.
	if patches := diffProjection(next, prev); len(patches) != 1 {
		t.Fatalf("frame expiring produced %d patches, want 1", len(patches))
	}
}

func TestDiffProjectionRemovesPlayers(t *testing.T) {
	prev := newRoomProjection()
	prev.players["s1"] = Player{ID: "s1", Username: "alice"}

	patches := diffProjection(prev, newRoomProjection())
	if len(patches) != 1 || patches[0].Kind != PatchPlayerRemoved || patches[0].EntityID != "s1" {
		t.Fatalf("patches = %+v", patches)
	}
	if patches[0].Payload != nil {
		t.Fatalf("removal carried a payload: %+v", patches[0])
	}
}
