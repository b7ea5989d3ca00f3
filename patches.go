package server

// PatchKind identifies the type of diff entry in a state broadcast.
type PatchKind string

const (
	// PatchPlayerUpsert adds or updates a player's wire projection.
	PatchPlayerUpsert PatchKind = "player_upsert"
	// PatchPlayerRemoved signals that a player left the room.
	PatchPlayerRemoved PatchKind = "player_removed"
	// PatchEnemyUpsert adds or updates an enemy's wire projection.
	PatchEnemyUpsert PatchKind = "enemy_upsert"
	// PatchEnemyRemoved signals that an enemy was destroyed.
	PatchEnemyRemoved PatchKind = "enemy_removed"
)

// Patch is one diff entry that clients apply to their replicated state.
type Patch struct {
	Kind     PatchKind `json:"kind"`
	EntityID string    `json:"entityId"`
	Payload  any       `json:"payload,omitempty"`
}

// roomProjection is the last wire view sent to clients, retained between
// network ticks so the next broadcast only carries what changed.
type roomProjection struct {
	players map[string]Player
	enemies map[string]Enemy
}

func newRoomProjection() roomProjection {
	return roomProjection{
		players: make(map[string]Player),
		enemies: make(map[string]Enemy),
	}
}

// diffProjection computes the patches that transform prev into next.
func diffProjection(prev, next roomProjection) []Patch {
	patches := make([]Patch, 0)

	for id, view := range next.players {
		old, ok := prev.players[id]
		if !ok || !playerViewEqual(old, view) {
			patches = append(patches, Patch{Kind: PatchPlayerUpsert, EntityID: id, Payload: view})
		}
	}
	for id := range prev.players {
		if _, ok := next.players[id]; !ok {
			patches = append(patches, Patch{Kind: PatchPlayerRemoved, EntityID: id})
		}
	}

	for id, view := range next.enemies {
		old, ok := prev.enemies[id]
		if !ok || old != view {
			patches = append(patches, Patch{Kind: PatchEnemyUpsert, EntityID: id, Payload: view})
		}
	}
	for id := range prev.enemies {
		if _, ok := next.enemies[id]; !ok {
			patches = append(patches, Patch{Kind: PatchEnemyRemoved, EntityID: id})
		}
	}

	return patches
}
