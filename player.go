package server

import (
	"time"
)

// Player is the wire-visible projection of a player, keyed by session id in
// state broadcasts. Internal bookkeeping (token expiry, input queue, raw
// timestamps) deliberately never crosses this boundary.
type Player struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	X             float64  `json:"x"`
	Y             float64  `json:"y"`
	IsFacingRight bool     `json:"isFacingRight"`
	IsAttacking   bool     `json:"isAttacking"`
	KillCount     int      `json:"killCount"`
	LastInputSeq  int64    `json:"lastProcessedInputSeq"`
	AttackFrameX  *float64 `json:"attackDamageFrameX,omitempty"`
	AttackFrameY  *float64 `json:"attackDamageFrameY,omitempty"`
}

// playerState is the authoritative per-player record. It outlives the
// underlying connection while a reconnection window is pending.
type playerState struct {
	sessionID string
	userID    string
	username  string

	x             float64
	y             float64
	isFacingRight bool

	isAttacking    bool
	lastAttackTime time.Time
	attackCount    int
	killCount      int
	// Transient damage-frame hitbox center, nil outside the damage window.
	attackFrameX *float64
	attackFrameY *float64

	tokenExpiresAt time.Time
	lastActivity   time.Time

	lastProcessedSeq int64
	inputQueue       []InputPayload
}

// snapshot projects the mutable state into its wire representation.
func (p *playerState) snapshot() Player {
	view := Player{
		ID:            p.sessionID,
		Username:      p.username,
		X:             p.x,
		Y:             p.y,
		IsFacingRight: p.isFacingRight,
		IsAttacking:   p.isAttacking,
		KillCount:     p.killCount,
		LastInputSeq:  p.lastProcessedSeq,
	}
	if p.attackFrameX != nil {
		x := *p.attackFrameX
		view.AttackFrameX = &x
	}
	if p.attackFrameY != nil {
		y := *p.attackFrameY
		view.AttackFrameY = &y
	}
	return view
}

func playerViewEqual(a, b Player) bool {
	if a.ID != b.ID || a.Username != b.Username ||
		a.X != b.X || a.Y != b.Y ||
		a.IsFacingRight != b.IsFacingRight || a.IsAttacking != b.IsAttacking ||
		a.KillCount != b.KillCount || a.LastInputSeq != b.LastInputSeq {
		return false
	}
	return floatPtrEqual(a.AttackFrameX, b.AttackFrameX) && floatPtrEqual(a.AttackFrameY, b.AttackFrameY)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
