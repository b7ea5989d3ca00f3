package server

import "time"

// attackPhase describes where a player sits in the attack animation.
type attackPhase int

const (
	phaseIdle attackPhase = iota
	phaseWindup
	phaseDamage
	phaseRecovery
)

// attackPhaseAt maps time since the last attack started onto the animation
// phases. The damage window is [attackDamageDelay, attackDamageDelay +
// attackFrameTime); everything after it up to the cooldown is recovery.
func attackPhaseAt(elapsed time.Duration) attackPhase {
	switch {
	case elapsed < 0:
		return phaseIdle
	case elapsed < attackDamageDelay:
		return phaseWindup
	case elapsed < attackDamageDelay+attackFrameTime:
		return phaseDamage
	case elapsed < attackCooldown:
		return phaseRecovery
	default:
		return phaseIdle
	}
}

// resolveCombatLocked advances one player's attack state machine for a single
// dequeued input. During the damage frame the hitbox is recomputed from the
// player's current position and facing, and every overlapping enemy dies in
// the same frame. A new attack may only start once the full cooldown since
// the previous one has elapsed.
func (r *Room) resolveCombatLocked(p *playerState, in InputPayload, now time.Time) {
	elapsed := now.Sub(p.lastAttackTime)

	if attackPhaseAt(elapsed) == phaseDamage {
		r.setDamageFrameLocked(p)
		r.resolveEnemyHitsLocked(p)
	} else {
		p.attackFrameX = nil
		p.attackFrameY = nil
	}

	// Mid-attack: the attack bit is ignored until the cooldown lapses.
	if elapsed < attackCooldown {
		return
	}

	if in.Attack {
		p.isAttacking = true
		p.attackCount++
		p.lastAttackTime = now
		r.results.AddAttack(p.userID)
	} else {
		p.isAttacking = false
	}
}

// setDamageFrameLocked positions the fist hitbox at a fixed offset from the
// player's center, mirrored by facing.
func (r *Room) setDamageFrameLocked(p *playerState) {
	frameX := p.x - attackOffsetX
	if p.isFacingRight {
		frameX = p.x + attackOffsetX
	}
	frameY := p.y - attackOffsetY
	p.attackFrameX = &frameX
	p.attackFrameY = &frameY
}

// resolveEnemyHitsLocked destroys every enemy overlapping the active damage
// frame. There is no single-hit-per-swing limit.
func (r *Room) resolveEnemyHitsLocked(p *playerState) {
	if p.attackFrameX == nil || p.attackFrameY == nil {
		return
	}
	frame := rect{X: *p.attackFrameX, Y: *p.attackFrameY, Width: attackWidth, Height: attackHeight}

	for id, enemy := range r.enemies {
		if !rectsOverlap(enemy.hitbox(), frame) {
			continue
		}
		delete(r.enemies, id)
		p.killCount++
		r.results.AddKill(p.userID)
	}
}
