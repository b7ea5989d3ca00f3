package server

import (
	"time"

	"github.com/google/uuid"
)

// advanceEnemiesLocked runs the spawner and the wander step once per tick.
func (r *Room) advanceEnemiesLocked(now time.Time) {
	r.spawnEnemyLocked(now)
	r.wanderEnemiesLocked()
}

// spawnEnemyLocked creates one enemy at a random position when the population
// is below the cap and the spawn cooldown has elapsed.
func (r *Room) spawnEnemyLocked(now time.Time) {
	if len(r.enemies) >= maxEnemies {
		return
	}
	if now.Before(r.lastEnemySpawn.Add(enemySpawnInterval)) {
		return
	}
	r.lastEnemySpawn = now

	enemy := &enemyState{
		id: uuid.NewString(),
		x:  r.rng.Float64() * worldWidth,
		y:  r.rng.Float64() * worldHeight,
	}
	r.enemies[enemy.id] = enemy
}

// wanderEnemiesLocked moves every enemy one tick in a freshly chosen random
// direction. Headings are not persisted between ticks; each axis picks one of
// its two directions, so the opposite-cancellation rule never triggers.
func (r *Room) wanderEnemiesLocked() {
	for _, enemy := range r.enemies {
		moveLeft := r.rng.Intn(2) == 0
		moveUp := r.rng.Intn(2) == 0
		intent := moveIntent{
			Left:  moveLeft,
			Right: !moveLeft,
			Up:    moveUp,
			Down:  !moveUp,
		}
		enemy.x, enemy.y = resolveMovement(enemy.x, enemy.y, enemyWidth, enemyHeight, intent)
	}
}
