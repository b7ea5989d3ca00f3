package server

import (
	"fmt"
	"time"
)

const (
	// ProtocolVersion is bumped whenever the wire format changes.
	ProtocolVersion = 1

	// tickRate is the fixed simulation frequency in steps per second.
	tickRate = 64
	// patchRate is the broadcast frequency in updates per second. Clients
	// interpolate between patches, so it runs well below the tick rate.
	patchRate = 20

	worldWidth  = 4000.0
	worldHeight = 4000.0

	playerWidth  = 48.0
	playerHeight = 54.0
	// moveSpeed is applied per simulation tick, per axis. Diagonal movement
	// is intentionally not normalized.
	moveSpeed = 4.0

	enemyWidth  = 64.0
	enemyHeight = 64.0
	maxEnemies  = 10

	attackWidth  = 6.0
	attackHeight = 8.0
	// The fist lands at the edge of the player's bounding box.
	attackOffsetX = playerWidth/2 - attackWidth/2
	// Height of the fist above the player's center.
	attackOffsetY = 12.0

	// The attack animation is attackFrameCount frames at attackFrameRate fps.
	// Damage lands on the frame at attackDamageFrameIndex (zero-based), so
	// every attack timing below derives from these three values.
	attackFrameRate        = 8
	attackFrameCount       = 5
	attackDamageFrameIndex = 3

	maxPlayersPerRoom = 10

	writeWait = 10 * time.Second
	// joinWait bounds how long a fresh connection may take to present its
	// token before the server hangs up.
	joinWait = 10 * time.Second
)

var (
	attackFrameTime   = time.Second / attackFrameRate
	attackCooldown    = attackFrameCount * attackFrameTime
	attackDamageDelay = attackDamageFrameIndex * attackFrameTime

	simulationStep = time.Second / tickRate
	patchInterval  = time.Second / patchRate

	enemySpawnInterval = 2 * time.Second
)

// ValidateTimings asserts that the derived attack windows stay internally
// consistent. Called once at startup so a bad frame-rate edit fails loudly
// instead of silently shifting the damage window outside the cooldown.
func ValidateTimings() error {
	if attackDamageFrameIndex >= attackFrameCount {
		return fmt.Errorf("damage frame %d outside animation of %d frames", attackDamageFrameIndex, attackFrameCount)
	}
	if attackDamageDelay+attackFrameTime > attackCooldown {
		return fmt.Errorf("damage window [%v, %v) exceeds attack cooldown %v",
			attackDamageDelay, attackDamageDelay+attackFrameTime, attackCooldown)
	}
	if simulationStep <= 0 || patchInterval <= 0 {
		return fmt.Errorf("non-positive tick intervals: sim=%v patch=%v", simulationStep, patchInterval)
	}
	if patchInterval < simulationStep {
		return fmt.Errorf("patch interval %v must not outpace simulation step %v", patchInterval, simulationStep)
	}
	return nil
}
