package server

// Enemy is the wire-visible projection of a roaming enemy.
type Enemy struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type enemyState struct {
	id string
	x  float64
	y  float64
}

func (e *enemyState) snapshot() Enemy {
	return Enemy{ID: e.id, X: e.x, Y: e.y}
}

// hitbox returns the enemy's collision rectangle.
func (e *enemyState) hitbox() rect {
	return rect{X: e.x, Y: e.y, Width: enemyWidth, Height: enemyHeight}
}
